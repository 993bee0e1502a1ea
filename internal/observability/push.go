package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus/push"
)

// Push replaces the job's metric group on a Prometheus Pushgateway.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	pusher := push.New(url, job)
	for _, c := range m.Collectors() {
		pusher = pusher.Collector(c)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
