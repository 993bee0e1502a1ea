package kafka

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/climate-stats-etl/internal/adapter/jsonfile"
	"github.com/couchcryptid/climate-stats-etl/internal/config"
	"github.com/couchcryptid/climate-stats-etl/internal/domain"
)

// Format is the output format name reported for published summaries.
const Format = "kafka"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces one message per summary to a Kafka topic.
// It implements pipeline.Loader.
type Publisher struct {
	writer     messageWriter
	topic      string
	logger     *slog.Logger
	newBackOff func() backoff.BackOff
}

// NewPublisher creates a Kafka producer for the configured summary topic.
// Messages are keyed by group key, so a key always lands on the same partition.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaSummaryTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, topic: cfg.KafkaSummaryTopic, logger: logger, newBackOff: defaultBackOff}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return backoff.WithMaxRetries(b, 5)
}

// Load publishes every summary in table in a single WriteMessages call,
// retrying transient broker errors with exponential backoff.
func (p *Publisher) Load(ctx context.Context, table domain.SummaryTable) (domain.OutputReport, error) {
	report := domain.OutputReport{Format: Format, Target: p.topic}
	if len(table.Rows) == 0 {
		return report, nil
	}

	msgs := make([]kafkago.Message, len(table.Rows))
	for i, s := range table.Rows {
		msg, issues, err := serializeToMessage(table, s)
		if err != nil {
			return domain.OutputReport{}, err
		}
		msgs[i] = msg
		report.Bytes += int64(len(msg.Value))
		report.Degraded = append(report.Degraded, issues...)
	}

	op := func() error {
		if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		p.logger.Warn("publish failed, retrying", "topic", p.topic, "error", err, "wait", wait)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(p.newBackOff(), ctx), notify); err != nil {
		return domain.OutputReport{}, domain.IOError("publish summaries", err)
	}

	for _, is := range report.Degraded {
		p.logger.Warn("statistic published as null",
			"topic", p.topic,
			"key", is.Key,
			"field", is.Field,
		)
	}
	report.Rows = len(msgs)
	return report, nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a StatSummary into a Kafka message.
func serializeToMessage(table domain.SummaryTable, s domain.StatSummary) (kafkago.Message, []domain.FieldIssue, error) {
	data, issues, err := jsonfile.MarshalSummary(s)
	if err != nil {
		return kafkago.Message{}, nil, err
	}
	return kafkago.Message{
		Key:   []byte(s.Key.String()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "unit", Value: []byte(s.Unit.String())},
			{Key: "mode", Value: []byte(table.Mode.String())},
			{Key: "outlier_threshold", Value: []byte(strconv.FormatFloat(table.Threshold, 'g', -1, 64))},
			{Key: "generated_at", Value: []byte(table.GeneratedAt.Format(time.RFC3339))},
		},
	}, issues, nil
}
