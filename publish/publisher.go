// Package publish sends computed KPI rows to a Kafka topic. Rows the broker does not
// take are buffered and spilled to a dump file so that a run never loses them silently.
package publish

import (
	"context"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

const DumpFileName = "kpi-messages.dump"

type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers         []string
	Topic           string
	WriteTimeOutSec int
	BatchSize       int
	DumpDir         string
	MaxDumpSize     int64 // megabytes
	MaxBufSize      int
}

type Publisher struct {
	writer    kafkaMessageWriter
	buffer    MessageBuffer
	batchSize int
	timeout   time.Duration
	logger    *log.Logger
}

// Result counts what happened to the messages of one Publish call.
type Result struct {
	Sent     int `json:"sent"`
	Buffered int `json:"buffered"`
}

func NewPublisher(conf Config, logger *log.Logger) (*Publisher, error) {
	if len(conf.Brokers) == 0 || conf.Topic == "" {
		return nil, errors.New("kafka brokers and topic are required to publish")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(conf.Brokers...),
		Topic:        conf.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: time.Duration(conf.WriteTimeOutSec) * time.Second,
		ErrorLogger:  kafka.LoggerFunc(logger.Errorf),
	}
	dumper := NewSimpleDumper(filepath.Join(conf.DumpDir, DumpFileName), conf.MaxDumpSize)
	return NewPublisherWith(w, NewDequeBuffer(dumper, conf.MaxBufSize), conf, logger), nil
}

// NewPublisherWith builds a publisher over any writer, e.g. a fake one in tests.
func NewPublisherWith(w kafkaMessageWriter, buf MessageBuffer, conf Config, logger *log.Logger) *Publisher {
	batch := conf.BatchSize
	if batch <= 0 {
		batch = 100
	}
	timeout := time.Duration(conf.WriteTimeOutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Publisher{writer: w, buffer: buf, batchSize: batch, timeout: timeout, logger: logger}
}

// Publish writes msgs in batches. A failed batch goes to the buffer and the next batches are still tried.
// Only a CriticalError from the buffer is returned.
func (p *Publisher) Publish(ctx context.Context, msgs []Message) (Result, error) {
	var res Result
	for start := 0; start < len(msgs); start += p.batchSize {
		end := start + p.batchSize
		if end > len(msgs) {
			end = len(msgs)
		}
		batch := msgs[start:end]
		if err := p.write(ctx, batch); err != nil {
			p.logger.WithError(err).Errorf("kafka write failed for %d messages, buffering", len(batch))
			res.Buffered += len(batch)
			if err := p.buffer.Append(p.logger, batch...); err != nil {
				return res, err
			}
			continue
		}
		res.Sent += len(batch)
	}
	return res, nil
}

func (p *Publisher) write(ctx context.Context, batch []Message) error {
	kmsgs := make([]kafka.Message, len(batch))
	for i, m := range batch {
		kmsgs[i] = m.ToKafkaMessage()
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.writer.WriteMessages(ctx, kmsgs...)
}

// Flush retries everything still buffered once and dumps what fails again.
func (p *Publisher) Flush(ctx context.Context) (Result, error) {
	var res Result
	for p.buffer.Len() > 0 {
		batch := p.buffer.ExtractBatch(p.batchSize)
		if err := p.write(ctx, batch); err != nil {
			p.logger.WithError(err).Warnf("retry of %d buffered messages failed", len(batch))
			res.Buffered += len(batch)
			// put the batch back and spill everything
			for _, m := range batch {
				if err := p.buffer.Append(p.logger, m); err != nil {
					return res, err
				}
			}
			return res, p.buffer.Dump(p.logger)
		}
		res.Sent += len(batch)
	}
	return res, nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
