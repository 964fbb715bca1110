package kafka

import (
	"context"

	"ecopoints-ledger/pkg/config"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("kafka.producer",
	fx.Provide(NewPublisher),
)

// Publisher produces messages asynchronously. Delivery failures are reported
// through the producer's event loop and logged.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type producer struct {
	p *kafka.Producer
}

type noop struct{}

func (noop) Publish(context.Context, string, []byte, []byte) error { return nil }

// Noop drops every message.
var Noop Publisher = noop{}

func NewPublisher(lc fx.Lifecycle, cfg *config.Config) (Publisher, error) {
	if cfg.Kafka.Addrs == "" {
		zap.L().Info("[Kafka] no brokers configured, ledger events disabled")
		return Noop, nil
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Kafka.Addrs,
		"client.id":          cfg.AppName,
		"acks":               "all",
		"enable.idempotence": true,
	})
	if err != nil {
		return nil, err
	}

	go func() {
		for e := range p.Events() {
			m, ok := e.(*kafka.Message)
			if !ok || m.TopicPartition.Error == nil {
				continue
			}
			zap.L().Error("[Kafka] delivery failed",
				zap.String("topic", topicOf(m)),
				zap.ByteString("key", m.Key),
				zap.Error(m.TopicPartition.Error),
			)
		}
	}()

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			p.Flush(5000)
			p.Close()
			return nil
		},
	})

	return &producer{p: p}, nil
}

func (k *producer) Publish(ctx context.Context, topic string, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return k.p.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            key,
		Value:          value,
	}, nil)
}

func topicOf(m *kafka.Message) string {
	if m.TopicPartition.Topic == nil {
		return ""
	}
	return *m.TopicPartition.Topic
}
