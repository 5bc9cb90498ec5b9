package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink publishes signals as JSON records, keyed by policy ID so
// per-policy ordering survives partitioning.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: topic}, nil
}

func (s *KafkaSink) Emit(ctx context.Context, sig Signal) error {
	payload, err := json.Marshal(Envelope{
		Kind: sig.Kind(),
		At:   time.Now().UTC(),
		Data: sig,
	})
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	rec := &kgo.Record{Key: sig.Key(), Value: payload}
	if err := s.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce signal: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() {
	s.client.Close()
}
