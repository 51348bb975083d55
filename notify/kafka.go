package notify

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/rbaliyan/eventbus/payload"
)

// KafkaNotifier produces notifications to a Kafka topic. Messages are keyed
// by event ID so retries of one event land on the same partition.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
	codec    payload.Codec
}

// NewKafkaNotifier creates a notifier producing to topic.
//
// Recommended sarama.Config settings:
//
//	config := sarama.NewConfig()
//	config.Producer.RequiredAcks = sarama.WaitForAll
//	config.Producer.Return.Successes = true // required by SyncProducer
func NewKafkaNotifier(producer sarama.SyncProducer, topic string, opts ...Option) *KafkaNotifier {
	o := newOptions(opts...)
	return &KafkaNotifier{
		producer: producer,
		topic:    topic,
		codec:    o.codec,
	}
}

// Notify produces the encoded notification and waits for the broker ack
func (k *KafkaNotifier) Notify(ctx context.Context, n *Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := k.codec.Encode(n)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	_, _, err = k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(n.EventID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("content-type"), Value: []byte(k.codec.ContentType())},
			{Key: []byte("kind"), Value: []byte(n.Kind)},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka produce %s: %w", k.topic, err)
	}
	return nil
}
