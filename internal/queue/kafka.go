package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"

	"moodline/internal/domain"
)

type Kafka struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafka(brokers []string, topic string) (*Kafka, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Timeout = 5 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return NewKafkaWithProducer(producer, topic), nil
}

func NewKafkaWithProducer(producer sarama.SyncProducer, topic string) *Kafka {
	return &Kafka{
		producer: producer,
		topic:    topic,
	}
}

type auditMessage struct {
	Timestamp  time.Time `json:"timestamp"`
	UserID     string    `json:"user_id"`
	InputText  string    `json:"input_text"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
}

func (k *Kafka) Publish(_ context.Context, rec domain.AuditRecord) error {
	data, err := json.Marshal(auditMessage(rec))
	if err != nil {
		return err
	}

	_, _, err = k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(rec.UserID),
		Value: sarama.ByteEncoder(data),
	})

	return err
}

// Append lets the publisher act as an audit mirror.
func (k *Kafka) Append(ctx context.Context, rec domain.AuditRecord) error {
	if err := k.Publish(ctx, rec); err != nil {
		return domain.LogError("audit kafka: publish", err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.producer.Close()
}
