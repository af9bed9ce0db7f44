package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/ai-training/internal/training"
)

// Publisher pushes training status events to a durable queue.
type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	// amqp channels are not safe for concurrent publishing
	mu sync.Mutex
}

type StatusMessage struct {
	ModuleID string    `json:"module_id"`
	UserID   uint64    `json:"user_id"`
	Status   string    `json:"status"`
	At       time.Time `json:"at"`
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := declareQueues(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

// declareQueues declares queue plus its dead-letter queue (queue + ".dlq").
// Consumers must declare with the same arguments.
func declareQueues(ch *amqp.Channel, queue string) error {
	dlqQ := queue + ".dlq"

	// DLQ
	if _, err := ch.QueueDeclare(
		dlqQ,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		return err
	}

	// Main queue: dead-letter to DLQ on reject/nack(requeue=false)
	_, err := ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		deadLetterArgs(dlqQ),
	)
	return err
}

func deadLetterArgs(dlq string) amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlq,
	}
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Notify publishes ev. It satisfies training.Notifier.
func (p *Publisher) Notify(ctx context.Context, ev training.Event) error {
	body, err := encodeEvent(ev)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    ev.At,
		},
	)
}

func encodeEvent(ev training.Event) ([]byte, error) {
	return json.Marshal(StatusMessage{
		ModuleID: ev.ModuleID,
		UserID:   ev.UserID,
		Status:   string(ev.Status),
		At:       ev.At.UTC(),
	})
}
