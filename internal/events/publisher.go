package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/andreasstove999/ecommerce-system/internal/metrics"
)

const publishTimeout = 3 * time.Second

// Publisher puts an envelope on a named durable queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, env Envelope) error
}

// Publish wraps payload in a new envelope and hands it to pub.
func Publish(ctx context.Context, pub Publisher, queue, msgType, partitionKey string, payload any) error {
	env, err := NewEnvelope(ctx, msgType, partitionKey, payload)
	if err != nil {
		return err
	}
	err = pub.Publish(ctx, queue, env)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.PublishedTotal.WithLabelValues(queue, msgType, result).Inc()
	return err
}

// RabbitPublisher publishes persistent JSON messages through the default exchange
// and waits for the broker confirm. Queues are declared on first use.
type RabbitPublisher struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	producer string
	declared map[string]bool
}

func NewRabbitPublisher(conn *amqp.Connection, producer string) (*RabbitPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}
	return &RabbitPublisher{ch: ch, producer: producer, declared: map[string]bool{}}, nil
}

func (p *RabbitPublisher) Close() error {
	return p.ch.Close()
}

func (p *RabbitPublisher) Publish(ctx context.Context, queue string, env Envelope) error {
	if env.Producer == "" {
		env.Producer = p.producer
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", env.Type, err)
	}
	return p.publish(ctx, queue, body, env.EventID, nil)
}

// Republish sends an already encoded body again, used for bounded retries.
func (p *RabbitPublisher) Republish(ctx context.Context, queue string, body []byte, headers amqp.Table) error {
	return p.publish(ctx, queue, body, "", headers)
}

func (p *RabbitPublisher) publish(ctx context.Context, queue string, body []byte, messageID string, headers amqp.Table) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared[queue] {
		if err := DeclareQueue(p.ch, queue); err != nil {
			return err
		}
		p.declared[queue] = true
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	conf, err := p.ch.PublishWithDeferredConfirmWithContext(
		pubCtx,
		"",    // default exchange
		queue, // queue name as routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Timestamp:    time.Now().UTC(),
			Headers:      headers,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}

	ok, err := conf.WaitContext(pubCtx)
	if err != nil {
		return fmt.Errorf("confirm %s: %w", queue, err)
	}
	if !ok {
		return errors.New("broker nacked publish to " + queue)
	}
	return nil
}

// DeclareQueue declares queue and its dead-letter queue. Every producer and
// consumer declares with the same arguments, otherwise the broker refuses.
func DeclareQueue(ch *amqp.Channel, queue string) error {
	dlq := DeadLetterQueue(queue)
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", dlq, err)
	}
	_, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": dlq,
		},
	)
	if err != nil {
		return fmt.Errorf("declare %s: %w", queue, err)
	}
	return nil
}

func DeadLetterQueue(queue string) string {
	return queue + ".dlq"
}

// Sequencer hands out increasing sequence numbers per partition key.
type Sequencer interface {
	NextSequence(ctx context.Context, partitionKey string) (int64, error)
}

// SequencedPublisher stamps each envelope with the next sequence of its partition.
type SequencedPublisher struct {
	Next Publisher
	Seq  Sequencer
}

func (p SequencedPublisher) Publish(ctx context.Context, queue string, env Envelope) error {
	seq, err := p.Seq.NextSequence(ctx, env.PartitionKey)
	if err != nil {
		return fmt.Errorf("next sequence for %s: %w", env.PartitionKey, err)
	}
	env.Sequence = &seq
	return p.Next.Publish(ctx, queue, env)
}

// Dial connects to RabbitMQ.
func Dial(url, connectionName string) (*amqp.Connection, error) {
	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(connectionName)
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat:  10 * time.Second,
		Properties: props,
		Dial:       amqp.DefaultDial(10 * time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	return conn, nil
}
