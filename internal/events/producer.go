package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"storefront/internal/models"
)

const DefaultTopic = "storefront.orders"

var (
	ErrProducerClosed = errors.New("event producer is closed")
	ErrBufferFull     = errors.New("event buffer is full")
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer buffers events in memory and writes them to Kafka from a single
// goroutine. Publish never blocks on the broker.
type Producer struct {
	w       messageWriter
	service string

	mu      sync.RWMutex
	closed  bool
	started bool
	inbox   chan kafka.Message
	closeCh chan struct{}
}

func NewProducer(brokers []string, topic, service string, buf int) *Producer {
	return newProducer(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}, service, buf)
}

func newProducer(w messageWriter, service string, buf int) *Producer {
	if buf <= 0 {
		buf = 256
	}
	return &Producer{
		w:       w,
		service: service,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

func (p *Producer) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			if err := p.w.WriteMessages(context.Background(), m); err != nil {
				log.WithError(err).WithField("key", string(m.Key)).Error("[EVENTS] kafka write failed")
			}
		}
		if err := p.w.Close(); err != nil {
			log.WithError(err).Warn("[EVENTS] kafka writer close failed")
		}
	}()
}

// Publish enqueues one order event keyed by the order reference.
func (p *Producer) Publish(_ context.Context, eventType string, order *models.Order) error {
	env, err := NewEnvelope(p.service, eventType, order)
	if err != nil {
		return err
	}
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(order.OrderID),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "event_id", Value: []byte(env.EventID)},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}
	select {
	case p.inbox <- msg:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close flushes buffered events and waits for the writer to finish.
func (p *Producer) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.inbox)
	started := p.started
	p.mu.Unlock()

	if started {
		<-p.closeCh
	}
}

// Nop discards events. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(_ context.Context, eventType string, order *models.Order) error {
	log.WithFields(log.Fields{"event": eventType, "orderId": order.OrderID}).Debug("[EVENTS] publisher disabled, event dropped")
	return nil
}
