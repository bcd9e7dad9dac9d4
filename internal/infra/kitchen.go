package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"restopos/internal/model"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// ── Kitchen publisher ─────────────────────────────────────────────────────────
// Publishes kitchen tickets as persistent JSON messages on a durable topic
// exchange, routed by branch ("kitchen.<branch_id>"). The channel runs in
// confirm mode and every publish goes through the circuit breaker so a
// downed broker fails fast.

const publishTimeout = 5 * time.Second

type KitchenPublisher struct {
	url      string
	exchange string
	cb       *CircuitBreaker

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewKitchenPublisher dials lazily: the server starts even when the broker is
// down, and the first SendToKitchen attempts the connection.
func NewKitchenPublisher(url, exchange string, cb *CircuitBreaker) *KitchenPublisher {
	return &KitchenPublisher{url: url, exchange: exchange, cb: cb}
}

// Breaker exposes the publisher's circuit breaker for /health.
func (p *KitchenPublisher) Breaker() *CircuitBreaker { return p.cb }

// ErrTicketNacked is returned when the broker refuses a ticket.
var ErrTicketNacked = errors.New("kitchen: broker nacked ticket")

// confirmation is the part of *amqp.DeferredConfirmation the publisher
// waits on.
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

func awaitConfirm(ctx context.Context, dc confirmation) error {
	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("kitchen: waiting for confirm: %w", err)
	}
	if !acked {
		return ErrTicketNacked
	}
	return nil
}

// SendToKitchen publishes t and waits for the broker to confirm it.
func (p *KitchenPublisher) SendToKitchen(ctx context.Context, t model.KitchenTicket) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("kitchen: marshal ticket: %w", err)
	}
	routingKey := "kitchen." + t.BranchID.String()

	return p.cb.Execute(ctx, func(ctx context.Context) error {
		ch, err := p.channel()
		if err != nil {
			return err
		}
		pctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		dc, err := ch.PublishWithDeferredConfirmWithContext(pctx, p.exchange, routingKey, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    t.OrderID.String(),
			Timestamp:    t.SentAt,
			Body:         body,
		})
		if err == nil && dc != nil {
			err = awaitConfirm(pctx, dc)
		}
		if err != nil {
			if !errors.Is(err, ErrTicketNacked) {
				p.reset()
			}
			log.Error().Err(err).Str("order_id", t.OrderID.String()).Str("routing_key", routingKey).Msg("kitchen: publish failed")
			return fmt.Errorf("kitchen: publish: %w", err)
		}
		log.Debug().Str("order_id", t.OrderID.String()).Int("lines", len(t.Lines)).Msg("kitchen: ticket published")
		return nil
	})
}

// channel returns the live channel, reconnecting and redeclaring the
// exchange when the previous connection was lost.
func (p *KitchenPublisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.closeLocked()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("kitchen: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("kitchen: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("kitchen: declare exchange %s: %w", p.exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("kitchen: enable confirms: %w", err)
	}
	p.conn, p.ch = conn, ch
	log.Info().Str("exchange", p.exchange).Msg("kitchen: connected to broker")
	return ch, nil
}

func (p *KitchenPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}

func (p *KitchenPublisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close shuts the broker connection down.
func (p *KitchenPublisher) Close() error {
	p.reset()
	return nil
}
