// Package messaging publishes order events to RabbitMQ.
package messaging

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xenking/foodorder/internal/domain/order"
)

// DefaultExchange is the fanout exchange order events are published to.
const DefaultExchange = "order_events"

const (
	dialTimeout    = 2 * time.Second
	publishTimeout = 5 * time.Second
)

// ErrNotConnected is returned by Notify while the broker connection is down.
var ErrNotConnected = errors.New("rabbitmq not connected")

var _ order.Notifier = (*Publisher)(nil)

// Publisher sends order events as persistent JSON messages. A single
// channel is shared, so publishes are serialized. Notify never dials: a
// lost connection is restored by Ping, which the readiness check calls
// periodically.
type Publisher struct {
	url         string
	exchange    string
	dialTimeout time.Duration

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	dialing bool
	closed  bool
}

// NewPublisher connects to the broker at url and declares the exchange.
func NewPublisher(url, exchange string) (*Publisher, error) {
	p := newPublisher(url, exchange, dialTimeout)
	if err := p.reconnect(); err != nil {
		return nil, err
	}
	return p, nil
}

func newPublisher(url, exchange string, timeout time.Duration) *Publisher {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &Publisher{url: url, exchange: exchange, dialTimeout: timeout}
}

func (p *Publisher) dial() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(p.dialTimeout),
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "dial rabbitmq")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, errors.Wrap(err, "open channel")
	}
	if err := ch.ExchangeDeclare(
		p.exchange,
		amqp.ExchangeFanout,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, errors.Wrapf(err, "declare exchange %s", p.exchange)
	}
	return conn, ch, nil
}

// reconnect replaces a lost connection. The dial runs without holding mu,
// and at most one dial is in flight; concurrent callers get
// ErrNotConnected.
func (p *Publisher) reconnect() error {
	p.mu.Lock()
	switch {
	case p.closed:
		p.mu.Unlock()
		return net.ErrClosed
	case p.connectedLocked():
		p.mu.Unlock()
		return nil
	case p.dialing:
		p.mu.Unlock()
		return ErrNotConnected
	}
	p.dialing = true
	_ = p.closeLocked()
	p.mu.Unlock()

	conn, ch, err := p.dial()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialing = false
	if err != nil {
		return err
	}
	if p.closed {
		_ = ch.Close()
		_ = conn.Close()
		return net.ErrClosed
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *Publisher) connectedLocked() bool {
	return p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed()
}

// Notify publishes e. It fails with ErrNotConnected without waiting while
// the connection is down.
func (p *Publisher) Notify(ctx context.Context, e order.Event) error {
	body := EncodeEvent(e)

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connectedLocked() {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := p.ch.PublishWithContext(ctx, p.exchange, string(e.Type), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.OrderID + ":" + string(e.Type) + ":" + e.OccurredAt.UTC().Format(time.RFC3339Nano),
		Timestamp:    e.OccurredAt,
		Type:         string(e.Type),
		Body:         body,
	})
	if err != nil {
		return errors.Wrapf(err, "publish %s", e.Type)
	}
	return nil
}

// Ping reports whether the broker is reachable, reconnecting if the
// connection was lost. It serves as a readiness check.
func (p *Publisher) Ping(context.Context) error {
	return p.reconnect()
}

// Close closes the channel and the connection. A dial in flight is
// discarded when it completes.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.closeLocked()
}

func (p *Publisher) closeLocked() error {
	var err error
	if p.ch != nil {
		err = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
		p.conn = nil
	}
	return err
}

// EncodeEvent renders e as the JSON message body.
func EncodeEvent(e order.Event) []byte {
	var enc jx.Encoder
	enc.ObjStart()
	enc.FieldStart("type")
	enc.Str(string(e.Type))
	enc.FieldStart("orderId")
	enc.Str(e.OrderID)
	enc.FieldStart("orderNumber")
	enc.Str(e.OrderNumber)
	enc.FieldStart("userId")
	enc.Int64(e.UserID)
	enc.FieldStart("status")
	enc.Str(string(e.Status))
	enc.FieldStart("paymentStatus")
	enc.Str(string(e.PaymentStatus))
	enc.FieldStart("total")
	enc.Raw([]byte(e.Total.StringFixed(2)))
	enc.FieldStart("occurredAt")
	enc.Str(e.OccurredAt.UTC().Format(time.RFC3339Nano))
	enc.ObjEnd()
	return enc.Bytes()
}
