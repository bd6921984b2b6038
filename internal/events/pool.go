package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the part of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

var ErrPoolClosed = errors.New("channel pool closed")

// ChannelPool hands out a fixed number of channels over one connection. A slot
// whose channel could not be reopened stays in the pool empty and is retried on
// the next Get.
type ChannelPool struct {
	mu       sync.Mutex
	closed   bool
	channels chan Channel
	open     func() (Channel, error)
	closer   func() error
}

// NewChannelPool dials url and pre-opens size channels, each with queue declared durable.
// A connection lost later is redialed when a channel is reopened.
func NewChannelPool(url, queue string, size int) (*ChannelPool, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	link := &connection{url: url, conn: conn}

	open := func() (Channel, error) {
		ch, err := link.channel()
		if err != nil {
			return nil, err
		}
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("declare queue %s: %w", queue, err)
		}
		return ch, nil
	}

	pool, err := newChannelPool(size, open, link.close)
	if err != nil {
		_ = link.close()
		return nil, err
	}
	return pool, nil
}

func newChannelPool(size int, open func() (Channel, error), closer func() error) (*ChannelPool, error) {
	if size < 1 {
		size = 1
	}

	p := &ChannelPool{
		channels: make(chan Channel, size),
		open:     open,
		closer:   closer,
	}
	for i := range size {
		ch, err := open()
		if err != nil {
			p.drain()
			return nil, fmt.Errorf("open channel %d: %w", i, err)
		}
		p.channels <- ch
	}
	return p, nil
}

// Get waits for a free slot. An empty slot or a channel closed by the broker is
// reopened; when that fails the slot goes back to the pool.
func (p *ChannelPool) Get(ctx context.Context) (Channel, error) {
	select {
	case ch, ok := <-p.channels:
		if !ok {
			return nil, ErrPoolClosed
		}
		if ch != nil && !ch.IsClosed() {
			return ch, nil
		}
		fresh, err := p.open()
		if err != nil {
			p.release(nil)
			return nil, fmt.Errorf("reopen channel: %w", err)
		}
		return fresh, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for channel: %w", ctx.Err())
	}
}

// Put returns ch to the pool. A closed channel frees its slot for a reopen.
func (p *ChannelPool) Put(ch Channel) {
	if ch != nil && ch.IsClosed() {
		ch = nil
	}
	p.release(ch)
}

func (p *ChannelPool) release(ch Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		closeChannel(ch)
		return
	}
	select {
	case p.channels <- ch:
	default:
		closeChannel(ch)
	}
}

func (p *ChannelPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.channels)
	for ch := range p.channels {
		closeChannel(ch)
	}
	if p.closer != nil {
		return p.closer()
	}
	return nil
}

func (p *ChannelPool) drain() {
	for {
		select {
		case ch := <-p.channels:
			closeChannel(ch)
		default:
			return
		}
	}
}

func closeChannel(ch Channel) {
	if ch != nil {
		_ = ch.Close()
	}
}

// connection redials the broker once the current connection is gone.
type connection struct {
	mu   sync.Mutex
	url  string
	conn *amqp.Connection
}

func (c *connection) channel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.conn.IsClosed() {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			return nil, fmt.Errorf("redial rabbitmq: %w", err)
		}
		c.conn = conn
	}
	return c.conn.Channel()
}

func (c *connection) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	return c.conn.Close()
}
