package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dejobratic/ferretec/internal/store/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// RabbitPublisher sends sale events to a durable queue through the default exchange.
type RabbitPublisher struct {
	pool   *ChannelPool
	queue  string
	logger *slog.Logger
	now    func() time.Time
}

func NewRabbitPublisher(pool *ChannelPool, queue string, logger *slog.Logger) *RabbitPublisher {
	return &RabbitPublisher{
		pool:   pool,
		queue:  queue,
		logger: logger,
		now:    time.Now,
	}
}

func (p *RabbitPublisher) PublishSaleCompleted(ctx context.Context, sale domain.Sale) error {
	event := NewSaleCompleted(sale, p.now())
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal sale event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	ch, err := p.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("get channel from pool: %w", err)
	}
	defer p.pool.Put(ch)

	err = ch.PublishWithContext(ctx,
		"",
		p.queue,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    sale.ID,
			Type:         SaleCompletedType,
			Timestamp:    event.OccurredAt,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publish sale %s: %w", sale.ID, err)
	}

	p.logger.DebugContext(ctx, "published sale event", "sale_id", sale.ID, "queue", p.queue)
	return nil
}
