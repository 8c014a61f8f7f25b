package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"subclipper/internal/models"
)

// RoutingKeySubClipCreated is published once a subclip row exists.
const RoutingKeySubClipCreated = "subclip.created"

// AMQPPublisher publishes catalog events to a durable topic exchange.
type AMQPPublisher struct {
	conn     *amqp.Connection
	exchange string

	mu      sync.Mutex
	channel *amqp.Channel
}

func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{conn: conn, exchange: exchange, channel: channel}, nil
}

type subClipCreated struct {
	SubClipID     int64     `json:"subclip_id"`
	UserID        int64     `json:"user_id"`
	SourceMediaID string    `json:"source_media_id"`
	ClipURL       string    `json:"clip_url"`
	ThumbnailURL  string    `json:"thumbnail_url"`
	CreatedAt     time.Time `json:"created_at"`
}

func (p *AMQPPublisher) PublishSubClipCreated(ctx context.Context, clip *models.SubClip) error {
	body, err := json.Marshal(subClipCreated{
		SubClipID:     clip.ID,
		UserID:        clip.UserID,
		SourceMediaID: clip.SourceMediaID,
		ClipURL:       clip.ClipURL,
		ThumbnailURL:  clip.ThumbnailURL,
		CreatedAt:     clip.CreatedAt,
	})
	if err != nil {
		return err
	}

	// amqp channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.PublishWithContext(ctx, p.exchange, RoutingKeySubClipCreated, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

func (p *AMQPPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}
