// Package events publishes document lifecycle events on a redis pub/sub
// channel. It is the write-hook other systems (analytics ingestion, list
// refreshers) subscribe to; the service itself never consumes the
// channel. When redis is not configured the publisher is nil and every
// call is a no-op, so callers never gate on it.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jdamiba/sandstone-project/common"
)

// Event types.
const (
	TypeCreated = "document.created"
	TypeUpdated = "document.updated"
	TypeDeleted = "document.deleted"
)

// Event is the published envelope.
type Event struct {
	Type       string    `json:"type"`
	DocumentID string    `json:"document_id"`
	UserID     string    `json:"user_id"`
	Version    int64     `json:"version,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher sends events to one redis channel. Publishing is best-effort:
// failures are logged, never surfaced, and never block the mutation that
// triggered them.
type Publisher struct {
	client  *redis.Client
	channel string
	log     *logrus.Entry
}

// Config holds redis connection settings for the publisher.
type Config struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// New connects to redis and verifies the connection. Returns a nil
// publisher without error when no address is configured.
func New(ctx context.Context, cfg Config) (*Publisher, error) {
	if cfg.Addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, common.Unavailable("redis unreachable")
	}

	return &Publisher{
		client:  client,
		channel: cfg.Channel,
		log:     common.Logger.WithField("component", "events"),
	}, nil
}

// Publish sends one event. Safe to call on a nil publisher.
func (p *Publisher) Publish(ctx context.Context, evt Event) {
	if p == nil {
		return
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		p.log.WithError(err).Error("failed to encode event")
		return
	}

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"type":        evt.Type,
			"document_id": evt.DocumentID,
		}).Error("failed to publish event")
	}
}

// Close releases the redis connection. Safe to call on a nil publisher.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.client.Close()
}
