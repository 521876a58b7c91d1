// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package events publishes notifications about new waivers to a
// message bus.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/juju/loggo"
	"github.com/redis/go-redis/v9"
	"gopkg.in/errgo.v1"
)

var logger = loggo.GetLogger("waiverdb.internal.events")

// TopicNewWaiver is the topic of the message sent for each new waiver,
// without any configured prefix.
const TopicNewWaiver = "waiverdb.waiver.new"

// ErrDisabled is returned by publishers that do not send messages.
var ErrDisabled = errgo.New("message publishing disabled")

// A Message is a single notification.
type Message struct {
	// ID holds a unique identifier for the message.
	ID string `json:"msg_id"`

	Topic string `json:"topic"`

	// Timestamp holds the time the message was created, in seconds
	// since the epoch.
	Timestamp int64 `json:"timestamp"`

	// Body holds the JSON encoded message content.
	Body json.RawMessage `json:"msg"`
}

// NewMessage creates a message on the given topic with the JSON
// encoding of body as its content.
func NewMessage(topic string, body interface{}, now time.Time) (*Message, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, errgo.Notef(err, "cannot marshal message body")
	}
	return &Message{
		ID:        uuid.New().String(),
		Topic:     topic,
		Timestamp: now.Unix(),
		Body:      data,
	}, nil
}

// A Publisher sends messages to a message bus.
type Publisher interface {
	// Publish sends a single message.
	Publish(ctx context.Context, m *Message) error

	// Close releases any resources held by the publisher.
	Close() error
}

// Params holds the configuration of a Publisher.
type Params struct {
	// Type holds the kind of publisher, one of "none", "log" or
	// "redis". The default is "none".
	Type string `yaml:"type"`

	// Address, Password and DB hold the redis server details.
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// TopicPrefix is prepended to the topic of every message.
	TopicPrefix string `yaml:"topic-prefix"`
}

// Validate checks that the parameters describe a usable publisher.
func (p Params) Validate() error {
	switch p.Type {
	case "", "none", "log":
	case "redis":
		if p.Address == "" {
			return errgo.Newf("redis messaging requires an address")
		}
	default:
		return errgo.Newf("unknown messaging type %q", p.Type)
	}
	return nil
}

// NewPublisher returns the publisher described by p.
func NewPublisher(p Params) (Publisher, error) {
	if err := p.Validate(); err != nil {
		return nil, errgo.Mask(err)
	}
	switch p.Type {
	case "log":
		return logPublisher{}, nil
	case "redis":
		return &redisPublisher{
			client: redis.NewClient(&redis.Options{
				Addr:     p.Address,
				Password: p.Password,
				DB:       p.DB,
			}),
		}, nil
	}
	return nonePublisher{}, nil
}

type nonePublisher struct{}

// Publish implements Publisher.Publish.
func (nonePublisher) Publish(context.Context, *Message) error {
	return ErrDisabled
}

// Close implements Publisher.Close.
func (nonePublisher) Close() error {
	return nil
}

// logPublisher writes messages to the log instead of a message bus.
type logPublisher struct{}

// Publish implements Publisher.Publish.
func (logPublisher) Publish(_ context.Context, m *Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return errgo.Mask(err)
	}
	logger.Infof("publish %s: %s", m.Topic, data)
	return nil
}

// Close implements Publisher.Close.
func (logPublisher) Close() error {
	return nil
}

// redisPublisher sends each message to the redis channel named after
// its topic.
type redisPublisher struct {
	client *redis.Client
}

// Publish implements Publisher.Publish.
func (p *redisPublisher) Publish(ctx context.Context, m *Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return errgo.Mask(err)
	}
	if err := p.client.Publish(ctx, m.Topic, data).Err(); err != nil {
		return errgo.Notef(err, "cannot publish to redis")
	}
	return nil
}

// Close implements Publisher.Close.
func (p *redisPublisher) Close() error {
	return p.client.Close()
}
