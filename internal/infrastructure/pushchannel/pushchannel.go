// Package pushchannel delivers live update notifications between app
// instances and publishers over Redis Pub/Sub. Each user and each
// subscription has its own topic; publishing to a topic wakes every
// listening app instance.
package pushchannel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/typeworld/typeworld-go/internal/shared/logger"
)

// Commands carried in push messages.
const (
	CommandPullUpdates         = "pullUpdates"
	CommandSubscriptionUpdated = "subscriptionUpdated"
)

// Message is the payload published on a topic. SourceAnonymousAppID lets
// the sender's own app instance skip its echo.
type Message struct {
	Command              string `json:"command"`
	SourceAnonymousAppID string `json:"sourceAnonymousAppID,omitempty"`
	ServerTimestamp      int64  `json:"serverTimestamp,omitempty"`
}

// UserTopic is the topic carrying account-level changes for a user.
func UserTopic(anonymousUserID string) string {
	return "user-" + anonymousUserID
}

// SubscriptionTopic is the topic carrying content changes of one
// subscription, addressed by its short unsecret URL.
func SubscriptionTopic(shortUnsecretURL string) string {
	return "subscription-" + url.QueryEscape(shortUnsecretURL)
}

// Handler consumes one push message. Called from the channel's receive
// loop in a fresh goroutine.
type Handler func(ctx context.Context, topic string, msg Message)

// Channel multiplexes push topics over one Redis connection. Topics can be
// added and removed while the receive loop runs.
type Channel struct {
	client *redis.Client
	log    logger.Interface

	mu       sync.Mutex
	handlers map[string]Handler
	pubsub   *redis.PubSub
	running  bool

	// OnConnect and OnDisconnect, when set before Run, are called as the
	// receive loop starts and stops.
	OnConnect    func()
	OnDisconnect func()
}

// Dial connects to the push server at redisURL.
func Dial(redisURL string, log logger.Interface) (*Channel, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid push server address: %w", err)
	}
	return New(redis.NewClient(opts), log), nil
}

// New wraps an existing Redis client.
func New(client *redis.Client, log logger.Interface) *Channel {
	return &Channel{
		client:   client,
		log:      log.Named("push"),
		handlers: map[string]Handler{},
	}
}

// Subscribe registers a handler for topic. Effective immediately when the
// receive loop is running, otherwise on the next Run.
func (c *Channel) Subscribe(ctx context.Context, topic string, h Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handlers[topic] = h
	if c.running {
		if err := c.pubsub.Subscribe(ctx, topic); err != nil {
			return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
		}
	}
	c.log.Debugw("topic subscribed", "topic", topic)
	return nil
}

// Unsubscribe drops the handler for topic.
func (c *Channel) Unsubscribe(ctx context.Context, topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.handlers, topic)
	if c.running {
		if err := c.pubsub.Unsubscribe(ctx, topic); err != nil {
			return fmt.Errorf("failed to unsubscribe from topic %s: %w", topic, err)
		}
	}
	return nil
}

// Publish sends msg on topic.
func (c *Channel) Publish(ctx context.Context, topic string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal push message: %w", err)
	}
	if err := c.client.Publish(ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("failed to publish push message: %w", err)
	}
	return nil
}

// Run blocks, receiving messages and dispatching them to topic handlers
// until ctx is canceled.
func (c *Channel) Run(ctx context.Context) error {
	c.mu.Lock()
	topics := make([]string, 0, len(c.handlers))
	for topic := range c.handlers {
		topics = append(topics, topic)
	}
	c.pubsub = c.client.Subscribe(ctx, topics...)
	c.running = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		pubsub := c.pubsub
		c.mu.Unlock()
		pubsub.Close()
		if c.OnDisconnect != nil {
			c.OnDisconnect()
		}
	}()

	if len(topics) > 0 {
		if _, err := c.pubsub.Receive(ctx); err != nil {
			return fmt.Errorf("failed to connect to push server: %w", err)
		}
	}

	c.log.Infow("push channel connected", "topics", len(topics))
	if c.OnConnect != nil {
		c.OnConnect()
	}

	ch := c.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			c.log.Infow("push channel stopped", "reason", ctx.Err())
			return ctx.Err()

		case raw, ok := <-ch:
			if !ok {
				c.log.Warnw("push channel closed by server")
				return nil
			}

			var msg Message
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				c.log.Warnw("malformed push message",
					"topic", raw.Channel,
					"payload", raw.Payload,
				)
				continue
			}

			c.mu.Lock()
			handler := c.handlers[raw.Channel]
			c.mu.Unlock()
			if handler == nil {
				continue
			}

			// Dispatch off the receive loop so slow handlers don't
			// stall message delivery.
			go handler(context.Background(), raw.Channel, msg)
		}
	}
}

// Close tears down the Redis connection.
func (c *Channel) Close() error {
	return c.client.Close()
}
