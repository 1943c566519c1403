package client

import (
	"context"

	"github.com/typeworld/typeworld-go/internal/infrastructure/pushchannel"
	"github.com/typeworld/typeworld-go/internal/shared/goroutine"
)

// StartPush connects the live notification channel and subscribes the
// account topic plus the topic of every subscription whose endpoint sends
// live notifications. No-op without a configured push channel.
func (c *Client) StartPush(ctx context.Context) error {
	if c.push == nil {
		return nil
	}

	c.push.OnConnect = func() {
		c.notify("PushConnected", c.delegate.PushConnected)
	}
	c.push.OnDisconnect = func() {
		c.notify("PushDisconnected", c.delegate.PushDisconnected)
	}

	if c.User() != "" {
		if err := c.push.Subscribe(ctx, pushchannel.UserTopic(c.User()), c.handleUserMessage); err != nil {
			return err
		}
	}

	subs, err := c.Subscriptions()
	if err != nil {
		return err
	}
	for _, sub := range subs {
		endpoint, err := sub.Endpoint(ctx, false)
		if err != nil || endpoint == nil || !endpoint.SendsLiveNotifications {
			continue
		}
		c.subscribeSubscriptionTopic(ctx, sub)
	}

	goroutine.SafeGo(c.log, "push-receive", func() {
		c.push.Run(ctx)
	})
	return nil
}

func (c *Client) subscribeSubscriptionTopic(ctx context.Context, sub *Subscription) {
	if c.push == nil {
		return
	}
	topic := pushchannel.SubscriptionTopic(sub.ShortUnsecretURL())
	unsecretURL := sub.UnsecretURL()
	handler := func(ctx context.Context, _ string, msg pushchannel.Message) {
		c.handleSubscriptionMessage(ctx, unsecretURL, msg)
	}
	if err := c.push.Subscribe(ctx, topic, handler); err != nil {
		c.log.Warnw("failed to subscribe push topic", "topic", topic, "error", err)
	}
}

func (c *Client) unsubscribeSubscriptionTopic(ctx context.Context, sub *Subscription) {
	if c.push == nil {
		return
	}
	c.push.Unsubscribe(ctx, pushchannel.SubscriptionTopic(sub.ShortUnsecretURL()))
}

func (c *Client) unsubscribeUserTopic(ctx context.Context) {
	if c.push == nil || c.User() == "" {
		return
	}
	c.push.Unsubscribe(ctx, pushchannel.UserTopic(c.User()))
}

// handleUserMessage reacts to account-level push messages by
// reconciling with the central server. The app instance that caused the
// change ignores its own echo.
func (c *Client) handleUserMessage(ctx context.Context, _ string, msg pushchannel.Message) {
	if msg.SourceAnonymousAppID == c.AnonymousAppID() {
		return
	}

	c.log.Debugw("account push notification received", "command", msg.Command)
	c.notify("UserAccountUpdateNotificationReceived", c.delegate.UserAccountUpdateNotificationReceived)

	if err := c.appendCommand(cmdDownloadSubscriptions); err != nil {
		c.log.Warnw("failed to queue reconciliation", "error", err)
		return
	}
	if err := c.PerformCommands(ctx); err != nil {
		c.log.Warnw("reconciliation after push failed", "error", err)
	}
}

// handleSubscriptionMessage reacts to a publisher's content-change
// notification by updating that subscription.
func (c *Client) handleSubscriptionMessage(ctx context.Context, unsecretURL string, msg pushchannel.Message) {
	if msg.SourceAnonymousAppID == c.AnonymousAppID() {
		return
	}

	c.log.Debugw("subscription push notification received",
		"command", msg.Command,
	)
	c.notify("SubscriptionUpdateNotificationReceived", func() {
		if c.delegate.SubscriptionUpdateNotificationReceived != nil {
			c.delegate.SubscriptionUpdateNotificationReceived(unsecretURL)
		}
	})

	sub, err := c.subscriptionByURL(unsecretURL)
	if err != nil || sub == nil {
		return
	}
	if _, err := sub.Update(ctx); err != nil {
		c.log.Warnw("subscription update after push failed",
			"subscription", sub.ShortUnsecretURL(),
			"error", err,
		)
		return
	}
	if msg.ServerTimestamp > 0 {
		sub.setServerTimestamp(msg.ServerTimestamp)
	}
}

// AnnounceSubscriptionUpdate publishes a content-change notification for
// a subscription this app serves (publisher-side use). Listening app
// instances other than this one will refetch.
func (c *Client) AnnounceSubscriptionUpdate(ctx context.Context, shortUnsecretURL string) error {
	if c.push == nil {
		return nil
	}
	return c.push.Publish(ctx, pushchannel.SubscriptionTopic(shortUnsecretURL), pushchannel.Message{
		Command:              pushchannel.CommandSubscriptionUpdated,
		SourceAnonymousAppID: c.AnonymousAppID(),
	})
}
