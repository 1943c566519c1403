package client

import (
	"context"
	"fmt"
	"runtime/debug"
)

// Delegate receives event callbacks from the client. All fields are
// optional. Callbacks run on the goroutine that triggered the event; a
// panicking callback is caught, logged and reported as a crash instead of
// taking the app down.
type Delegate struct {
	// Account events.
	UserAccountUpdated                    func()
	UserAccountUpdateNotificationReceived func()

	// Subscription lifecycle. Subscriptions are identified by their
	// unsecret URL.
	SubscriptionAdded                      func(unsecretURL string)
	SubscriptionUpdated                    func(unsecretURL string)
	SubscriptionDeleted                    func(unsecretURL string)
	SubscriptionUpdateNotificationReceived func(unsecretURL string)
	PublisherDeleted                       func(canonicalURL string)

	// Font events. err is nil on success.
	FontInstalled   func(unsecretURL, fontID string, err error)
	FontUninstalled func(unsecretURL, fontID string, err error)

	// Invitation state changed during reconciliation.
	InvitationsUpdated func()

	// Push channel connectivity.
	PushConnected    func()
	PushDisconnected func()
}

// notify runs a delegate callback with panic protection.
func (c *Client) notify(name string, fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			c.log.Errorw("delegate callback panicked",
				"callback", name,
				"panic", fmt.Sprintf("%v", r),
				"stack", stack,
			)
			go c.ReportCrash(context.Background(), fmt.Sprintf("panic in delegate %s: %v\n%s", name, r, stack))
		}
	}()
	fn()
}
