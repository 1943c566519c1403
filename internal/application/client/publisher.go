package client

import (
	"context"
)

// publisherRecord is the per-publisher state in preferences, keyed by the
// endpoint's canonical URL.
type publisherRecord struct {
	Subscriptions       []string `json:"subscriptions"` // unsecret URLs
	CurrentSubscription string   `json:"currentSubscription,omitempty"`
}

// Publisher groups the subscriptions of one endpoint, identified by its
// canonical URL. It is a view over preferences, not a cache.
type Publisher struct {
	client       *Client
	CanonicalURL string
}

// Publishers lists all publishers known to the client, in the order they
// were first added.
func (c *Client) Publishers() ([]*Publisher, error) {
	var urls []string
	if _, err := c.prefs.Get(prefsPublishers, &urls); err != nil {
		return nil, err
	}
	out := make([]*Publisher, 0, len(urls))
	for _, u := range urls {
		out = append(out, &Publisher{client: c, CanonicalURL: u})
	}
	return out, nil
}

// Publisher returns the publisher with the given canonical URL, or nil.
func (c *Client) Publisher(canonicalURL string) (*Publisher, error) {
	var urls []string
	if _, err := c.prefs.Get(prefsPublishers, &urls); err != nil {
		return nil, err
	}
	if !containsString(urls, canonicalURL) {
		return nil, nil
	}
	return &Publisher{client: c, CanonicalURL: canonicalURL}, nil
}

// registerSubscription files a subscription under its publisher, creating
// the publisher on first contact.
func (c *Client) registerSubscription(canonicalURL, unsecretURL string) error {
	c.prefsMu.Lock()
	defer c.prefsMu.Unlock()

	var urls []string
	if _, err := c.prefs.Get(prefsPublishers, &urls); err != nil {
		return err
	}
	if !containsString(urls, canonicalURL) {
		if err := c.prefs.Set(prefsPublishers, append(urls, canonicalURL)); err != nil {
			return err
		}
	}

	var rec publisherRecord
	if _, err := c.prefs.Get(publisherKey(canonicalURL), &rec); err != nil {
		return err
	}
	if !containsString(rec.Subscriptions, unsecretURL) {
		rec.Subscriptions = append(rec.Subscriptions, unsecretURL)
	}
	if rec.CurrentSubscription == "" {
		rec.CurrentSubscription = unsecretURL
	}
	return c.prefs.Set(publisherKey(canonicalURL), &rec)
}

// unregisterSubscription removes a subscription from its publisher and
// drops the publisher when it holds nothing else. Reports whether the
// publisher disappeared.
func (c *Client) unregisterSubscription(canonicalURL, unsecretURL string) (bool, error) {
	c.prefsMu.Lock()
	defer c.prefsMu.Unlock()

	var rec publisherRecord
	found, err := c.prefs.Get(publisherKey(canonicalURL), &rec)
	if err != nil || !found {
		return false, err
	}

	rec.Subscriptions = removeString(rec.Subscriptions, unsecretURL)
	if rec.CurrentSubscription == unsecretURL {
		rec.CurrentSubscription = ""
		if len(rec.Subscriptions) > 0 {
			rec.CurrentSubscription = rec.Subscriptions[0]
		}
	}

	if len(rec.Subscriptions) > 0 {
		return false, c.prefs.Set(publisherKey(canonicalURL), &rec)
	}

	if err := c.prefs.Remove(publisherKey(canonicalURL)); err != nil {
		return false, err
	}
	var urls []string
	if _, err := c.prefs.Get(prefsPublishers, &urls); err != nil {
		return true, err
	}
	return true, c.prefs.Set(prefsPublishers, removeString(urls, canonicalURL))
}

// Subscriptions lists the publisher's subscriptions.
func (p *Publisher) Subscriptions() ([]*Subscription, error) {
	var rec publisherRecord
	if _, err := p.client.prefs.Get(publisherKey(p.CanonicalURL), &rec); err != nil {
		return nil, err
	}
	out := make([]*Subscription, 0, len(rec.Subscriptions))
	for _, u := range rec.Subscriptions {
		sub, err := p.client.subscriptionByURL(u)
		if err != nil {
			return nil, err
		}
		if sub != nil {
			out = append(out, sub)
		}
	}
	return out, nil
}

// CurrentSubscription returns the subscription a UI should show for this
// publisher, or nil.
func (p *Publisher) CurrentSubscription() (*Subscription, error) {
	var rec publisherRecord
	found, err := p.client.prefs.Get(publisherKey(p.CanonicalURL), &rec)
	if err != nil || !found || rec.CurrentSubscription == "" {
		return nil, err
	}
	return p.client.subscriptionByURL(rec.CurrentSubscription)
}

// SetCurrentSubscription remembers which subscription a UI should show.
func (p *Publisher) SetCurrentSubscription(unsecretURL string) error {
	p.client.prefsMu.Lock()
	defer p.client.prefsMu.Unlock()

	var rec publisherRecord
	if _, err := p.client.prefs.Get(publisherKey(p.CanonicalURL), &rec); err != nil {
		return err
	}
	rec.CurrentSubscription = unsecretURL
	return p.client.prefs.Set(publisherKey(p.CanonicalURL), &rec)
}

// Name resolves the publisher's display name from any of its
// subscriptions' cached endpoints.
func (p *Publisher) Name(ctx context.Context, locales []string) string {
	subs, err := p.Subscriptions()
	if err != nil {
		return p.CanonicalURL
	}
	for _, sub := range subs {
		endpoint, err := sub.Endpoint(ctx, false)
		if err == nil && endpoint != nil && !endpoint.Name.Empty() {
			return endpoint.Name.Text(locales)
		}
	}
	return p.CanonicalURL
}

// Delete removes the publisher by deleting all its subscriptions.
func (p *Publisher) Delete(ctx context.Context) error {
	subs, err := p.Subscriptions()
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if err := sub.Delete(ctx); err != nil {
			return err
		}
	}
	return nil
}
