package client

import (
	"context"
	"time"

	"github.com/typeworld/typeworld-go/internal/domain/account"
	domain "github.com/typeworld/typeworld-go/internal/domain/subscription"
	"github.com/typeworld/typeworld-go/internal/infrastructure/keyring"
	"github.com/typeworld/typeworld-go/internal/infrastructure/mothership"
	"github.com/typeworld/typeworld-go/internal/shared/errors"
)

// SyncSubscriptions queues a subscription list merge with the central
// server and drains the queue.
func (c *Client) SyncSubscriptions(ctx context.Context) error {
	if c.User() == "" {
		return errors.NewResponse(errors.CodeLoginRequired)
	}
	if err := c.appendCommand(cmdSyncSubscriptions); err != nil {
		return err
	}
	return c.PerformCommands(ctx)
}

// DownloadSubscriptions queues a full reconciliation and drains the
// queue.
func (c *Client) DownloadSubscriptions(ctx context.Context) error {
	if c.User() == "" {
		return errors.NewResponse(errors.CodeLoginRequired)
	}
	if err := c.appendCommand(cmdDownloadSubscriptions); err != nil {
		return err
	}
	return c.PerformCommands(ctx)
}

// DownloadSettings queues a settings refresh and drains the queue.
func (c *Client) DownloadSettings(ctx context.Context) error {
	if err := c.appendCommand(cmdDownloadSettings); err != nil {
		return err
	}
	return c.PerformCommands(ctx)
}

func (c *Client) performUploadSubscriptions(ctx context.Context) error {
	secretURLs, err := c.SecretSubscriptionURLs()
	if err != nil {
		return err
	}

	if err := c.ms.UploadUserSubscriptions(ctx, c.session(), secretURLs); err != nil {
		return err
	}
	return c.touchLastServerSync()
}

func (c *Client) performSyncSubscriptions(ctx context.Context) error {
	subs, err := c.Subscriptions()
	if err != nil {
		return err
	}
	shortURLs := make([]string, 0, len(subs))
	held := map[string]bool{}
	for _, sub := range subs {
		shortURLs = append(shortURLs, sub.ShortUnsecretURL())
		held[sub.ShortUnsecretURL()] = true
	}

	resp, err := c.ms.SyncUserSubscriptions(ctx, c.session(), shortURLs)
	if err != nil {
		return err
	}

	// The union can only grow against the local list. New entries arrive
	// without secrets; the follow-up download carries them.
	for _, shortURL := range resp.SubscriptionURLs {
		if !held[shortURL] {
			if err := c.appendCommand(cmdDownloadSubscriptions); err != nil {
				return err
			}
			break
		}
	}
	return c.touchLastServerSync()
}

func (c *Client) performDownloadSubscriptions(ctx context.Context) error {
	resp, err := c.ms.DownloadUserSubscriptions(ctx, c.session())
	if err != nil {
		return err
	}
	return c.executeDownloadSubscriptions(ctx, resp)
}

// executeDownloadSubscriptions converges local state onto the server's
// answer: the server list is authoritative for which subscriptions this
// account holds.
func (c *Client) executeDownloadSubscriptions(ctx context.Context, resp *mothership.DownloadResponse) error {
	if resp.AppInstanceIsRevoked {
		c.prefs.Set(prefsAppInstanceRevoked, true)
		// Dry run: the publishers learn the seats are gone, the files stay
		// on disk for the hosting app to surface and clean up.
		if err := c.UninstallAllProtectedFonts(ctx, true); err != nil {
			c.log.Warnw("failed to release protected font seats after revocation", "error", err)
		}
		c.log.Warnw("app instance is revoked")
		c.notify("UserAccountUpdated", c.delegate.UserAccountUpdated)
		return nil
	}
	c.prefs.Remove(prefsAppInstanceRevoked)

	// Index the server's subscriptions by unsecret URL.
	server := map[string]string{}
	for _, secretURL := range resp.SubscriptionURLs {
		u, err := domain.Parse(secretURL)
		if err != nil {
			c.log.Warnw("server sent malformed subscription URL, skipped")
			continue
		}
		server[u.UnsecretURL()] = secretURL
	}

	// Add what the server has and we don't.
	for unsecretURL, secretURL := range server {
		existing, err := c.subscriptionByURL(unsecretURL)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		added, err := c.AddSubscription(ctx, secretURL, AddOptions{
			AcceptedTermsOfService: true,
			remote:                 true,
		})
		if err != nil {
			c.log.Warnw("failed to add subscription from account",
				"error", err,
			)
			continue
		}
		if ts, ok := resp.SubscriptionTimestamps[added.ShortUnsecretURL()]; ok {
			added.setServerTimestamp(ts)
		}
	}

	// Drop what we have and the server doesn't; refresh what the server's
	// content clock says moved on another machine.
	subs, err := c.Subscriptions()
	if err != nil {
		return err
	}
	for _, sub := range subs {
		if _, ok := server[sub.UnsecretURL()]; !ok {
			if err := sub.delete(ctx, true); err != nil {
				c.log.Warnw("failed to delete subscription dropped by account",
					"subscription", sub.ShortUnsecretURL(),
					"error", err,
				)
			}
			continue
		}
		ts, ok := resp.SubscriptionTimestamps[sub.ShortUnsecretURL()]
		if !ok || ts <= sub.ServerTimestamp() {
			continue
		}
		if _, err := sub.Update(ctx); err != nil {
			c.log.Warnw("failed to refresh subscription behind server clock",
				"subscription", sub.ShortUnsecretURL(),
				"error", err,
			)
			continue
		}
		sub.setServerTimestamp(ts)
	}

	c.storeInvitations(resp)

	c.prefs.Set(prefsUserAccountStatus, resp.UserAccountStatus)
	c.prefs.Set(prefsUserAccountEmailVerified, resp.UserAccountEmailIsVerified)
	if resp.TypeWorldWebsiteToken != "" {
		c.keyring.Set(c.appKeyringService(), keyring.FieldTypeWorldWebsiteToken, resp.TypeWorldWebsiteToken)
	}

	if err := c.touchLastServerSync(); err != nil {
		return err
	}
	c.notify("UserAccountUpdated", c.delegate.UserAccountUpdated)
	return nil
}

func (c *Client) storeInvitations(resp *mothership.DownloadResponse) {
	changed := false
	for key, incoming := range map[string][]account.Invitation{
		prefsPendingInvitations:  resp.PendingInvitations,
		prefsAcceptedInvitations: resp.AcceptedInvitations,
		prefsSentInvitations:     resp.SentInvitations,
	} {
		var current []account.Invitation
		c.prefs.Get(key, &current)
		if len(current) != len(incoming) {
			changed = true
		}
		c.prefs.Set(key, incoming)
	}
	if changed {
		c.notify("InvitationsUpdated", c.delegate.InvitationsUpdated)
	}
}

func (c *Client) performDownloadSettings(ctx context.Context) error {
	resp, err := c.ms.DownloadSettings(ctx, c.session())
	if err != nil {
		return err
	}
	if err := c.prefs.Set(prefsSettings, resp.Settings); err != nil {
		return err
	}
	return c.prefs.Set(prefsLastSettingsDownloaded, time.Now().Unix())
}

func (c *Client) touchLastServerSync() error {
	return c.prefs.Set(prefsLastServerSync, time.Now().Unix())
}

// PendingInvitations lists invitations awaiting this user's decision.
func (c *Client) PendingInvitations() []account.Invitation {
	var out []account.Invitation
	c.prefs.Get(prefsPendingInvitations, &out)
	return out
}

// AcceptedInvitations lists invitations this user accepted.
func (c *Client) AcceptedInvitations() []account.Invitation {
	var out []account.Invitation
	c.prefs.Get(prefsAcceptedInvitations, &out)
	return out
}

// SentInvitations lists invitations this user sent to others.
func (c *Client) SentInvitations() []account.Invitation {
	var out []account.Invitation
	c.prefs.Get(prefsSentInvitations, &out)
	return out
}

// AcceptInvitation accepts a pending invitation. The subscription itself
// arrives through the follow-up reconciliation.
func (c *Client) AcceptInvitation(ctx context.Context, unsecretURL string) error {
	if c.User() == "" {
		return errors.NewResponse(errors.CodeLoginRequired)
	}
	if err := c.appendCommand(cmdAcceptInvitation, unsecretURL); err != nil {
		return err
	}
	if err := c.appendCommand(cmdDownloadSubscriptions); err != nil {
		return err
	}
	return c.PerformCommands(ctx)
}

// DeclineInvitation declines a pending invitation.
func (c *Client) DeclineInvitation(ctx context.Context, unsecretURL string) error {
	if c.User() == "" {
		return errors.NewResponse(errors.CodeLoginRequired)
	}
	if err := c.appendCommand(cmdDeclineInvitation, unsecretURL); err != nil {
		return err
	}
	if err := c.appendCommand(cmdDownloadSubscriptions); err != nil {
		return err
	}
	return c.PerformCommands(ctx)
}

func (c *Client) performAcceptInvitation(ctx context.Context, unsecretURL string) error {
	return c.ms.AcceptInvitation(ctx, c.session(), unsecretURL)
}

func (c *Client) performDeclineInvitation(ctx context.Context, unsecretURL string) error {
	return c.ms.DeclineInvitation(ctx, c.session(), unsecretURL)
}

// InviteUser invites another account to one of this user's
// subscriptions. Runs online immediately.
func (c *Client) InviteUser(ctx context.Context, unsecretURL, targetEmail string) error {
	if c.User() == "" {
		return errors.NewResponse(errors.CodeLoginRequired)
	}
	if !c.Online() {
		return errors.NewResponse(errors.CodeNotOnline)
	}
	return c.ms.InviteUser(ctx, c.session(), unsecretURL, targetEmail)
}

// RevokeInvitation withdraws a sent invitation. Runs online immediately.
func (c *Client) RevokeInvitation(ctx context.Context, unsecretURL, targetEmail string) error {
	if c.User() == "" {
		return errors.NewResponse(errors.CodeLoginRequired)
	}
	if !c.Online() {
		return errors.NewResponse(errors.CodeNotOnline)
	}
	return c.ms.RevokeInvitation(ctx, c.session(), unsecretURL, targetEmail)
}
