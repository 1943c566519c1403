package client

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/typeworld/typeworld-go/internal/domain/account"
	"github.com/typeworld/typeworld-go/internal/infrastructure/keyring"
	"github.com/typeworld/typeworld-go/internal/infrastructure/mothership"
	"github.com/typeworld/typeworld-go/internal/shared/errors"
)

// User returns the linked account's anonymous user ID, or "" when no
// account is linked.
func (c *Client) User() string {
	var userID string
	c.prefs.Get(prefsAnonymousUserID, &userID)
	return userID
}

// UserEmail returns the linked account's email address from the keychain.
func (c *Client) UserEmail() string {
	v, _ := c.keyring.Get(c.appKeyringService(), keyring.FieldUserEmail)
	return v
}

// UserName returns the linked account's display name from the keychain.
func (c *Client) UserName() string {
	v, _ := c.keyring.Get(c.appKeyringService(), keyring.FieldUserName)
	return v
}

// AccountStatus returns the account plan ("free" or "pro") as of the last
// reconciliation.
func (c *Client) AccountStatus() string {
	var status string
	c.prefs.Get(prefsUserAccountStatus, &status)
	return status
}

// EmailIsVerified reports the account's verification state as of the
// last reconciliation.
func (c *Client) EmailIsVerified() bool {
	var verified bool
	c.prefs.Get(prefsUserAccountEmailVerified, &verified)
	return verified
}

// WebsiteToken returns the single-sign-on token for the central website.
func (c *Client) WebsiteToken() string {
	v, _ := c.keyring.Get(c.appKeyringService(), keyring.FieldTypeWorldWebsiteToken)
	return v
}

// AppInstanceIsRevoked reports whether this app instance was revoked from
// another machine.
func (c *Client) AppInstanceIsRevoked() bool {
	var revoked bool
	c.prefs.Get(prefsAppInstanceRevoked, &revoked)
	return revoked
}

// LastServerSync returns the time of the last successful reconciliation
// with the central server, or zero.
func (c *Client) LastServerSync() time.Time {
	var ts int64
	c.prefs.Get(prefsLastServerSync, &ts)
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0)
}

// LastSettingsDownloaded returns the time of the last successful settings
// download, or zero.
func (c *Client) LastSettingsDownloaded() time.Time {
	var ts int64
	c.prefs.Get(prefsLastSettingsDownloaded, &ts)
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0)
}

func (c *Client) appKeyringService() string {
	return keyring.AppEntryService(c.User(), c.AnonymousAppID())
}

func (c *Client) accountSecret() string {
	v, _ := c.keyring.Get(c.appKeyringService(), keyring.FieldSecretKey)
	return v
}

func (c *Client) session() mothership.Session {
	return mothership.Session{
		AnonymousAppID:  c.AnonymousAppID(),
		AnonymousUserID: c.User(),
		SecretKey:       c.accountSecret(),
	}
}

func machineIdentity() mothership.MachineIdentity {
	hostname, _ := os.Hostname()
	return mothership.MachineIdentity{
		ModelIdentifier:   runtime.GOOS + "/" + runtime.GOARCH,
		HumanReadableName: hostname,
		OSVersion:         runtime.GOOS,
		NodeName:          hostname,
	}
}

// LinkUser attaches this app instance to an account whose credentials are
// already known (from login, signup, or a link handed over by the central
// website). The server round trip is queued and runs when online.
func (c *Client) LinkUser(ctx context.Context, anonymousUserID, secretKey string) error {
	if anonymousUserID == "" || secretKey == "" {
		return errors.NewLocalized("RequiredFieldEmpty")
	}

	if err := c.prefs.Set(prefsAnonymousUserID, anonymousUserID); err != nil {
		return err
	}
	if err := c.keyring.Set(c.appKeyringService(), keyring.FieldSecretKey, secretKey); err != nil {
		return fmt.Errorf("failed to store account secret: %w", err)
	}

	if err := c.appendCommand(cmdLinkUser); err != nil {
		return err
	}
	return c.PerformCommands(ctx)
}

// performLinkUser runs the queued server side of LinkUser. Follow-up
// reconciliation is queued behind it and drained in the same pass.
func (c *Client) performLinkUser(ctx context.Context) error {
	resp, err := c.ms.LinkAppInstance(ctx, c.session(), machineIdentity())
	if err != nil {
		return err
	}

	service := c.appKeyringService()
	if resp.UserEmail != "" {
		c.keyring.Set(service, keyring.FieldUserEmail, resp.UserEmail)
	}
	if resp.UserName != "" {
		c.keyring.Set(service, keyring.FieldUserName, resp.UserName)
	}

	// Upload before the reconciling download, or locally held
	// subscriptions would read as dropped by the account.
	if err := c.appendCommand(cmdUploadSubscriptions); err != nil {
		return err
	}
	if err := c.appendCommand(cmdDownloadSubscriptions); err != nil {
		return err
	}
	if err := c.appendCommand(cmdDownloadSettings); err != nil {
		return err
	}

	c.log.Infow("app instance linked", "anonymousUserID", c.User())
	c.notify("UserAccountUpdated", c.delegate.UserAccountUpdated)
	return nil
}

// UnlinkUser detaches this app instance from its account. Protected fonts
// are uninstalled locally right away; the server round trip is queued.
func (c *Client) UnlinkUser(ctx context.Context) error {
	if c.User() == "" {
		return nil
	}
	if err := c.appendCommand(cmdUnlinkUser); err != nil {
		return err
	}
	return c.PerformCommands(ctx)
}

func (c *Client) performUnlinkUser(ctx context.Context) error {
	// Server first: after local teardown the session is gone.
	err := c.ms.UnlinkAppInstance(ctx, c.session())
	if err != nil && !errors.IsResponse(err, errors.CodeUserUnknown) {
		if errors.IsResponse(err, errors.CodeServerNotReachable) {
			return err
		}
		c.log.Warnw("server-side unlink failed, proceeding locally", "error", err)
	}
	return c.unlinkLocally(ctx)
}

// unlinkLocally removes all account state and protected fonts from this
// machine.
func (c *Client) unlinkLocally(ctx context.Context) error {
	// Real removal, and before the credentials go away: the seat release
	// towards the publishers still needs the anonymous user ID.
	if err := c.UninstallAllProtectedFonts(ctx, false); err != nil {
		c.log.Warnw("failed to uninstall protected fonts during unlink", "error", err)
	}

	service := c.appKeyringService()
	for _, field := range []string{
		keyring.FieldSecretKey,
		keyring.FieldUserEmail,
		keyring.FieldUserName,
		keyring.FieldTypeWorldWebsiteToken,
	} {
		c.keyring.Delete(service, field)
	}

	for _, key := range []string{
		prefsAnonymousUserID,
		prefsUserAccountStatus,
		prefsUserAccountEmailVerified,
		prefsAppInstanceRevoked,
		prefsLastServerSync,
		prefsPendingInvitations,
		prefsAcceptedInvitations,
		prefsSentInvitations,
	} {
		c.prefs.Remove(key)
	}

	c.unsubscribeUserTopic(ctx)

	c.log.Infow("app instance unlinked")
	c.notify("UserAccountUpdated", c.delegate.UserAccountUpdated)
	return nil
}

// CreateUserAccount registers a fresh account and links this app instance
// to it. Requires connectivity.
func (c *Client) CreateUserAccount(ctx context.Context, name, email, password, passwordConfirm string) error {
	if name == "" || email == "" || password == "" {
		return errors.NewLocalized("RequiredFieldEmpty")
	}
	if password != passwordConfirm {
		return errors.NewLocalized("PasswordsDontMatch")
	}
	if !c.Online() {
		return errors.NewResponse(errors.CodeNotOnline)
	}

	resp, err := c.ms.CreateUserAccount(ctx, name, email, password)
	if err != nil {
		return err
	}
	return c.LinkUser(ctx, resp.AnonymousUserID, resp.SecretKey)
}

// LogInUserAccount links this app instance to an existing account.
// Requires connectivity.
func (c *Client) LogInUserAccount(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return errors.NewLocalized("RequiredFieldEmpty")
	}
	if !c.Online() {
		return errors.NewResponse(errors.CodeNotOnline)
	}

	resp, err := c.ms.LogInUserAccount(ctx, email, password)
	if err != nil {
		return err
	}
	return c.LinkUser(ctx, resp.AnonymousUserID, resp.SecretKey)
}

// DeleteUserAccount deletes the account on the server and unlinks this
// app instance. Requires connectivity.
func (c *Client) DeleteUserAccount(ctx context.Context, email, password string) error {
	if !c.Online() {
		return errors.NewResponse(errors.CodeNotOnline)
	}

	if err := c.ms.DeleteUserAccount(ctx, email, password); err != nil {
		return err
	}
	return c.unlinkLocally(ctx)
}

// ResendEmailVerification asks the server to send a fresh verification
// mail to the linked account.
func (c *Client) ResendEmailVerification(ctx context.Context) error {
	email := c.UserEmail()
	if email == "" {
		return errors.NewResponse(errors.CodeLoginRequired)
	}
	return c.ms.ResendEmailVerification(ctx, email)
}

// AppInstances lists all app instances linked to the account.
func (c *Client) AppInstances(ctx context.Context) ([]account.AppInstance, error) {
	if c.User() == "" {
		return nil, errors.NewResponse(errors.CodeLoginRequired)
	}
	resp, err := c.ms.UserAppInstances(ctx, c.session())
	if err != nil {
		return nil, err
	}
	return resp.AppInstances, nil
}

// RevokeAppInstance de-authorizes another of the account's app instances.
func (c *Client) RevokeAppInstance(ctx context.Context, anonymousAppID string) error {
	if c.User() == "" {
		return errors.NewResponse(errors.CodeLoginRequired)
	}
	return c.ms.RevokeAppInstance(ctx, c.session(), anonymousAppID)
}

// ReactivateAppInstance lifts a revocation.
func (c *Client) ReactivateAppInstance(ctx context.Context, anonymousAppID string) error {
	if c.User() == "" {
		return errors.NewResponse(errors.CodeLoginRequired)
	}
	return c.ms.ReactivateAppInstance(ctx, c.session(), anonymousAppID)
}

// maybeStillAlive pings the central server at most once a day, for usage
// statistics. Failures are irrelevant.
func (c *Client) maybeStillAlive(ctx context.Context) {
	var last int64
	c.prefs.Get(prefsLastStillAlive, &last)
	if time.Since(time.Unix(last, 0)) < 24*time.Hour {
		return
	}
	if err := c.ms.StillAlive(ctx, c.session()); err != nil {
		return
	}
	c.prefs.Set(prefsLastStillAlive, time.Now().Unix())
}
