package mothership

import (
	"context"
	"net/url"
	"strings"

	"github.com/typeworld/typeworld-go/internal/domain/account"
)

// Session identifies the calling app instance towards the central server.
// SecretKey is the account secret, not a subscription secret.
type Session struct {
	AnonymousAppID  string
	AnonymousUserID string
	SecretKey       string
}

func (s Session) values() url.Values {
	v := url.Values{}
	v.Set("anonymousAppID", s.AnonymousAppID)
	// Every request names its originator so push messages triggered by it
	// can be dropped by the instance that caused them.
	v.Set("sourceAnonymousAppID", s.AnonymousAppID)
	if s.AnonymousUserID != "" {
		v.Set("anonymousTypeWorldUserID", s.AnonymousUserID)
	}
	if s.SecretKey != "" {
		v.Set("secretKey", s.SecretKey)
	}
	return v
}

// MachineIdentity describes the computer an app instance runs on. Shown to
// the user in the app instance list so revoked machines can be told apart.
type MachineIdentity struct {
	ModelIdentifier   string
	HumanReadableName string
	OSVersion         string
	NodeName          string
}

// CredentialsResponse answers account creation and login.
type CredentialsResponse struct {
	envelope
	AnonymousUserID string `json:"anonymousUserID"`
	SecretKey       string `json:"secretKey"`
}

// CreateUserAccount registers a new account and returns its credentials.
func (c *Client) CreateUserAccount(ctx context.Context, name, email, password string) (*CredentialsResponse, error) {
	v := url.Values{}
	v.Set("name", name)
	v.Set("email", email)
	v.Set("password", password)

	var resp CredentialsResponse
	if err := c.post(ctx, "createUserAccount", v, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogInUserAccount fetches the credentials of an existing account.
func (c *Client) LogInUserAccount(ctx context.Context, email, password string) (*CredentialsResponse, error) {
	v := url.Values{}
	v.Set("email", email)
	v.Set("password", password)

	var resp CredentialsResponse
	if err := c.post(ctx, "logInUserAccount", v, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteUserAccount removes the account and all server-side state.
func (c *Client) DeleteUserAccount(ctx context.Context, email, password string) error {
	v := url.Values{}
	v.Set("email", email)
	v.Set("password", password)
	return c.post(ctx, "deleteUserAccount", v, nil)
}

// ResendEmailVerification triggers a fresh verification mail.
func (c *Client) ResendEmailVerification(ctx context.Context, email string) error {
	v := url.Values{}
	v.Set("email", email)
	return c.post(ctx, "resendEmailVerification", v, nil)
}

// LinkResponse answers app instance linking.
type LinkResponse struct {
	envelope
	UserEmail string `json:"userEmail"`
	UserName  string `json:"userName"`
}

// LinkAppInstance registers this app instance with the account.
func (c *Client) LinkAppInstance(ctx context.Context, s Session, machine MachineIdentity) (*LinkResponse, error) {
	v := s.values()
	v.Set("machineModelIdentifier", machine.ModelIdentifier)
	v.Set("machineHumanReadableName", machine.HumanReadableName)
	v.Set("machineOSVersion", machine.OSVersion)
	v.Set("machineNodeName", machine.NodeName)

	var resp LinkResponse
	if err := c.post(ctx, "linkTypeWorldUserAccount", v, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UnlinkAppInstance detaches this app instance from the account.
func (c *Client) UnlinkAppInstance(ctx context.Context, s Session) error {
	return c.post(ctx, "unlinkTypeWorldUserAccount", s.values(), nil)
}

// AppInstancesResponse lists the account's linked app instances.
type AppInstancesResponse struct {
	envelope
	AppInstances []account.AppInstance `json:"appInstances"`
}

// UserAppInstances lists all app instances linked to the account.
func (c *Client) UserAppInstances(ctx context.Context, s Session) (*AppInstancesResponse, error) {
	var resp AppInstancesResponse
	if err := c.post(ctx, "userAppInstances", s.values(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RevokeAppInstance de-authorizes another app instance of the account.
func (c *Client) RevokeAppInstance(ctx context.Context, s Session, targetAnonymousAppID string) error {
	v := s.values()
	v.Set("targetAnonymousAppID", targetAnonymousAppID)
	return c.post(ctx, "revokeAppInstance", v, nil)
}

// ReactivateAppInstance lifts a revocation.
func (c *Client) ReactivateAppInstance(ctx context.Context, s Session, targetAnonymousAppID string) error {
	v := s.values()
	v.Set("targetAnonymousAppID", targetAnonymousAppID)
	return c.post(ctx, "reactivateAppInstance", v, nil)
}

// UploadUserSubscriptions pushes the full list of locally held secret
// subscription URLs to the account.
func (c *Client) UploadUserSubscriptions(ctx context.Context, s Session, secretURLs []string) error {
	v := s.values()
	v.Set("subscriptionURLs", strings.Join(secretURLs, ","))
	return c.post(ctx, "uploadUserSubscriptions", v, nil)
}

// SyncResponse answers the subscription list union.
type SyncResponse struct {
	envelope
	SubscriptionURLs []string `json:"subscriptions"`
}

// SyncUserSubscriptions merges the local subscription list with the
// server's and returns the union as short unsecret URLs.
func (c *Client) SyncUserSubscriptions(ctx context.Context, s Session, shortUnsecretURLs []string) (*SyncResponse, error) {
	v := s.values()
	v.Set("subscriptionURLs", strings.Join(shortUnsecretURLs, ","))

	var resp SyncResponse
	if err := c.post(ctx, "syncUserSubscriptions", v, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DownloadResponse is the account's complete server-side subscription
// state. SubscriptionURLs carry secret keys; they never get logged.
type DownloadResponse struct {
	envelope
	AppInstanceIsRevoked       bool                 `json:"appInstanceIsRevoked"`
	SubscriptionURLs           []string             `json:"subscriptions"`
	SubscriptionTimestamps     map[string]int64     `json:"subscriptionTimestamps"` // keyed by short unsecret URL
	AcceptedInvitations        []account.Invitation `json:"acceptedInvitations"`
	PendingInvitations         []account.Invitation `json:"pendingInvitations"`
	SentInvitations            []account.Invitation `json:"sentInvitations"`
	UserAccountStatus          string               `json:"userAccountStatus"`
	UserAccountEmailIsVerified bool                 `json:"userAccountEmailIsVerified"`
	TypeWorldWebsiteToken      string               `json:"typeWorldWebsiteToken"`
}

// DownloadUserSubscriptions fetches the authoritative subscription and
// invitation state for reconciliation.
func (c *Client) DownloadUserSubscriptions(ctx context.Context, s Session) (*DownloadResponse, error) {
	var resp DownloadResponse
	if err := c.post(ctx, "downloadUserSubscriptions", s.values(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AcceptInvitation accepts a subscription invitation by its unsecret URL.
func (c *Client) AcceptInvitation(ctx context.Context, s Session, unsecretURL string) error {
	v := s.values()
	v.Set("subscriptionURL", unsecretURL)
	return c.post(ctx, "acceptInvitations", v, nil)
}

// DeclineInvitation declines a subscription invitation.
func (c *Client) DeclineInvitation(ctx context.Context, s Session, unsecretURL string) error {
	v := s.values()
	v.Set("subscriptionURL", unsecretURL)
	return c.post(ctx, "declineInvitations", v, nil)
}

// InviteUser invites another account, by email, to a subscription this
// account holds.
func (c *Client) InviteUser(ctx context.Context, s Session, unsecretURL, targetEmail string) error {
	v := s.values()
	v.Set("subscriptionURL", unsecretURL)
	v.Set("targetUserEmail", targetEmail)
	return c.post(ctx, "inviteUserToSubscription", v, nil)
}

// RevokeInvitation withdraws a previously sent invitation.
func (c *Client) RevokeInvitation(ctx context.Context, s Session, unsecretURL, targetEmail string) error {
	v := s.values()
	v.Set("subscriptionURL", unsecretURL)
	v.Set("targetUserEmail", targetEmail)
	return c.post(ctx, "revokeSubscriptionInvitation", v, nil)
}

// Settings are client-wide knobs served centrally.
type Settings struct {
	BreakingAPIVersions     []string `json:"breakingAPIVersions"`
	LiveNotificationsServer string   `json:"liveNotificationsServer,omitempty"`
}

// SettingsResponse answers downloadSettings.
type SettingsResponse struct {
	envelope
	Settings Settings `json:"settings"`
}

// DownloadSettings fetches the central client settings.
func (c *Client) DownloadSettings(ctx context.Context, s Session) (*SettingsResponse, error) {
	var resp SettingsResponse
	if err := c.post(ctx, "downloadSettings", s.values(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HandleTraceback reports a crash snapshot for diagnosis. Supplementary is
// a JSON document with client state; the caller redacts it beforehand.
func (c *Client) HandleTraceback(ctx context.Context, s Session, payload, supplementary string) error {
	v := s.values()
	v.Set("payload", payload)
	v.Set("supplementary", supplementary)
	return c.post(ctx, "handleTraceback", v, nil)
}

// StillAlive pings the central server for usage statistics.
func (c *Client) StillAlive(ctx context.Context, s Session) error {
	return c.post(ctx, "stillAlive", s.values(), nil)
}

// RegisterEndpoint announces a publisher endpoint to the central server
// for discoverability.
func (c *Client) RegisterEndpoint(ctx context.Context, s Session, canonicalURL string) error {
	v := s.values()
	v.Set("canonicalURL", canonicalURL)
	return c.post(ctx, "registerAPIEndpoint", v, nil)
}
