// Package account models the central-server user account as the client
// sees it: identity, plan status, linked app instances and subscription
// invitations.
package account

// Account plan values reported by the central server.
const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// User is the locally known slice of a central-server account. The secret
// key is not part of it; it lives in the keychain.
type User struct {
	AnonymousID     string `json:"anonymousID"`
	Email           string `json:"email,omitempty"`
	Name            string `json:"name,omitempty"`
	Plan            string `json:"plan,omitempty"`
	EmailIsVerified bool   `json:"emailIsVerified,omitempty"`
}

// AppInstance is one app installation linked to the account. Instances can
// be revoked remotely, which de-authorizes the protected fonts they hold.
type AppInstance struct {
	AnonymousAppID string `json:"anonymousAppID"`
	MachineModel   string `json:"machineModelIdentifier,omitempty"`
	MachineName    string `json:"machineHumanReadableName,omitempty"`
	MachineOS      string `json:"machineOSVersion,omitempty"`
	Revoked        bool   `json:"revoked,omitempty"`
	LastUsed       int64  `json:"lastUsed,omitempty"` // unix seconds
}

// Invitation is a subscription shared with or by this account. The same
// type serves both directions; the server only ever sends the unsecret
// URL, the secret key arrives separately upon acceptance.
type Invitation struct {
	ID                 int64  `json:"ID,omitempty"`
	URL                string `json:"url"` // unsecret URL
	CanonicalURL       string `json:"canonicalURL,omitempty"`
	PublisherName      string `json:"publisherName,omitempty"`
	SubscriptionName   string `json:"subscriptionName,omitempty"`
	LogoURL            string `json:"logoURL,omitempty"`
	BackgroundColor    string `json:"backgroundColor,omitempty"`
	FontCount          int    `json:"fonts,omitempty"`
	Website            string `json:"website,omitempty"`
	InvitedByUserName  string `json:"invitedByUserName,omitempty"`
	InvitedByUserEmail string `json:"invitedByUserEmail,omitempty"`
	Time               int64  `json:"time,omitempty"` // unix seconds
	AcceptedByUser     bool   `json:"acceptedByUser,omitempty"`
	ConfirmedByUser    bool   `json:"confirmedByUser,omitempty"`
}
