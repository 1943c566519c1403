// Package keyring stores the client's secrets in the operating system
// keychain. Subscription secret keys and the user account secret key never
// touch the preferences store; they only ever live here.
package keyring

import (
	"fmt"

	zkeyring "github.com/zalando/go-keyring"
)

// Field names stored under the client's keychain entry.
const (
	FieldSecretKey             = "secretKey"
	FieldUserEmail             = "userEmail"
	FieldUserName              = "userName"
	FieldTypeWorldWebsiteToken = "typeWorldWebsiteToken"
)

// Keyring is the secret storage contract. service identifies the owning
// entity (the app instance or a subscription), field one secret within it.
type Keyring interface {
	Get(service, field string) (string, error)
	Set(service, field, value string) error
	Delete(service, field string) error
}

// ErrNotFound is returned by Get when no secret is stored.
var ErrNotFound = zkeyring.ErrNotFound

// AppEntryService builds the keychain service name of the app instance
// entry holding the account secrets.
func AppEntryService(anonymousUserID, anonymousAppID string) string {
	return fmt.Sprintf("https://%s@%s.type.world", anonymousUserID, anonymousAppID)
}

// System is the OS keychain (macOS Keychain, Windows Credential Manager,
// Secret Service on Linux).
type System struct{}

// NewSystem returns the OS keychain backend.
func NewSystem() *System { return &System{} }

func (*System) Get(service, field string) (string, error) {
	return zkeyring.Get(service, field)
}

func (*System) Set(service, field, value string) error {
	return zkeyring.Set(service, field, value)
}

func (*System) Delete(service, field string) error {
	err := zkeyring.Delete(service, field)
	if err == zkeyring.ErrNotFound {
		return nil
	}
	return err
}
