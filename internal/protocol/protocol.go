// Package protocol defines the contract between the client and a
// publisher endpoint wire protocol, plus the registry that resolves a
// subscription URL's protocol flavor to an implementation.
package protocol

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/typeworld/typeworld-go/internal/domain/catalog"
	"github.com/typeworld/typeworld-go/internal/domain/subscription"
	"github.com/typeworld/typeworld-go/internal/shared/logger"
)

// State persists a protocol's cached commands inside the owning
// subscription's record. Keys and values are the protocol's own business.
type State interface {
	Load() (map[string]string, error)
	Save(map[string]string) error
}

// Deps is everything a protocol implementation may need from the app.
type Deps struct {
	HTTP  *http.Client
	Log   logger.Interface
	State State

	// AnonymousAppID must always return a value; AnonymousUserID returns
	// "" when no account is linked.
	AnonymousAppID  func() string
	AnonymousUserID func() string
}

// FontRequest names one font and the version to install.
type FontRequest struct {
	FontID  string
	Version string
}

// Protocol is one wire protocol flavor speaking to a publisher endpoint.
// Implementations cache the endpoint and installableFonts commands in
// their State and serve them without network access unless update is set.
type Protocol interface {
	// URL returns the subscription URL this protocol instance serves.
	URL() *subscription.URL

	// SetSecretKey injects the subscription secret restored from the
	// keychain. Must be called before any authenticated command.
	SetSecretKey(secret string)

	// Endpoint returns the publisher's self-description.
	Endpoint(ctx context.Context, update bool) (*catalog.Endpoint, error)

	// InstallableFonts returns the subscription content.
	InstallableFonts(ctx context.Context, update bool) (*catalog.InstallableFonts, error)

	// Update refetches endpoint and installableFonts. Reports whether the
	// content changed against the cached copy.
	Update(ctx context.Context) (changed bool, err error)

	// InstallFonts requests font binaries, claiming seats for protected
	// fonts. refreshCatalog fetches installableFonts in the same round
	// trip and caches it, keeping seat counts and expiries current.
	InstallFonts(ctx context.Context, fonts []FontRequest, refreshCatalog bool) (*catalog.InstallFonts, error)

	// UninstallFonts releases the seats of the given fonts.
	UninstallFonts(ctx context.Context, fontIDs []string) (*catalog.UninstallFonts, error)

	// InitialContact performs the first full fetch when a subscription is
	// added, consuming the URL's single-use access token if present.
	InitialContact(ctx context.Context) (*catalog.Root, error)
}

// Factory builds a protocol instance for a parsed subscription URL.
type Factory func(u *subscription.URL, deps Deps) Protocol

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a protocol flavor available under its URL token.
// Implementations call it from init.
func Register(name string, f Factory) {
	registryMu.Lock()
	registry[name] = f
	registryMu.Unlock()
}

// New resolves rawURL's protocol flavor and builds an instance for it.
func New(rawURL string, deps Deps) (Protocol, error) {
	u, err := subscription.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	registryMu.RLock()
	factory, ok := registry[u.Protocol]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("protocol %q is not supported by this app", u.Protocol)
	}
	return factory(u, deps), nil
}

// Known reports whether a protocol flavor is registered.
func Known(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}
