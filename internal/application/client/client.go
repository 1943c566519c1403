// Package client implements the app-facing core: it owns the preferences
// and keychain state, talks to the central server, drives subscriptions
// through their protocol, and keeps everything converged across the
// user's app instances.
package client

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/typeworld/typeworld-go/internal/infrastructure/keyring"
	"github.com/typeworld/typeworld-go/internal/infrastructure/mothership"
	"github.com/typeworld/typeworld-go/internal/infrastructure/prefs"
	"github.com/typeworld/typeworld-go/internal/infrastructure/pushchannel"
	"github.com/typeworld/typeworld-go/internal/infrastructure/resources"
	"github.com/typeworld/typeworld-go/internal/shared/logger"
	"github.com/typeworld/typeworld-go/internal/shared/services/markdown"
)

// Preferences keys owned by the client core.
const (
	prefsAnonymousAppID           = "anonymousAppID"
	prefsAnonymousUserID          = "anonymousTypeWorldUserID"
	prefsPublishers               = "publishers"
	prefsPendingCommands          = "pendingOnlineCommands"
	prefsPendingInvitations       = "pendingInvitations"
	prefsAcceptedInvitations      = "acceptedInvitations"
	prefsSentInvitations          = "sentInvitations"
	prefsUserAccountStatus        = "userAccountStatus"
	prefsUserAccountEmailVerified = "userAccountEmailIsVerified"
	prefsAppInstanceRevoked       = "appInstanceIsRevoked"
	prefsLastServerSync           = "lastServerSync"
	prefsLastSettingsDownloaded   = "lastSettingsDownloaded"
	prefsLastStillAlive           = "lastStillAlive"
	prefsLocale                   = "locale"
	prefsSettings                 = "settings"
)

func publisherKey(canonicalURL string) string {
	return fmt.Sprintf("publisher(%s)", canonicalURL)
}

func subscriptionKey(unsecretURL string) string {
	return fmt.Sprintf("subscription(%s)", unsecretURL)
}

// DefaultAppID identifies headless clients without their own reverse
// domain.
const DefaultAppID = "world.type.headless"

const onlineCheckTTL = 10 * time.Second

// Options configures a Client. Prefs, Keyring and Mothership are
// required.
type Options struct {
	Prefs      prefs.Store
	Keyring    keyring.Keyring
	Mothership *mothership.Client
	Push       *pushchannel.Channel // optional live notifications
	Log        logger.Interface
	Delegate   *Delegate

	// AppID is the hosting app's reverse-domain identifier.
	AppID string

	// FontsDir is where installed font files go.
	FontsDir string

	// Commercial marks the hosting app as commercial, subjecting it to
	// each endpoint's allowed-apps list.
	Commercial bool

	// Offline disables all network activity; online commands queue up.
	Offline bool
}

// Client is the core object. One instance per app. Safe for concurrent
// use; queue draining is serialized internally.
type Client struct {
	prefs     prefs.Store
	keyring   keyring.Keyring
	ms        *mothership.Client
	push      *pushchannel.Channel
	resources *resources.Cache
	md        markdown.MarkdownService
	log       logger.Interface
	delegate  *Delegate

	appID      string
	fontsDir   string
	commercial bool
	offline    bool

	// queueMu serializes queue drains, prefsMu guards multi-key prefs
	// read-modify-write sequences.
	queueMu sync.Mutex
	prefsMu sync.Mutex

	problemsMu   sync.Mutex
	syncProblems []string

	// updateLocks serializes concurrent updates of the same subscription.
	updateLocksMu sync.Mutex
	updateLocks   map[string]*sync.Mutex

	onlineCache *gocache.Cache
}

// New builds a Client. The anonymous app ID is created on first run and
// persisted.
func New(opts Options) (*Client, error) {
	if opts.Prefs == nil || opts.Keyring == nil || opts.Mothership == nil {
		return nil, fmt.Errorf("prefs, keyring and mothership are required")
	}
	log := opts.Log
	if log == nil {
		log = logger.NewLogger()
	}
	delegate := opts.Delegate
	if delegate == nil {
		delegate = &Delegate{}
	}
	appID := opts.AppID
	if appID == "" {
		appID = DefaultAppID
	}

	c := &Client{
		prefs:       opts.Prefs,
		keyring:     opts.Keyring,
		ms:          opts.Mothership,
		push:        opts.Push,
		resources:   resources.New(opts.Prefs, log),
		md:          markdown.NewMarkdownService(),
		log:         log.Named("client"),
		delegate:    delegate,
		appID:       appID,
		fontsDir:    opts.FontsDir,
		commercial:  opts.Commercial,
		offline:     opts.Offline,
		onlineCache: gocache.New(onlineCheckTTL, time.Minute),
		updateLocks: map[string]*sync.Mutex{},
	}

	if c.fontsDir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve fonts folder: %w", err)
		}
		c.fontsDir = filepath.Join(configDir, "typeworld", "fonts")
	}

	if err := c.ensureAnonymousAppID(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) updateLock(unsecretURL string) *sync.Mutex {
	c.updateLocksMu.Lock()
	defer c.updateLocksMu.Unlock()
	mu, ok := c.updateLocks[unsecretURL]
	if !ok {
		mu = &sync.Mutex{}
		c.updateLocks[unsecretURL] = mu
	}
	return mu
}

func (c *Client) ensureAnonymousAppID() error {
	var id string
	found, err := c.prefs.Get(prefsAnonymousAppID, &id)
	if err != nil {
		return err
	}
	if found && id != "" {
		return nil
	}
	if err := c.prefs.Set(prefsAnonymousAppID, uuid.NewString()); err != nil {
		return fmt.Errorf("failed to persist anonymous app ID: %w", err)
	}
	return nil
}

// AttachPush wires a live notification channel in after construction,
// once the message-queue address is known from downloaded settings. Must
// be called before StartPush.
func (c *Client) AttachPush(ch *pushchannel.Channel) {
	c.push = ch
}

// AnonymousAppID identifies this app instance without revealing anything
// about the machine or user.
func (c *Client) AnonymousAppID() string {
	var id string
	c.prefs.Get(prefsAnonymousAppID, &id)
	return id
}

// AppID returns the hosting app's reverse-domain identifier.
func (c *Client) AppID() string { return c.appID }

// FontsDir returns the install folder for font files.
func (c *Client) FontsDir() string { return c.fontsDir }

// Prefs exposes the underlying preferences store.
func (c *Client) Prefs() prefs.Store { return c.prefs }

// Resources returns the remote resource cache.
func (c *Client) Resources() *resources.Cache { return c.resources }

// RenderDescription converts a publisher-supplied markdown description
// into sanitized HTML.
func (c *Client) RenderDescription(text string) (string, error) {
	return c.md.ToHTMLSanitized(text)
}

// SetTestScenario routes a scenario marker to the central server so
// staging setups can fake specific answers.
func (c *Client) SetTestScenario(scenario string) {
	c.ms.SetTestScenario(scenario)
}

// Online reports whether the central server looks reachable. The answer
// is cached briefly because the check runs before every queue drain.
func (c *Client) Online() bool {
	if c.offline {
		return false
	}
	if cached, ok := c.onlineCache.Get("online"); ok {
		return cached.(bool)
	}

	online := dialable(c.ms.BaseURL())
	c.onlineCache.SetDefault("online", online)
	return online
}

func dialable(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Host
	if u.Port() == "" {
		switch u.Scheme {
		case "https":
			host += ":443"
		default:
			host += ":80"
		}
	}
	conn, err := net.DialTimeout("tcp", host, 5*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Locale returns the user's language preference list, ending in "en". An
// explicit preference wins over the process environment.
func (c *Client) Locale() []string {
	var locales []string
	if found, _ := c.prefs.Get(prefsLocale, &locales); found && len(locales) > 0 {
		return appendUnique(locales, "en")
	}

	for _, env := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		v := os.Getenv(env)
		if v == "" || v == "C" || v == "POSIX" {
			continue
		}
		// "de_DE.UTF-8" -> "de"
		if idx := strings.IndexAny(v, "_."); idx > 0 {
			v = v[:idx]
		}
		return appendUnique([]string{v}, "en")
	}
	return []string{"en"}
}

// SetLocale pins the language preference list. Empty clears the pin.
func (c *Client) SetLocale(locales []string) error {
	if len(locales) == 0 {
		return c.prefs.Remove(prefsLocale)
	}
	return c.prefs.Set(prefsLocale, locales)
}

// Settings returns the centrally served client settings, if downloaded.
func (c *Client) Settings() mothership.Settings {
	var s mothership.Settings
	c.prefs.Get(prefsSettings, &s)
	return s
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func removeString(list []string, v string) []string {
	out := list[:0]
	for _, existing := range list {
		if existing != v {
			out = append(out, existing)
		}
	}
	return out
}

func containsString(list []string, v string) bool {
	for _, existing := range list {
		if existing == v {
			return true
		}
	}
	return false
}
