package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typeworld/typeworld-go/internal/infrastructure/keyring"
	"github.com/typeworld/typeworld-go/internal/infrastructure/mothership"
	"github.com/typeworld/typeworld-go/internal/infrastructure/prefs"
	"github.com/typeworld/typeworld-go/internal/protocol"
	_ "github.com/typeworld/typeworld-go/internal/protocol/jsonproto"
	"github.com/typeworld/typeworld-go/internal/shared/logger"
)

// centralServer fakes the central server for tests.
type centralServer struct {
	srv *httptest.Server

	mu            sync.Mutex
	calls         []string
	forms         map[string]url.Values
	uploadedURLs  []string
	downloadResp  map[string]any
	failEndpoints map[string]string // endpoint -> response code
}

func newCentralServer(t *testing.T) *centralServer {
	t.Helper()
	cs := &centralServer{
		forms:         map[string]url.Values{},
		downloadResp:  map[string]any{},
		failEndpoints: map[string]string{},
	}
	cs.srv = httptest.NewServer(http.HandlerFunc(cs.handle))
	t.Cleanup(cs.srv.Close)
	return cs
}

func (cs *centralServer) handle(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	endpoint := strings.TrimPrefix(r.URL.Path, "/")

	cs.mu.Lock()
	cs.calls = append(cs.calls, endpoint)
	cs.forms[endpoint] = r.PostForm
	if code, ok := cs.failEndpoints[endpoint]; ok {
		cs.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"response": code})
		return
	}

	resp := map[string]any{"response": "success"}
	switch endpoint {
	case "logInUserAccount", "createUserAccount":
		resp["anonymousUserID"] = "user1"
		resp["secretKey"] = "accountsecret"
	case "linkTypeWorldUserAccount":
		resp["userEmail"] = "jane@example.com"
		resp["userName"] = "Jane"
	case "uploadUserSubscriptions":
		cs.uploadedURLs = nil
		if raw := r.PostFormValue("subscriptionURLs"); raw != "" {
			cs.uploadedURLs = strings.Split(raw, ",")
		}
	case "downloadUserSubscriptions":
		if len(cs.uploadedURLs) > 0 {
			resp["subscriptions"] = append([]string(nil), cs.uploadedURLs...)
		}
		for k, v := range cs.downloadResp {
			resp[k] = v
		}
	case "downloadSettings":
		resp["settings"] = map[string]any{"breakingAPIVersions": []string{"0.3.0"}}
	}
	cs.mu.Unlock()

	json.NewEncoder(w).Encode(resp)
}

func (cs *centralServer) callLog() []string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return append([]string(nil), cs.calls...)
}

func (cs *centralServer) resetCalls() {
	cs.mu.Lock()
	cs.calls = nil
	cs.mu.Unlock()
}

// formValue returns a parameter from the last request to an endpoint.
func (cs *centralServer) formValue(endpoint, name string) string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.forms[endpoint].Get(name)
}

// fontEndpoint fakes a publisher endpoint.
type fontEndpoint struct {
	srv *httptest.Server

	mu                sync.Mutex
	calls             []string
	fontName          string
	versions          []string
	protected         bool
	prefersIdentity   bool
	seatsExhausted    bool
	commercialApps    []string
	catalogResponse   string
	endpointVersion   string
	liveNotifications bool
	uninstallResponse string // per-asset answer to uninstallFonts, default success
}

func newFontEndpoint(t *testing.T) *fontEndpoint {
	t.Helper()
	e := &fontEndpoint{
		fontName:        "Regular",
		versions:        []string{"1.0"},
		catalogResponse: "success",
		endpointVersion: "0.4.3",
	}
	e.srv = httptest.NewServer(http.HandlerFunc(e.handle))
	t.Cleanup(e.srv.Close)
	return e
}

func (e *fontEndpoint) subscriptionURL() string {
	host := strings.TrimPrefix(e.srv.URL, "http://")
	return fmt.Sprintf("typeworld://json+http//sub1:subsecret@%s/", host)
}

func (e *fontEndpoint) unsecretURL() string {
	host := strings.TrimPrefix(e.srv.URL, "http://")
	return fmt.Sprintf("typeworld://json+http//sub1:secretKey@%s/", host)
}

func (e *fontEndpoint) handle(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls = append(e.calls, r.PostFormValue("commands"))

	root := map[string]any{"version": e.endpointVersion}
	for _, command := range strings.Split(r.PostFormValue("commands"), ",") {
		switch command {
		case "endpoint":
			root["endpoint"] = map[string]any{
				"canonicalURL":           e.srv.URL + "/",
				"adminEmail":             "admin@example.com",
				"publisherType":          "retail",
				"supportedCommands":      []string{"endpoint", "installableFonts", "installFonts", "uninstallFonts"},
				"name":                   map[string]string{"en": "Example Fonts"},
				"allowedCommercialApps":  e.commercialApps,
				"sendsLiveNotifications": e.liveNotifications,
			}
		case "installableFonts":
			root["installableFonts"] = map[string]any{
				"response":                    e.catalogResponse,
				"prefersRevealedUserIdentity": e.prefersIdentity,
				"foundries": []any{map[string]any{
					"uniqueID": "f1",
					"name":     map[string]string{"en": "Foundry"},
					"licenses": []any{map[string]any{
						"keyword": "l1",
						"name":    map[string]string{"en": "License"},
						"URL":     "https://example.com/license",
					}},
					"families": []any{map[string]any{
						"uniqueID": "fam1",
						"name":     map[string]string{"en": "Family"},
						"versions": familyVersions(e.versions),
						"fonts": []any{map[string]any{
							"uniqueID":       "font1",
							"name":           map[string]string{"en": e.fontName},
							"postScriptName": "Family-" + e.fontName,
							"format":         "otf",
							"purpose":        "desktop",
							"protected":      e.protected,
							"usedLicenses":   []any{map[string]any{"keyword": "l1"}},
						}},
					}},
				}},
			}
		case "installFonts":
			assetResponse := "success"
			if e.seatsExhausted {
				assetResponse = "seatAllowanceReached"
			}
			requested := "1.0"
			if spec := r.PostFormValue("fonts"); spec != "" {
				if _, v, ok := strings.Cut(spec, "/"); ok {
					requested = v
				}
			}
			asset := map[string]any{
				"uniqueID": "font1",
				"version":  requested,
				"response": assetResponse,
			}
			if assetResponse == "success" {
				asset["encoding"] = "base64"
				asset["data"] = "Zm9udGRhdGE=" // "fontdata"
			}
			root["installFonts"] = map[string]any{
				"response": "success",
				"assets":   []any{asset},
			}
		case "uninstallFonts":
			assetResponse := e.uninstallResponse
			if assetResponse == "" {
				assetResponse = "success"
			}
			root["uninstallFonts"] = map[string]any{
				"response": "success",
				"assets":   []any{map[string]any{"uniqueID": "font1", "response": assetResponse}},
			}
		}
	}
	json.NewEncoder(w).Encode(root)
}

func (e *fontEndpoint) callLog() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func (e *fontEndpoint) resetCalls() {
	e.mu.Lock()
	e.calls = nil
	e.mu.Unlock()
}

func familyVersions(numbers []string) []any {
	out := make([]any, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, map[string]string{"number": n})
	}
	return out
}

// env bundles a client wired against fake servers.
type env struct {
	prefs    *prefs.MemoryStore
	keyring  *keyring.Memory
	central  *centralServer
	endpoint *fontEndpoint
	client   *Client
	delegate *Delegate
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		prefs:    prefs.NewMemoryStore(),
		keyring:  keyring.NewMemory(),
		central:  newCentralServer(t),
		endpoint: newFontEndpoint(t),
		delegate: &Delegate{},
	}
	c, err := New(Options{
		Prefs:      e.prefs,
		Keyring:    e.keyring,
		Mothership: mothership.New(e.central.srv.URL, logger.NewLogger()),
		Log:        logger.NewLogger(),
		Delegate:   e.delegate,
		FontsDir:   t.TempDir(),
	})
	require.NoError(t, err)
	e.client = c
	return e
}

func (e *env) login(t *testing.T) {
	t.Helper()
	require.NoError(t, e.client.LogInUserAccount(context.Background(), "jane@example.com", "pass"))
}

func TestNewPersistsAnonymousAppID(t *testing.T) {
	e := newEnv(t)
	first := e.client.AnonymousAppID()
	require.NotEmpty(t, first)

	second, err := New(Options{
		Prefs:      e.prefs,
		Keyring:    e.keyring,
		Mothership: mothership.New(e.central.srv.URL, logger.NewLogger()),
		FontsDir:   t.TempDir(),
	})
	require.NoError(t, err)
	assert.Equal(t, first, second.AnonymousAppID())
}

func TestLocale(t *testing.T) {
	e := newEnv(t)

	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "de_DE.UTF-8")
	assert.Equal(t, []string{"de", "en"}, e.client.Locale())

	require.NoError(t, e.client.SetLocale([]string{"fr"}))
	assert.Equal(t, []string{"fr", "en"}, e.client.Locale())

	require.NoError(t, e.client.SetLocale(nil))
	assert.Equal(t, []string{"de", "en"}, e.client.Locale())
}

func TestLoginLinksAppInstance(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	assert.Equal(t, "user1", e.client.User())
	assert.Equal(t, "jane@example.com", e.client.UserEmail())
	assert.Equal(t, "Jane", e.client.UserName())

	secret, err := e.keyring.Get(keyring.AppEntryService("user1", e.client.AnonymousAppID()), keyring.FieldSecretKey)
	require.NoError(t, err)
	assert.Equal(t, "accountsecret", secret)

	// login drains link plus the follow-up downloads
	log := e.central.callLog()
	assert.Contains(t, log, "linkTypeWorldUserAccount")
	assert.Contains(t, log, "downloadUserSubscriptions")
	assert.Contains(t, log, "downloadSettings")

	// every request names its originating app instance so its own push
	// echoes can be dropped
	assert.Equal(t, e.client.AnonymousAppID(),
		e.central.formValue("linkTypeWorldUserAccount", "sourceAnonymousAppID"))
	assert.Equal(t, e.client.AnonymousAppID(),
		e.central.formValue("downloadUserSubscriptions", "sourceAnonymousAppID"))
	assert.Empty(t, e.client.PendingCommands())
	assert.False(t, e.client.LastServerSync().IsZero())
}

func TestUnlinkClearsAccountState(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	require.NoError(t, e.client.UnlinkUser(context.Background()))

	assert.Empty(t, e.client.User())
	assert.Empty(t, e.client.UserEmail())
	_, err := e.keyring.Get(keyring.AppEntryService("user1", e.client.AnonymousAppID()), keyring.FieldSecretKey)
	assert.ErrorIs(t, err, keyring.ErrNotFound)
	assert.Contains(t, e.central.callLog(), "unlinkTypeWorldUserAccount")
}

func TestAddSubscription(t *testing.T) {
	e := newEnv(t)

	sub, err := e.client.AddSubscription(context.Background(), e.endpoint.subscriptionURL(),
		AddOptions{AcceptedTermsOfService: true})
	require.NoError(t, err)

	assert.Equal(t, e.endpoint.unsecretURL(), sub.UnsecretURL())
	assert.Equal(t, "subsecret", sub.SecretKey())
	assert.Len(t, sub.UniqueID(), 10)

	publishers, err := e.client.Publishers()
	require.NoError(t, err)
	require.Len(t, publishers, 1)
	assert.Equal(t, e.endpoint.srv.URL+"/", publishers[0].CanonicalURL)

	// the secret never lands in preferences
	dump, err := e.prefs.Dump()
	require.NoError(t, err)
	for key, raw := range dump {
		assert.NotContains(t, string(raw), "subsecret", "secret leaked into preference %q", key)
	}
}

func TestTermsAcceptanceGatesInstallNotAdd(t *testing.T) {
	e := newEnv(t)

	// Adding without accepted terms works; the subscription is browsable.
	sub, err := e.client.AddSubscription(context.Background(), e.endpoint.subscriptionURL(), AddOptions{})
	require.NoError(t, err)
	assert.False(t, sub.AcceptedTermsOfService())

	err = sub.InstallFonts(context.Background(), []protocol.FontRequest{{FontID: "font1"}})
	assert.EqualError(t, err, "#(response.termsOfServiceNotAccepted)")

	// Accepting after the fact unblocks the install.
	require.NoError(t, sub.SetAcceptedTermsOfService(true))
	require.NoError(t, sub.InstallFonts(context.Background(), []protocol.FontRequest{{FontID: "font1"}}))
}

func TestAddSubscriptionCommercialGate(t *testing.T) {
	e := newEnv(t)
	commercial, err := New(Options{
		Prefs:      e.prefs,
		Keyring:    e.keyring,
		Mothership: mothership.New(e.central.srv.URL, logger.NewLogger()),
		AppID:      "com.example.fontapp",
		Commercial: true,
		FontsDir:   t.TempDir(),
	})
	require.NoError(t, err)

	_, err = commercial.AddSubscription(context.Background(), e.endpoint.subscriptionURL(),
		AddOptions{AcceptedTermsOfService: true})
	assert.EqualError(t, err, "#(response.commercialAppNotAllowed)")

	e.endpoint.mu.Lock()
	e.endpoint.commercialApps = []string{"com.example.fontapp"}
	e.endpoint.mu.Unlock()

	_, err = commercial.AddSubscription(context.Background(), e.endpoint.subscriptionURL(),
		AddOptions{AcceptedTermsOfService: true})
	assert.NoError(t, err)
}

func TestAddSubscriptionVersionGuard(t *testing.T) {
	e := newEnv(t)

	// client 0.4.3; endpoint 9.0.0 with a breaking 5.0.0 in between
	require.NoError(t, e.prefs.Set(prefsSettings, mothership.Settings{
		BreakingAPIVersions: []string{"5.0.0"},
	}))
	e.endpoint.mu.Lock()
	e.endpoint.endpointVersion = "9.0.0"
	e.endpoint.mu.Unlock()

	_, err := e.client.AddSubscription(context.Background(), e.endpoint.subscriptionURL(),
		AddOptions{AcceptedTermsOfService: true})
	assert.EqualError(t, err, "#(response.appUpdateRequired)")
}

func TestAddSubscriptionLoginRequired(t *testing.T) {
	e := newEnv(t)
	e.endpoint.mu.Lock()
	e.endpoint.catalogResponse = "validTypeWorldUserAccountRequired"
	e.endpoint.mu.Unlock()

	_, err := e.client.AddSubscription(context.Background(), e.endpoint.subscriptionURL(),
		AddOptions{AcceptedTermsOfService: true})
	assert.EqualError(t, err, "#(response.loginRequired)")
}

func TestReaddRefreshesSecret(t *testing.T) {
	e := newEnv(t)

	_, err := e.client.AddSubscription(context.Background(), e.endpoint.subscriptionURL(),
		AddOptions{AcceptedTermsOfService: true})
	require.NoError(t, err)

	rotated := strings.Replace(e.endpoint.subscriptionURL(), "subsecret", "newsecret", 1)
	sub, err := e.client.AddSubscription(context.Background(), rotated,
		AddOptions{AcceptedTermsOfService: true})
	require.NoError(t, err)
	assert.Equal(t, "newsecret", sub.SecretKey())

	subs, err := e.client.Subscriptions()
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}
