package jsonproto

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typeworld/typeworld-go/internal/protocol"
	"github.com/typeworld/typeworld-go/internal/shared/logger"
)

// mapState is an in-memory protocol.State.
type mapState struct {
	mu    sync.Mutex
	state map[string]string
}

func (s *mapState) Load() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.state))
	for k, v := range s.state {
		out[k] = v
	}
	return out, nil
}

func (s *mapState) Save(state map[string]string) error {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	return nil
}

// testEndpoint serves a minimal but valid publisher endpoint.
type testEndpoint struct {
	srv      *httptest.Server
	requests atomic.Int32
	lastForm url.Values
	formMu   sync.Mutex

	fontName string // mutable content, to exercise change detection
	nameMu   sync.Mutex
}

func newTestEndpoint(t *testing.T) *testEndpoint {
	t.Helper()
	e := &testEndpoint{fontName: "Regular"}
	e.srv = httptest.NewServer(http.HandlerFunc(e.handle))
	t.Cleanup(e.srv.Close)
	return e
}

func (e *testEndpoint) form() url.Values {
	e.formMu.Lock()
	defer e.formMu.Unlock()
	return e.lastForm
}

func (e *testEndpoint) setFontName(name string) {
	e.nameMu.Lock()
	e.fontName = name
	e.nameMu.Unlock()
}

func (e *testEndpoint) handle(w http.ResponseWriter, r *http.Request) {
	e.requests.Add(1)
	r.ParseForm()
	e.formMu.Lock()
	e.lastForm = r.PostForm
	e.formMu.Unlock()

	e.nameMu.Lock()
	fontName := e.fontName
	e.nameMu.Unlock()

	root := map[string]any{"version": "0.4.3"}
	commands := strings.Split(r.PostFormValue("commands"), ",")
	for _, command := range commands {
		switch command {
		case "endpoint":
			root["endpoint"] = map[string]any{
				"canonicalURL":      e.srv.URL + "/",
				"adminEmail":        "admin@example.com",
				"publisherType":     "retail",
				"supportedCommands": []string{"endpoint", "installableFonts", "installFonts", "uninstallFonts"},
				"name":              map[string]string{"en": "Example Fonts"},
			}
		case "installableFonts":
			root["installableFonts"] = map[string]any{
				"response": "success",
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
						"versions": []any{map[string]string{"number": "1.0"}},
						"fonts": []any{map[string]any{
							"uniqueID":       "font1",
							"name":           map[string]string{"en": fontName},
							"postScriptName": "Family-" + fontName,
							"format":         "otf",
							"purpose":        "desktop",
							"usedLicenses":   []any{map[string]any{"keyword": "l1"}},
						}},
					}},
				}},
			}
		case "installFonts":
			root["installFonts"] = map[string]any{
				"response": "success",
				"assets": []any{map[string]any{
					"uniqueID": "font1",
					"version":  "1.0",
					"response": "success",
					"mimeType": "font/otf",
					"encoding": "base64",
					"data":     "Zm9udGRhdGE=",
				}},
			}
		case "uninstallFonts":
			root["uninstallFonts"] = map[string]any{
				"response": "success",
				"assets": []any{map[string]any{
					"uniqueID": "font1",
					"response": "success",
				}},
			}
		}
	}
	json.NewEncoder(w).Encode(root)
}

func (e *testEndpoint) subscriptionURL() string {
	host := strings.TrimPrefix(e.srv.URL, "http://")
	return fmt.Sprintf("typeworld://json+http//sub1:secret1@%s/", host)
}

func newProto(t *testing.T, e *testEndpoint) protocol.Protocol {
	t.Helper()
	p, err := protocol.New(e.subscriptionURL(), protocol.Deps{
		Log:             logger.NewLogger(),
		State:           &mapState{},
		AnonymousAppID:  func() string { return "app1" },
		AnonymousUserID: func() string { return "user1" },
	})
	require.NoError(t, err)
	return p
}

func TestRegistryResolvesJSON(t *testing.T) {
	assert.True(t, protocol.Known("json"))

	_, err := protocol.New("typeworld://xml+https//example.com/api/", protocol.Deps{})
	assert.Error(t, err)
}

func TestEndpointCachedAfterFirstFetch(t *testing.T) {
	e := newTestEndpoint(t)
	p := newProto(t, e)

	endpoint, err := p.Endpoint(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "Example Fonts", endpoint.Name.Text(nil))
	assert.Equal(t, int32(1), e.requests.Load())

	// served from cache
	_, err = p.Endpoint(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), e.requests.Load())

	// update forces a refetch
	_, err = p.Endpoint(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), e.requests.Load())
}

func TestRequestCarriesCredentials(t *testing.T) {
	e := newTestEndpoint(t)
	p := newProto(t, e)

	_, err := p.InstallableFonts(context.Background(), true)
	require.NoError(t, err)

	form := e.form()
	assert.Equal(t, "sub1", form.Get("subscriptionID"))
	assert.Equal(t, "secret1", form.Get("secretKey"))
	assert.Equal(t, "app1", form.Get("anonymousAppID"))
	assert.Equal(t, "user1", form.Get("anonymousTypeWorldUserID"))
	assert.NotEmpty(t, form.Get("appVersion"))
}

func TestUpdateDetectsChange(t *testing.T) {
	e := newTestEndpoint(t)
	p := newProto(t, e)

	_, err := p.InitialContact(context.Background())
	require.NoError(t, err)

	changed, err := p.Update(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)

	e.setFontName("Bold")
	changed, err = p.Update(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestInitialContactConsumesAccessToken(t *testing.T) {
	e := newTestEndpoint(t)
	host := strings.TrimPrefix(e.srv.URL, "http://")
	raw := fmt.Sprintf("typeworld://json+http//sub1:secret1:token1@%s/", host)

	p, err := protocol.New(raw, protocol.Deps{
		Log:            logger.NewLogger(),
		State:          &mapState{},
		AnonymousAppID: func() string { return "app1" },
	})
	require.NoError(t, err)

	_, err = p.InitialContact(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token1", e.form().Get("accessToken"))

	// token must not be sent again
	_, err = p.InstallableFonts(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, e.form().Get("accessToken"))
}

func TestInstallAndUninstallFonts(t *testing.T) {
	e := newTestEndpoint(t)
	p := newProto(t, e)

	install, err := p.InstallFonts(context.Background(),
		[]protocol.FontRequest{{FontID: "font1", Version: "1.0"}}, false)
	require.NoError(t, err)
	assert.Equal(t, "font1/1.0", e.form().Get("fonts"))
	assert.Equal(t, "installFonts", e.form().Get("commands"))

	asset := install.Asset("font1")
	require.NotNil(t, asset)
	assert.Equal(t, "success", asset.Response)
	assert.Equal(t, "Zm9udGRhdGE=", asset.Data)

	uninstall, err := p.UninstallFonts(context.Background(), []string{"font1"})
	require.NoError(t, err)
	assert.Equal(t, "font1", e.form().Get("fonts"))
	require.NotNil(t, uninstall.Asset("font1"))
}

func TestInstallFontsRefreshesCatalog(t *testing.T) {
	e := newTestEndpoint(t)
	p := newProto(t, e)

	_, err := p.InstallableFonts(context.Background(), true)
	require.NoError(t, err)

	e.setFontName("Bold")
	_, err = p.InstallFonts(context.Background(),
		[]protocol.FontRequest{{FontID: "font1", Version: "1.0"}}, true)
	require.NoError(t, err)
	assert.Equal(t, "installFonts,installableFonts", e.form().Get("commands"))

	// the refreshed catalog replaced the cache without another request
	before := e.requests.Load()
	cached, err := p.InstallableFonts(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, before, e.requests.Load())
	require.NotNil(t, cached.Font("font1"))
	assert.Equal(t, "Bold", cached.Font("font1").Name.Text(nil))
}

func TestCachedCatalogIsLinked(t *testing.T) {
	e := newTestEndpoint(t)
	p := newProto(t, e)

	_, err := p.InstallableFonts(context.Background(), true)
	require.NoError(t, err)

	cached, err := p.InstallableFonts(context.Background(), false)
	require.NoError(t, err)

	font := cached.Font("font1")
	require.NotNil(t, font)
	require.NotNil(t, font.Family(), "cached catalog must be linked")
	assert.Equal(t, "1.0", font.LatestVersion().Number)
}
