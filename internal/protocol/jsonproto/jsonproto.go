// Package jsonproto implements the default JSON wire protocol towards
// publisher endpoints. One POST carries the requested command names; the
// answer is a single JSON document holding one object per command.
package jsonproto

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/typeworld/typeworld-go/internal/domain/catalog"
	"github.com/typeworld/typeworld-go/internal/domain/subscription"
	"github.com/typeworld/typeworld-go/internal/protocol"
	"github.com/typeworld/typeworld-go/internal/shared/errors"
	"github.com/typeworld/typeworld-go/internal/shared/version"
)

// State keys for the cached commands.
const (
	stateEndpoint         = "endpoint"
	stateInstallableFonts = "installableFonts"
)

func init() {
	protocol.Register("json", New)
}

// Proto speaks the JSON protocol for one subscription.
type Proto struct {
	url  *subscription.URL
	deps protocol.Deps
}

// New builds a JSON protocol instance. Registered as the "json" factory.
func New(u *subscription.URL, deps protocol.Deps) protocol.Protocol {
	if deps.HTTP == nil {
		deps.HTTP = &http.Client{Timeout: 30 * time.Second}
	}
	return &Proto{url: u, deps: deps}
}

func (p *Proto) URL() *subscription.URL { return p.url }

func (p *Proto) SetSecretKey(secret string) { p.url.SecretKey = secret }

func (p *Proto) Endpoint(ctx context.Context, update bool) (*catalog.Endpoint, error) {
	if !update {
		if cached, err := p.cachedEndpoint(); err != nil {
			return nil, err
		} else if cached != nil {
			return cached, nil
		}
	}

	root, err := p.request(ctx, []string{"endpoint"}, nil)
	if err != nil {
		return nil, err
	}
	if root.Endpoint == nil {
		return nil, fmt.Errorf("endpoint answered without endpoint command")
	}
	if err := p.cache(stateEndpoint, root.Endpoint); err != nil {
		return nil, err
	}
	return root.Endpoint, nil
}

func (p *Proto) InstallableFonts(ctx context.Context, update bool) (*catalog.InstallableFonts, error) {
	if !update {
		if cached, err := p.cachedInstallableFonts(); err != nil {
			return nil, err
		} else if cached != nil {
			return cached, nil
		}
	}

	root, err := p.request(ctx, []string{"installableFonts"}, nil)
	if err != nil {
		return nil, err
	}
	if root.InstallableFonts == nil {
		return nil, fmt.Errorf("endpoint answered without installableFonts command")
	}
	if err := p.cache(stateInstallableFonts, root.InstallableFonts); err != nil {
		return nil, err
	}
	return root.InstallableFonts, nil
}

func (p *Proto) Update(ctx context.Context) (bool, error) {
	state, err := p.deps.State.Load()
	if err != nil {
		return false, err
	}
	previous := state[stateInstallableFonts]

	root, err := p.request(ctx, []string{"endpoint", "installableFonts"}, nil)
	if err != nil {
		return false, err
	}
	if root.Endpoint == nil || root.InstallableFonts == nil {
		return false, fmt.Errorf("endpoint answered an incomplete update")
	}

	if err := p.cache(stateEndpoint, root.Endpoint); err != nil {
		return false, err
	}
	if err := p.cache(stateInstallableFonts, root.InstallableFonts); err != nil {
		return false, err
	}

	state, err = p.deps.State.Load()
	if err != nil {
		return false, err
	}
	return state[stateInstallableFonts] != previous, nil
}

func (p *Proto) InstallFonts(ctx context.Context, fonts []protocol.FontRequest, refreshCatalog bool) (*catalog.InstallFonts, error) {
	specs := make([]string, 0, len(fonts))
	for _, f := range fonts {
		specs = append(specs, f.FontID+"/"+f.Version)
	}
	extra := url.Values{}
	extra.Set("fonts", strings.Join(specs, ","))

	commands := []string{"installFonts"}
	if refreshCatalog {
		commands = append(commands, "installableFonts")
	}
	root, err := p.request(ctx, commands, extra)
	if err != nil {
		return nil, err
	}
	if root.InstallFonts == nil {
		return nil, fmt.Errorf("endpoint answered without installFonts command")
	}
	if root.InstallableFonts != nil {
		if err := p.cache(stateInstallableFonts, root.InstallableFonts); err != nil {
			return nil, err
		}
	}
	return root.InstallFonts, nil
}

func (p *Proto) UninstallFonts(ctx context.Context, fontIDs []string) (*catalog.UninstallFonts, error) {
	extra := url.Values{}
	extra.Set("fonts", strings.Join(fontIDs, ","))

	root, err := p.request(ctx, []string{"uninstallFonts"}, extra)
	if err != nil {
		return nil, err
	}
	if root.UninstallFonts == nil {
		return nil, fmt.Errorf("endpoint answered without uninstallFonts command")
	}
	return root.UninstallFonts, nil
}

func (p *Proto) InitialContact(ctx context.Context) (*catalog.Root, error) {
	extra := url.Values{}
	if p.url.AccessToken != "" {
		extra.Set("accessToken", p.url.AccessToken)
	}

	root, err := p.request(ctx, []string{"endpoint", "installableFonts"}, extra)
	if err != nil {
		return nil, err
	}
	if root.Endpoint == nil || root.InstallableFonts == nil {
		return nil, fmt.Errorf("endpoint answered an incomplete initial contact")
	}

	// Access tokens are single-use; drop it so retries don't resend it.
	p.url.AccessToken = ""

	if err := p.cache(stateEndpoint, root.Endpoint); err != nil {
		return nil, err
	}
	if err := p.cache(stateInstallableFonts, root.InstallableFonts); err != nil {
		return nil, err
	}
	return root, nil
}

// request POSTs the command list plus credentials to the endpoint.
func (p *Proto) request(ctx context.Context, commands []string, extra url.Values) (*catalog.Root, error) {
	params := url.Values{}
	params.Set("commands", strings.Join(commands, ","))
	params.Set("appVersion", version.ClientVersion)
	if p.url.SubscriptionID != "" {
		params.Set("subscriptionID", p.url.SubscriptionID)
	}
	if p.url.SecretKey != "" {
		params.Set("secretKey", p.url.SecretKey)
	}
	if p.deps.AnonymousAppID != nil {
		params.Set("anonymousAppID", p.deps.AnonymousAppID())
	}
	if p.deps.AnonymousUserID != nil {
		if userID := p.deps.AnonymousUserID(); userID != "" {
			params.Set("anonymousTypeWorldUserID", userID)
		}
	}
	for name, values := range extra {
		for _, v := range values {
			params.Add(name, v)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url.HTTPURL(),
		strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.deps.HTTP.Do(req)
	if err != nil {
		return nil, errors.NewResponse(errors.CodeServerNotReachable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("endpoint answered %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read endpoint response: %w", err)
	}

	return catalog.ParseRoot(body)
}

func (p *Proto) cache(key string, value any) error {
	state, err := p.deps.State.Load()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if state == nil {
		state = map[string]string{}
	}
	state[key] = string(raw)
	return p.deps.State.Save(state)
}

func (p *Proto) cachedEndpoint() (*catalog.Endpoint, error) {
	state, err := p.deps.State.Load()
	if err != nil {
		return nil, err
	}
	raw, ok := state[stateEndpoint]
	if !ok {
		return nil, nil
	}
	var e catalog.Endpoint
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, fmt.Errorf("corrupt cached endpoint: %w", err)
	}
	return &e, nil
}

func (p *Proto) cachedInstallableFonts() (*catalog.InstallableFonts, error) {
	state, err := p.deps.State.Load()
	if err != nil {
		return nil, err
	}
	raw, ok := state[stateInstallableFonts]
	if !ok {
		return nil, nil
	}
	var c catalog.InstallableFonts
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("corrupt cached installableFonts: %w", err)
	}
	c.Link()
	return &c, nil
}
