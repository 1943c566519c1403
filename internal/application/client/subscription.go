package client

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/typeworld/typeworld-go/internal/domain/catalog"
	domain "github.com/typeworld/typeworld-go/internal/domain/subscription"
	"github.com/typeworld/typeworld-go/internal/infrastructure/keyring"
	"github.com/typeworld/typeworld-go/internal/protocol"
	"github.com/typeworld/typeworld-go/internal/shared/errors"
	"github.com/typeworld/typeworld-go/internal/shared/goroutine"
	"github.com/typeworld/typeworld-go/internal/shared/id"
	"github.com/typeworld/typeworld-go/internal/shared/version"
)

// Subscription is one live subscription: a view over its preferences
// record, keychain secret and protocol cache, identified by the unsecret
// URL.
type Subscription struct {
	client *Client
	url    *domain.URL
}

// AddOptions carries the user's consent when adding a subscription.
type AddOptions struct {
	// AcceptedTermsOfService records the user's answer to the publisher's
	// terms. Adding works without it; installing fonts does not, until
	// Subscription.SetAcceptedTermsOfService flips it.
	AcceptedTermsOfService bool

	// RevealIdentity allows the publisher to see the user's name and
	// email address.
	RevealIdentity bool

	// remote marks subscriptions arriving through account
	// reconciliation; they don't echo back to the server.
	remote bool
}

// recordState adapts a subscription record's protocol map to
// protocol.State.
type recordState struct {
	client      *Client
	unsecretURL string
}

func (s *recordState) Load() (map[string]string, error) {
	var rec domain.Record
	if _, err := s.client.prefs.Get(subscriptionKey(s.unsecretURL), &rec); err != nil {
		return nil, err
	}
	return rec.Protocol, nil
}

func (s *recordState) Save(state map[string]string) error {
	s.client.prefsMu.Lock()
	defer s.client.prefsMu.Unlock()

	var rec domain.Record
	if _, err := s.client.prefs.Get(subscriptionKey(s.unsecretURL), &rec); err != nil {
		return err
	}
	rec.Protocol = state
	return s.client.prefs.Set(subscriptionKey(s.unsecretURL), &rec)
}

// Subscriptions lists every subscription across all publishers.
func (c *Client) Subscriptions() ([]*Subscription, error) {
	publishers, err := c.Publishers()
	if err != nil {
		return nil, err
	}
	var out []*Subscription
	for _, p := range publishers {
		subs, err := p.Subscriptions()
		if err != nil {
			return nil, err
		}
		out = append(out, subs...)
	}
	return out, nil
}

// SecretSubscriptionURLs lists every held subscription in its full
// secret-URL form, secrets resolved from the keychain.
func (c *Client) SecretSubscriptionURLs() ([]string, error) {
	subs, err := c.Subscriptions()
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(subs))
	for _, sub := range subs {
		urls = append(urls, sub.SecretURL())
	}
	return urls, nil
}

// UnsecretSubscriptionURLs lists every held subscription in its
// keychain-safe unsecret form.
func (c *Client) UnsecretSubscriptionURLs() ([]string, error) {
	subs, err := c.Subscriptions()
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(subs))
	for _, sub := range subs {
		urls = append(urls, sub.UnsecretURL())
	}
	return urls, nil
}

// Subscription returns the held subscription with the given unsecret URL,
// or nil.
func (c *Client) Subscription(unsecretURL string) (*Subscription, error) {
	return c.subscriptionByURL(unsecretURL)
}

func (c *Client) subscriptionByURL(unsecretURL string) (*Subscription, error) {
	var rec domain.Record
	found, err := c.prefs.Get(subscriptionKey(unsecretURL), &rec)
	if err != nil || !found {
		return nil, err
	}
	u, err := domain.Parse(unsecretURL)
	if err != nil {
		return nil, err
	}
	u.SecretKey = "" // the serialized form carries the placeholder
	return &Subscription{client: c, url: u}, nil
}

// AddSubscription validates rawURL, performs the initial endpoint
// contact, and persists the subscription. The secret key goes into the
// keychain, never into preferences.
func (c *Client) AddSubscription(ctx context.Context, rawURL string, opts AddOptions) (*Subscription, error) {
	u, err := domain.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	unsecretURL := u.UnsecretURL()

	// Re-adding a held subscription only refreshes the secret. Publishers
	// rotate secrets by handing out a fresh URL.
	if existing, err := c.subscriptionByURL(unsecretURL); err != nil {
		return nil, err
	} else if existing != nil {
		if u.SecretKey != "" {
			if err := c.keyring.Set(unsecretURL, keyring.FieldSecretKey, u.SecretKey); err != nil {
				return nil, fmt.Errorf("failed to store subscription secret: %w", err)
			}
		}
		return existing, nil
	}

	// Adding without accepted terms is fine; installing is not. The gate
	// sits in InstallFonts so a UI can add first and ask later.

	// The record must exist before first contact; the protocol caches
	// its commands into it.
	rec := domain.Record{
		UniqueID:               id.MustGenerate(id.SubscriptionIDLength),
		Added:                  time.Now().Unix(),
		AcceptedTermsOfService: opts.AcceptedTermsOfService,
		RevealIdentity:         opts.RevealIdentity,
	}
	if err := c.prefs.Set(subscriptionKey(unsecretURL), &rec); err != nil {
		return nil, err
	}

	discard := func() {
		c.prefs.Remove(subscriptionKey(unsecretURL))
		c.keyring.Delete(unsecretURL, keyring.FieldSecretKey)
	}

	proto, err := c.protocolFor(u, unsecretURL)
	if err != nil {
		discard()
		return nil, err
	}

	root, err := proto.InitialContact(ctx)
	if err != nil {
		discard()
		return nil, err
	}

	if c.updateRequired(root.Version) {
		discard()
		return nil, errors.NewResponse(errors.CodeAppUpdateRequired)
	}

	endpoint := root.Endpoint
	if c.commercial && !endpoint.AllowsCommercialApp(c.appID) {
		discard()
		return nil, errors.NewResponse(errors.CodeCommercialAppNotAllowed)
	}

	if resp := root.InstallableFonts.Response; resp != catalog.ResponseSuccess &&
		resp != catalog.ResponseNoFontsAvailable {
		discard()
		if resp == "validTypeWorldUserAccountRequired" {
			return nil, errors.NewResponse(errors.CodeLoginRequired)
		}
		return nil, errors.NewResponse(resp)
	}

	if u.SecretKey != "" {
		if err := c.keyring.Set(unsecretURL, keyring.FieldSecretKey, u.SecretKey); err != nil {
			discard()
			return nil, fmt.Errorf("failed to store subscription secret: %w", err)
		}
	}

	rec.CanonicalURL = endpoint.CanonicalURL
	c.prefsMu.Lock()
	// InitialContact has written the protocol cache into the record.
	var stored domain.Record
	c.prefs.Get(subscriptionKey(unsecretURL), &stored)
	rec.Protocol = stored.Protocol
	err = c.prefs.Set(subscriptionKey(unsecretURL), &rec)
	c.prefsMu.Unlock()
	if err != nil {
		discard()
		return nil, err
	}

	if err := c.registerSubscription(endpoint.CanonicalURL, unsecretURL); err != nil {
		discard()
		return nil, err
	}

	sub := &Subscription{client: c, url: u}

	if endpoint.SendsLiveNotifications {
		c.subscribeSubscriptionTopic(ctx, sub)
	}

	if !opts.remote && c.User() != "" {
		if err := c.appendCommand(cmdUploadSubscriptions); err != nil {
			c.log.Warnw("failed to queue subscription upload", "error", err)
		} else if err := c.PerformCommands(ctx); err != nil {
			c.log.Warnw("queue drain after add failed", "error", err)
		}
	}

	// Discoverability touch, fire and forget. Failures are irrelevant.
	if !c.offline && endpoint.CanonicalURL != "" {
		canonicalURL := endpoint.CanonicalURL
		goroutine.SafeGo(c.log, "register-endpoint", func() {
			if err := c.ms.RegisterEndpoint(context.Background(), c.session(), canonicalURL); err != nil {
				c.log.Debugw("endpoint registration failed", "error", err)
			}
		})
	}

	c.log.Infow("subscription added",
		"subscription", u.ShortUnsecretURL(),
		"publisher", endpoint.CanonicalURL,
	)
	c.notify("SubscriptionAdded", func() {
		if c.delegate.SubscriptionAdded != nil {
			c.delegate.SubscriptionAdded(unsecretURL)
		}
	})
	return sub, nil
}

// updateRequired checks the endpoint's declared version against the
// centrally published breaking versions.
func (c *Client) updateRequired(serverVersion string) bool {
	return version.UpdateRequired(version.ClientVersion, serverVersion, c.Settings().BreakingAPIVersions)
}

func (c *Client) protocolFor(u *domain.URL, unsecretURL string) (protocol.Protocol, error) {
	proto, err := protocol.New(u.SecretURL(), protocol.Deps{
		Log:             c.log,
		State:           &recordState{client: c, unsecretURL: unsecretURL},
		AnonymousAppID:  c.AnonymousAppID,
		AnonymousUserID: c.User,
	})
	if err != nil {
		return nil, err
	}
	if u.SecretKey == "" {
		if secret, kerr := c.keyring.Get(unsecretURL, keyring.FieldSecretKey); kerr == nil {
			proto.SetSecretKey(secret)
		}
	}
	return proto, nil
}

// UnsecretURL identifies the subscription in preferences and towards the
// UI.
func (s *Subscription) UnsecretURL() string { return s.url.UnsecretURL() }

// ShortUnsecretURL identifies the subscription towards the central server
// and in push topics.
func (s *Subscription) ShortUnsecretURL() string { return s.url.ShortUnsecretURL() }

// SecretKey reads the subscription secret from the keychain.
func (s *Subscription) SecretKey() string {
	secret, _ := s.client.keyring.Get(s.UnsecretURL(), keyring.FieldSecretKey)
	return secret
}

// SecretURL rebuilds the complete URL including the keychain secret.
func (s *Subscription) SecretURL() string {
	u := *s.url
	u.SecretKey = s.SecretKey()
	return u.SecretURL()
}

func (s *Subscription) record() (domain.Record, error) {
	var rec domain.Record
	_, err := s.client.prefs.Get(subscriptionKey(s.UnsecretURL()), &rec)
	return rec, err
}

func (s *Subscription) mutateRecord(fn func(*domain.Record)) error {
	s.client.prefsMu.Lock()
	defer s.client.prefsMu.Unlock()

	var rec domain.Record
	if _, err := s.client.prefs.Get(subscriptionKey(s.UnsecretURL()), &rec); err != nil {
		return err
	}
	fn(&rec)
	return s.client.prefs.Set(subscriptionKey(s.UnsecretURL()), &rec)
}

func (s *Subscription) protocol() (protocol.Protocol, error) {
	return s.client.protocolFor(s.url, s.UnsecretURL())
}

// UniqueID returns the opaque ID prefixing this subscription's installed
// font files.
func (s *Subscription) UniqueID() string {
	rec, _ := s.record()
	return rec.UniqueID
}

// RevealIdentity reports whether the user allowed this publisher to see
// their identity.
func (s *Subscription) RevealIdentity() bool {
	rec, _ := s.record()
	return rec.RevealIdentity
}

// SetRevealIdentity toggles identity disclosure towards the publisher.
func (s *Subscription) SetRevealIdentity(reveal bool) error {
	return s.mutateRecord(func(rec *domain.Record) {
		rec.RevealIdentity = reveal
	})
}

// AcceptedTermsOfService reports whether the user accepted the
// publisher's terms for this subscription.
func (s *Subscription) AcceptedTermsOfService() bool {
	rec, _ := s.record()
	return rec.AcceptedTermsOfService
}

// SetAcceptedTermsOfService records the user's answer to the publisher's
// terms. Installing fonts requires acceptance.
func (s *Subscription) SetAcceptedTermsOfService(accepted bool) error {
	return s.mutateRecord(func(rec *domain.Record) {
		rec.AcceptedTermsOfService = accepted
	})
}

// ServerTimestamp returns the central server's content clock for this
// subscription as of the last update, or zero.
func (s *Subscription) ServerTimestamp() int64 {
	rec, _ := s.record()
	return rec.ServerTimestamp
}

func (s *Subscription) setServerTimestamp(ts int64) error {
	return s.mutateRecord(func(rec *domain.Record) {
		rec.ServerTimestamp = ts
	})
}

// Endpoint returns the publisher's self-description, cached unless update
// is set.
func (s *Subscription) Endpoint(ctx context.Context, update bool) (*catalog.Endpoint, error) {
	proto, err := s.protocol()
	if err != nil {
		return nil, err
	}
	return proto.Endpoint(ctx, update)
}

// InstallableFonts returns the subscription content, cached unless update
// is set.
func (s *Subscription) InstallableFonts(ctx context.Context, update bool) (*catalog.InstallableFonts, error) {
	proto, err := s.protocol()
	if err != nil {
		return nil, err
	}
	return proto.InstallableFonts(ctx, update)
}

// Name resolves the subscription's display name.
func (s *Subscription) Name(ctx context.Context, locales []string) string {
	fonts, err := s.InstallableFonts(ctx, false)
	if err == nil && fonts != nil && !fonts.Name.Empty() {
		return fonts.Name.Text(locales)
	}
	endpoint, err := s.Endpoint(ctx, false)
	if err == nil && endpoint != nil {
		return endpoint.Name.Text(locales)
	}
	return s.ShortUnsecretURL()
}

// Update refetches the subscription content. Reports whether anything
// changed. Concurrent updates of the same subscription serialize.
func (s *Subscription) Update(ctx context.Context) (bool, error) {
	if s.client.offline {
		return false, errors.NewResponse(errors.CodeServerNotReachable)
	}

	mu := s.client.updateLock(s.UnsecretURL())
	mu.Lock()
	defer mu.Unlock()

	proto, err := s.protocol()
	if err != nil {
		return false, err
	}

	changed, err := proto.Update(ctx)
	if err != nil {
		return false, err
	}

	endpoint, err := proto.Endpoint(ctx, false)
	if err == nil && endpoint != nil && endpoint.CanonicalURL != "" {
		s.mutateRecord(func(rec *domain.Record) {
			rec.CanonicalURL = endpoint.CanonicalURL
		})
	}

	if changed {
		s.client.log.Infow("subscription content changed", "subscription", s.ShortUnsecretURL())
	}
	unsecretURL := s.UnsecretURL()
	s.client.notify("SubscriptionUpdated", func() {
		if s.client.delegate.SubscriptionUpdated != nil {
			s.client.delegate.SubscriptionUpdated(unsecretURL)
		}
	})
	return changed, nil
}

// fontPath is where a version of a font gets installed:
// <fontsDir>/<subscription-uniqueID>-<filename>.
func (s *Subscription) fontPath(font *catalog.Font, versionNumber string) (string, error) {
	rec, err := s.record()
	if err != nil {
		return "", err
	}
	return filepath.Join(s.client.fontsDir, rec.UniqueID+"-"+font.Filename(versionNumber)), nil
}

// InstalledFontVersion returns the installed version of a font. The
// files on disk are the source of truth: every published version is
// probed, so an install survives a lost or wiped record.
func (s *Subscription) InstalledFontVersion(ctx context.Context, fontID string) (string, bool) {
	fonts, err := s.InstallableFonts(ctx, false)
	if err != nil || fonts == nil {
		return "", false
	}
	font := fonts.Font(fontID)
	if font == nil {
		return "", false
	}
	for _, v := range font.GetVersions() {
		path, err := s.fontPath(font, v.Number)
		if err != nil {
			return "", false
		}
		if _, err := os.Stat(path); err == nil {
			return v.Number, true
		}
	}
	return "", false
}

// InstallFonts installs the requested fonts, claiming seats for protected
// ones. Successful installs stick even when others in the same batch
// fail; the first failure is returned.
func (s *Subscription) InstallFonts(ctx context.Context, requests []protocol.FontRequest) error {
	if len(requests) == 0 {
		return nil
	}

	fonts, err := s.InstallableFonts(ctx, false)
	if err != nil {
		return err
	}
	if fonts == nil {
		return errors.NewResponse(errors.CodeUnknownFont)
	}

	rec, err := s.record()
	if err != nil {
		return err
	}
	if !rec.AcceptedTermsOfService {
		return errors.NewResponse(errors.CodeTermsOfServiceNotAccepted)
	}
	if err := s.probeFontsDirWritable(); err != nil {
		return err
	}

	// Seat counts and expiry dates move when protected or expiring fonts
	// get installed, so the catalog is refetched in the same round trip.
	refreshCatalog := false
	for i := range requests {
		font := fonts.Font(requests[i].FontID)
		if font == nil {
			return errors.NewResponse(errors.CodeUnknownFont)
		}
		if requests[i].Version == "" {
			latest := font.LatestVersion()
			if latest == nil {
				return errors.NewResponse(errors.CodeUnknownFont)
			}
			requests[i].Version = latest.Number
		}
		if font.Protected || font.Expiry > 0 || font.ExpiryDuration > 0 {
			refreshCatalog = true
		}
		if font.Protected {
			if s.client.User() == "" {
				return errors.NewResponse(errors.CodeLoginRequired)
			}
			if fonts.PrefersRevealedUserIdentity && !rec.RevealIdentity {
				return errors.NewResponse(errors.CodeRevealedUserIdentityRequired)
			}
		}
	}

	proto, err := s.protocol()
	if err != nil {
		return err
	}
	resp, err := proto.InstallFonts(ctx, requests, refreshCatalog)
	if err != nil {
		return err
	}
	if resp.Response != catalog.ResponseSuccess {
		return errors.NewResponse(resp.Response)
	}

	var firstErr error
	for _, req := range requests {
		installErr := s.installAsset(ctx, fonts.Font(req.FontID), req.Version, resp.Asset(req.FontID))
		fontID := req.FontID
		s.client.notify("FontInstalled", func() {
			if s.client.delegate.FontInstalled != nil {
				s.client.delegate.FontInstalled(s.UnsecretURL(), fontID, installErr)
			}
		})
		if installErr != nil && firstErr == nil {
			firstErr = installErr
		}
	}
	return firstErr
}

func (s *Subscription) installAsset(ctx context.Context, font *catalog.Font, versionNumber string, asset *catalog.InstallFontAsset) error {
	if asset == nil {
		return errors.NewResponse(errors.CodeUnknownFont)
	}
	if asset.Response != catalog.ResponseSuccess {
		return errors.NewResponse(asset.Response)
	}

	var data []byte
	var err error
	switch {
	case asset.Data != "":
		data, err = base64.StdEncoding.DecodeString(asset.Data)
		if err != nil {
			return fmt.Errorf("corrupt font data for %s: %w", asset.UniqueID, err)
		}
	case asset.DataURL != "":
		data, err = s.client.fetchFontData(ctx, asset.DataURL)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("font asset %s carries no data", asset.UniqueID)
	}

	path, err := s.fontPath(font, versionNumber)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create fonts folder: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write font file: %w", err)
	}

	if err := s.mutateRecord(func(rec *domain.Record) {
		if rec.InstalledFonts == nil {
			rec.InstalledFonts = map[string]domain.InstalledFont{}
		}
		rec.InstalledFonts[font.UniqueID] = domain.InstalledFont{
			Version:     versionNumber,
			InstalledAt: time.Now().Unix(),
		}
	}); err != nil {
		return err
	}

	s.client.log.Infow("font installed",
		"font", font.UniqueID,
		"version", versionNumber,
		"subscription", s.ShortUnsecretURL(),
	)
	return nil
}

// probeFontsDirWritable verifies the fonts folder accepts writes before
// any seats are claimed server-side.
func (s *Subscription) probeFontsDirWritable() error {
	dir := s.client.fontsDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("fonts folder not writable: %w", err)
	}
	suffix, err := id.Generate(6)
	if err != nil {
		return err
	}
	probe := filepath.Join(dir, ".write-probe-"+suffix)
	if err := os.WriteFile(probe, nil, 0o644); err != nil {
		return fmt.Errorf("fonts folder not writable: %w", err)
	}
	return os.Remove(probe)
}

func (c *Client) fetchFontData(ctx context.Context, dataURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dataURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := (&http.Client{Timeout: 60 * time.Second}).Do(req)
	if err != nil {
		return nil, errors.NewResponse(errors.CodeServerNotReachable)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("font download answered %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// RemoveOptions tunes RemoveFonts.
type RemoveOptions struct {
	// DryRun releases the seats server-side but leaves the files on
	// disk, for pre-flight permission checks.
	DryRun bool
}

// RemoveFonts uninstalls fonts and releases their seats. Protected fonts
// need the server; unprotected ones are removed locally even offline.
func (s *Subscription) RemoveFonts(ctx context.Context, fontIDs []string, opts RemoveOptions) error {
	if len(fontIDs) == 0 {
		return nil
	}

	fonts, err := s.InstallableFonts(ctx, false)
	if err != nil {
		return err
	}

	var protected []string
	for _, fontID := range fontIDs {
		if fonts != nil {
			if font := fonts.Font(fontID); font != nil && font.Protected {
				protected = append(protected, fontID)
			}
		}
	}

	// Probe before releasing any seats so a read-only folder doesn't
	// leave seats released with files still on disk.
	if !opts.DryRun {
		if err := s.probeFontsDirWritable(); err != nil {
			return err
		}
	}

	if len(protected) > 0 {
		proto, err := s.protocol()
		if err != nil {
			return err
		}
		resp, err := proto.UninstallFonts(ctx, protected)
		if err != nil {
			return err
		}
		if resp.Response != catalog.ResponseSuccess {
			return errors.NewResponse(resp.Response)
		}
		for _, fontID := range protected {
			asset := resp.Asset(fontID)
			if asset == nil {
				continue
			}
			// unknownInstallation and unknownFont mean the server no
			// longer tracks this seat; the local file still goes.
			if asset.Response != catalog.ResponseSuccess &&
				asset.Response != catalog.ResponseUnknownInstallation &&
				asset.Response != catalog.ResponseUnknownFont {
				return errors.NewResponse(asset.Response)
			}
		}
	}

	if opts.DryRun {
		return nil
	}

	var firstErr error
	for _, fontID := range fontIDs {
		removeErr := s.removeFontFile(ctx, fonts, fontID)
		removedID := fontID
		s.client.notify("FontUninstalled", func() {
			if s.client.delegate.FontUninstalled != nil {
				s.client.delegate.FontUninstalled(s.UnsecretURL(), removedID, removeErr)
			}
		})
		if removeErr != nil && firstErr == nil {
			firstErr = removeErr
		}
	}
	return firstErr
}

func (s *Subscription) removeFontFile(ctx context.Context, fonts *catalog.InstallableFonts, fontID string) error {
	// Every published version is removed, not just the recorded one, so
	// stray files from older installs go too.
	if fonts != nil {
		if font := fonts.Font(fontID); font != nil {
			for _, v := range font.GetVersions() {
				path, err := s.fontPath(font, v.Number)
				if err != nil {
					continue
				}
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("failed to remove font file: %w", err)
				}
			}
		}
	}

	if err := s.mutateRecord(func(rec *domain.Record) {
		delete(rec.InstalledFonts, fontID)
	}); err != nil {
		return err
	}

	s.client.log.Infow("font uninstalled",
		"font", fontID,
		"subscription", s.ShortUnsecretURL(),
	)
	return nil
}

// ExpiringFonts maps installed fonts to their expiry time; fonts without
// an expiry are skipped.
func (s *Subscription) ExpiringFonts(ctx context.Context) (map[string]time.Time, error) {
	rec, err := s.record()
	if err != nil {
		return nil, err
	}
	fonts, err := s.InstallableFonts(ctx, false)
	if err != nil || fonts == nil {
		return nil, err
	}

	out := map[string]time.Time{}
	fonts.EachFont(func(font *catalog.Font) bool {
		version, ok := s.InstalledFontVersion(ctx, font.UniqueID)
		if !ok {
			return true
		}
		// The record only contributes the install timestamp for duration
		// expiries; the file's mtime stands in when the record is gone.
		var installedAt time.Time
		if installed, ok := rec.InstalledFonts[font.UniqueID]; ok && installed.InstalledAt > 0 {
			installedAt = time.Unix(installed.InstalledAt, 0)
		} else if path, err := s.fontPath(font, version); err == nil {
			if info, err := os.Stat(path); err == nil {
				installedAt = info.ModTime()
			}
		}
		expires := font.ExpiresAt(installedAt)
		if !expires.IsZero() {
			out[font.UniqueID] = expires
		}
		return true
	})
	return out, nil
}

// OutdatedFonts lists installed fonts whose installed version lags behind
// the latest published one.
func (s *Subscription) OutdatedFonts(ctx context.Context) ([]string, error) {
	fonts, err := s.InstallableFonts(ctx, false)
	if err != nil || fonts == nil {
		return nil, err
	}

	var out []string
	fonts.EachFont(func(font *catalog.Font) bool {
		if version, ok := s.InstalledFontVersion(ctx, font.UniqueID); ok && font.IsOutdated(version) {
			out = append(out, font.UniqueID)
		}
		return true
	})
	return out, nil
}

// ProtectedFontIDs lists the subscription's installed protected fonts.
func (s *Subscription) ProtectedFontIDs(ctx context.Context) ([]string, error) {
	fonts, err := s.InstallableFonts(ctx, false)
	if err != nil || fonts == nil {
		return nil, err
	}

	var out []string
	fonts.EachFont(func(font *catalog.Font) bool {
		if !font.Protected {
			return true
		}
		if _, ok := s.InstalledFontVersion(ctx, font.UniqueID); ok {
			out = append(out, font.UniqueID)
		}
		return true
	})
	return out, nil
}

// Delete removes the subscription: fonts, record, secret, resources and
// publisher registration. Server seat release is best effort.
func (s *Subscription) Delete(ctx context.Context) error {
	return s.delete(ctx, false)
}

func (s *Subscription) delete(ctx context.Context, remote bool) error {
	unsecretURL := s.UnsecretURL()
	rec, err := s.record()
	if err != nil {
		return err
	}

	// Uninstall everything still on disk. Seat release may fail offline;
	// local removal proceeds regardless.
	var fontIDs []string
	if fonts, err := s.InstallableFonts(ctx, false); err == nil && fonts != nil {
		fonts.EachFont(func(font *catalog.Font) bool {
			if _, ok := s.InstalledFontVersion(ctx, font.UniqueID); ok {
				fontIDs = append(fontIDs, font.UniqueID)
			}
			return true
		})
	}
	if len(fontIDs) > 0 {
		if err := s.RemoveFonts(ctx, fontIDs, RemoveOptions{}); err != nil {
			s.client.log.Warnw("seat release during delete failed",
				"subscription", s.ShortUnsecretURL(),
				"error", err,
			)
			fonts, _ := s.InstallableFonts(ctx, false)
			for _, fontID := range fontIDs {
				s.removeFontFile(ctx, fonts, fontID)
			}
		}
	}

	// Drop cached resources the endpoint referenced.
	if endpoint, err := s.Endpoint(ctx, false); err == nil && endpoint != nil {
		var urls []string
		if endpoint.LogoURL != "" {
			urls = append(urls, endpoint.LogoURL)
		}
		if len(urls) > 0 {
			s.client.resources.Delete(urls)
		}
	}

	s.client.unsubscribeSubscriptionTopic(ctx, s)
	s.client.keyring.Delete(unsecretURL, keyring.FieldSecretKey)
	if err := s.client.prefs.Remove(subscriptionKey(unsecretURL)); err != nil {
		return err
	}

	canonicalURL := rec.CanonicalURL
	publisherGone := false
	if canonicalURL != "" {
		publisherGone, err = s.client.unregisterSubscription(canonicalURL, unsecretURL)
		if err != nil {
			return err
		}
	}

	if !remote && s.client.User() != "" {
		if err := s.client.appendCommand(cmdUploadSubscriptions); err == nil {
			s.client.PerformCommands(ctx)
		}
	}

	s.client.log.Infow("subscription deleted", "subscription", s.ShortUnsecretURL())
	s.client.notify("SubscriptionDeleted", func() {
		if s.client.delegate.SubscriptionDeleted != nil {
			s.client.delegate.SubscriptionDeleted(unsecretURL)
		}
	})
	if publisherGone {
		s.client.notify("PublisherDeleted", func() {
			if s.client.delegate.PublisherDeleted != nil {
				s.client.delegate.PublisherDeleted(canonicalURL)
			}
		})
	}
	return nil
}

// UpdateAllSubscriptions refreshes every subscription. Returns the first
// error after trying all of them.
func (c *Client) UpdateAllSubscriptions(ctx context.Context) error {
	subs, err := c.Subscriptions()
	if err != nil {
		return err
	}
	var firstErr error
	for _, sub := range subs {
		if _, err := sub.Update(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// UninstallAllProtectedFonts releases the seats of every installed
// protected font with its publisher. Used when the app instance loses
// its authorization. Revocation passes dryRun: the publishers get
// notified but the files stay on disk for the UI to clean up; unlink
// removes the files too.
func (c *Client) UninstallAllProtectedFonts(ctx context.Context, dryRun bool) error {
	subs, err := c.Subscriptions()
	if err != nil {
		return err
	}
	var firstErr error
	for _, sub := range subs {
		protected, err := sub.ProtectedFontIDs(ctx)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if len(protected) == 0 {
			continue
		}
		if err := sub.RemoveFonts(ctx, protected, RemoveOptions{DryRun: dryRun}); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ExpiringFonts aggregates expiring fonts across all subscriptions,
// keyed by subscription unsecret URL.
func (c *Client) ExpiringFonts(ctx context.Context) (map[string]map[string]time.Time, error) {
	subs, err := c.Subscriptions()
	if err != nil {
		return nil, err
	}
	out := map[string]map[string]time.Time{}
	for _, sub := range subs {
		expiring, err := sub.ExpiringFonts(ctx)
		if err != nil {
			return nil, err
		}
		if len(expiring) > 0 {
			out[sub.UnsecretURL()] = expiring
		}
	}
	return out, nil
}

// OutdatedFonts aggregates outdated fonts across all subscriptions,
// keyed by subscription unsecret URL.
func (c *Client) OutdatedFonts(ctx context.Context) (map[string][]string, error) {
	subs, err := c.Subscriptions()
	if err != nil {
		return nil, err
	}
	out := map[string][]string{}
	for _, sub := range subs {
		outdated, err := sub.OutdatedFonts(ctx)
		if err != nil {
			return nil, err
		}
		if len(outdated) > 0 {
			out[sub.UnsecretURL()] = outdated
		}
	}
	return out, nil
}
