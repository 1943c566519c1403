package client

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/typeworld/typeworld-go/internal/domain/subscription"
	"github.com/typeworld/typeworld-go/internal/protocol"
)

func addSubscription(t *testing.T, e *env) *Subscription {
	t.Helper()
	sub, err := e.client.AddSubscription(context.Background(), e.endpoint.subscriptionURL(),
		AddOptions{AcceptedTermsOfService: true})
	require.NoError(t, err)
	return sub
}

func installedFontPath(t *testing.T, e *env, sub *Subscription, name, version string) string {
	t.Helper()
	return filepath.Join(e.client.FontsDir(), sub.UniqueID()+"-Family-"+name+"_"+version+".otf")
}

func TestInstallAndRemoveFont(t *testing.T) {
	e := newEnv(t)
	sub := addSubscription(t, e)

	require.NoError(t, sub.InstallFonts(context.Background(),
		[]protocol.FontRequest{{FontID: "font1"}}))

	path := installedFontPath(t, e, sub, "Regular", "1.0")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fontdata", string(data))

	installed, ok := sub.InstalledFontVersion(context.Background(), "font1")
	assert.True(t, ok)
	assert.Equal(t, "1.0", installed)

	require.NoError(t, sub.RemoveFonts(context.Background(), []string{"font1"}, RemoveOptions{}))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	_, ok = sub.InstalledFontVersion(context.Background(), "font1")
	assert.False(t, ok)
}

func TestDeletedFileCountsAsUninstalled(t *testing.T) {
	e := newEnv(t)
	sub := addSubscription(t, e)

	require.NoError(t, sub.InstallFonts(context.Background(),
		[]protocol.FontRequest{{FontID: "font1"}}))
	require.NoError(t, os.Remove(installedFontPath(t, e, sub, "Regular", "1.0")))

	// the filesystem is the source of truth
	_, ok := sub.InstalledFontVersion(context.Background(), "font1")
	assert.False(t, ok)
}

func TestInstalledStateSurvivesLostRecord(t *testing.T) {
	e := newEnv(t)
	sub := addSubscription(t, e)

	require.NoError(t, sub.InstallFonts(context.Background(),
		[]protocol.FontRequest{{FontID: "font1"}}))

	// Wipe the bookkeeping; the file on disk still decides.
	require.NoError(t, sub.mutateRecord(func(rec *domain.Record) {
		rec.InstalledFonts = nil
	}))

	installed, ok := sub.InstalledFontVersion(context.Background(), "font1")
	assert.True(t, ok)
	assert.Equal(t, "1.0", installed)

	// Removal still finds and deletes the file.
	require.NoError(t, sub.RemoveFonts(context.Background(), []string{"font1"}, RemoveOptions{}))
	_, err := os.Stat(installedFontPath(t, e, sub, "Regular", "1.0"))
	assert.True(t, os.IsNotExist(err))
}

func TestProtectedFontNeedsAccount(t *testing.T) {
	e := newEnv(t)
	e.endpoint.mu.Lock()
	e.endpoint.protected = true
	e.endpoint.mu.Unlock()

	sub := addSubscription(t, e)
	err := sub.InstallFonts(context.Background(), []protocol.FontRequest{{FontID: "font1"}})
	assert.EqualError(t, err, "#(response.loginRequired)")
}

func TestProtectedFontIdentityGate(t *testing.T) {
	e := newEnv(t)
	e.endpoint.mu.Lock()
	e.endpoint.protected = true
	e.endpoint.prefersIdentity = true
	e.endpoint.mu.Unlock()

	sub := addSubscription(t, e)
	e.login(t)

	err := sub.InstallFonts(context.Background(), []protocol.FontRequest{{FontID: "font1"}})
	assert.EqualError(t, err, "#(response.revealedUserIdentityRequired)")

	require.NoError(t, sub.SetRevealIdentity(true))
	assert.NoError(t, sub.InstallFonts(context.Background(),
		[]protocol.FontRequest{{FontID: "font1"}}))

	// protected installs refetch the catalog in the same round trip, so
	// seat counts stay current
	assert.Contains(t, e.endpoint.callLog(), "installFonts,installableFonts")
}

func TestSeatAllowanceReached(t *testing.T) {
	e := newEnv(t)
	e.endpoint.mu.Lock()
	e.endpoint.protected = true
	e.endpoint.seatsExhausted = true
	e.endpoint.mu.Unlock()

	sub := addSubscription(t, e)
	e.login(t)

	err := sub.InstallFonts(context.Background(), []protocol.FontRequest{{FontID: "font1"}})
	assert.EqualError(t, err, "#(response.seatAllowanceReached)")

	_, ok := sub.InstalledFontVersion(context.Background(), "font1")
	assert.False(t, ok)
}

func TestRemoveFontsDryRunLeavesFiles(t *testing.T) {
	e := newEnv(t)
	sub := addSubscription(t, e)

	require.NoError(t, sub.InstallFonts(context.Background(),
		[]protocol.FontRequest{{FontID: "font1"}}))
	require.NoError(t, sub.RemoveFonts(context.Background(), []string{"font1"},
		RemoveOptions{DryRun: true}))

	_, err := os.Stat(installedFontPath(t, e, sub, "Regular", "1.0"))
	assert.NoError(t, err)

	_, ok := sub.InstalledFontVersion(context.Background(), "font1")
	assert.True(t, ok)
}

func TestRemoveToleratesForgottenSeat(t *testing.T) {
	e := newEnv(t)
	e.endpoint.mu.Lock()
	e.endpoint.protected = true
	e.endpoint.mu.Unlock()

	sub := addSubscription(t, e)
	e.login(t)
	require.NoError(t, sub.InstallFonts(context.Background(),
		[]protocol.FontRequest{{FontID: "font1"}}))

	// The publisher no longer tracks the seat, or dropped the font from
	// its catalog entirely. The local file goes regardless.
	for _, response := range []string{"unknownInstallation", "unknownFont"} {
		e.endpoint.mu.Lock()
		e.endpoint.uninstallResponse = response
		e.endpoint.mu.Unlock()

		require.NoError(t, sub.RemoveFonts(context.Background(), []string{"font1"}, RemoveOptions{}),
			"response %q must not block removal", response)
		_, err := os.Stat(installedFontPath(t, e, sub, "Regular", "1.0"))
		assert.True(t, os.IsNotExist(err))

		require.NoError(t, sub.InstallFonts(context.Background(),
			[]protocol.FontRequest{{FontID: "font1"}}))
	}
}

func TestUnknownFont(t *testing.T) {
	e := newEnv(t)
	sub := addSubscription(t, e)

	err := sub.InstallFonts(context.Background(), []protocol.FontRequest{{FontID: "nope"}})
	assert.EqualError(t, err, "#(response.unknownFont)")
}

func TestOutdatedFontsAfterUpdate(t *testing.T) {
	e := newEnv(t)
	sub := addSubscription(t, e)

	require.NoError(t, sub.InstallFonts(context.Background(),
		[]protocol.FontRequest{{FontID: "font1", Version: "1.0"}}))

	e.endpoint.mu.Lock()
	e.endpoint.versions = []string{"1.0", "2.0"}
	e.endpoint.mu.Unlock()

	changed, err := sub.Update(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)

	outdated, err := sub.OutdatedFonts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"font1"}, outdated)

	all, err := e.client.OutdatedFonts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"font1"}, all[sub.UnsecretURL()])
}

func TestUpdateWithoutChange(t *testing.T) {
	e := newEnv(t)
	sub := addSubscription(t, e)

	changed, err := sub.Update(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestDeleteSubscription(t *testing.T) {
	e := newEnv(t)

	var deletedSub, deletedPub string
	e.delegate.SubscriptionDeleted = func(u string) { deletedSub = u }
	e.delegate.PublisherDeleted = func(u string) { deletedPub = u }

	sub := addSubscription(t, e)
	require.NoError(t, sub.InstallFonts(context.Background(),
		[]protocol.FontRequest{{FontID: "font1"}}))
	path := installedFontPath(t, e, sub, "Regular", "1.0")

	require.NoError(t, sub.Delete(context.Background()))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	subs, err := e.client.Subscriptions()
	require.NoError(t, err)
	assert.Empty(t, subs)

	publishers, err := e.client.Publishers()
	require.NoError(t, err)
	assert.Empty(t, publishers)

	assert.Equal(t, sub.UnsecretURL(), deletedSub)
	assert.Equal(t, e.endpoint.srv.URL+"/", deletedPub)
	assert.Empty(t, sub.SecretKey())
}

func TestDelegatePanicIsContained(t *testing.T) {
	e := newEnv(t)
	e.delegate.SubscriptionAdded = func(string) { panic("delegate bug") }

	_, err := e.client.AddSubscription(context.Background(), e.endpoint.subscriptionURL(),
		AddOptions{AcceptedTermsOfService: true})
	assert.NoError(t, err)
}
