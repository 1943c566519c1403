package client

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typeworld/typeworld-go/internal/infrastructure/pushchannel"
	"github.com/typeworld/typeworld-go/internal/protocol"
)

func TestReconciliationAddsServerSubscriptions(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	// Another app instance of the account holds a subscription we don't.
	e.central.mu.Lock()
	e.central.downloadResp["subscriptions"] = []string{e.endpoint.subscriptionURL()}
	e.central.mu.Unlock()

	var added string
	e.delegate.SubscriptionAdded = func(u string) { added = u }

	require.NoError(t, e.client.DownloadSubscriptions(context.Background()))

	subs, err := e.client.Subscriptions()
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, e.endpoint.unsecretURL(), subs[0].UnsecretURL())
	assert.Equal(t, "subsecret", subs[0].SecretKey())
	assert.Equal(t, e.endpoint.unsecretURL(), added)
}

func TestReconciliationDropsRemovedSubscriptions(t *testing.T) {
	e := newEnv(t)
	sub := addSubscription(t, e)
	require.NoError(t, sub.InstallFonts(context.Background(),
		[]protocol.FontRequest{{FontID: "font1"}}))
	path := installedFontPath(t, e, sub, "Regular", "1.0")

	e.login(t) // upload keeps the subscription alive through linking

	subs, err := e.client.Subscriptions()
	require.NoError(t, err)
	require.Len(t, subs, 1, "upload during linking must preserve local subscriptions")

	// The account dropped the subscription elsewhere.
	e.central.mu.Lock()
	e.central.uploadedURLs = nil
	e.central.downloadResp["subscriptions"] = []string{}
	e.central.mu.Unlock()

	require.NoError(t, e.client.DownloadSubscriptions(context.Background()))

	subs, err = e.client.Subscriptions()
	require.NoError(t, err)
	assert.Empty(t, subs)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestReconciliationConverges(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	e.central.mu.Lock()
	e.central.downloadResp["subscriptions"] = []string{e.endpoint.subscriptionURL()}
	e.central.mu.Unlock()

	require.NoError(t, e.client.DownloadSubscriptions(context.Background()))
	require.NoError(t, e.client.DownloadSubscriptions(context.Background()))

	subs, err := e.client.Subscriptions()
	require.NoError(t, err)
	assert.Len(t, subs, 1, "repeated reconciliation must be idempotent")
}

func TestReconciliationRefreshesOnNewerServerTimestamp(t *testing.T) {
	e := newEnv(t)
	sub := addSubscription(t, e)
	e.login(t)

	// Content changed at the publisher, announced through the server's
	// per-subscription clock.
	e.endpoint.mu.Lock()
	e.endpoint.versions = []string{"1.0", "2.0"}
	e.endpoint.mu.Unlock()

	e.central.mu.Lock()
	e.central.downloadResp["subscriptionTimestamps"] = map[string]int64{
		sub.ShortUnsecretURL(): 42,
	}
	e.central.mu.Unlock()

	require.NoError(t, e.client.DownloadSubscriptions(context.Background()))
	assert.Equal(t, int64(42), sub.ServerTimestamp())

	fonts, err := sub.InstallableFonts(context.Background(), false)
	require.NoError(t, err)
	font := fonts.Font("font1")
	require.NotNil(t, font)
	assert.Equal(t, "2.0", font.LatestVersion().Number)

	// An unchanged clock doesn't refetch.
	e.endpoint.resetCalls()
	require.NoError(t, e.client.DownloadSubscriptions(context.Background()))
	assert.Empty(t, e.endpoint.callLog())
}

func TestRevocationReleasesProtectedSeats(t *testing.T) {
	e := newEnv(t)
	e.endpoint.mu.Lock()
	e.endpoint.protected = true
	e.endpoint.mu.Unlock()

	sub := addSubscription(t, e)
	e.login(t)
	require.NoError(t, sub.InstallFonts(context.Background(),
		[]protocol.FontRequest{{FontID: "font1"}}))
	path := installedFontPath(t, e, sub, "Regular", "1.0")
	e.endpoint.resetCalls()

	e.central.mu.Lock()
	e.central.downloadResp["appInstanceIsRevoked"] = true
	e.central.mu.Unlock()

	require.NoError(t, e.client.DownloadSubscriptions(context.Background()))

	assert.True(t, e.client.AppInstanceIsRevoked())

	// the publisher learns the seats are gone, the file stays on disk
	// for the hosting app to clean up
	assert.Contains(t, e.endpoint.callLog(), "uninstallFonts",
		"revocation must release seats with the publisher")
	_, err := os.Stat(path)
	assert.NoError(t, err, "revocation leaves the files on disk")

	// the subscription itself survives
	subs, err2 := e.client.Subscriptions()
	require.NoError(t, err2)
	assert.Len(t, subs, 1)
}

func TestUnlinkReleasesProtectedSeats(t *testing.T) {
	e := newEnv(t)
	e.endpoint.mu.Lock()
	e.endpoint.protected = true
	e.endpoint.mu.Unlock()

	sub := addSubscription(t, e)
	e.login(t)
	require.NoError(t, sub.InstallFonts(context.Background(),
		[]protocol.FontRequest{{FontID: "font1"}}))
	path := installedFontPath(t, e, sub, "Regular", "1.0")
	e.endpoint.resetCalls()

	require.NoError(t, e.client.UnlinkUser(context.Background()))

	// a real removal: the publisher releases the seats and the files go
	assert.Contains(t, e.endpoint.callLog(), "uninstallFonts",
		"unlink must release seats with the publisher")
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "unlink removes protected font files")
	assert.Empty(t, e.client.User())
}

func TestInvitationsStored(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	var invitationsUpdated bool
	e.delegate.InvitationsUpdated = func() { invitationsUpdated = true }

	e.central.mu.Lock()
	e.central.downloadResp["pendingInvitations"] = []map[string]any{{
		"url":           "typeworld://json+https//inv1@x.com/",
		"publisherName": "Example Fonts",
	}}
	e.central.mu.Unlock()

	require.NoError(t, e.client.DownloadSubscriptions(context.Background()))

	pending := e.client.PendingInvitations()
	require.Len(t, pending, 1)
	assert.Equal(t, "typeworld://json+https//inv1@x.com/", pending[0].URL)
	assert.Equal(t, "Example Fonts", pending[0].PublisherName)
	assert.True(t, invitationsUpdated)
}

func TestAcceptInvitationRoundTrip(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	e.central.resetCalls()

	require.NoError(t, e.client.AcceptInvitation(context.Background(),
		"typeworld://json+https//inv1@x.com/"))

	log := e.central.callLog()
	assert.Contains(t, log, "acceptInvitations")
	assert.Contains(t, log, "downloadUserSubscriptions")
	assert.Equal(t, "typeworld://json+https//inv1@x.com/", e.central.formValue("acceptInvitations", "subscriptionURL"))
}

func TestPushSelfEchoIsIgnored(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	e.central.resetCalls()

	e.client.handleUserMessage(context.Background(), pushchannel.UserTopic("user1"),
		pushchannel.Message{
			Command:              pushchannel.CommandPullUpdates,
			SourceAnonymousAppID: e.client.AnonymousAppID(),
		})

	assert.Empty(t, e.central.callLog(), "own echo must not trigger reconciliation")
	assert.Empty(t, e.client.PendingCommands())
}

func TestPushFromOtherInstanceReconciles(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	e.central.resetCalls()

	var notified bool
	e.delegate.UserAccountUpdateNotificationReceived = func() { notified = true }

	e.client.handleUserMessage(context.Background(), pushchannel.UserTopic("user1"),
		pushchannel.Message{
			Command:              pushchannel.CommandPullUpdates,
			SourceAnonymousAppID: "some-other-app",
		})

	assert.True(t, notified)
	assert.Contains(t, e.central.callLog(), "downloadUserSubscriptions")
}

func TestSubscriptionPushTriggersUpdate(t *testing.T) {
	e := newEnv(t)
	sub := addSubscription(t, e)

	var updated string
	e.delegate.SubscriptionUpdated = func(u string) { updated = u }

	e.endpoint.mu.Lock()
	e.endpoint.versions = []string{"1.0", "2.0"}
	e.endpoint.mu.Unlock()

	e.client.handleSubscriptionMessage(context.Background(), sub.UnsecretURL(),
		pushchannel.Message{
			Command:              pushchannel.CommandSubscriptionUpdated,
			SourceAnonymousAppID: "publisher-app",
		})

	assert.Equal(t, sub.UnsecretURL(), updated)

	fonts, err := sub.InstallableFonts(context.Background(), false)
	require.NoError(t, err)
	font := fonts.Font("font1")
	require.NotNil(t, font)
	assert.Equal(t, "2.0", font.LatestVersion().Number)
}
