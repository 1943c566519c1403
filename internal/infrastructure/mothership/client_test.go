package mothership

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typeworld/typeworld-go/internal/shared/errors"
	"github.com/typeworld/typeworld-go/internal/shared/logger"
	"github.com/typeworld/typeworld-go/internal/shared/version"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, logger.NewLogger())
}

func TestPostSendsFormAndDecodes(t *testing.T) {
	var seen url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		seen = r.PostForm
		w.Write([]byte(`{"response": "success", "anonymousUserID": "u1", "secretKey": "k1"}`))
	})

	resp, err := c.LogInUserAccount(context.Background(), "a@b.com", "pass")
	require.NoError(t, err)
	assert.Equal(t, "u1", resp.AnonymousUserID)
	assert.Equal(t, "k1", resp.SecretKey)

	assert.Equal(t, "a@b.com", seen.Get("email"))
	assert.Equal(t, version.ClientVersion, seen.Get("clientVersion"))
	assert.Empty(t, seen.Get("testScenario"))
}

func TestPostSurfacesResponseCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response": "userUnknown"}`))
	})

	_, err := c.LogInUserAccount(context.Background(), "a@b.com", "wrong")
	require.Error(t, err)
	assert.True(t, errors.IsResponse(err, errors.CodeUserUnknown))
}

func TestPostRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"response": "success"}`))
	})

	err := c.ResendEmailVerification(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPostUnreachableServer(t *testing.T) {
	c := New("http://127.0.0.1:1", logger.NewLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.ResendEmailVerification(ctx, "a@b.com")
	require.Error(t, err)
	assert.True(t, errors.IsResponse(err, errors.CodeServerNotReachable))
}

func TestTestScenarioParameter(t *testing.T) {
	var seen url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		seen = r.PostForm
		w.Write([]byte(`{"response": "success"}`))
	})

	c.SetTestScenario("simulateCentralServerNotReachable")
	require.NoError(t, c.ResendEmailVerification(context.Background(), "a@b.com"))
	assert.Equal(t, "simulateCentralServerNotReachable", seen.Get("testScenario"))

	c.SetTestScenario("")
	require.NoError(t, c.ResendEmailVerification(context.Background(), "a@b.com"))
	assert.Empty(t, seen.Get("testScenario"))
}

func TestRedact(t *testing.T) {
	params := url.Values{}
	params.Set("anonymousAppID", "app1")
	params.Set("secretKey", "verysecret")
	params.Set("subscriptionSecret", "alsosecret")
	params.Set("SecretKey", "mixedcase")
	params.Set("email", "a@b.com")

	redacted := Redact(params)
	assert.Equal(t, "app1", redacted["anonymousAppID"])
	assert.Equal(t, "*****", redacted["secretKey"])
	assert.Equal(t, "*****", redacted["subscriptionSecret"])
	assert.Equal(t, "*****", redacted["SecretKey"])
	assert.Equal(t, "a@b.com", redacted["email"])
}
