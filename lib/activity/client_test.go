package activity

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"activity-keeper/internal/components/telemetry"
	"activity-keeper/lib/activity/activitytest"

	_ "embed"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

//go:embed activity_page_test.html
var activityPageTest []byte

func TestFormToken(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(activityPageTest))
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		action string
		field  string
		expect string
		err    error
	}{
		{action: "/Activity/Login", field: DefaultTokenField, expect: "CfDJ8Kx3lNq0-login-token"},
		{action: "/Activity/Logout", field: DefaultTokenField, expect: "CfDJ8Kx3lNq0-logout-token"},
		// the misspelled field name some copies of the page used
		{action: "/Activity/Logout", field: "__RequestVerification_Token", err: ErrTokenNotFound},
		{action: "/Activity/Unknown", field: DefaultTokenField, err: ErrTokenNotFound},
	}

	for _, test := range cases {
		token, err := FormToken(doc, test.action, test.field)
		if test.err != nil {
			require.ErrorIs(t, err, test.err)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, test.expect, token)
	}
}

func newTestClient(t testing.TB, site *activitytest.Server) *Client {
	client, err := NewClient(ClientOptions{
		BaseUrl:                 site.URL,
		ActivityPath:            activitytest.ActivityPath,
		Timeout:                 time.Second * 5,
		DisableCloudflareBypass: true,
	}, &telemetry.Recorder{})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestLoginLogout(t *testing.T) {
	site := activitytest.NewServer("SLN8t5i")
	defer site.Close()
	client := newTestClient(t, site)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	require.NoError(t, client.Ping(ctx))

	err := client.Login(ctx, "SLN8t5i")
	require.NoError(t, err)
	require.True(t, site.LoggedIn())

	err = client.Logout(ctx)
	require.NoError(t, err)
	require.False(t, site.LoggedIn())

	_, logins, logouts := site.Counts()
	require.Equal(t, 1, logins)
	require.Equal(t, 1, logouts)
}

func TestLoginRejected(t *testing.T) {
	site := activitytest.NewServer("SLN8t5i")
	defer site.Close()
	client := newTestClient(t, site)

	err := client.Login(context.Background(), "wrong")
	require.ErrorIs(t, err, ErrRejected)
	require.ErrorContains(t, err, "Invalid access code.")
	require.False(t, site.LoggedIn())
}

func TestLoginWithoutPassword(t *testing.T) {
	site := activitytest.NewServer("SLN8t5i")
	defer site.Close()
	client := newTestClient(t, site)

	err := client.Login(context.Background(), "")
	require.ErrorIs(t, err, ErrNoPassword)

	gets, _, _ := site.Counts()
	require.Zero(t, gets)
}

func TestMissingToken(t *testing.T) {
	site := activitytest.NewServer("SLN8t5i")
	defer site.Close()
	site.SetOmitToken(true)
	client := newTestClient(t, site)

	err := client.Login(context.Background(), "SLN8t5i")
	require.ErrorIs(t, err, ErrTokenNotFound)

	// logging out while logged out also has no logout form to scrape
	site.SetOmitToken(false)
	err = client.Logout(context.Background())
	require.ErrorIs(t, err, ErrTokenNotFound)

	_, logins, logouts := site.Counts()
	require.Zero(t, logins)
	require.Zero(t, logouts)
}

func TestSiteDown(t *testing.T) {
	site := activitytest.NewServer("SLN8t5i")
	defer site.Close()
	site.SetDown(true)

	rec := &telemetry.Recorder{}
	client, err := NewClient(ClientOptions{
		BaseUrl:                 site.URL,
		ActivityPath:            activitytest.ActivityPath,
		DisableCloudflareBypass: true,
	}, rec)
	require.NoError(t, err)

	err = client.Ping(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
	require.Len(t, rec.Reports("warning"), 1)

	err = client.Login(context.Background(), "SLN8t5i")
	require.ErrorIs(t, err, ErrUnavailable)
	require.Len(t, rec.Reports("broken"), 1)

	site.SetDown(false)
	require.NoError(t, client.Ping(context.Background()))
}

func TestPostAnsweredWithError(t *testing.T) {
	var posts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "text/html; charset=utf-8")
		w.Write(activityPageTest)
	})
	// an anti-forgery rejection from ASP.NET is a bare 400
	mux.HandleFunc(DefaultLoginPath, func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		http.Error(w, "Bad Request", http.StatusBadRequest)
	})
	mux.HandleFunc(DefaultLogoutPath, func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	rec := &telemetry.Recorder{}
	client, err := NewClient(ClientOptions{
		BaseUrl:                 server.URL,
		ActivityPath:            "/",
		DisableCloudflareBypass: true,
	}, rec)
	require.NoError(t, err)

	err = client.Login(context.Background(), "SLN8t5i")
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorContains(t, err, "400")

	err = client.Logout(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorContains(t, err, "500")

	require.EqualValues(t, 2, posts.Load())
	require.Len(t, rec.Reports("broken"), 2)
}

func TestPingUnreachable(t *testing.T) {
	site := activitytest.NewServer("SLN8t5i")
	client := newTestClient(t, site)
	site.Close()

	err := client.Ping(context.Background())
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrUnavailable))
}

func TestNewClientDefaults(t *testing.T) {
	client, err := NewClient(ClientOptions{}, &telemetry.Recorder{})
	require.NoError(t, err)

	opts := client.Options()
	require.Equal(t, DefaultBaseUrl, client.BaseUrl.String())
	require.Equal(t, DefaultActivityPath, opts.ActivityPath)
	require.Equal(t, DefaultLoginPath, opts.LoginPath)
	require.Equal(t, DefaultLogoutPath, opts.LogoutPath)
	require.Equal(t, DefaultTimeout, opts.Timeout)

	_, err = NewClient(ClientOptions{BaseUrl: "not a url"}, &telemetry.Recorder{})
	require.Error(t, err)
}
