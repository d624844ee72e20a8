package indieauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/terminalpixel/postrchild/internal/domain"
	"github.com/terminalpixel/postrchild/internal/domain/model"
)

const sitePage = `<!DOCTYPE html>
<html>
<head>
<link rel="authorization_endpoint" href="https://auth.example.com/authorize">
<link rel="token_endpoint" href="https://auth.example.com/token">
<link rel="micropub" href="/micropub">
</head>
<body><p>hi</p></body>
</html>`

func testClient() *Client {
	return New(5*time.Second, zerolog.Nop())
}

func TestDiscover(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sitePage))
	}))
	defer srv.Close()

	state, err := testClient().Discover(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if state.AuthorizationEndpoint != "https://auth.example.com/authorize" {
		t.Errorf("authorization endpoint = %q", state.AuthorizationEndpoint)
	}
	if state.TokenEndpoint != "https://auth.example.com/token" {
		t.Errorf("token endpoint = %q", state.TokenEndpoint)
	}
	// Relative hrefs resolve against the site URL.
	if state.MicropubEndpoint != srv.URL+"/micropub" {
		t.Errorf("micropub endpoint = %q", state.MicropubEndpoint)
	}
	if state.Me != srv.URL {
		t.Errorf("me = %q", state.Me)
	}
}

func TestDiscoverMissingRelIsFatal(t *testing.T) {
	page := strings.Replace(sitePage, `<link rel="micropub" href="/micropub">`, "", 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	_, err := testClient().Discover(context.Background(), srv.URL)
	var derr *domain.DiscoveryError
	if !errors.As(err, &derr) {
		t.Fatalf("want DiscoveryError, got %v", err)
	}
}

func TestDiscoverEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	_, err := testClient().Discover(context.Background(), srv.URL)
	var derr *domain.DiscoveryError
	if !errors.As(err, &derr) {
		t.Fatalf("want DiscoveryError, got %v", err)
	}
}

func TestDiscoverAnchorRel(t *testing.T) {
	page := `<html><body>
<a rel="authorization_endpoint" href="https://a.example/auth">auth</a>
<a rel="token_endpoint" href="https://a.example/token">token</a>
<a rel="micropub" href="https://a.example/mp">mp</a>
</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	state, err := testClient().Discover(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if state.MicropubEndpoint != "https://a.example/mp" {
		t.Errorf("micropub endpoint = %q", state.MicropubEndpoint)
	}
}

func TestBuildAuthorizationURL(t *testing.T) {
	auth := model.AuthState{
		Me:                    "https://example.com",
		AuthorizationEndpoint: "https://auth.example.com/authorize",
	}
	raw := testClient().BuildAuthorizationURL(auth, "https://bot.example", "https://bot.example/auth")
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q := parsed.Query()
	want := map[string]string{
		"me":            "https://example.com",
		"client_id":     "https://bot.example",
		"redirect_uri":  "https://bot.example/auth",
		"response_type": "code",
		"scope":         Scope,
	}
	for k, v := range want {
		if got := q[k]; len(got) != 1 || got[0] != v {
			t.Errorf("param %s = %v, want exactly [%q]", k, got, v)
		}
	}
}

func TestExchangeCode(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotForm = r.PostForm
		w.Write([]byte("me=https%3A%2F%2Fexample.com&access_token=tok123&scope=create"))
	}))
	defer srv.Close()

	auth := model.AuthState{Me: "https://example.com", TokenEndpoint: srv.URL}
	token, err := testClient().ExchangeCode(context.Background(), auth, "code42", "https://bot.example", "https://bot.example/auth")
	if err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}
	if token != "tok123" {
		t.Errorf("token = %q", token)
	}
	for k, v := range map[string]string{
		"me": "https://example.com", "code": "code42", "scope": Scope,
		"client_id": "https://bot.example", "redirect_uri": "https://bot.example/auth",
	} {
		if gotForm.Get(k) != v {
			t.Errorf("form %s = %q, want %q", k, gotForm.Get(k), v)
		}
	}
}

func TestExchangeCodeFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-200", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadRequest) }},
		{"missing me", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("access_token=tok")) }},
		{"missing token", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("me=https%3A%2F%2Fexample.com")) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			auth := model.AuthState{Me: "https://example.com", TokenEndpoint: srv.URL}
			_, err := testClient().ExchangeCode(context.Background(), auth, "c", "id", "uri")
			var terr *domain.TokenExchangeError
			if !errors.As(err, &terr) {
				t.Fatalf("want TokenExchangeError, got %v", err)
			}
		})
	}
}
