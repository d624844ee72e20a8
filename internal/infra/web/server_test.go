package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/terminalpixel/postrchild/internal/config"
	"github.com/terminalpixel/postrchild/internal/domain/model"
)

type memSessions struct {
	deleted []string
}

func (m *memSessions) Get(_ context.Context, _ model.Identity) (*model.Session, error) {
	return nil, nil
}
func (m *memSessions) Save(_ context.Context, _ model.Identity, _ *model.Session) error { return nil }
func (m *memSessions) Delete(_ context.Context, id model.Identity) error {
	m.deleted = append(m.deleted, id.Key())
	return nil
}

type memCounter struct{ n int64 }

func (m *memCounter) Count(_ context.Context) (int64, error) { return m.n, nil }

func newTestServer() (*Server, *memSessions) {
	sessions := &memSessions{}
	cfg := &config.WebConfig{
		Port:          8080,
		AdminKey:      "letmein",
		JWTSecret:     "0123456789abcdef0123456789abcdef",
		SessionCookie: "postrchild_admin",
		SessionTTL:    30 * time.Minute,
	}
	return NewServer(cfg, sessions, &memCounter{n: 7}, false, zerolog.Nop()), sessions
}

func TestAuthCodePageShowsCode(t *testing.T) {
	s, _ := newTestServer()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth?code=abc123", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "abc123") {
		t.Fatal("code not rendered")
	}
}

func TestAuthCodePageEscapesMarkup(t *testing.T) {
	s, _ := newTestServer()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth?code=%3Cscript%3Ex%3C/script%3E", nil))

	body := rec.Body.String()
	if strings.Contains(body, "<script>") {
		t.Fatal("code rendered unescaped")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Fatal("escaped code missing from page")
	}
}

func TestAuthCodePageWithoutCode(t *testing.T) {
	s, _ := newTestServer()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth", nil))

	if !strings.Contains(rec.Body.String(), "No code arrived") {
		t.Fatal("missing fallback text")
	}
}

func login(t *testing.T, s *Server, key string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader(`{"key":"`+key+`"}`))
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		return rec.Code, ""
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return rec.Code, body.Token
}

func TestLoginRejectsWrongKey(t *testing.T) {
	s, _ := newTestServer()
	if code, _ := login(t, s, "wrong"); code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", code)
	}
}

func TestStatsRequiresToken(t *testing.T) {
	s, _ := newTestServer()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestStatsWithToken(t *testing.T) {
	s, _ := newTestServer()
	code, token := login(t, s, "letmein")
	if code != http.StatusOK {
		t.Fatalf("login status = %d", code)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}
	var body map[string]int64
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["accounts"] != 7 {
		t.Fatalf("accounts = %d", body["accounts"])
	}
}

func TestLoginSetsConfiguredCookie(t *testing.T) {
	s, _ := newTestServer()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader(`{"key":"letmein"}`))
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %v", cookies)
	}
	c := cookies[0]
	if c.Name != "postrchild_admin" {
		t.Fatalf("cookie name = %q, want the configured one", c.Name)
	}
	if c.MaxAge != int((30 * time.Minute).Seconds()) {
		t.Fatalf("cookie max-age = %d, want the configured ttl", c.MaxAge)
	}
	if !c.HttpOnly {
		t.Fatal("cookie is not HttpOnly")
	}

	// The cookie alone must authenticate admin requests.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.AddCookie(c)
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats with cookie status = %d", rec.Code)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	s, _ := newTestServer()
	_, token := login(t, s, "letmein")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "postrchild_admin" {
		t.Fatalf("cookies = %v", cookies)
	}
	if cookies[0].MaxAge >= 0 {
		t.Fatalf("cookie max-age = %d, want expired", cookies[0].MaxAge)
	}
}

func TestAdminDeletesSession(t *testing.T) {
	s, sessions := newTestServer()
	_, token := login(t, s, "letmein")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/u9/c4", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(sessions.deleted) != 1 || sessions.deleted[0] != "u9:c4" {
		t.Fatalf("deleted = %v", sessions.deleted)
	}
}
