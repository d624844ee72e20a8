package dialog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/terminalpixel/postrchild/internal/domain/model"
	"github.com/terminalpixel/postrchild/internal/indieauth"
	"github.com/terminalpixel/postrchild/internal/infra/i18n"
	"github.com/terminalpixel/postrchild/internal/micropub"
	"github.com/terminalpixel/postrchild/internal/usecase"
)

// fakeSessionRepo round-trips sessions through JSON, same as the real
// store, so state that does not survive serialization fails here too.
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string][]byte
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string][]byte{}}
}

func (r *fakeSessionRepo) Get(_ context.Context, id model.Identity) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.sessions[id.Key()]
	if !ok {
		return nil, nil
	}
	var s model.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *fakeSessionRepo) Save(_ context.Context, id model.Identity, s *model.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id.Key()] = raw
	return nil
}

func (r *fakeSessionRepo) Delete(_ context.Context, id model.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id.Key())
	return nil
}

func (r *fakeSessionRepo) has(id model.Identity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id.Key()]
	return ok
}

func testTranslator(t *testing.T) *i18n.Translator {
	t.Helper()
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		t.Fatalf("loading translator: %v", err)
	}
	return tr
}

func testDeps(t *testing.T, repo *fakeSessionRepo) *Deps {
	t.Helper()
	log := zerolog.Nop()
	return &Deps{
		Auth:     usecase.NewAuthUseCase(indieauth.New(5*time.Second, log), "https://bot.example/", "https://bot.example/auth", log),
		Publish:  usecase.NewPublishUseCase(micropub.New(5*time.Second, log), log),
		Media:    usecase.NewMediaFetcher(5*time.Second, log),
		Sessions: repo,
		T:        testTranslator(t),
		Log:      log,
	}
}

var testID = model.Identity{UserID: "u1", ConversationID: "c1"}

func inbound(text string) *model.InboundMessage {
	return &model.InboundMessage{Identity: testID, Text: text, Platform: "telegram"}
}

func authedSession(mpEndpoint string) *model.Session {
	return &model.Session{Auth: model.AuthState{
		Me:                    "https://example.com/",
		AuthorizationEndpoint: "https://example.com/auth",
		TokenEndpoint:         "https://example.com/token",
		MicropubEndpoint:      mpEndpoint,
		AccessToken:           "tok",
	}}
}

// harness wires a dispatcher against an in-memory store and a test
// micropub endpoint.
type harness struct {
	t    *testing.T
	d    *Dispatcher
	repo *fakeSessionRepo
}

func newHarness(t *testing.T, mp http.Handler) (*harness, string) {
	t.Helper()
	repo := newFakeSessionRepo()
	h := &harness{t: t, d: NewDispatcher(testDeps(t, repo), nil), repo: repo}
	if mp == nil {
		return h, ""
	}
	srv := httptest.NewServer(mp)
	t.Cleanup(srv.Close)
	return h, srv.URL
}

func (h *harness) authenticate(endpoint string) {
	h.t.Helper()
	if err := h.repo.Save(context.Background(), testID, authedSession(endpoint)); err != nil {
		h.t.Fatalf("seeding session: %v", err)
	}
}

func (h *harness) send(text string) []model.OutboundMessage {
	h.t.Helper()
	out, err := h.d.Route(context.Background(), inbound(text))
	if err != nil {
		h.t.Fatalf("routing %q: %v", text, err)
	}
	return out
}

func (h *harness) session() *model.Session {
	h.t.Helper()
	s, err := h.repo.Get(context.Background(), testID)
	if err != nil {
		h.t.Fatalf("loading session: %v", err)
	}
	if s == nil {
		s = &model.Session{}
	}
	return s
}

func requireSaid(t *testing.T, out []model.OutboundMessage, want string) {
	t.Helper()
	for _, m := range out {
		if strings.Contains(m.Text, want) {
			return
		}
	}
	t.Fatalf("no reply contains %q, got %v", want, out)
}

func requireNotSaid(t *testing.T, out []model.OutboundMessage, avoid string) {
	t.Helper()
	for _, m := range out {
		if strings.Contains(m.Text, avoid) {
			t.Fatalf("reply %q contains %q", m.Text, avoid)
		}
	}
}
