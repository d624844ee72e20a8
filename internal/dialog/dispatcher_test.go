package dialog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/terminalpixel/postrchild/internal/domain/model"
)

// capturingEndpoint records micropub requests and answers 201.
type capturingEndpoint struct {
	mu       sync.Mutex
	forms    []url.Values
	jsons    []map[string]any
	location string
	status   int
	body     string
}

func newCapturingEndpoint() *capturingEndpoint {
	return &capturingEndpoint{location: "https://example.com/posts/1"}
}

func (c *capturingEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.Header.Get("Authorization") != "Bearer tok" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if c.status != 0 {
		w.WriteHeader(c.status)
		fmt.Fprint(w, c.body)
		return
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var m map[string]any
		if err := json.NewDecoder(r.Body).Decode(&m); err == nil {
			c.jsons = append(c.jsons, m)
		}
		w.WriteHeader(http.StatusOK)
		return
	}
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		r.ParseForm()
		c.forms = append(c.forms, r.PostForm)
	} else {
		c.forms = append(c.forms, url.Values(r.MultipartForm.Value))
	}
	if r.PostFormValue("action") != "" {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("Location", c.location)
	w.WriteHeader(http.StatusCreated)
}

func (c *capturingEndpoint) lastForm(t *testing.T) url.Values {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.forms) == 0 {
		t.Fatal("no form request captured")
	}
	return c.forms[len(c.forms)-1]
}

func TestQuickPostPublishes(t *testing.T) {
	mp := newCapturingEndpoint()
	h, endpoint := newHarness(t, mp)
	h.authenticate(endpoint)

	out := h.send("post Hello world")

	requireSaid(t, out, "Post successful")
	form := mp.lastForm(t)
	if got := form.Get("h"); got != "entry" {
		t.Fatalf("h = %q, want entry", got)
	}
	if got := form.Get("content"); got != "Hello world" {
		t.Fatalf("content = %q", got)
	}
	if top := h.session().Top(); top != nil {
		t.Fatalf("dialog still active after publish: %+v", top)
	}
}

func TestPostPromptsWhenBare(t *testing.T) {
	mp := newCapturingEndpoint()
	h, endpoint := newHarness(t, mp)
	h.authenticate(endpoint)

	out := h.send("post")
	requireSaid(t, out, "What do you want to post?")
	if h.session().Top() == nil {
		t.Fatal("no suspended dialog after prompt")
	}

	out = h.send("a note from a prompt")
	requireSaid(t, out, "Post successful")
	if got := mp.lastForm(t).Get("content"); got != "a note from a prompt" {
		t.Fatalf("content = %q", got)
	}
}

func TestPostRequiresAuth(t *testing.T) {
	h, _ := newHarness(t, nil)

	out := h.send("post Hello")

	requireSaid(t, out, "access token")
	if h.session().Top() != nil {
		t.Fatal("dialog started without credentials")
	}
}

func TestPublishFailureReportsAndKeepsAuth(t *testing.T) {
	mp := newCapturingEndpoint()
	mp.status = http.StatusInternalServerError
	mp.body = "boom"
	h, endpoint := newHarness(t, mp)
	h.authenticate(endpoint)

	out := h.send("post Hello")

	requireSaid(t, out, "status 500")
	requireSaid(t, out, "boom")
	sess := h.session()
	if !sess.Auth.Authenticated() {
		t.Fatal("auth state lost after a failed publish")
	}
	if sess.Top() != nil {
		t.Fatal("dialog still active after failed publish")
	}
}

func TestLongNoteAsksForConfirmation(t *testing.T) {
	mp := newCapturingEndpoint()
	h, endpoint := newHarness(t, mp)
	h.authenticate(endpoint)

	long := strings.Repeat("a", twitterLimit+10)
	out := h.send("post " + long)
	requireSaid(t, out, "10 characters too long")
	requireNotSaid(t, out, "Post successful")

	out = h.send("no")
	requireSaid(t, out, "cancelled")
	if len(mp.forms) != 0 {
		t.Fatal("declined note was still published")
	}

	out = h.send("post " + long)
	out = h.send("yes")
	requireSaid(t, out, "Post successful")
	if got := mp.lastForm(t).Get("content"); got != long {
		t.Fatalf("content length = %d", len(got))
	}
}

func TestNoteLengthCountsRunesNotBytes(t *testing.T) {
	mp := newCapturingEndpoint()
	h, endpoint := newHarness(t, mp)
	h.authenticate(endpoint)

	// 120 runes but 480 bytes; must publish without a confirmation.
	note := strings.Repeat("\U0001F389", twitterLimit-20)
	out := h.send("post " + note)

	requireNotSaid(t, out, "too long")
	requireSaid(t, out, "Post successful")
	if got := mp.lastForm(t).Get("content"); got != note {
		t.Fatalf("content = %q", got)
	}
}

func TestJournalAddsFixedCategories(t *testing.T) {
	mp := newCapturingEndpoint()
	h, endpoint := newHarness(t, mp)
	h.authenticate(endpoint)

	out := h.send("journal dear diary")

	requireSaid(t, out, "Post successful")
	form := mp.lastForm(t)
	cats := form["category[]"]
	if len(cats) != 2 || cats[0] != "journal" || cats[1] != "private" {
		t.Fatalf("category[] = %v", cats)
	}
	if got := form.Get("content"); got != "dear diary" {
		t.Fatalf("content = %q", got)
	}
}

func TestCancelAbandonsActiveDialog(t *testing.T) {
	mp := newCapturingEndpoint()
	h, endpoint := newHarness(t, mp)
	h.authenticate(endpoint)

	h.send("advancedpost")
	if h.session().Top() == nil {
		t.Fatal("no suspended dialog")
	}

	out := h.send("cancel")
	requireSaid(t, out, "cancelled")
	if h.session().Top() != nil {
		t.Fatal("dialog survived cancel")
	}
}

func TestSlashCommandReplacesActiveDialog(t *testing.T) {
	mp := newCapturingEndpoint()
	h, endpoint := newHarness(t, mp)
	h.authenticate(endpoint)

	h.send("post")
	out := h.send("/help")

	requireSaid(t, out, "Here's what I can do")
	if h.session().Top() != nil {
		t.Fatal("old dialog survived a slash command")
	}
}

func TestActiveDialogConsumesCommandLikeText(t *testing.T) {
	mp := newCapturingEndpoint()
	h, endpoint := newHarness(t, mp)
	h.authenticate(endpoint)

	h.send("post")
	out := h.send("help me move this couch")

	requireSaid(t, out, "Post successful")
	if got := mp.lastForm(t).Get("content"); got != "help me move this couch" {
		t.Fatalf("content = %q", got)
	}
}

func TestUnmatchedMessageFallsBack(t *testing.T) {
	h, _ := newHarness(t, nil)
	out := h.send("what's the weather like")
	requireSaid(t, out, "didn't understand")
}

func TestLinkAttachmentOffersInteractions(t *testing.T) {
	mp := newCapturingEndpoint()
	h, endpoint := newHarness(t, mp)
	h.authenticate(endpoint)

	msg := inbound("")
	msg.Attachments = []model.Attachment{{Kind: model.AttachmentLink, URL: "https://other.site/post/9"}}
	out, err := h.d.Route(context.Background(), msg)
	if err != nil {
		t.Fatal(err)
	}
	requireSaid(t, out, "What do you want to do with https://other.site/post/9")

	out = h.send("2")
	requireSaid(t, out, "Post successful")
	if got := mp.lastForm(t).Get(model.PropLikeOf); got != "https://other.site/post/9" {
		t.Fatalf("like-of = %q", got)
	}
}

func TestOwnLinkGoesToEdit(t *testing.T) {
	mp := newCapturingEndpoint()
	h, endpoint := newHarness(t, mp)
	h.authenticate(endpoint)

	msg := inbound("")
	msg.Attachments = []model.Attachment{{Kind: model.AttachmentLink, URL: "https://example.com/posts/7"}}
	out, err := h.d.Route(context.Background(), msg)
	if err != nil {
		t.Fatal(err)
	}
	requireSaid(t, out, "one of your posts")

	h.send("2") // update name
	out = h.send("A new title")
	requireSaid(t, out, "updated https://example.com/posts/7")

	if len(mp.jsons) != 1 {
		t.Fatalf("json requests = %d", len(mp.jsons))
	}
	envelope := mp.jsons[0]
	if envelope["action"] != "update" || envelope["url"] != "https://example.com/posts/7" {
		t.Fatalf("envelope = %v", envelope)
	}
	replace := envelope["replace"].(map[string]any)
	vals := replace[model.PropName].([]any)
	if len(vals) != 1 || vals[0] != "A new title" {
		t.Fatalf("replace name = %v", vals)
	}
}

func TestDeleteQuickFormConfirms(t *testing.T) {
	mp := newCapturingEndpoint()
	h, endpoint := newHarness(t, mp)
	h.authenticate(endpoint)

	out := h.send("delete https://example.com/posts/3")
	requireSaid(t, out, "Are you sure you want to delete https://example.com/posts/3")
	if len(mp.forms) != 0 {
		t.Fatal("delete sent before confirmation")
	}

	out = h.send("yes")
	requireSaid(t, out, "deleted")
	form := mp.lastForm(t)
	if form.Get("action") != "delete" || form.Get("url") != "https://example.com/posts/3" {
		t.Fatalf("delete form = %v", form)
	}
}

func TestRSVPRepromptsOnBadValue(t *testing.T) {
	mp := newCapturingEndpoint()
	h, endpoint := newHarness(t, mp)
	h.authenticate(endpoint)

	h.send("rsvp https://other.site/event")
	out := h.send("perhaps")
	requireSaid(t, out, "I need one of")

	out = h.send("maybe")
	requireSaid(t, out, "Post successful")
	form := mp.lastForm(t)
	if got := form.Get(model.PropRSVP); got != "maybe" {
		t.Fatalf("rsvp = %q", got)
	}
	if got := form.Get(model.PropInReplyTo); got != "https://other.site/event" {
		t.Fatalf("in-reply-to = %q", got)
	}
}

func TestLogoutForgetsSession(t *testing.T) {
	mp := newCapturingEndpoint()
	h, endpoint := newHarness(t, mp)
	h.authenticate(endpoint)

	out := h.send("logout")
	requireSaid(t, out, "forgotten everything")
	if h.repo.has(testID) {
		t.Fatal("session still stored after logout")
	}

	out = h.send("post Hello")
	requireSaid(t, out, "access token")
}

func TestAuthDialogFlow(t *testing.T) {
	mux := http.NewServeMux()
	var site *httptest.Server
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `<html><head>
			<link rel="authorization_endpoint" href="/indieauth">
			<link rel="token_endpoint" href="/token">
			<link rel="micropub" href="/micropub">
			</head><body></body></html>`)
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostForm.Get("code") != "code123" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, "error=invalid_grant")
			return
		}
		vals := url.Values{"me": {site.URL + "/"}, "access_token": {"tok99"}}
		fmt.Fprint(w, vals.Encode())
	})
	site = httptest.NewServer(mux)
	defer site.Close()

	h, _ := newHarness(t, nil)

	out := h.send("authenticate")
	requireSaid(t, out, "What is your domain?")

	out = h.send(site.URL)
	requireSaid(t, out, "visit this link")
	requireSaid(t, out, "Paste the code")

	out = h.send("code123")
	requireSaid(t, out, "ready to send micropub requests")

	sess := h.session()
	if !sess.Auth.Authenticated() {
		t.Fatal("session not authenticated after flow")
	}
	if sess.Auth.AccessToken != "tok99" {
		t.Fatalf("token = %q", sess.Auth.AccessToken)
	}
	if want := site.URL + "/micropub"; sess.Auth.MicropubEndpoint != want {
		t.Fatalf("micropub endpoint = %q, want %q", sess.Auth.MicropubEndpoint, want)
	}
}

func TestAuthDialogBadCodeSurfacesBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><head>
			<link rel="authorization_endpoint" href="/indieauth">
			<link rel="token_endpoint" href="/token">
			<link rel="micropub" href="/micropub">
			</head></html>`)
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "error=invalid_grant")
	})
	site := httptest.NewServer(mux)
	defer site.Close()

	h, _ := newHarness(t, nil)
	h.send("authenticate")
	h.send(site.URL)
	out := h.send("wrong")

	requireSaid(t, out, "error verifying your code")
	requireSaid(t, out, "invalid_grant")
	if h.session().Auth.Authenticated() {
		t.Fatal("session authenticated despite failed exchange")
	}
}

func TestDiscoveryFailureReported(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><head><link rel="micropub" href="/micropub"></head></html>`)
	}))
	defer site.Close()

	h, _ := newHarness(t, nil)
	h.send("authenticate")
	out := h.send(site.URL)

	requireSaid(t, out, "missing a required endpoint")
	if h.session().Top() != nil {
		t.Fatal("auth dialog still active after discovery failure")
	}
}

func TestSyndicationSelection(t *testing.T) {
	mux := http.NewServeMux()
	var captured url.Values
	mux.HandleFunc("/micropub", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"syndicate-to":[{"uid":"https://twitter.example/acct","name":"Twitter"},{"uid":"https://mastodon.example/acct","name":"Mastodon"}]}`)
			return
		}
		r.ParseForm()
		captured = r.PostForm
		w.Header().Set("Location", "https://example.com/posts/5")
		w.WriteHeader(http.StatusCreated)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	h, _ := newHarness(t, nil)
	h.authenticate(srv.URL + "/micropub")

	h.send("advancedpost")
	h.send("entry")                 // type
	h.send("skip")                  // name
	h.send("skip")                  // summary
	h.send("hello from the wizard") // content
	h.send("skip")                  // published
	h.send("skip")                  // category
	h.send("skip")                  // in-reply-to
	h.send("skip")                  // like-of
	h.send("skip")                  // repost-of
	out := h.send("no")             // photo confirm
	requireSaid(t, out, "Add syndication options")

	out = h.send("2 7")
	requireSaid(t, out, "Post successful")
	targets := captured["mp-syndicate-to[]"]
	if len(targets) != 1 || targets[0] != "https://mastodon.example/acct" {
		t.Fatalf("mp-syndicate-to[] = %v", targets)
	}
	if got := captured.Get("content"); got != "hello from the wizard" {
		t.Fatalf("content = %q", got)
	}
}

func TestConcurrentRoutesSameIdentitySerialized(t *testing.T) {
	mp := newCapturingEndpoint()
	h, endpoint := newHarness(t, mp)
	h.authenticate(endpoint)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.d.Route(context.Background(), inbound(fmt.Sprintf("post message %d", i)))
		}(i)
	}
	wg.Wait()

	mp.mu.Lock()
	defer mp.mu.Unlock()
	if len(mp.forms) != 8 {
		t.Fatalf("published %d posts, want 8", len(mp.forms))
	}
}
