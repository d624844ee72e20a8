package dialog

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/terminalpixel/postrchild/internal/clean"
	"github.com/terminalpixel/postrchild/internal/domain/model"
	"github.com/terminalpixel/postrchild/internal/infra/metrics"
)

// Locker serializes processing across instances sharing one session
// store. Nil means in-process serialization only.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// intent maps a message pattern to a dialog. Ordering matters:
// specific patterns (quick forms) come before generic ones.
type intent struct {
	re     *regexp.Regexp
	dialog string
	seed   func(m *model.InboundMessage, match []string) Seed
}

// Dispatcher routes inbound messages: an active frame consumes the
// message, otherwise the intent table picks a dialog to start.
// Processing for one identity is strictly serialized.
type Dispatcher struct {
	engine  *Engine
	deps    *Deps
	intents []intent
	locker  Locker
	log     zerolog.Logger

	mu    sync.Mutex
	perID map[string]*sync.Mutex
}

func NewDispatcher(deps *Deps, locker Locker) *Dispatcher {
	d := &Dispatcher{
		engine: NewEngine(deps, All()...),
		deps:   deps,
		locker: locker,
		log:    deps.Log.With().Str("component", "dispatcher").Logger(),
		perID:  map[string]*sync.Mutex{},
	}
	d.intents = buildIntents()
	return d
}

func buildIntents() []intent {
	seedContent := func(m *model.InboundMessage, match []string) Seed {
		text := clean.Text(match[1], m.Platform)
		if text == "" {
			return nil
		}
		return SeedDraftProp(model.PropContent, text)
	}
	seedURLArg := func(_ *model.InboundMessage, match []string) Seed {
		if strings.TrimSpace(match[1]) == "" {
			return nil
		}
		return SeedURL(match[1])
	}
	seedProp := func(key string) func(m *model.InboundMessage, match []string) Seed {
		return func(_ *model.InboundMessage, match []string) Seed {
			if strings.TrimSpace(match[1]) == "" {
				return nil
			}
			return SeedDraftProp(key, clean.URL(match[1]))
		}
	}
	return []intent{
		{re: regexp.MustCompile(`(?i)^(?:authenticate|authorize|auth)\b`), dialog: "auth"},
		{re: regexp.MustCompile(`(?i)^post\s+(.+)$`), dialog: "instant-note", seed: seedContent},
		{re: regexp.MustCompile(`(?i)^post\b`), dialog: "instant-note"},
		{re: regexp.MustCompile(`(?i)^journal\s+(.+)$`), dialog: "instant-journal", seed: seedContent},
		{re: regexp.MustCompile(`(?i)^journal\b`), dialog: "instant-journal"},
		{re: regexp.MustCompile(`(?i)^advancedpost\b`), dialog: "advanced-post"},
		{re: regexp.MustCompile(`(?i)^reply\s*(\S*)$`), dialog: "reply", seed: seedProp(model.PropInReplyTo)},
		{re: regexp.MustCompile(`(?i)^like\s*(\S*)$`), dialog: "like", seed: seedProp(model.PropLikeOf)},
		{re: regexp.MustCompile(`(?i)^repost\s*(\S*)$`), dialog: "repost", seed: seedProp(model.PropRepostOf)},
		{re: regexp.MustCompile(`(?i)^rsvp\s*(\S*)$`), dialog: "rsvp", seed: seedProp(model.PropInReplyTo)},
		{re: regexp.MustCompile(`(?i)^photo\b`), dialog: "photo"},
		{re: regexp.MustCompile(`(?i)^delete\s*(\S*)$`), dialog: "delete", seed: seedURLArg},
		{re: regexp.MustCompile(`(?i)^undelete\s*(\S*)$`), dialog: "undelete", seed: seedURLArg},
		{re: regexp.MustCompile(`(?i)^edit\s*(\S*)$`), dialog: "edit", seed: seedURLArg},
		{re: regexp.MustCompile(`(?i)^help\b`), dialog: "help"},
		{re: regexp.MustCompile(`(?i)^info\b`), dialog: "info"},
	}
}

var logoutRe = regexp.MustCompile(`(?i)^logout\b`)

// Route processes one inbound message and returns the replies.
func (d *Dispatcher) Route(ctx context.Context, msg *model.InboundMessage) ([]model.OutboundMessage, error) {
	if !msg.Identity.Valid() {
		return nil, nil
	}
	unlock := d.lock(ctx, msg.Identity)
	defer unlock()

	sess, err := d.deps.Sessions.Get(ctx, msg.Identity)
	if err != nil {
		d.log.Error().Err(err).Str("identity", msg.Identity.Key()).Msg("loading session")
		return []model.OutboundMessage{{Text: d.deps.T.T("error_generic")}}, err
	}
	if sess == nil {
		sess = &model.Session{}
	}

	text := strings.TrimSpace(msg.Text)
	command := strings.HasPrefix(text, "/")
	if command {
		text = strings.TrimPrefix(text, "/")
	}

	// Starting a new top-level command is the only way to abandon an
	// in-flight dialog; everything else goes to the active frame.
	if logoutRe.MatchString(text) && (command || sess.Top() == nil) {
		if err := d.deps.Sessions.Delete(ctx, msg.Identity); err != nil {
			d.log.Error().Err(err).Str("identity", msg.Identity.Key()).Msg("deleting session")
			return []model.OutboundMessage{{Text: d.deps.T.T("error_generic")}}, err
		}
		metrics.MessageRouted(msg.Platform, "logout")
		return []model.OutboundMessage{{Text: d.deps.T.T("logout_done")}}, nil
	}

	if sess.Top() != nil && strings.EqualFold(text, "cancel") {
		for i := len(sess.Frames) - 1; i >= 0; i-- {
			metrics.DialogEnded(sess.Frames[i].Dialog, "abandoned")
		}
		sess.Frames = nil
		if err := d.deps.Sessions.Save(ctx, msg.Identity, sess); err != nil {
			d.log.Error().Err(err).Str("identity", msg.Identity.Key()).Msg("saving session")
		}
		metrics.MessageRouted(msg.Platform, "cancel")
		return []model.OutboundMessage{{Text: d.deps.T.T("cancelled")}}, nil
	}

	var out []model.OutboundMessage
	switch {
	case sess.Top() != nil && !command:
		metrics.MessageRouted(msg.Platform, "resume")
		out = d.engine.Resume(ctx, msg, sess)
	default:
		if sess.Top() != nil {
			// A slash command replaces the whole stack.
			for i := len(sess.Frames) - 1; i >= 0; i-- {
				metrics.DialogEnded(sess.Frames[i].Dialog, "abandoned")
			}
			sess.Frames = nil
		}
		out = d.start(ctx, text, msg, sess)
	}

	if err := d.deps.Sessions.Save(ctx, msg.Identity, sess); err != nil {
		d.log.Error().Err(err).Str("identity", msg.Identity.Key()).Msg("saving session")
		return append(out, model.OutboundMessage{Text: d.deps.T.T("error_generic")}), err
	}
	return out, nil
}

func (d *Dispatcher) start(ctx context.Context, text string, msg *model.InboundMessage, sess *model.Session) []model.OutboundMessage {
	for _, in := range d.intents {
		match := in.re.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		var seed Seed
		if in.seed != nil {
			seed = in.seed(msg, match)
		}
		metrics.MessageRouted(msg.Platform, in.dialog)
		return d.engine.Start(ctx, in.dialog, seed, msg, sess)
	}
	return d.fallback(ctx, msg, sess)
}

// fallback inspects attachments when no pattern matched: an image
// becomes a photo post, a shared link enters the URL dialog.
func (d *Dispatcher) fallback(ctx context.Context, msg *model.InboundMessage, sess *model.Session) []model.OutboundMessage {
	if _, ok := msg.FirstAttachment(model.AttachmentImage); ok {
		metrics.MessageRouted(msg.Platform, "photo-fallback")
		return d.engine.Start(ctx, "photo", nil, msg, sess)
	}
	if att, ok := msg.FirstAttachment(model.AttachmentLink); ok {
		metrics.MessageRouted(msg.Platform, "share-fallback")
		return d.engine.Start(ctx, "share-url", SeedURL(att.URL), msg, sess)
	}
	metrics.MessageRouted(msg.Platform, "unmatched")
	return []model.OutboundMessage{{Text: d.deps.T.T("not_understood")}}
}

// lock serializes this identity. Distinct identities proceed fully in
// parallel.
func (d *Dispatcher) lock(ctx context.Context, id model.Identity) func() {
	key := id.Key()
	d.mu.Lock()
	m, ok := d.perID[key]
	if !ok {
		m = &sync.Mutex{}
		d.perID[key] = m
	}
	d.mu.Unlock()
	m.Lock()

	if d.locker == nil {
		return m.Unlock
	}
	token, err := d.locker.TryLock(ctx, "dialog_lock:"+key, 30*time.Second)
	if err != nil {
		// Processing continues under the local mutex; the shared lock is
		// best effort across instances.
		d.log.Warn().Err(err).Str("identity", key).Msg("shared lock not acquired")
		return m.Unlock
	}
	return func() {
		if err := d.locker.Unlock(ctx, "dialog_lock:"+key, token); err != nil {
			d.log.Warn().Err(err).Str("identity", key).Msg("shared lock release failed")
		}
		m.Unlock()
	}
}
