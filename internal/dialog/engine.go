// Package dialog implements the conversation-scoped dialog state
// machine: resumable named step lists over a per-identity frame stack,
// a field-collection wizard, and the intent dispatcher.
package dialog

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/terminalpixel/postrchild/internal/domain/model"
	"github.com/terminalpixel/postrchild/internal/domain/ports/repository"
	"github.com/terminalpixel/postrchild/internal/infra/i18n"
	"github.com/terminalpixel/postrchild/internal/infra/metrics"
	"github.com/terminalpixel/postrchild/internal/usecase"
)

// SkipKeyword leaves an optional field unset when given as the answer
// to its prompt.
const SkipKeyword = "skip"

// maxTransitions bounds one inbound message's step chain so a buggy
// dialog cannot spin the engine.
const maxTransitions = 64

// Step is one resumable unit of a dialog. A prompting step runs twice:
// once to emit its prompt and suspend, once more (as the following
// step) to parse the next inbound message.
type Step func(r *Run, input string) Outcome

// Dialog is a named ordered step list. RequireAuth dialogs refuse to
// start without a stored token and micropub endpoint.
type Dialog struct {
	Name        string
	RequireAuth bool
	Steps       []Step
}

// Seed pre-populates a freshly pushed frame, e.g. quick-form content
// or a shared URL.
type Seed func(f *model.DialogFrame)

type ctrl int

const (
	ctrlNext ctrl = iota
	ctrlSkip
	ctrlAsk
	ctrlPush
	ctrlReplace
	ctrlEnd
	ctrlFail
)

// Outcome tells the engine what to do after a step ran.
type Outcome struct {
	kind   ctrl
	n      int
	dialog string
	seed   Seed
	result string
	err    error
}

// Next falls through to the following step with empty input.
func Next() Outcome { return Outcome{kind: ctrlNext} }

// Skip jumps n steps forward, e.g. past a prompt/collect pair.
func Skip(n int) Outcome { return Outcome{kind: ctrlSkip, n: n} }

// Ask suspends after the step queued its prompt; the next inbound
// message enters the following step as input.
func Ask() Outcome { return Outcome{kind: ctrlAsk} }

// Push suspends the current dialog and enters a sub-dialog; when the
// sub-dialog ends its result re-enters this dialog's next step.
func Push(name string, seed Seed) Outcome { return Outcome{kind: ctrlPush, dialog: name, seed: seed} }

// Replace discards the current frame and starts another dialog in its
// place.
func Replace(name string, seed Seed) Outcome {
	return Outcome{kind: ctrlReplace, dialog: name, seed: seed}
}

// End pops the frame. If a parent frame remains it resumes with result
// as its input.
func End(result string) Outcome { return Outcome{kind: ctrlEnd, result: result} }

// Fail ends the dialog with a generic user-visible failure; err goes
// to the server log only.
func Fail(err error) Outcome { return Outcome{kind: ctrlFail, err: err} }

// Deps are the collaborators dialog steps may call.
type Deps struct {
	Auth     *usecase.AuthUseCase
	Publish  *usecase.PublishUseCase
	Media    *usecase.MediaFetcher
	Sessions repository.SessionRepository
	T        *i18n.Translator
	Log      zerolog.Logger
}

// Run is the state handed to each step: the identity, the live session
// and top frame, the triggering message, and the collected replies.
type Run struct {
	Ctx      context.Context
	Identity model.Identity
	Platform string
	Msg      *model.InboundMessage
	Session  *model.Session
	Frame    *model.DialogFrame
	Deps     *Deps

	out []model.OutboundMessage
}

// Say queues a plain text reply.
func (r *Run) Say(text string) {
	r.out = append(r.out, model.OutboundMessage{Text: text})
}

// SayURL queues a reply that carries a post URL.
func (r *Run) SayURL(text, url string) {
	r.out = append(r.out, model.OutboundMessage{Text: text, URL: url})
}

// T and Tf resolve catalog strings.
func (r *Run) T(key string) string               { return r.Deps.T.T(key) }
func (r *Run) Tf(key string, args ...any) string { return r.Deps.T.Tf(key, args...) }

// Engine executes dialogs against a session's frame stack.
type Engine struct {
	registry map[string]*Dialog
	deps     *Deps
	log      zerolog.Logger
}

func NewEngine(deps *Deps, dialogs ...*Dialog) *Engine {
	reg := make(map[string]*Dialog, len(dialogs))
	for _, d := range dialogs {
		reg[d.Name] = d
	}
	return &Engine{registry: reg, deps: deps, log: deps.Log.With().Str("component", "dialog-engine").Logger()}
}

// Start pushes dialog name onto the stack and runs it from step zero.
// A RequireAuth dialog with no stored credentials short-circuits with
// an authenticate prompt and no network call.
func (e *Engine) Start(ctx context.Context, name string, seed Seed, msg *model.InboundMessage, sess *model.Session) []model.OutboundMessage {
	d, ok := e.registry[name]
	if !ok {
		e.log.Error().Str("dialog", name).Msg("unknown dialog")
		return []model.OutboundMessage{{Text: e.deps.T.T("error_generic")}}
	}
	if d.RequireAuth && !sess.Auth.Authenticated() {
		return []model.OutboundMessage{{Text: e.deps.T.T("not_authenticated")}}
	}
	frame := model.DialogFrame{Dialog: name}
	if seed != nil {
		seed(&frame)
	}
	sess.Frames = append(sess.Frames, frame)
	metrics.DialogStarted(name)
	return e.run(ctx, msg, sess, "")
}

// Resume feeds an inbound message to the top frame.
func (e *Engine) Resume(ctx context.Context, msg *model.InboundMessage, sess *model.Session) []model.OutboundMessage {
	return e.run(ctx, msg, sess, msg.Text)
}

func (e *Engine) run(ctx context.Context, msg *model.InboundMessage, sess *model.Session, input string) []model.OutboundMessage {
	var out []model.OutboundMessage
	for i := 0; i < maxTransitions; i++ {
		frame := sess.Top()
		if frame == nil {
			return out
		}
		d, ok := e.registry[frame.Dialog]
		if !ok || frame.Step >= len(d.Steps) {
			// A frame past its last step ends implicitly.
			if ok {
				out = append(out, e.pop(sess, "done")...)
				input = ""
				continue
			}
			sess.Frames = nil
			return append(out, model.OutboundMessage{Text: e.deps.T.T("error_generic")})
		}

		r := &Run{
			Ctx:      ctx,
			Identity: msg.Identity,
			Platform: msg.Platform,
			Msg:      msg,
			Session:  sess,
			Frame:    frame,
			Deps:     e.deps,
		}
		outcome := d.Steps[frame.Step](r, input)
		out = append(out, r.out...)
		input = ""

		switch outcome.kind {
		case ctrlNext:
			frame.Step++
		case ctrlSkip:
			frame.Step += outcome.n
		case ctrlAsk:
			frame.Step++
			return out
		case ctrlPush:
			frame.Step++
			sub, ok := e.registry[outcome.dialog]
			if !ok {
				e.log.Error().Str("dialog", outcome.dialog).Msg("push of unknown dialog")
				sess.Frames = nil
				return append(out, model.OutboundMessage{Text: e.deps.T.T("error_generic")})
			}
			if sub.RequireAuth && !sess.Auth.Authenticated() {
				sess.Frames = nil
				return append(out, model.OutboundMessage{Text: e.deps.T.T("not_authenticated")})
			}
			next := model.DialogFrame{Dialog: outcome.dialog}
			if outcome.seed != nil {
				outcome.seed(&next)
			}
			sess.Frames = append(sess.Frames, next)
			metrics.DialogStarted(outcome.dialog)
		case ctrlReplace:
			sess.Frames = sess.Frames[:len(sess.Frames)-1]
			metrics.DialogEnded(frame.Dialog, "replaced")
			sub, ok := e.registry[outcome.dialog]
			if !ok {
				e.log.Error().Str("dialog", outcome.dialog).Msg("replace with unknown dialog")
				sess.Frames = nil
				return append(out, model.OutboundMessage{Text: e.deps.T.T("error_generic")})
			}
			if sub.RequireAuth && !sess.Auth.Authenticated() {
				sess.Frames = nil
				return append(out, model.OutboundMessage{Text: e.deps.T.T("not_authenticated")})
			}
			next := model.DialogFrame{Dialog: outcome.dialog}
			if outcome.seed != nil {
				outcome.seed(&next)
			}
			sess.Frames = append(sess.Frames, next)
			metrics.DialogStarted(outcome.dialog)
		case ctrlEnd:
			out = append(out, e.pop(sess, "done")...)
			input = outcome.result
		case ctrlFail:
			e.log.Error().Err(outcome.err).Str("dialog", frame.Dialog).Str("identity", msg.Identity.Key()).Msg("dialog failed")
			metrics.DialogEnded(frame.Dialog, "failed")
			sess.Frames = sess.Frames[:len(sess.Frames)-1]
			return append(out, model.OutboundMessage{Text: e.deps.T.T("error_generic")})
		}
	}
	e.log.Error().Msg("dialog exceeded transition budget")
	sess.Frames = nil
	return append(out, model.OutboundMessage{Text: e.deps.T.T("error_generic")})
}

func (e *Engine) pop(sess *model.Session, outcome string) []model.OutboundMessage {
	top := sess.Top()
	if top == nil {
		return nil
	}
	metrics.DialogEnded(top.Dialog, outcome)
	sess.Frames = sess.Frames[:len(sess.Frames)-1]
	return nil
}
