package dialog

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/terminalpixel/postrchild/internal/domain"
	"github.com/terminalpixel/postrchild/internal/domain/model"
)

// twitterLimit is the length above which the instant note asks for
// confirmation before sending.
const twitterLimit = 140

// publishEntry is the shared terminal step of every create dialog.
func publishEntry(r *Run, _ string) Outcome {
	if r.Frame.Draft.Get(model.PropType) == "" {
		r.Frame.Draft.Set(model.PropType, "entry")
	}
	r.Say(r.T("sending"))
	loc, err := r.Deps.Publish.Create(r.Ctx, &r.Session.Auth, r.Frame.Draft)
	if err != nil {
		r.Say(r.Tf("post_error", publishErrText(err)))
		return End("")
	}
	r.SayURL(r.Tf("post_success", loc), loc)
	return End(loc)
}

// publishErrText renders a publish failure for the user: the raw
// status and a body excerpt, never a stack trace.
func publishErrText(err error) string {
	var perr *domain.PublishError
	if errors.As(err, &perr) {
		if perr.Status != 0 {
			return fmt.Sprintf("status %d %s", perr.Status, truncate(strings.TrimSpace(perr.Body), 200))
		}
		return "the request could not be sent"
	}
	if errors.Is(err, domain.ErrNotAuthenticated) {
		return "you are not authenticated"
	}
	return "unexpected error"
}

// InstantNote is the `post` dialog: collect content, warn when it is
// too long for syndication targets, publish.
func InstantNote() *Dialog {
	steps := Plan(
		Field{
			Key:    model.PropContent,
			Prompt: "note_ask_content",
			Apply:  applyCleanText(model.PropContent),
		}.steps(),
	)
	steps = append(steps,
		func(r *Run, _ string) Outcome {
			// Count runes, not bytes: emoji substitution inflates
			// the byte length well past what the user typed.
			length := utf8.RuneCountInString(r.Frame.Draft.Get(model.PropContent))
			if length > twitterLimit {
				r.Say(r.Tf("note_too_long", length-twitterLimit))
				return Ask()
			}
			return Skip(2)
		},
		func(r *Run, input string) Outcome {
			if !IsYes(input) {
				r.Say(r.T("cancelled"))
				return End("")
			}
			return Next()
		},
		publishEntry,
	)
	return &Dialog{Name: "instant-note", RequireAuth: true, Steps: steps}
}

// InstantJournal posts a note with the fixed categories journal and
// private.
func InstantJournal() *Dialog {
	steps := Plan(
		Field{
			Key:    model.PropContent,
			Prompt: "journal_ask_content",
			Apply:  applyCleanText(model.PropContent),
		}.steps(),
	)
	steps = append(steps, func(r *Run, _ string) Outcome {
		r.Frame.Draft.SetList(model.PropCategory, []string{"journal", "private"})
		return Next()
	}, publishEntry)
	return &Dialog{Name: "instant-journal", RequireAuth: true, Steps: steps}
}

var entryTypes = map[string]bool{"entry": true, "card": true, "event": true, "cite": true}

// AdvancedPost runs the full field plan: entry type, then every
// optional property in the fixed order ending with syndication,
// because the syndication step queries the server with auth state the
// plan assumes was established at entry.
func AdvancedPost() *Dialog {
	steps := []Step{
		func(r *Run, _ string) Outcome {
			r.Say(r.T("advanced_ask_type"))
			return Ask()
		},
		func(r *Run, input string) Outcome {
			t := strings.ToLower(strings.TrimSpace(input))
			if !entryTypes[t] {
				r.Say(r.T("advanced_bad_type"))
				t = "entry"
			}
			r.Frame.Draft.Set(model.PropType, t)
			return Next()
		},
	}
	steps = append(steps, Plan(
		TextField(model.PropName, "ask_name"),
		TextField(model.PropSummary, "ask_summary"),
		TextField(model.PropContent, "ask_content"),
		TimeField(model.PropPublished, "ask_published"),
		ListField(model.PropCategory, "ask_category"),
		URLField(model.PropInReplyTo, "ask_in_reply_to"),
		URLField(model.PropLikeOf, "ask_like_of"),
		URLField(model.PropRepostOf, "ask_repost_of"),
		PhotoConfirm(),
		Syndication(),
	)...)
	steps = append(steps, publishEntry)
	return &Dialog{Name: "advanced-post", RequireAuth: true, Steps: steps}
}

func applyCleanText(key string) func(r *Run, raw string) {
	return func(r *Run, raw string) {
		r.Frame.Draft.Set(key, cleanText(r, raw))
	}
}
