package dialog

import (
	"strings"

	"github.com/terminalpixel/postrchild/internal/clean"
	"github.com/terminalpixel/postrchild/internal/domain/model"
)

// requiredURLField prompts for a URL the dialog cannot proceed
// without; answering skip cancels the whole dialog.
func requiredURLField(key, prompt string) []Step {
	return []Step{
		func(r *Run, _ string) Outcome {
			if r.Frame.Draft.Has(key) {
				return Skip(2)
			}
			r.Say(r.T(prompt))
			return Ask()
		},
		func(r *Run, input string) Outcome {
			if IsSkip(input) {
				r.Say(r.T("cancelled"))
				return End("")
			}
			r.Frame.Draft.Set(key, clean.URL(input))
			return Next()
		},
	}
}

// Reply posts a note in reply to another post.
func Reply() *Dialog {
	steps := Plan(
		requiredURLField(model.PropInReplyTo, "reply_ask_url"),
		TextField(model.PropContent, "reply_ask_content"),
	)
	steps = append(steps, publishEntry)
	return &Dialog{Name: "reply", RequireAuth: true, Steps: steps}
}

// Like publishes a like-of entry.
func Like() *Dialog {
	steps := requiredURLField(model.PropLikeOf, "like_ask_url")
	steps = append(steps, publishEntry)
	return &Dialog{Name: "like", RequireAuth: true, Steps: steps}
}

// Repost publishes a repost-of entry.
func Repost() *Dialog {
	steps := requiredURLField(model.PropRepostOf, "repost_ask_url")
	steps = append(steps, publishEntry)
	return &Dialog{Name: "repost", RequireAuth: true, Steps: steps}
}

var rsvpValues = map[string]bool{"yes": true, "no": true, "maybe": true, "interested": true}

// RSVP posts an RSVP entry for an event URL.
func RSVP() *Dialog {
	steps := requiredURLField(model.PropInReplyTo, "rsvp_ask_url")
	steps = append(steps,
		func(r *Run, _ string) Outcome {
			if r.Frame.Draft.Has(model.PropRSVP) {
				return Skip(2)
			}
			r.Say(r.T("rsvp_ask_response"))
			return Ask()
		},
		func(r *Run, input string) Outcome {
			v := strings.ToLower(strings.TrimSpace(input))
			if !rsvpValues[v] {
				r.Say(r.T("rsvp_bad_response"))
				return Skip(-1)
			}
			r.Frame.Draft.Set(model.PropRSVP, v)
			return Next()
		},
		publishEntry,
	)
	return &Dialog{Name: "rsvp", RequireAuth: true, Steps: steps}
}

// Photo publishes an image post. The fallback route seeds the frame
// with the inbound attachment; otherwise the dialog asks for one.
func Photo() *Dialog {
	steps := []Step{
		func(r *Run, _ string) Outcome {
			if r.Frame.Draft.Photo != nil || storePhoto(r, "") {
				return Skip(2)
			}
			r.Say(r.T("ask_photo"))
			return Ask()
		},
		collectPhoto,
	}
	steps = append(steps, TextField(model.PropContent, "ask_content")...)
	steps = append(steps, publishEntry)
	return &Dialog{Name: "photo", RequireAuth: true, Steps: steps}
}
