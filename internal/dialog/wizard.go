package dialog

import (
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/terminalpixel/postrchild/internal/clean"
	"github.com/terminalpixel/postrchild/internal/domain/model"
)

// Field is one optional entry of a field-collection plan. It compiles
// to a prompt step and a collect step; the prompt is skipped when the
// precondition fails or the property was pre-seeded.
type Field struct {
	Key    string
	Prompt string // catalog key
	Pre    func(r *Run) bool
	Apply  func(r *Run, raw string)
}

func (f Field) steps() []Step {
	ask := func(r *Run, _ string) Outcome {
		if f.Pre != nil && !f.Pre(r) {
			return Skip(2)
		}
		if r.Frame.Draft.Has(f.Key) {
			return Skip(2)
		}
		r.Say(r.T(f.Prompt))
		return Ask()
	}
	collect := func(r *Run, input string) Outcome {
		if !IsSkip(input) {
			f.Apply(r, input)
		}
		return Next()
	}
	return []Step{ask, collect}
}

// Plan concatenates step groups into one dialog step list. Later
// fields may rely on state earlier fields stored on the frame; auth is
// established at plan entry, never mid-plan.
func Plan(groups ...[]Step) []Step {
	var steps []Step
	for _, g := range groups {
		steps = append(steps, g...)
	}
	return steps
}

func cleanText(r *Run, raw string) string {
	return clean.Text(raw, r.Platform)
}

// IsSkip reports the literal skip keyword.
func IsSkip(input string) bool {
	return strings.EqualFold(strings.TrimSpace(input), SkipKeyword)
}

// IsYes is the loose affirmative used by confirm prompts.
func IsYes(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes", "yeah", "yep", "ok", "sure":
		return true
	}
	return false
}

// TextField collects a free-text property, cleaned for the platform.
func TextField(key, prompt string) []Step {
	return Field{
		Key:    key,
		Prompt: prompt,
		Apply: func(r *Run, raw string) {
			r.Frame.Draft.Set(key, clean.Text(raw, r.Platform))
		},
	}.steps()
}

// URLField collects a URL property, normalized.
func URLField(key, prompt string) []Step {
	return Field{
		Key:    key,
		Prompt: prompt,
		Apply: func(r *Run, raw string) {
			r.Frame.Draft.Set(key, clean.URL(raw))
		},
	}.steps()
}

// ListField collects a whitespace-separated multi-value property.
func ListField(key, prompt string) []Step {
	return Field{
		Key:    key,
		Prompt: prompt,
		Apply: func(r *Run, raw string) {
			vals := strings.Fields(clean.Text(raw, r.Platform))
			if len(vals) > 0 {
				r.Frame.Draft.SetList(key, vals)
			}
		},
	}.steps()
}

// TimeField resolves a natural-language time expression. Resolution
// failure leaves the property unset rather than erroring the dialog.
func TimeField(key, prompt string) []Step {
	return Field{
		Key:    key,
		Prompt: prompt,
		Apply: func(r *Run, raw string) {
			if ts, ok := ResolveTime(raw, time.Now()); ok {
				r.Frame.Draft.Set(key, ts.Format(time.RFC3339))
			}
		},
	}.steps()
}

var timeParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// ResolveTime parses expressions like "now", "yesterday at 6pm" or
// "tomorrow" relative to base.
func ResolveTime(text string, base time.Time) (time.Time, bool) {
	s := strings.TrimSpace(text)
	if strings.EqualFold(s, "now") {
		return base, true
	}
	res, err := timeParser.Parse(s, base)
	if err != nil || res == nil {
		return time.Time{}, false
	}
	return res.Time, true
}

// PhotoConfirm asks whether to attach an image, then collects one.
// The attachment's bytes are fetched so the create call goes multipart.
func PhotoConfirm() []Step {
	return []Step{
		func(r *Run, _ string) Outcome {
			if r.Frame.Draft.Photo != nil {
				return Skip(3)
			}
			r.Say(r.T("ask_photo_confirm"))
			return Ask()
		},
		func(r *Run, input string) Outcome {
			if !IsYes(input) {
				return Skip(2)
			}
			r.Say(r.T("ask_photo"))
			return Ask()
		},
		collectPhoto,
	}
}

// collectPhoto stores the message's image attachment (or a pasted URL)
// as the draft photo.
func collectPhoto(r *Run, input string) Outcome {
	if !storePhoto(r, input) && !IsSkip(input) {
		r.Say(r.T("photo_not_image"))
	}
	return Next()
}

// storePhoto pulls an image out of the current message. An attachment
// is downloaded so the create request can go multipart; a pasted URL
// is kept as-is and sent as a plain form property.
func storePhoto(r *Run, input string) bool {
	if att, ok := r.Msg.FirstAttachment(model.AttachmentImage); ok {
		media, err := r.Deps.Media.Fetch(r.Ctx, att.URL)
		if err != nil {
			r.Deps.Log.Warn().Err(err).Str("url", att.URL).Msg("attachment fetch failed, sending url instead")
			media = &model.Media{URL: att.URL, ContentType: att.ContentType, Name: att.Name}
		}
		r.Frame.Draft.Photo = media
		return true
	}
	if u := clean.URL(input); isProbablyURL(u) {
		r.Frame.Draft.Photo = &model.Media{URL: u}
		return true
	}
	return false
}

func isProbablyURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Syndication queries the endpoint for its targets, offers them as a
// numbered list, and collects 1-based selections. Out-of-range indices
// are dropped, never errors. Options live only on this frame.
func Syndication() []Step {
	return []Step{
		func(r *Run, _ string) Outcome {
			targets, err := r.Deps.Publish.SyndicationTargets(r.Ctx, &r.Session.Auth)
			if err != nil || len(targets) == 0 {
				if err != nil {
					r.Deps.Log.Warn().Err(err).Msg("syndication query failed, skipping field")
				}
				return Skip(2)
			}
			r.Frame.Options = targets
			var b strings.Builder
			b.WriteString(r.T("syndication_header"))
			for i, t := range targets {
				b.WriteString("\n")
				b.WriteString(strconv.Itoa(i + 1))
				b.WriteString(": ")
				b.WriteString(t)
			}
			r.Say(b.String())
			r.Say(r.T("syndication_ask"))
			return Ask()
		},
		func(r *Run, input string) Outcome {
			if IsSkip(input) {
				return Next()
			}
			selected := SelectByIndex(r.Frame.Options, strings.Fields(clean.Text(input, r.Platform)))
			if len(selected) > 0 {
				r.Frame.Draft.SetList(model.PropSyndicateTo, selected)
			}
			return Next()
		},
	}
}

// SelectByIndex maps 1-based index strings onto options, silently
// dropping anything unparsable or outside [1, len(options)].
func SelectByIndex(options []string, picks []string) []string {
	var out []string
	for _, p := range picks {
		idx, err := strconv.Atoi(p)
		if err != nil || idx < 1 || idx > len(options) {
			continue
		}
		out = append(out, options[idx-1])
	}
	return out
}
