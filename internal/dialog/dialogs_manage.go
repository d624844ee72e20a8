package dialog

import (
	"strings"

	"github.com/terminalpixel/postrchild/internal/clean"
	"github.com/terminalpixel/postrchild/internal/domain/model"
)

const varTargetURL = "url"
const varEditField = "field"

// SeedURL pre-populates a frame's target URL.
func SeedURL(url string) Seed {
	return func(f *model.DialogFrame) { f.SetVar(varTargetURL, clean.URL(url)) }
}

// SeedDraftProp pre-populates one draft property, e.g. quick-form
// content or a shared link target.
func SeedDraftProp(key, val string) Seed {
	return func(f *model.DialogFrame) { f.Draft.Set(key, val) }
}

// Delete removes a post after an explicit confirmation.
func Delete() *Dialog {
	return &Dialog{
		Name:        "delete",
		RequireAuth: true,
		Steps: []Step{
			func(r *Run, _ string) Outcome {
				if r.Frame.Var(varTargetURL) != "" {
					return Skip(2)
				}
				r.Say(r.T("delete_ask_url"))
				return Ask()
			},
			func(r *Run, input string) Outcome {
				if IsSkip(input) {
					r.Say(r.T("cancelled"))
					return End("")
				}
				r.Frame.SetVar(varTargetURL, clean.URL(input))
				return Next()
			},
			func(r *Run, _ string) Outcome {
				r.Say(r.Tf("delete_confirm", r.Frame.Var(varTargetURL)))
				return Ask()
			},
			func(r *Run, input string) Outcome {
				if !IsYes(input) {
					r.Say(r.T("cancelled"))
					return End("")
				}
				if err := r.Deps.Publish.Delete(r.Ctx, &r.Session.Auth, r.Frame.Var(varTargetURL)); err != nil {
					r.Say(r.Tf("post_error", publishErrText(err)))
					return End("")
				}
				r.Say(r.T("delete_done"))
				return End("")
			},
		},
	}
}

// Undelete restores a previously deleted post.
func Undelete() *Dialog {
	return &Dialog{
		Name:        "undelete",
		RequireAuth: true,
		Steps: []Step{
			func(r *Run, _ string) Outcome {
				if r.Frame.Var(varTargetURL) != "" {
					return Skip(2)
				}
				r.Say(r.T("undelete_ask_url"))
				return Ask()
			},
			func(r *Run, input string) Outcome {
				if IsSkip(input) {
					r.Say(r.T("cancelled"))
					return End("")
				}
				r.Frame.SetVar(varTargetURL, clean.URL(input))
				return Next()
			},
			func(r *Run, _ string) Outcome {
				if err := r.Deps.Publish.Undelete(r.Ctx, &r.Session.Auth, r.Frame.Var(varTargetURL)); err != nil {
					r.Say(r.Tf("post_error", publishErrText(err)))
					return End("")
				}
				r.Say(r.T("undelete_done"))
				return End("")
			},
		},
	}
}

// Edit modifies an existing post on the user's own site: update one
// property through a replace patch, or delete/undelete it.
func Edit() *Dialog {
	return &Dialog{
		Name:        "edit",
		RequireAuth: true,
		Steps: []Step{
			func(r *Run, _ string) Outcome {
				if r.Frame.Var(varTargetURL) != "" {
					return Skip(2)
				}
				r.Say(r.T("edit_ask_url"))
				return Ask()
			},
			func(r *Run, input string) Outcome {
				if IsSkip(input) {
					r.Say(r.T("cancelled"))
					return End("")
				}
				r.Frame.SetVar(varTargetURL, clean.URL(input))
				return Next()
			},
			func(r *Run, _ string) Outcome {
				r.Say(r.T("edit_menu"))
				return Ask()
			},
			func(r *Run, input string) Outcome {
				url := r.Frame.Var(varTargetURL)
				switch strings.TrimSpace(input) {
				case "1":
					r.Frame.SetVar(varEditField, model.PropContent)
				case "2":
					r.Frame.SetVar(varEditField, model.PropName)
				case "3":
					r.Frame.SetVar(varEditField, model.PropCategory)
				case "4":
					if err := r.Deps.Publish.Delete(r.Ctx, &r.Session.Auth, url); err != nil {
						r.Say(r.Tf("post_error", publishErrText(err)))
						return End("")
					}
					r.Say(r.T("delete_done"))
					return End("")
				case "5":
					if err := r.Deps.Publish.Undelete(r.Ctx, &r.Session.Auth, url); err != nil {
						r.Say(r.Tf("post_error", publishErrText(err)))
						return End("")
					}
					r.Say(r.T("undelete_done"))
					return End("")
				default:
					r.Say(r.T("edit_bad_choice"))
					return Skip(-1)
				}
				r.Say(r.T("edit_ask_value"))
				return Ask()
			},
			func(r *Run, input string) Outcome {
				url := r.Frame.Var(varTargetURL)
				patch := model.Draft{}
				if field := r.Frame.Var(varEditField); field == model.PropCategory {
					patch.SetList(field, strings.Fields(cleanText(r, input)))
				} else {
					patch.Set(field, cleanText(r, input))
				}
				if err := r.Deps.Publish.Update(r.Ctx, &r.Session.Auth, url, patch); err != nil {
					r.Say(r.Tf("post_error", publishErrText(err)))
					return End("")
				}
				r.SayURL(r.Tf("edit_done", url), url)
				return End(url)
			},
		},
	}
}

// ShareURL handles a link shared into the conversation. A URL on the
// user's own site goes to the edit dialog; a foreign one offers the
// interaction menu. Disambiguation is substring containment against
// the authenticated identity, same as the behavior it replaces.
func ShareURL() *Dialog {
	return &Dialog{
		Name:        "share-url",
		RequireAuth: true,
		Steps: []Step{
			func(r *Run, _ string) Outcome {
				url := r.Frame.Var(varTargetURL)
				if url == "" {
					return End("")
				}
				if r.Session.Auth.Me != "" && strings.Contains(url, r.Session.Auth.Me) {
					return Replace("edit", SeedURL(url))
				}
				r.Say(r.Tf("share_menu", url))
				return Ask()
			},
			func(r *Run, input string) Outcome {
				url := r.Frame.Var(varTargetURL)
				switch strings.TrimSpace(input) {
				case "1":
					return Replace("reply", SeedDraftProp(model.PropInReplyTo, url))
				case "2":
					return Replace("like", SeedDraftProp(model.PropLikeOf, url))
				case "3":
					return Replace("repost", SeedDraftProp(model.PropRepostOf, url))
				case "4":
					return Replace("rsvp", SeedDraftProp(model.PropInReplyTo, url))
				}
				r.Say(r.T("share_bad_choice"))
				return Skip(-1)
			},
		},
	}
}
