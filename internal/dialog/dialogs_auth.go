package dialog

import (
	"errors"
	"strings"

	"github.com/terminalpixel/postrchild/internal/clean"
	"github.com/terminalpixel/postrchild/internal/domain"
)

// Auth walks the user through endpoint discovery and the code
// exchange. The discovered endpoints are written to the session as
// soon as discovery succeeds so the exchange step can use them.
func Auth() *Dialog {
	return &Dialog{
		Name: "auth",
		Steps: []Step{
			func(r *Run, _ string) Outcome {
				r.Say(r.T("auth_hello"))
				r.Say(r.T("auth_ask_domain"))
				return Ask()
			},
			func(r *Run, input string) Outcome {
				site := clean.URL(input)
				if site == "" {
					r.Say(r.T("auth_site_error"))
					return End("")
				}
				if !strings.HasPrefix(site, "http://") && !strings.HasPrefix(site, "https://") {
					site = "https://" + site
				}
				r.Say(r.Tf("auth_trying", site))
				state, authURL, err := r.Deps.Auth.Begin(r.Ctx, site)
				if err != nil {
					var derr *domain.DiscoveryError
					if errors.As(err, &derr) && derr.Err == nil {
						r.Say(r.T("auth_missing_endpoint"))
					} else {
						r.Say(r.T("auth_site_error"))
					}
					return End("")
				}
				r.Session.Auth = state
				r.Say(r.Tf("auth_visit_link", authURL))
				r.Say(r.T("auth_ask_code"))
				return Ask()
			},
			func(r *Run, input string) Outcome {
				state, err := r.Deps.Auth.Complete(r.Ctx, r.Session.Auth, strings.TrimSpace(input))
				if err != nil {
					r.Say(r.T("auth_code_error"))
					var terr *domain.TokenExchangeError
					if errors.As(err, &terr) && terr.Body != "" {
						r.Say(truncate(terr.Body, 200))
					}
					return End("")
				}
				r.Session.Auth = state
				r.Say(r.T("auth_done"))
				return End("")
			},
		},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
