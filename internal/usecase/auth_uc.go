package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/terminalpixel/postrchild/internal/domain/model"
	"github.com/terminalpixel/postrchild/internal/indieauth"
	"github.com/terminalpixel/postrchild/internal/infra/metrics"
)

// AuthUseCase drives the IndieAuth flow for one identity: discovery,
// authorization URL, code exchange. The pasted code arrives through
// the chat turn, never through HTTP.
type AuthUseCase struct {
	ia          *indieauth.Client
	clientID    string
	redirectURI string
	log         zerolog.Logger
}

func NewAuthUseCase(ia *indieauth.Client, clientID, redirectURI string, log zerolog.Logger) *AuthUseCase {
	return &AuthUseCase{
		ia:          ia,
		clientID:    clientID,
		redirectURI: redirectURI,
		log:         log.With().Str("component", "auth-uc").Logger(),
	}
}

// Begin discovers the site's endpoints and returns the fresh auth
// state plus the authorization URL the user has to visit.
func (u *AuthUseCase) Begin(ctx context.Context, siteURL string) (model.AuthState, string, error) {
	state, err := u.ia.Discover(ctx, siteURL)
	if err != nil {
		metrics.Discovery("error")
		u.log.Error().Err(err).Str("site", siteURL).Msg("discovery failed")
		return model.AuthState{}, "", err
	}
	metrics.Discovery("ok")
	return state, u.ia.BuildAuthorizationURL(state, u.clientID, u.redirectURI), nil
}

// Complete exchanges the pasted code for an access token and returns
// the auth state with the token filled in.
func (u *AuthUseCase) Complete(ctx context.Context, state model.AuthState, code string) (model.AuthState, error) {
	token, err := u.ia.ExchangeCode(ctx, state, code, u.clientID, u.redirectURI)
	if err != nil {
		metrics.TokenExchange("error")
		u.log.Error().Err(err).Str("site", state.Me).Msg("token exchange failed")
		return model.AuthState{}, err
	}
	metrics.TokenExchange("ok")
	state.AccessToken = token
	u.log.Info().Str("site", state.Me).Msg("authenticated")
	return state, nil
}
