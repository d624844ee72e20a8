package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/terminalpixel/postrchild/internal/domain"
	"github.com/terminalpixel/postrchild/internal/domain/model"
	"github.com/terminalpixel/postrchild/internal/infra/metrics"
	"github.com/terminalpixel/postrchild/internal/micropub"
)

// PublishUseCase wraps the micropub client with the authentication
// precondition and instrumentation. Endpoint and token come from the
// caller's auth state on every call.
type PublishUseCase struct {
	mp  *micropub.Client
	log zerolog.Logger
}

func NewPublishUseCase(mp *micropub.Client, log zerolog.Logger) *PublishUseCase {
	return &PublishUseCase{mp: mp, log: log.With().Str("component", "publish-uc").Logger()}
}

func (u *PublishUseCase) guard(auth *model.AuthState) error {
	if !auth.Authenticated() {
		return domain.ErrNotAuthenticated
	}
	return nil
}

// Create publishes a draft and returns the new post's URL.
func (u *PublishUseCase) Create(ctx context.Context, auth *model.AuthState, draft model.Draft) (string, error) {
	if err := u.guard(auth); err != nil {
		return "", err
	}
	start := time.Now()
	loc, err := u.mp.Create(ctx, auth.MicropubEndpoint, auth.AccessToken, draft)
	metrics.Publish("create", err, time.Since(start))
	if err != nil {
		u.log.Error().Err(err).Str("me", auth.Me).Msg("create failed")
		return "", err
	}
	return loc, nil
}

// Update sends a replace patch for an existing post.
func (u *PublishUseCase) Update(ctx context.Context, auth *model.AuthState, targetURL string, patch model.Draft) error {
	if err := u.guard(auth); err != nil {
		return err
	}
	start := time.Now()
	err := u.mp.Update(ctx, auth.MicropubEndpoint, auth.AccessToken, targetURL, patch)
	metrics.Publish("update", err, time.Since(start))
	if err != nil {
		u.log.Error().Err(err).Str("url", targetURL).Msg("update failed")
	}
	return err
}

// Delete removes an existing post.
func (u *PublishUseCase) Delete(ctx context.Context, auth *model.AuthState, targetURL string) error {
	if err := u.guard(auth); err != nil {
		return err
	}
	start := time.Now()
	err := u.mp.Delete(ctx, auth.MicropubEndpoint, auth.AccessToken, targetURL)
	metrics.Publish("delete", err, time.Since(start))
	if err != nil {
		u.log.Error().Err(err).Str("url", targetURL).Msg("delete failed")
	}
	return err
}

// Undelete restores a deleted post.
func (u *PublishUseCase) Undelete(ctx context.Context, auth *model.AuthState, targetURL string) error {
	if err := u.guard(auth); err != nil {
		return err
	}
	start := time.Now()
	err := u.mp.Undelete(ctx, auth.MicropubEndpoint, auth.AccessToken, targetURL)
	metrics.Publish("undelete", err, time.Since(start))
	if err != nil {
		u.log.Error().Err(err).Str("url", targetURL).Msg("undelete failed")
	}
	return err
}

// SyndicationTargets re-queries the endpoint. Never cached here:
// targets change server-side and must be fetched per collection run.
func (u *PublishUseCase) SyndicationTargets(ctx context.Context, auth *model.AuthState) ([]string, error) {
	if err := u.guard(auth); err != nil {
		return nil, err
	}
	start := time.Now()
	targets, err := u.mp.QuerySyndicationTargets(ctx, auth.MicropubEndpoint, auth.AccessToken)
	metrics.Publish("query", err, time.Since(start))
	return targets, err
}

// Source fetches an existing post's properties for the edit dialog.
func (u *PublishUseCase) Source(ctx context.Context, auth *model.AuthState, targetURL string) (map[string][]string, error) {
	if err := u.guard(auth); err != nil {
		return nil, err
	}
	start := time.Now()
	props, err := u.mp.QuerySource(ctx, auth.MicropubEndpoint, auth.AccessToken, targetURL)
	metrics.Publish("query", err, time.Since(start))
	return props, err
}
