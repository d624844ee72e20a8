// File: internal/infra/db/postgres/session_repo_durable.go
package postgres

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/terminalpixel/postrchild/internal/domain"
	"github.com/terminalpixel/postrchild/internal/domain/model"
	"github.com/terminalpixel/postrchild/internal/domain/ports/repository"
)

// AccountStore is the durable credential storage the decorator writes
// through to. Satisfied by *AccountRepo.
type AccountStore interface {
	Save(ctx context.Context, id model.Identity, auth model.AuthState) error
	Find(ctx context.Context, id model.Identity) (model.AuthState, error)
	Delete(ctx context.Context, id model.Identity) error
}

var _ repository.SessionRepository = (*durableSessionDecorator)(nil)

// durableSessionDecorator splits the session blob across two stores:
// the fast store (Redis) holds the whole session including in-flight
// dialog frames and expires on idleness; credentials additionally go
// to Postgres so authentication survives a cache flush. When the fast
// store misses, the identity comes back with its credentials intact
// and an idle dialog stack.
type durableSessionDecorator struct {
	fast     repository.SessionRepository
	accounts AccountStore
	log      zerolog.Logger
}

func NewDurableSessionRepo(fast repository.SessionRepository, accounts AccountStore, log zerolog.Logger) repository.SessionRepository {
	return &durableSessionDecorator{
		fast:     fast,
		accounts: accounts,
		log:      log.With().Str("component", "session-store").Logger(),
	}
}

func (d *durableSessionDecorator) Get(ctx context.Context, id model.Identity) (*model.Session, error) {
	sess, err := d.fast.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		return sess, nil
	}
	auth, err := d.accounts.Find(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &model.Session{Auth: auth}, nil
}

func (d *durableSessionDecorator) Save(ctx context.Context, id model.Identity, s *model.Session) error {
	if err := d.fast.Save(ctx, id, s); err != nil {
		return err
	}
	// Credential write-through is best effort: a degraded database
	// loses durability, not the conversation in progress.
	if err := d.accounts.Save(ctx, id, s.Auth); err != nil {
		d.log.Error().Err(err).Str("identity", id.Key()).Msg("durable credential save failed")
	}
	return nil
}

func (d *durableSessionDecorator) Delete(ctx context.Context, id model.Identity) error {
	if err := d.fast.Delete(ctx, id); err != nil {
		return err
	}
	return d.accounts.Delete(ctx, id)
}
