// File: internal/infra/db/postgres/postgres_account_repo.go
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/terminalpixel/postrchild/internal/domain"
	"github.com/terminalpixel/postrchild/internal/domain/model"
	"github.com/terminalpixel/postrchild/internal/infra/security"
)

// AccountRepo persists the durable half of a session: the discovered
// endpoints and the access token, per identity. The token is encrypted
// at rest; everything else in the row is public knowledge scraped from
// the user's own homepage.
type AccountRepo struct {
	pool          *pgxpool.Pool
	encryptionSvc *security.EncryptionService
}

func NewAccountRepo(pool *pgxpool.Pool, encryptionSvc *security.EncryptionService) *AccountRepo {
	return &AccountRepo{pool: pool, encryptionSvc: encryptionSvc}
}

// EnsureSchema creates the accounts table when it does not exist yet.
func (r *AccountRepo) EnsureSchema(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS accounts (
  user_id          TEXT NOT NULL,
  conversation_id  TEXT NOT NULL,
  me               TEXT NOT NULL DEFAULT '',
  auth_endpoint    TEXT NOT NULL DEFAULT '',
  token_endpoint   TEXT NOT NULL DEFAULT '',
  micropub_endpoint TEXT NOT NULL DEFAULT '',
  access_token_enc TEXT NOT NULL DEFAULT '',
  updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  PRIMARY KEY (user_id, conversation_id)
);`
	if _, err := r.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("ensure accounts schema: %w", err)
	}
	return nil
}

func (r *AccountRepo) Save(ctx context.Context, id model.Identity, auth model.AuthState) error {
	tokenEnc := ""
	if auth.AccessToken != "" {
		var err error
		tokenEnc, err = r.encryptionSvc.Encrypt(auth.AccessToken)
		if err != nil {
			return fmt.Errorf("encrypt token: %w", err)
		}
	}
	const q = `
INSERT INTO accounts (user_id, conversation_id, me, auth_endpoint, token_endpoint, micropub_endpoint, access_token_enc, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
ON CONFLICT (user_id, conversation_id) DO UPDATE SET
  me = EXCLUDED.me,
  auth_endpoint = EXCLUDED.auth_endpoint,
  token_endpoint = EXCLUDED.token_endpoint,
  micropub_endpoint = EXCLUDED.micropub_endpoint,
  access_token_enc = EXCLUDED.access_token_enc,
  updated_at = NOW();`
	_, err := r.pool.Exec(ctx, q,
		id.UserID, id.ConversationID,
		auth.Me, auth.AuthorizationEndpoint, auth.TokenEndpoint, auth.MicropubEndpoint, tokenEnc)
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

func (r *AccountRepo) Find(ctx context.Context, id model.Identity) (model.AuthState, error) {
	const q = `
SELECT me, auth_endpoint, token_endpoint, micropub_endpoint, access_token_enc
FROM accounts WHERE user_id=$1 AND conversation_id=$2;`
	var auth model.AuthState
	var tokenEnc string
	err := r.pool.QueryRow(ctx, q, id.UserID, id.ConversationID).Scan(
		&auth.Me, &auth.AuthorizationEndpoint, &auth.TokenEndpoint, &auth.MicropubEndpoint, &tokenEnc)
	if err == pgx.ErrNoRows {
		return model.AuthState{}, domain.ErrNotFound
	}
	if err != nil {
		return model.AuthState{}, fmt.Errorf("find account: %w", err)
	}
	if tokenEnc != "" {
		auth.AccessToken, err = r.encryptionSvc.Decrypt(tokenEnc)
		if err != nil {
			return model.AuthState{}, fmt.Errorf("decrypt token: %w", err)
		}
	}
	return auth, nil
}

func (r *AccountRepo) Delete(ctx context.Context, id model.Identity) error {
	const q = `DELETE FROM accounts WHERE user_id=$1 AND conversation_id=$2;`
	if _, err := r.pool.Exec(ctx, q, id.UserID, id.ConversationID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

// Count reports the number of stored accounts, for the admin API.
func (r *AccountRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}
