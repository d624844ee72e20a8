package repository

import (
	"context"

	"github.com/terminalpixel/postrchild/internal/domain/model"
)

// SessionRepository persists the per-identity session blob. Reads
// return exactly the last-written value (or an empty session); writes
// are whole-blob upserts, so callers read-modify-write.
type SessionRepository interface {
	Get(ctx context.Context, id model.Identity) (*model.Session, error)
	Save(ctx context.Context, id model.Identity, s *model.Session) error
	Delete(ctx context.Context, id model.Identity) error
}
