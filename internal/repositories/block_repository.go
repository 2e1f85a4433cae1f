package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var ErrAlreadyBlocked = errors.New("user already blocked")

// BlockRepository abstracts the user block list.
type BlockRepository interface {
	Block(ctx context.Context, blockerID int, blockedID int) error
	Unblock(ctx context.Context, blockerID int, blockedID int) error
	IsBlocked(ctx context.Context, blockerID int, blockedID int) (bool, error)
	IsBlockedEither(ctx context.Context, userA int, userB int) (bool, error)
	BlockedIDs(ctx context.Context, blockerID int) ([]int, error)
}

// BlockRepo is a sqlx implementation of BlockRepository.
type BlockRepo struct {
	db *sqlx.DB
}

// NewBlockRepo constructs a BlockRepo.
func NewBlockRepo(db *sqlx.DB) *BlockRepo {
	return &BlockRepo{db: db}
}

// Block records blockerID blocking blockedID. Blocking an already blocked
// user returns ErrAlreadyBlocked.
func (r *BlockRepo) Block(ctx context.Context, blockerID int, blockedID int) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO user_blocks (blocker_id, blocked_id) VALUES ($1, $2)
         ON CONFLICT (blocker_id, blocked_id) DO NOTHING`,
		blockerID, blockedID)
	if err != nil {
		return err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if inserted == 0 {
		return ErrAlreadyBlocked
	}
	return nil
}

// Unblock removes the block row if present.
func (r *BlockRepo) Unblock(ctx context.Context, blockerID int, blockedID int) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_blocks WHERE blocker_id=$1 AND blocked_id=$2`, blockerID, blockedID)
	return err
}

// IsBlocked reports whether blockerID has blocked blockedID.
func (r *BlockRepo) IsBlocked(ctx context.Context, blockerID int, blockedID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM user_blocks WHERE blocker_id=$1 AND blocked_id=$2)`,
		blockerID, blockedID)
	return exists, err
}

// IsBlockedEither reports whether a block exists in either direction.
func (r *BlockRepo) IsBlockedEither(ctx context.Context, userA int, userB int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM user_blocks
            WHERE (blocker_id=$1 AND blocked_id=$2) OR (blocker_id=$2 AND blocked_id=$1))`,
		userA, userB)
	return exists, err
}

// BlockedIDs returns every user id that blockerID has blocked.
func (r *BlockRepo) BlockedIDs(ctx context.Context, blockerID int) ([]int, error) {
	var ids pq.Int64Array
	err := r.db.GetContext(ctx, &ids,
		`SELECT COALESCE(ARRAY_AGG(blocked_id), '{}') FROM user_blocks WHERE blocker_id=$1`, blockerID)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out, nil
}
