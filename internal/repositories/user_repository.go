package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

// UserRepository reads externally owned user rows and maintains their
// presence columns.
type UserRepository interface {
	GetUsers(ctx context.Context, userIDs []string) ([]models.User, error)
	IsOnline(ctx context.Context, userID string) (bool, error)
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db, now: time.Now}
}

// GetUsers returns the known users among userIDs.
func (r *UserRepo) GetUsers(ctx context.Context, userIDs []string) ([]models.User, error) {
	users := []models.User{}
	if len(userIDs) == 0 {
		return users, nil
	}
	query, args, err := psql.Select("id", "username", "avatar_url", "is_online", "last_seen").
		From("users").
		Where(sq.Eq{"id": userIDs}).
		ToSql()
	if err != nil {
		return nil, err
	}
	err = r.db.SelectContext(ctx, &users, query, args...)
	return users, err
}

// IsOnline returns the persisted online flag; unknown users are offline.
func (r *UserRepo) IsOnline(ctx context.Context, userID string) (bool, error) {
	var online bool
	err := r.db.GetContext(ctx, &online, `SELECT is_online FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return online, err
}

// SetOnline persists the online flag for userID.
func (r *UserRepo) SetOnline(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET is_online=TRUE, last_seen=$2 WHERE id=$1`, userID, r.now().UTC())
	return err
}

// SetOffline clears the online flag and stamps last_seen.
func (r *UserRepo) SetOffline(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET is_online=FALSE, last_seen=$2 WHERE id=$1`, userID, r.now().UTC())
	return err
}

// ResetPresence marks every user offline. The in-memory presence registry
// starts empty on each process start, so persisted flags are cleared to match.
func (r *UserRepo) ResetPresence(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET is_online=FALSE WHERE is_online`)
	return err
}
