package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messenger-service/internal/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// UserRepository abstracts user persistence.
type UserRepository interface {
	Create(ctx context.Context, user models.User) (models.User, error)
	GetByID(ctx context.Context, id int) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	Search(ctx context.Context, query string, excludeID int, limit int) ([]models.User, error)
	UpdateUsername(ctx context.Context, id int, username string) error
	UpdateAvatar(ctx context.Context, id int, avatarURL string) error
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
	SetOnline(ctx context.Context, id int, online bool, at time.Time) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts a new user and returns it with the generated id.
func (r *UserRepo) Create(ctx context.Context, user models.User) (models.User, error) {
	query := `INSERT INTO users (username, email, password_hash, avatar_url)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`
	err := r.db.QueryRowxContext(ctx, query, user.Username, user.Email, user.PasswordHash, user.AvatarURL).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrUserExists
		}
		return models.User{}, err
	}
	return user, nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetByUsername fetches a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE username=$1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// Search returns users whose username contains query, excluding excludeID.
func (r *UserRepo) Search(ctx context.Context, query string, excludeID int, limit int) ([]models.User, error) {
	users := []models.User{}
	err := r.db.SelectContext(ctx, &users,
		`SELECT * FROM users WHERE username ILIKE '%' || $1 || '%' AND id != $2 ORDER BY username LIMIT $3`,
		query, excludeID, limit)
	return users, err
}

// UpdateUsername renames the user.
func (r *UserRepo) UpdateUsername(ctx context.Context, id int, username string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET username=$1 WHERE id=$2`, username, id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserExists
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateAvatar replaces the user's avatar URL.
func (r *UserRepo) UpdateAvatar(ctx context.Context, id int, avatarURL string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET avatar_url=$1 WHERE id=$2`, avatarURL, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, passwordHash, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetOnline flips the presence flag and records the last-seen timestamp.
func (r *UserRepo) SetOnline(ctx context.Context, id int, online bool, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET is_online=$1, last_seen=$2 WHERE id=$3`, online, at, id)
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
