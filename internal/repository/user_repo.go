package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"studybuddy-backend/internal/models"
)

type UserRepo struct {
	db DB
}

func NewUserRepo(db DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, email, username, first_name, last_name, password_hash,
	is_premium, premium_expires, total_study_time, created_at, updated_at`

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.FirstName, &u.LastName, &u.PasswordHash,
		&u.IsPremium, &u.PremiumExpires, &u.TotalStudyTime, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return u, nil
}

func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = uuid.New()
	query := `
		INSERT INTO users (id, email, username, first_name, last_name, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	return QuerierFromCtx(ctx, r.db).QueryRow(ctx, query,
		user.ID, user.Email, user.Username, user.FirstName, user.LastName, user.PasswordHash,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := QuerierFromCtx(ctx, r.db).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := QuerierFromCtx(ctx, r.db).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *UserRepo) UpdateProfile(ctx context.Context, user *models.User) error {
	_, err := QuerierFromCtx(ctx, r.db).Exec(ctx,
		`UPDATE users SET first_name = $1, last_name = $2, username = $3, updated_at = NOW() WHERE id = $4`,
		user.FirstName, user.LastName, user.Username, user.ID,
	)
	return err
}

// AddStudyTime increments the cumulative study minutes of a user.
func (r *UserRepo) AddStudyTime(ctx context.Context, userID uuid.UUID, minutes int) error {
	tag, err := QuerierFromCtx(ctx, r.db).Exec(ctx,
		`UPDATE users SET total_study_time = total_study_time + $1, updated_at = NOW() WHERE id = $2`,
		minutes, userID,
	)
	if err != nil {
		return fmt.Errorf("add study time: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepo) SetPremium(ctx context.Context, userID uuid.UUID, isPremium bool, expires *time.Time) error {
	tag, err := QuerierFromCtx(ctx, r.db).Exec(ctx,
		`UPDATE users SET is_premium = $1, premium_expires = $2, updated_at = NOW() WHERE id = $3`,
		isPremium, expires, userID,
	)
	if err != nil {
		return fmt.Errorf("set premium: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepo) GetStats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error) {
	stats := &models.UserStats{}
	err := QuerierFromCtx(ctx, r.db).QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM room_memberships WHERE user_id = $1 AND is_active)::INT,
			(SELECT COUNT(*) FROM flashcards WHERE user_id = $1)::INT,
			COALESCE((SELECT total_study_time FROM users WHERE id = $1), 0)`,
		userID,
	).Scan(&stats.RoomsJoined, &stats.Flashcards, &stats.TotalStudyTime)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return stats, nil
}
