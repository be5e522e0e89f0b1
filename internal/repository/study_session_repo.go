package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"studybuddy-backend/internal/models"
)

type StudySessionRepo struct {
	db DB
}

func NewStudySessionRepo(db DB) *StudySessionRepo {
	return &StudySessionRepo{db: db}
}

const sessionColumns = `id, room_id, user_id, start_time, end_time, duration_minutes`

func scanSession(row rowScanner) (*models.StudySession, error) {
	s := &models.StudySession{}
	if err := row.Scan(&s.ID, &s.RoomID, &s.UserID, &s.StartTime, &s.EndTime, &s.DurationMinutes); err != nil {
		return nil, mapNoRows(err)
	}
	return s, nil
}

func (r *StudySessionRepo) Create(ctx context.Context, s *models.StudySession) error {
	s.ID = uuid.New()
	_, err := QuerierFromCtx(ctx, r.db).Exec(ctx,
		`INSERT INTO study_sessions (id, room_id, user_id, start_time) VALUES ($1, $2, $3, $4)`,
		s.ID, s.RoomID, s.UserID, s.StartTime,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetOpen returns the session of (user, room) that has no end_time yet.
func (r *StudySessionRepo) GetOpen(ctx context.Context, userID, roomID uuid.UUID) (*models.StudySession, error) {
	row := QuerierFromCtx(ctx, r.db).QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM study_sessions
		 WHERE user_id = $1 AND room_id = $2 AND end_time IS NULL`,
		userID, roomID,
	)
	return scanSession(row)
}

func (r *StudySessionRepo) GetForUser(ctx context.Context, sessionID, userID, roomID uuid.UUID) (*models.StudySession, error) {
	row := QuerierFromCtx(ctx, r.db).QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM study_sessions
		 WHERE id = $1 AND user_id = $2 AND room_id = $3`,
		sessionID, userID, roomID,
	)
	return scanSession(row)
}

// End closes an open session. It matches nothing if the session already ended.
func (r *StudySessionRepo) End(ctx context.Context, sessionID uuid.UUID, endTime time.Time, durationMinutes int) error {
	tag, err := QuerierFromCtx(ctx, r.db).Exec(ctx,
		`UPDATE study_sessions SET end_time = $1, duration_minutes = $2
		 WHERE id = $3 AND end_time IS NULL`,
		endTime, durationMinutes, sessionID,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
