package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"studybuddy-backend/internal/models"
)

type RoomRepo struct {
	db DB
}

func NewRoomRepo(db DB) *RoomRepo {
	return &RoomRepo{db: db}
}

const roomSelect = `
	SELECT r.id, r.name, r.description, r.subject, r.owner_id, r.max_participants,
		r.is_private, r.is_active, r.room_code, r.created_at,
		(SELECT COUNT(*) FROM room_memberships m WHERE m.room_id = r.id AND m.is_active)::INT
	FROM study_rooms r`

func scanRoom(row rowScanner) (*models.StudyRoom, error) {
	room := &models.StudyRoom{}
	err := row.Scan(
		&room.ID, &room.Name, &room.Description, &room.Subject, &room.OwnerID, &room.MaxParticipants,
		&room.IsPrivate, &room.IsActive, &room.RoomCode, &room.CreatedAt, &room.MemberCount,
	)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return room, nil
}

func (r *RoomRepo) Create(ctx context.Context, room *models.StudyRoom) error {
	room.ID = uuid.New()
	room.IsActive = true
	query := `
		INSERT INTO study_rooms (id, name, description, subject, owner_id, max_participants, is_private, room_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	return QuerierFromCtx(ctx, r.db).QueryRow(ctx, query,
		room.ID, room.Name, room.Description, room.Subject, room.OwnerID,
		room.MaxParticipants, room.IsPrivate, room.RoomCode,
	).Scan(&room.CreatedAt)
}

func (r *RoomRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.StudyRoom, error) {
	return scanRoom(QuerierFromCtx(ctx, r.db).QueryRow(ctx, roomSelect+` WHERE r.id = $1`, id))
}

// GetActiveByCode resolves a join code among active rooms only.
func (r *RoomRepo) GetActiveByCode(ctx context.Context, code string) (*models.StudyRoom, error) {
	return scanRoom(QuerierFromCtx(ctx, r.db).QueryRow(ctx, roomSelect+` WHERE r.room_code = $1 AND r.is_active`, code))
}

func (r *RoomRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := QuerierFromCtx(ctx, r.db).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM study_rooms WHERE room_code = $1)`, code,
	).Scan(&exists)
	return exists, err
}

// ListVisible returns active rooms that are public, owned by the user, or joined by the user.
func (r *RoomRepo) ListVisible(ctx context.Context, userID uuid.UUID) ([]*models.StudyRoom, error) {
	rows, err := QuerierFromCtx(ctx, r.db).Query(ctx, roomSelect+`
		WHERE r.is_active AND (
			NOT r.is_private
			OR r.owner_id = $1
			OR EXISTS (SELECT 1 FROM room_memberships m WHERE m.room_id = r.id AND m.user_id = $1 AND m.is_active)
		)
		ORDER BY r.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*models.StudyRoom
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (r *RoomRepo) CountActiveMembers(ctx context.Context, roomID uuid.UUID) (int, error) {
	var n int
	err := QuerierFromCtx(ctx, r.db).QueryRow(ctx,
		`SELECT COUNT(*)::INT FROM room_memberships WHERE room_id = $1 AND is_active`, roomID,
	).Scan(&n)
	return n, err
}

func (r *RoomRepo) GetMembership(ctx context.Context, userID, roomID uuid.UUID) (*models.RoomMembership, error) {
	m := &models.RoomMembership{}
	err := QuerierFromCtx(ctx, r.db).QueryRow(ctx,
		`SELECT id, user_id, room_id, role, is_active, joined_at
		 FROM room_memberships WHERE user_id = $1 AND room_id = $2`,
		userID, roomID,
	).Scan(&m.ID, &m.UserID, &m.RoomID, &m.Role, &m.IsActive, &m.JoinedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return m, nil
}

func (r *RoomRepo) CreateMembership(ctx context.Context, m *models.RoomMembership) error {
	m.ID = uuid.New()
	m.IsActive = true
	return QuerierFromCtx(ctx, r.db).QueryRow(ctx,
		`INSERT INTO room_memberships (id, user_id, room_id, role, is_active)
		 VALUES ($1, $2, $3, $4, TRUE)
		 RETURNING joined_at`,
		m.ID, m.UserID, m.RoomID, m.Role,
	).Scan(&m.JoinedAt)
}

// SetMembershipActive toggles a membership row. Reactivation resets joined_at.
func (r *RoomRepo) SetMembershipActive(ctx context.Context, membershipID uuid.UUID, active bool, at time.Time) error {
	query := `UPDATE room_memberships SET is_active = FALSE WHERE id = $1`
	args := []any{membershipID}
	if active {
		query = `UPDATE room_memberships SET is_active = TRUE, joined_at = $2 WHERE id = $1`
		args = append(args, at)
	}

	tag, err := QuerierFromCtx(ctx, r.db).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RoomRepo) ListActiveMembers(ctx context.Context, roomID uuid.UUID) ([]models.RoomMember, error) {
	rows, err := QuerierFromCtx(ctx, r.db).Query(ctx, `
		SELECT m.user_id, u.username, m.role, m.joined_at
		FROM room_memberships m
		JOIN users u ON u.id = m.user_id
		WHERE m.room_id = $1 AND m.is_active
		ORDER BY m.joined_at`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := []models.RoomMember{}
	for rows.Next() {
		var m models.RoomMember
		if err := rows.Scan(&m.UserID, &m.Username, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *RoomRepo) GetWhiteboard(ctx context.Context, roomID uuid.UUID) (*models.Whiteboard, error) {
	wb := &models.Whiteboard{}
	err := QuerierFromCtx(ctx, r.db).QueryRow(ctx,
		`SELECT whiteboard_data, whiteboard_version, whiteboard_by, whiteboard_at FROM study_rooms WHERE id = $1`,
		roomID,
	).Scan(&wb.Data, &wb.Version, &wb.UpdatedBy, &wb.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return wb, nil
}

// ReplaceWhiteboard overwrites the stored document and bumps its version.
func (r *RoomRepo) ReplaceWhiteboard(ctx context.Context, roomID, userID uuid.UUID, data json.RawMessage) (*models.Whiteboard, error) {
	wb := &models.Whiteboard{Data: data}
	err := QuerierFromCtx(ctx, r.db).QueryRow(ctx, `
		UPDATE study_rooms
		SET whiteboard_data = $1, whiteboard_version = whiteboard_version + 1,
			whiteboard_by = $2, whiteboard_at = NOW()
		WHERE id = $3
		RETURNING whiteboard_version, whiteboard_by, whiteboard_at`,
		data, userID, roomID,
	).Scan(&wb.Version, &wb.UpdatedBy, &wb.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return wb, nil
}
