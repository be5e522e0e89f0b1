package services

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"studybuddy-backend/internal/metrics"
	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/repository"
)

// TxRunner executes fn inside one database transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type RoomStore interface {
	Create(ctx context.Context, room *models.StudyRoom) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.StudyRoom, error)
	GetActiveByCode(ctx context.Context, code string) (*models.StudyRoom, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	ListVisible(ctx context.Context, userID uuid.UUID) ([]*models.StudyRoom, error)
	CountActiveMembers(ctx context.Context, roomID uuid.UUID) (int, error)
	GetMembership(ctx context.Context, userID, roomID uuid.UUID) (*models.RoomMembership, error)
	CreateMembership(ctx context.Context, m *models.RoomMembership) error
	SetMembershipActive(ctx context.Context, membershipID uuid.UUID, active bool, at time.Time) error
	ListActiveMembers(ctx context.Context, roomID uuid.UUID) ([]models.RoomMember, error)
	GetWhiteboard(ctx context.Context, roomID uuid.UUID) (*models.Whiteboard, error)
	ReplaceWhiteboard(ctx context.Context, roomID, userID uuid.UUID, data json.RawMessage) (*models.Whiteboard, error)
}

type SessionStore interface {
	Create(ctx context.Context, s *models.StudySession) error
	GetOpen(ctx context.Context, userID, roomID uuid.UUID) (*models.StudySession, error)
	GetForUser(ctx context.Context, sessionID, userID, roomID uuid.UUID) (*models.StudySession, error)
	End(ctx context.Context, sessionID uuid.UUID, endTime time.Time, durationMinutes int) error
}

type StudyTimeRecorder interface {
	AddStudyTime(ctx context.Context, userID uuid.UUID, minutes int) error
}

// EventPublisher fans room events out to live listeners.
type EventPublisher interface {
	PublishRoomEvent(ctx context.Context, event models.RoomEvent) error
}

const (
	roomCodeLength   = 8
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeAttempts = 5
)

var (
	errRoomNotFound  = &NotFoundError{Message: "Room not found"}
	errNotMember     = &ForbiddenError{Message: "Not a member of this room"}
	errRoomFull      = &BadRequestError{Message: "Room is full or inactive"}
	errAlreadyMember = &ConflictError{Message: "Already a member of this room"}
)

type RoomService struct {
	tx       TxRunner
	rooms    RoomStore
	sessions SessionStore
	users    StudyTimeRecorder
	events   EventPublisher
	metrics  metrics.Recorder
	now      func() time.Time
}

func NewRoomService(tx TxRunner, rooms RoomStore, sessions SessionStore, users StudyTimeRecorder, events EventPublisher, m metrics.Recorder) *RoomService {
	return &RoomService{
		tx:       tx,
		rooms:    rooms,
		sessions: sessions,
		users:    users,
		events:   events,
		metrics:  m,
		now:      time.Now,
	}
}

func (s *RoomService) ListRooms(ctx context.Context, userID uuid.UUID) ([]*models.StudyRoom, error) {
	rooms, err := s.rooms.ListVisible(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rooms == nil {
		rooms = []*models.StudyRoom{}
	}
	return rooms, nil
}

// CreateRoom inserts the room and the owner's membership together.
func (s *RoomService) CreateRoom(ctx context.Context, ownerID uuid.UUID, req models.CreateRoomRequest) (*models.StudyRoom, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, newValidationError("name", "Room name is required")
	}

	maxParticipants := models.DefaultMaxParticipants
	if req.MaxParticipants != nil {
		if *req.MaxParticipants < 1 {
			return nil, newValidationError("max_participants", "max_participants must be at least 1")
		}
		maxParticipants = *req.MaxParticipants
	}

	room := &models.StudyRoom{
		Name:            name,
		Description:     strings.TrimSpace(req.Description),
		Subject:         strings.TrimSpace(req.Subject),
		OwnerID:         ownerID,
		MaxParticipants: maxParticipants,
		IsPrivate:       req.IsPrivate,
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		code, err := s.uniqueRoomCode(ctx)
		if err != nil {
			return err
		}
		room.RoomCode = code

		if err := s.rooms.Create(ctx, room); err != nil {
			return fmt.Errorf("create room: %w", err)
		}
		return s.rooms.CreateMembership(ctx, &models.RoomMembership{
			UserID: ownerID,
			RoomID: room.ID,
			Role:   models.RoleOwner,
		})
	})
	if err != nil {
		return nil, err
	}

	room.MemberCount = 1
	return room, nil
}

// GetRoom returns the room with its active members. Private rooms are visible to
// their owner and active members only.
func (s *RoomService) GetRoom(ctx context.Context, userID, roomID uuid.UUID) (*models.RoomDetail, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, notFoundOr(err, errRoomNotFound.Message)
	}

	if room.IsPrivate && room.OwnerID != userID {
		active, err := s.isActiveMember(ctx, userID, roomID)
		if err != nil {
			return nil, err
		}
		if !active {
			return nil, &ForbiddenError{Message: "Access denied"}
		}
	}

	members, err := s.rooms.ListActiveMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return &models.RoomDetail{StudyRoom: room, Members: members}, nil
}

func (s *RoomService) Join(ctx context.Context, userID, roomID uuid.UUID) (*models.StudyRoom, error) {
	var room *models.StudyRoom
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		room, err = s.rooms.GetByID(ctx, roomID)
		if err != nil {
			return notFoundOr(err, errRoomNotFound.Message)
		}
		return s.joinRoom(ctx, userID, room)
	})
	if err != nil {
		s.recordJoin(err)
		return nil, err
	}

	s.recordJoin(nil)
	s.publish(ctx, models.EventMemberJoined, room.ID, userID, nil)
	return room, nil
}

func (s *RoomService) JoinByCode(ctx context.Context, userID uuid.UUID, code string) (*models.StudyRoom, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, newValidationError("room_code", "Room code is required")
	}

	var room *models.StudyRoom
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		room, err = s.rooms.GetActiveByCode(ctx, code)
		if err != nil {
			return notFoundOr(err, "Invalid room code")
		}
		return s.joinRoom(ctx, userID, room)
	})
	if err != nil {
		s.recordJoin(err)
		return nil, err
	}

	s.recordJoin(nil)
	s.publish(ctx, models.EventMemberJoined, room.ID, userID, nil)
	return room, nil
}

// joinRoom checks capacity against the live member count, then reactivates an
// existing row or inserts a new one. The check and the write are not serialized
// against concurrent joins, so simultaneous joins may overfill a room.
func (s *RoomService) joinRoom(ctx context.Context, userID uuid.UUID, room *models.StudyRoom) error {
	count, err := s.rooms.CountActiveMembers(ctx, room.ID)
	if err != nil {
		return fmt.Errorf("count members: %w", err)
	}
	if !room.CanJoin(count) {
		return errRoomFull
	}

	now := s.now()
	membership, err := s.rooms.GetMembership(ctx, userID, room.ID)
	switch {
	case err == nil && membership.IsActive:
		return errAlreadyMember
	case err == nil:
		if err := s.rooms.SetMembershipActive(ctx, membership.ID, true, now); err != nil {
			return fmt.Errorf("reactivate membership: %w", err)
		}
	case errors.Is(err, repository.ErrNotFound):
		err := s.rooms.CreateMembership(ctx, &models.RoomMembership{
			UserID: userID,
			RoomID: room.ID,
			Role:   models.RoleMember,
		})
		if repository.IsUniqueViolation(err) {
			return errAlreadyMember
		}
		if err != nil {
			return fmt.Errorf("create membership: %w", err)
		}
	default:
		return fmt.Errorf("load membership: %w", err)
	}

	room.MemberCount = count + 1
	return nil
}

func (s *RoomService) Leave(ctx context.Context, userID, roomID uuid.UUID) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		membership, err := s.rooms.GetMembership(ctx, userID, roomID)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && !membership.IsActive) {
			return &BadRequestError{Message: "Not a member of this room"}
		}
		if err != nil {
			return fmt.Errorf("load membership: %w", err)
		}
		if membership.Role == models.RoleOwner {
			return &BadRequestError{Message: "Room owner cannot leave. Transfer ownership first."}
		}
		return s.rooms.SetMembershipActive(ctx, membership.ID, false, s.now())
	})
	if err != nil {
		return err
	}

	s.publish(ctx, models.EventMemberLeft, roomID, userID, nil)
	return nil
}

func (s *RoomService) GetWhiteboard(ctx context.Context, userID, roomID uuid.UUID) (*models.Whiteboard, error) {
	if err := s.requireActiveMember(ctx, userID, roomID); err != nil {
		return nil, err
	}
	wb, err := s.rooms.GetWhiteboard(ctx, roomID)
	if err != nil {
		return nil, notFoundOr(err, errRoomNotFound.Message)
	}
	return wb, nil
}

// UpdateWhiteboard replaces the stored document wholesale. Empty input stores an empty object.
func (s *RoomService) UpdateWhiteboard(ctx context.Context, userID, roomID uuid.UUID, data json.RawMessage) (*models.Whiteboard, error) {
	if err := s.requireActiveMember(ctx, userID, roomID); err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		data = json.RawMessage("{}")
	} else if !json.Valid(data) {
		return nil, newValidationError("whiteboard_data", "whiteboard_data must be valid JSON")
	}

	wb, err := s.rooms.ReplaceWhiteboard(ctx, roomID, userID, data)
	if err != nil {
		return nil, notFoundOr(err, errRoomNotFound.Message)
	}

	s.publish(ctx, models.EventWhiteboardUpdated, roomID, userID, map[string]int{"version": wb.Version})
	return wb, nil
}

func (s *RoomService) StartSession(ctx context.Context, userID, roomID uuid.UUID) (*models.StudySession, error) {
	session := &models.StudySession{RoomID: roomID, UserID: userID}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.requireActiveMember(ctx, userID, roomID); err != nil {
			return err
		}

		_, err := s.sessions.GetOpen(ctx, userID, roomID)
		if err == nil {
			return &ConflictError{Message: "Session already active"}
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("load open session: %w", err)
		}

		session.StartTime = s.now()
		err = s.sessions.Create(ctx, session)
		if repository.IsUniqueViolation(err) {
			return &ConflictError{Message: "Session already active"}
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, models.EventSessionStarted, roomID, userID, map[string]uuid.UUID{"session_id": session.ID})
	return session, nil
}

// EndSession closes the caller's open session and credits its whole minutes to the user.
func (s *RoomService) EndSession(ctx context.Context, userID, roomID, sessionID uuid.UUID) (*models.StudySession, error) {
	var session *models.StudySession
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		session, err = s.sessions.GetForUser(ctx, sessionID, userID, roomID)
		if err != nil {
			return notFoundOr(err, "Session not found")
		}
		if session.EndTime != nil {
			return &BadRequestError{Message: "Session already ended"}
		}

		end := s.now()
		duration := SessionDurationMinutes(session.StartTime, end)
		if err := s.sessions.End(ctx, session.ID, end, duration); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return &BadRequestError{Message: "Session already ended"}
			}
			return err
		}
		if err := s.users.AddStudyTime(ctx, userID, duration); err != nil {
			return fmt.Errorf("credit study time: %w", err)
		}

		session.EndTime = &end
		session.DurationMinutes = &duration
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordStudyMinutes(*session.DurationMinutes)
	s.publish(ctx, models.EventSessionEnded, roomID, userID, map[string]int{"duration_minutes": *session.DurationMinutes})
	return session, nil
}

// SessionDurationMinutes is the elapsed time in whole seconds divided by 60, rounded down.
func SessionDurationMinutes(start, end time.Time) int {
	seconds := int(end.Sub(start).Seconds())
	if seconds < 0 {
		return 0
	}
	return seconds / 60
}

func (s *RoomService) isActiveMember(ctx context.Context, userID, roomID uuid.UUID) (bool, error) {
	m, err := s.rooms.GetMembership(ctx, userID, roomID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load membership: %w", err)
	}
	return m.IsActive, nil
}

func (s *RoomService) requireActiveMember(ctx context.Context, userID, roomID uuid.UUID) error {
	active, err := s.isActiveMember(ctx, userID, roomID)
	if err != nil {
		return err
	}
	if !active {
		return errNotMember
	}
	return nil
}

func (s *RoomService) uniqueRoomCode(ctx context.Context) (string, error) {
	for range roomCodeAttempts {
		code, err := generateRoomCode()
		if err != nil {
			return "", err
		}
		exists, err := s.rooms.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check room code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("could not allocate a unique room code")
}

func generateRoomCode() (string, error) {
	b := make([]byte, roomCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate room code: %w", err)
	}
	for i := range b {
		b[i] = roomCodeAlphabet[int(b[i])%len(roomCodeAlphabet)]
	}
	return string(b), nil
}

func (s *RoomService) recordJoin(err error) {
	var (
		full     *BadRequestError
		conflict *ConflictError
	)
	switch {
	case err == nil:
		s.metrics.RecordRoomJoin("joined")
	case errors.As(err, &full):
		s.metrics.RecordRoomJoin("full")
	case errors.As(err, &conflict):
		s.metrics.RecordRoomJoin("already_member")
	default:
		s.metrics.RecordRoomJoin("error")
	}
}

func (s *RoomService) publish(ctx context.Context, eventType string, roomID, userID uuid.UUID, data any) {
	if s.events == nil {
		return
	}
	event := models.RoomEvent{Type: eventType, RoomID: roomID, UserID: userID, Data: data, At: s.now()}
	if err := s.events.PublishRoomEvent(ctx, event); err != nil {
		slog.WarnContext(ctx, "room event publish failed", "type", eventType, "room_id", roomID, "error", err)
	}
}
