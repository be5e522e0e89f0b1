package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	RoleOwner  = "owner"
	RoleMember = "member"

	DefaultMaxParticipants = 10
)

type StudyRoom struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Subject         string     `json:"subject"`
	OwnerID         uuid.UUID  `json:"owner_id"`
	MaxParticipants int        `json:"max_participants"`
	IsPrivate       bool       `json:"is_private"`
	IsActive        bool       `json:"is_active"`
	RoomCode        string     `json:"room_code"`
	MemberCount     int        `json:"member_count"`
	Whiteboard      Whiteboard `json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
}

// CanJoin reports whether one more member fits. activeMembers must be a live count.
func (r *StudyRoom) CanJoin(activeMembers int) bool {
	return r.IsActive && activeMembers < r.MaxParticipants
}

// Whiteboard is stored whole and overwritten on every write. Version grows by
// one per write and is not checked against the caller.
type Whiteboard struct {
	Data      json.RawMessage `json:"whiteboard_data"`
	Version   int             `json:"version"`
	UpdatedBy *uuid.UUID      `json:"updated_by,omitempty"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

type RoomMembership struct {
	ID       uuid.UUID `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	RoomID   uuid.UUID `json:"room_id"`
	Role     string    `json:"role"`
	IsActive bool      `json:"is_active"`
	JoinedAt time.Time `json:"joined_at"`
}

type RoomMember struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type RoomDetail struct {
	*StudyRoom
	Members []RoomMember `json:"members"`
}

type StudySession struct {
	ID              uuid.UUID  `json:"id"`
	RoomID          uuid.UUID  `json:"room_id"`
	UserID          uuid.UUID  `json:"user_id"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	DurationMinutes *int       `json:"duration_minutes"`
}

type CreateRoomRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Subject         string `json:"subject"`
	MaxParticipants *int   `json:"max_participants"`
	IsPrivate       bool   `json:"is_private"`
}

type JoinByCodeRequest struct {
	RoomCode string `json:"room_code"`
}

type UpdateWhiteboardRequest struct {
	WhiteboardData json.RawMessage `json:"whiteboard_data"`
}

// RoomEvent is fanned out to websocket clients watching a room.
type RoomEvent struct {
	Type   string    `json:"type"`
	RoomID uuid.UUID `json:"room_id"`
	UserID uuid.UUID `json:"user_id"`
	Data   any       `json:"data,omitempty"`
	At     time.Time `json:"at"`
}

const (
	EventMemberJoined      = "member_joined"
	EventMemberLeft        = "member_left"
	EventWhiteboardUpdated = "whiteboard_updated"
	EventSessionStarted    = "session_started"
	EventSessionEnded      = "session_ended"
)
