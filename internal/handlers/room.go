package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"

	"studybuddy-backend/internal/middleware"
	"studybuddy-backend/internal/models"
)

type RoomAPI interface {
	ListRooms(ctx context.Context, userID uuid.UUID) ([]*models.StudyRoom, error)
	CreateRoom(ctx context.Context, ownerID uuid.UUID, req models.CreateRoomRequest) (*models.StudyRoom, error)
	GetRoom(ctx context.Context, userID, roomID uuid.UUID) (*models.RoomDetail, error)
	Join(ctx context.Context, userID, roomID uuid.UUID) (*models.StudyRoom, error)
	JoinByCode(ctx context.Context, userID uuid.UUID, code string) (*models.StudyRoom, error)
	Leave(ctx context.Context, userID, roomID uuid.UUID) error
	GetWhiteboard(ctx context.Context, userID, roomID uuid.UUID) (*models.Whiteboard, error)
	UpdateWhiteboard(ctx context.Context, userID, roomID uuid.UUID, data json.RawMessage) (*models.Whiteboard, error)
	StartSession(ctx context.Context, userID, roomID uuid.UUID) (*models.StudySession, error)
	EndSession(ctx context.Context, userID, roomID, sessionID uuid.UUID) (*models.StudySession, error)
}

type RoomHandler struct {
	rooms RoomAPI
}

func NewRoomHandler(rooms RoomAPI) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.rooms.ListRooms(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rooms": rooms})
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRoomRequest
	if err := decodeSanitized(r, &req); err != nil {
		writeBadBody(w, r)
		return
	}

	room, err := h.rooms.CreateRoom(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Room created successfully",
		"room":    room,
	})
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	roomID, ok := uuidParam(w, r, "id", "room")
	if !ok {
		return
	}

	room, err := h.rooms.GetRoom(r.Context(), middleware.GetUserID(r.Context()), roomID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"room": room})
}

func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	roomID, ok := uuidParam(w, r, "id", "room")
	if !ok {
		return
	}

	room, err := h.rooms.Join(r.Context(), middleware.GetUserID(r.Context()), roomID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Successfully joined room",
		"room":    room,
	})
}

func (h *RoomHandler) JoinByCode(w http.ResponseWriter, r *http.Request) {
	var req models.JoinByCodeRequest
	if err := decodeSanitized(r, &req); err != nil {
		writeBadBody(w, r)
		return
	}

	room, err := h.rooms.JoinByCode(r.Context(), middleware.GetUserID(r.Context()), req.RoomCode)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Successfully joined room",
		"room":    room,
	})
}

func (h *RoomHandler) Leave(w http.ResponseWriter, r *http.Request) {
	roomID, ok := uuidParam(w, r, "id", "room")
	if !ok {
		return
	}

	if err := h.rooms.Leave(r.Context(), middleware.GetUserID(r.Context()), roomID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Successfully left room"})
}

func (h *RoomHandler) GetWhiteboard(w http.ResponseWriter, r *http.Request) {
	roomID, ok := uuidParam(w, r, "id", "room")
	if !ok {
		return
	}

	wb, err := h.rooms.GetWhiteboard(r.Context(), middleware.GetUserID(r.Context()), roomID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wb)
}

// UpdateWhiteboard stores the blob as sent; it is opaque drawing data and skips sanitizing.
func (h *RoomHandler) UpdateWhiteboard(w http.ResponseWriter, r *http.Request) {
	roomID, ok := uuidParam(w, r, "id", "room")
	if !ok {
		return
	}

	var req models.UpdateWhiteboardRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil {
		writeBadBody(w, r)
		return
	}

	wb, err := h.rooms.UpdateWhiteboard(r.Context(), middleware.GetUserID(r.Context()), roomID, req.WhiteboardData)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Whiteboard updated successfully",
		"version": wb.Version,
	})
}

func (h *RoomHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	roomID, ok := uuidParam(w, r, "id", "room")
	if !ok {
		return
	}

	session, err := h.rooms.StartSession(r.Context(), middleware.GetUserID(r.Context()), roomID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Study session started",
		"session": session,
	})
}

func (h *RoomHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	roomID, ok := uuidParam(w, r, "id", "room")
	if !ok {
		return
	}
	sessionID, ok := uuidParam(w, r, "sid", "session")
	if !ok {
		return
	}

	session, err := h.rooms.EndSession(r.Context(), middleware.GetUserID(r.Context()), roomID, sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Study session ended",
		"session": session,
	})
}
