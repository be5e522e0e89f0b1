package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"studybuddy-backend/internal/middleware"
	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/services"
)

type DocumentAPI interface {
	List(ctx context.Context, userID uuid.UUID) ([]*models.Document, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*models.Document, error)
	Upload(ctx context.Context, userID uuid.UUID, in services.UploadInput) (*models.Document, error)
	ImportYouTube(ctx context.Context, userID uuid.UUID, req models.ImportYouTubeRequest) (*models.Document, error)
	Open(ctx context.Context, userID, id uuid.UUID) (*models.Document, io.ReadCloser, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type DocumentHandler struct {
	docs DocumentAPI
}

func NewDocumentHandler(docs DocumentAPI) *DocumentHandler {
	return &DocumentHandler{docs: docs}
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.docs.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	docID, ok := uuidParam(w, r, "id", "document")
	if !ok {
		return
	}

	doc, err := h.docs.Get(r.Context(), middleware.GetUserID(r.Context()), docID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"document": doc})
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > services.MaxUploadBytes+(1<<20) {
		writeJSON(w, http.StatusBadRequest, errorResp("FILE_TOO_LARGE", "File exceeds 50MB limit", r))
		return
	}

	// Room for the multipart envelope on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxUploadBytes+(1<<20))

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusBadRequest, errorResp("FILE_TOO_LARGE", "File exceeds 50MB limit", r))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "No file provided",
			map[string]string{"file": "No file provided"}, r))
		return
	}
	defer file.Close()

	in := services.UploadInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
		Title:       services.SanitizeString(r.FormValue("title")),
		Subject:     services.SanitizeString(r.FormValue("subject")),
	}
	if raw := strings.TrimSpace(r.FormValue("room_id")); raw != "" {
		roomID, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Invalid room ID",
				map[string]string{"room_id": "Invalid room ID"}, r))
			return
		}
		in.RoomID = &roomID
	}

	doc, err := h.docs.Upload(r.Context(), middleware.GetUserID(r.Context()), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":  "Document uploaded successfully",
		"document": doc,
	})
}

func (h *DocumentHandler) ImportYouTube(w http.ResponseWriter, r *http.Request) {
	var req models.ImportYouTubeRequest
	if err := decodeSanitized(r, &req); err != nil {
		writeBadBody(w, r)
		return
	}

	doc, err := h.docs.ImportYouTube(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":  "Transcript imported successfully",
		"document": doc,
	})
}

func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	docID, ok := uuidParam(w, r, "id", "document")
	if !ok {
		return
	}

	doc, body, err := h.docs.Open(r.Context(), middleware.GetUserID(r.Context()), docID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	defer body.Close()

	contentType := doc.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}))
	if doc.FileSize > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(doc.FileSize, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("document download interrupted", "document_id", doc.ID, "error", err)
	}
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	docID, ok := uuidParam(w, r, "id", "document")
	if !ok {
		return
	}

	if err := h.docs.Delete(r.Context(), middleware.GetUserID(r.Context()), docID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Document deleted successfully"})
}
