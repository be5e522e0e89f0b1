package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/repository"
	"studybuddy-backend/internal/storage"
)

// MaxUploadBytes caps a single document upload.
const MaxUploadBytes = 50 << 20

var allowedUploadExts = map[string]bool{".pdf": true, ".docx": true, ".txt": true, ".md": true}

var errDocumentNotFound = &NotFoundError{Message: "Document not found"}

type DocumentStore interface {
	Create(ctx context.Context, d *models.Document) error
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Document, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Document, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type Extractor interface {
	Extract(filename string, data []byte) (string, error)
}

// MembershipLookup is the slice of the room store needed to attach a document to a room.
type MembershipLookup interface {
	GetMembership(ctx context.Context, userID, roomID uuid.UUID) (*models.RoomMembership, error)
}

type UploadInput struct {
	Filename    string
	ContentType string
	Body        io.Reader
	Title       string
	Subject     string
	RoomID      *uuid.UUID
}

type DocumentService struct {
	docs      DocumentStore
	files     storage.Storage
	extractor Extractor
	videos    VideoSource
	rooms     MembershipLookup
}

func NewDocumentService(docs DocumentStore, files storage.Storage, extractor Extractor, videos VideoSource, rooms MembershipLookup) *DocumentService {
	return &DocumentService{docs: docs, files: files, extractor: extractor, videos: videos, rooms: rooms}
}

func (s *DocumentService) List(ctx context.Context, userID uuid.UUID) ([]*models.Document, error) {
	return s.docs.ListByUser(ctx, userID)
}

func (s *DocumentService) Get(ctx context.Context, userID, id uuid.UUID) (*models.Document, error) {
	doc, err := s.docs.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, notFoundOr(err, errDocumentNotFound.Message)
	}
	return doc, nil
}

// Upload stores the file and its extracted text. Extraction failures leave the text empty.
func (s *DocumentService) Upload(ctx context.Context, userID uuid.UUID, in UploadInput) (*models.Document, error) {
	filename := filepath.Base(strings.TrimSpace(in.Filename))
	ext := strings.ToLower(filepath.Ext(filename))
	if filename == "" || filename == "." || !allowedUploadExts[ext] {
		return nil, newValidationError("file", "Unsupported file type. Allowed: .pdf, .docx, .txt, .md")
	}

	data, err := io.ReadAll(io.LimitReader(in.Body, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, newValidationError("file", "File exceeds 50MB limit")
	}
	if len(data) == 0 {
		return nil, newValidationError("file", "File is empty")
	}

	if err := s.checkRoom(ctx, userID, in.RoomID); err != nil {
		return nil, err
	}

	contentType := in.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			contentType = byExt
		}
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}

	doc := &models.Document{
		ID:         uuid.New(),
		UploaderID: userID,
		RoomID:     in.RoomID,
		Title:      title,
		Subject:    strings.TrimSpace(in.Subject),
		Filename:   filename,
		FileSize:   int64(len(data)),
		MimeType:   contentType,
		Source:     models.DocumentSourceUpload,
	}
	key := fmt.Sprintf("documents/%s/%s%s", userID, doc.ID, ext)
	doc.StorageKey = &key

	if err := s.files.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	text, err := s.extractor.Extract(filename, data)
	if err != nil {
		slog.WarnContext(ctx, "text extraction failed", "document_id", doc.ID, "filename", filename, "error", err)
		text = ""
	}
	doc.ExtractedText = text

	if err := s.docs.Create(ctx, doc); err != nil {
		s.removeFile(ctx, key)
		return nil, fmt.Errorf("create document: %w", err)
	}
	return doc, nil
}

func (s *DocumentService) checkRoom(ctx context.Context, userID uuid.UUID, roomID *uuid.UUID) error {
	if roomID == nil {
		return nil
	}
	m, err := s.rooms.GetMembership(ctx, userID, *roomID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !m.IsActive) {
		return errNotMember
	}
	return err
}

// ImportYouTube stores a video's transcript as a text-only document.
func (s *DocumentService) ImportYouTube(ctx context.Context, userID uuid.UUID, req models.ImportYouTubeRequest) (*models.Document, error) {
	rawURL := strings.TrimSpace(req.URL)
	videoID, ok := ExtractVideoID(rawURL)
	if !ok {
		return nil, newValidationError("url", "Invalid YouTube URL")
	}

	transcript, err := s.videos.Transcript(ctx, videoID)
	if err != nil {
		slog.WarnContext(ctx, "transcript fetch failed", "video_id", videoID, "error", err)
		return nil, &BadRequestError{Message: "No transcript available for this video"}
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title, err = s.videos.Title(ctx, videoID)
		if err != nil || strings.TrimSpace(title) == "" {
			slog.WarnContext(ctx, "video title lookup failed", "video_id", videoID, "error", err)
			title = "YouTube video " + videoID
		}
	}

	doc := &models.Document{
		UploaderID:    userID,
		Title:         title,
		Subject:       strings.TrimSpace(req.Subject),
		Filename:      videoID,
		FileSize:      int64(len(transcript)),
		MimeType:      "text/plain",
		Source:        models.DocumentSourceYouTube,
		SourceURL:     &rawURL,
		ExtractedText: transcript,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return doc, nil
}

// Open returns the stored file of a document. The caller closes the reader.
func (s *DocumentService) Open(ctx context.Context, userID, id uuid.UUID) (*models.Document, io.ReadCloser, error) {
	doc, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	if doc.StorageKey == nil {
		return nil, nil, &NotFoundError{Message: "Document has no stored file"}
	}
	rc, err := s.files.Open(ctx, *doc.StorageKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, nil, &NotFoundError{Message: "Document file missing"}
	}
	if err != nil {
		return nil, nil, err
	}
	return doc, rc, nil
}

func (s *DocumentService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	doc, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, doc.ID, userID); err != nil {
		return notFoundOr(err, errDocumentNotFound.Message)
	}
	if doc.StorageKey != nil {
		s.removeFile(ctx, *doc.StorageKey)
	}
	return nil
}

func (s *DocumentService) removeFile(ctx context.Context, key string) {
	if err := s.files.Delete(ctx, key); err != nil {
		slog.WarnContext(ctx, "stored file cleanup failed", "key", key, "error", err)
	}
}
