package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"

	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/repository"
	"studybuddy-backend/internal/storage"
)

type memDocs struct{ docs map[uuid.UUID]*models.Document }

func (m *memDocs) Create(_ context.Context, d *models.Document) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	cp := *d
	m.docs[d.ID] = &cp
	return nil
}

func (m *memDocs) GetForUser(_ context.Context, id, userID uuid.UUID) (*models.Document, error) {
	d, ok := m.docs[id]
	if !ok || d.UploaderID != userID {
		return nil, repository.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memDocs) ListByUser(context.Context, uuid.UUID) ([]*models.Document, error) {
	return nil, nil
}

func (m *memDocs) Delete(_ context.Context, id, _ uuid.UUID) error {
	delete(m.docs, id)
	return nil
}

type memFiles struct{ objects map[string][]byte }

func (m *memFiles) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	m.objects[key] = data
	return err
}

func (m *memFiles) Open(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memFiles) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

type stubVideos struct {
	title         string
	transcript    string
	transcriptErr error
}

func (s stubVideos) Title(context.Context, string) (string, error) { return s.title, nil }

func (s stubVideos) Transcript(context.Context, string) (string, error) {
	return s.transcript, s.transcriptErr
}

func newDocumentFixture(videos VideoSource) (*DocumentService, *memDocs, *memFiles, *fakeRoomStore) {
	docs := &memDocs{docs: map[uuid.UUID]*models.Document{}}
	files := &memFiles{objects: map[string][]byte{}}
	rooms := newFakeRoomStore()
	return NewDocumentService(docs, files, NewTextExtractor(), videos, rooms), docs, files, rooms
}

func TestUpload_StoresFileAndText(t *testing.T) {
	svc, docs, files, _ := newDocumentFixture(stubVideos{})
	user := uuid.New()

	doc, err := svc.Upload(context.Background(), user, UploadInput{
		Filename: "Genetics Notes.txt",
		Body:     strings.NewReader("DNA  \n\n\nRNA"),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if doc.Title != "Genetics Notes" || doc.Source != models.DocumentSourceUpload {
		t.Errorf("unexpected document %+v", doc)
	}
	if doc.ExtractedText != "DNA\n\nRNA" {
		t.Errorf("extracted text = %q", doc.ExtractedText)
	}
	if doc.StorageKey == nil || string(files.objects[*doc.StorageKey]) != "DNA  \n\n\nRNA" {
		t.Error("file not stored under its key")
	}
	if _, ok := docs.docs[doc.ID]; !ok {
		t.Error("document row not created")
	}
}

func TestUpload_ExtractionFailureStillSucceeds(t *testing.T) {
	svc, _, _, _ := newDocumentFixture(stubVideos{})

	doc, err := svc.Upload(context.Background(), uuid.New(), UploadInput{Filename: "scan.pdf", Body: strings.NewReader("not really a pdf")})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.ExtractedText != "" {
		t.Errorf("expected empty text, got %q", doc.ExtractedText)
	}
}

func TestUpload_Rejections(t *testing.T) {
	svc, _, files, _ := newDocumentFixture(stubVideos{})
	ctx := context.Background()
	var verr *ValidationError

	if _, err := svc.Upload(ctx, uuid.New(), UploadInput{Filename: "run.exe", Body: strings.NewReader("x")}); !errors.As(err, &verr) {
		t.Errorf("bad extension: expected ValidationError, got %v", err)
	}
	big := io.LimitReader(zeroReader{}, MaxUploadBytes+10)
	if _, err := svc.Upload(ctx, uuid.New(), UploadInput{Filename: "big.txt", Body: big}); !errors.As(err, &verr) {
		t.Errorf("oversized: expected ValidationError, got %v", err)
	}

	var forbidden *ForbiddenError
	room := uuid.New()
	if _, err := svc.Upload(ctx, uuid.New(), UploadInput{Filename: "a.txt", Body: strings.NewReader("x"), RoomID: &room}); !errors.As(err, &forbidden) {
		t.Errorf("foreign room: expected ForbiddenError, got %v", err)
	}
	if len(files.objects) != 0 {
		t.Error("rejected uploads must not store files")
	}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 'a'
	}
	return len(p), nil
}

func TestOpenAndDelete(t *testing.T) {
	svc, docs, files, _ := newDocumentFixture(stubVideos{})
	ctx := context.Background()
	user := uuid.New()
	doc, _ := svc.Upload(ctx, user, UploadInput{Filename: "a.md", Body: strings.NewReader("# A")})

	var nf *NotFoundError
	if _, _, err := svc.Open(ctx, uuid.New(), doc.ID); !errors.As(err, &nf) {
		t.Errorf("foreign open: expected NotFoundError, got %v", err)
	}

	_, rc, err := svc.Open(ctx, user, doc.ID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "# A" {
		t.Errorf("content = %q", data)
	}

	if err := svc.Delete(ctx, user, doc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(docs.docs) != 0 || len(files.objects) != 0 {
		t.Error("delete should remove the row and the file")
	}
}

func TestImportYouTube(t *testing.T) {
	svc, _, _, _ := newDocumentFixture(stubVideos{title: "Krebs Cycle Explained", transcript: "today we cover the krebs cycle"})
	ctx := context.Background()

	doc, err := svc.ImportYouTube(ctx, uuid.New(), models.ImportYouTubeRequest{URL: "https://youtu.be/dQw4w9WgXcQ"})
	if err != nil {
		t.Fatalf("ImportYouTube: %v", err)
	}
	if doc.Title != "Krebs Cycle Explained" || doc.Source != models.DocumentSourceYouTube || doc.StorageKey != nil {
		t.Errorf("unexpected document %+v", doc)
	}
	if doc.ExtractedText != "today we cover the krebs cycle" {
		t.Errorf("text = %q", doc.ExtractedText)
	}

	var verr *ValidationError
	if _, err := svc.ImportYouTube(ctx, uuid.New(), models.ImportYouTubeRequest{URL: "https://example.com"}); !errors.As(err, &verr) {
		t.Errorf("bad url: expected ValidationError, got %v", err)
	}

	noCaptions, _, _, _ := newDocumentFixture(stubVideos{transcriptErr: errors.New("disabled")})
	var bad *BadRequestError
	if _, err := noCaptions.ImportYouTube(ctx, uuid.New(), models.ImportYouTubeRequest{URL: "https://youtu.be/dQw4w9WgXcQ"}); !errors.As(err, &bad) {
		t.Errorf("no captions: expected BadRequestError, got %v", err)
	}
}
