package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"

	"studybuddy-backend/internal/metrics"
	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/repository"
)

type fakeTx struct{ calls int }

func (f *fakeTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }
func newClock() *clock { return &clock{t: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)} }
func testMetrics() metrics.Recorder { return metrics.NewCollector(prometheus.NewRegistry()) }
func ptr[T any](v T) *T { return &v }

type membershipKey struct{ user, room uuid.UUID }

type fakeRoomStore struct {
	rooms       map[uuid.UUID]*models.StudyRoom
	memberships map[membershipKey]*models.RoomMembership
	whiteboards map[uuid.UUID]*models.Whiteboard
	usernames   map[uuid.UUID]string
	inserts     int

	// beforeInsert runs once, just before the next membership insert.
	beforeInsert func()
}

func newFakeRoomStore() *fakeRoomStore {
	return &fakeRoomStore{
		rooms:       map[uuid.UUID]*models.StudyRoom{},
		memberships: map[membershipKey]*models.RoomMembership{},
		whiteboards: map[uuid.UUID]*models.Whiteboard{},
		usernames:   map[uuid.UUID]string{},
	}
}

func (f *fakeRoomStore) activeCount(roomID uuid.UUID) int {
	n := 0
	for k, m := range f.memberships {
		if k.room == roomID && m.IsActive {
			n++
		}
	}
	return n
}

func (f *fakeRoomStore) Create(_ context.Context, room *models.StudyRoom) error {
	room.ID = uuid.New()
	room.IsActive = true
	room.CreatedAt = time.Now()
	cp := *room
	f.rooms[room.ID] = &cp
	f.whiteboards[room.ID] = &models.Whiteboard{Data: json.RawMessage("{}")}
	return nil
}

func (f *fakeRoomStore) GetByID(_ context.Context, id uuid.UUID) (*models.StudyRoom, error) {
	r, ok := f.rooms[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	cp.MemberCount = f.activeCount(id)
	return &cp, nil
}

func (f *fakeRoomStore) GetActiveByCode(ctx context.Context, code string) (*models.StudyRoom, error) {
	for id, r := range f.rooms {
		if r.RoomCode == code && r.IsActive {
			return f.GetByID(ctx, id)
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRoomStore) CodeExists(_ context.Context, code string) (bool, error) {
	for _, r := range f.rooms {
		if r.RoomCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRoomStore) ListVisible(_ context.Context, userID uuid.UUID) ([]*models.StudyRoom, error) {
	var out []*models.StudyRoom
	for id, r := range f.rooms {
		m, member := f.memberships[membershipKey{userID, id}]
		if r.IsActive && (!r.IsPrivate || r.OwnerID == userID || (member && m.IsActive)) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRoomStore) CountActiveMembers(_ context.Context, roomID uuid.UUID) (int, error) {
	return f.activeCount(roomID), nil
}

func (f *fakeRoomStore) GetMembership(_ context.Context, userID, roomID uuid.UUID) (*models.RoomMembership, error) {
	m, ok := f.memberships[membershipKey{userID, roomID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeRoomStore) CreateMembership(_ context.Context, m *models.RoomMembership) error {
	if hook := f.beforeInsert; hook != nil {
		f.beforeInsert = nil
		hook()
	}
	if _, exists := f.memberships[membershipKey{m.UserID, m.RoomID}]; exists {
		return &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
	}
	f.inserts++
	m.ID = uuid.New()
	m.IsActive = true
	m.JoinedAt = time.Now()
	cp := *m
	f.memberships[membershipKey{m.UserID, m.RoomID}] = &cp
	return nil
}

func (f *fakeRoomStore) SetMembershipActive(_ context.Context, id uuid.UUID, active bool, at time.Time) error {
	for _, m := range f.memberships {
		if m.ID == id {
			m.IsActive = active
			if active {
				m.JoinedAt = at
			}
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeRoomStore) ListActiveMembers(_ context.Context, roomID uuid.UUID) ([]models.RoomMember, error) {
	members := []models.RoomMember{}
	for k, m := range f.memberships {
		if k.room == roomID && m.IsActive {
			members = append(members, models.RoomMember{UserID: k.user, Username: f.usernames[k.user], Role: m.Role, JoinedAt: m.JoinedAt})
		}
	}
	return members, nil
}

func (f *fakeRoomStore) GetWhiteboard(_ context.Context, roomID uuid.UUID) (*models.Whiteboard, error) {
	wb, ok := f.whiteboards[roomID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *wb
	return &cp, nil
}

func (f *fakeRoomStore) ReplaceWhiteboard(_ context.Context, roomID, userID uuid.UUID, data json.RawMessage) (*models.Whiteboard, error) {
	wb, ok := f.whiteboards[roomID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	now := time.Now()
	wb.Data = data
	wb.Version++
	wb.UpdatedBy = &userID
	wb.UpdatedAt = &now
	cp := *wb
	return &cp, nil
}

type fakeSessionStore struct {
	sessions map[uuid.UUID]*models.StudySession
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[uuid.UUID]*models.StudySession{}}
}

func (f *fakeSessionStore) Create(_ context.Context, s *models.StudySession) error {
	s.ID = uuid.New()
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeSessionStore) GetOpen(_ context.Context, userID, roomID uuid.UUID) (*models.StudySession, error) {
	for _, s := range f.sessions {
		if s.UserID == userID && s.RoomID == roomID && s.EndTime == nil {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeSessionStore) GetForUser(_ context.Context, id, userID, roomID uuid.UUID) (*models.StudySession, error) {
	s, ok := f.sessions[id]
	if !ok || s.UserID != userID || s.RoomID != roomID {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionStore) End(_ context.Context, id uuid.UUID, end time.Time, minutes int) error {
	s, ok := f.sessions[id]
	if !ok || s.EndTime != nil {
		return repository.ErrNotFound
	}
	s.EndTime = &end
	s.DurationMinutes = &minutes
	return nil
}

type fakeStudyTime struct {
	minutes map[uuid.UUID]int
}

func (f *fakeStudyTime) AddStudyTime(_ context.Context, userID uuid.UUID, minutes int) error {
	if f.minutes == nil {
		f.minutes = map[uuid.UUID]int{}
	}
	f.minutes[userID] += minutes
	return nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []models.RoomEvent
}

func (f *fakeEvents) PublishRoomEvent(_ context.Context, e models.RoomEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeEvents) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.Type
	}
	return out
}
