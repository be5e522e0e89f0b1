package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"studybuddy-backend/internal/models"
)

type roomFixture struct {
	svc      *RoomService
	rooms    *fakeRoomStore
	sessions *fakeSessionStore
	users    *fakeStudyTime
	events   *fakeEvents
	clock    *clock
}

func newRoomFixture() *roomFixture {
	f := &roomFixture{
		rooms:    newFakeRoomStore(),
		sessions: newFakeSessionStore(),
		users:    &fakeStudyTime{},
		events:   &fakeEvents{},
		clock:    newClock(),
	}
	f.svc = NewRoomService(&fakeTx{}, f.rooms, f.sessions, f.users, f.events, testMetrics())
	f.svc.now = f.clock.Now
	return f
}

func (f *roomFixture) createRoom(t *testing.T, owner uuid.UUID, max int, private bool) *models.StudyRoom {
	t.Helper()
	room, err := f.svc.CreateRoom(context.Background(), owner, models.CreateRoomRequest{
		Name:            "Organic Chemistry",
		MaxParticipants: &max,
		IsPrivate:       private,
	})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	return room
}

func TestCreateRoom_RequiresName(t *testing.T) {
	f := newRoomFixture()

	_, err := f.svc.CreateRoom(context.Background(), uuid.New(), models.CreateRoomRequest{Name: "   "})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := verr.Fields["name"]; !ok {
		t.Errorf("expected name field error, got %v", verr.Fields)
	}
	if len(f.rooms.rooms) != 0 {
		t.Error("no room should be stored")
	}
}

func TestCreateRoom_RejectsNonPositiveCapacity(t *testing.T) {
	f := newRoomFixture()

	_, err := f.svc.CreateRoom(context.Background(), uuid.New(), models.CreateRoomRequest{
		Name:            "Zero",
		MaxParticipants: ptr(0),
	})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCreateRoom_CreatesOwnerMembership(t *testing.T) {
	f := newRoomFixture()
	owner := uuid.New()

	room, err := f.svc.CreateRoom(context.Background(), owner, models.CreateRoomRequest{Name: "Calculus"})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	if room.MaxParticipants != models.DefaultMaxParticipants {
		t.Errorf("expected default capacity %d, got %d", models.DefaultMaxParticipants, room.MaxParticipants)
	}
	if len(room.RoomCode) != roomCodeLength {
		t.Errorf("expected %d-char room code, got %q", roomCodeLength, room.RoomCode)
	}
	if room.MemberCount != 1 {
		t.Errorf("expected member count 1, got %d", room.MemberCount)
	}

	m, err := f.rooms.GetMembership(context.Background(), owner, room.ID)
	if err != nil {
		t.Fatalf("owner membership missing: %v", err)
	}
	if m.Role != models.RoleOwner || !m.IsActive {
		t.Errorf("expected active owner membership, got role=%s active=%v", m.Role, m.IsActive)
	}
}

func TestJoin_CapacityBoundary(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	room := f.createRoom(t, uuid.New(), 3, false)

	// owner + 1 = 2 active, one below max
	if _, err := f.svc.Join(ctx, uuid.New(), room.ID); err != nil {
		t.Fatalf("second member should join: %v", err)
	}
	joined, err := f.svc.Join(ctx, uuid.New(), room.ID)
	if err != nil {
		t.Fatalf("join at max-1 should succeed: %v", err)
	}
	if joined.MemberCount != 3 {
		t.Errorf("expected member count 3, got %d", joined.MemberCount)
	}

	_, err = f.svc.Join(ctx, uuid.New(), room.ID)
	var bad *BadRequestError
	if !errors.As(err, &bad) || bad.Message != "Room is full or inactive" {
		t.Fatalf("join at max should fail with capacity error, got %v", err)
	}
}

func TestJoin_InactiveRoom(t *testing.T) {
	f := newRoomFixture()
	room := f.createRoom(t, uuid.New(), 10, false)
	f.rooms.rooms[room.ID].IsActive = false

	_, err := f.svc.Join(context.Background(), uuid.New(), room.ID)

	var bad *BadRequestError
	if !errors.As(err, &bad) {
		t.Fatalf("expected BadRequestError, got %v", err)
	}
}

func TestJoin_MissingRoom(t *testing.T) {
	f := newRoomFixture()

	_, err := f.svc.Join(context.Background(), uuid.New(), uuid.New())

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestJoin_AlreadyMember(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	room := f.createRoom(t, uuid.New(), 10, false)
	user := uuid.New()

	if _, err := f.svc.Join(ctx, user, room.ID); err != nil {
		t.Fatalf("first join: %v", err)
	}
	_, err := f.svc.Join(ctx, user, room.ID)

	var conflict *ConflictError
	if !errors.As(err, &conflict) || conflict.Message != "Already a member of this room" {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

// Joins are not serialized: two joins that both pass the capacity check before
// either inserts will overfill the room. This is a known race.
func TestJoin_InterleavedJoinsCanOverfill(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	room := f.createRoom(t, uuid.New(), 2, false)

	var otherErr error
	f.rooms.beforeInsert = func() {
		_, otherErr = f.svc.Join(ctx, uuid.New(), room.ID)
	}

	if _, err := f.svc.Join(ctx, uuid.New(), room.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if otherErr != nil {
		t.Fatalf("interleaved join: %v", otherErr)
	}
	if got := f.rooms.activeCount(room.ID); got != 3 {
		t.Errorf("expected the room to be overfilled to 3 of 2, got %d", got)
	}
}

// The same user racing past the "already a member" check is stopped by the
// unique (user, room) index, which surfaces as a Conflict.
func TestJoin_InterleavedDuplicateIsConflict(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	room := f.createRoom(t, uuid.New(), 10, false)
	user := uuid.New()

	var otherErr error
	f.rooms.beforeInsert = func() {
		_, otherErr = f.svc.Join(ctx, user, room.ID)
	}

	_, err := f.svc.Join(ctx, user, room.ID)
	if otherErr != nil {
		t.Fatalf("interleaved join: %v", otherErr)
	}
	var conflict *ConflictError
	if !errors.As(err, &conflict) || conflict.Message != "Already a member of this room" {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if got := f.rooms.activeCount(room.ID); got != 2 {
		t.Errorf("expected one membership for the user, got %d active", got)
	}
}

func TestLeaveThenRejoin_ReusesMembershipRow(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	room := f.createRoom(t, uuid.New(), 10, false)
	user := uuid.New()

	if _, err := f.svc.Join(ctx, user, room.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	first, _ := f.rooms.GetMembership(ctx, user, room.ID)
	insertsAfterJoin := f.rooms.inserts

	if err := f.svc.Leave(ctx, user, room.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	left, _ := f.rooms.GetMembership(ctx, user, room.ID)
	if left.IsActive {
		t.Fatal("membership should be inactive after leave")
	}

	f.clock.Advance(2 * time.Hour)
	if _, err := f.svc.Join(ctx, user, room.ID); err != nil {
		t.Fatalf("rejoin: %v", err)
	}

	again, _ := f.rooms.GetMembership(ctx, user, room.ID)
	if f.rooms.inserts != insertsAfterJoin {
		t.Errorf("rejoin inserted a new row: inserts %d -> %d", insertsAfterJoin, f.rooms.inserts)
	}
	if again.ID != first.ID {
		t.Errorf("rejoin should reuse row %s, got %s", first.ID, again.ID)
	}
	if again.Role != models.RoleMember || !again.IsActive {
		t.Errorf("expected active member, got role=%s active=%v", again.Role, again.IsActive)
	}
	if !again.JoinedAt.Equal(f.clock.Now()) {
		t.Errorf("joined_at should reset to %v, got %v", f.clock.Now(), again.JoinedAt)
	}
}

func TestLeave_OwnerCannotLeave(t *testing.T) {
	for _, extraMembers := range []int{0, 1, 4} {
		f := newRoomFixture()
		ctx := context.Background()
		owner := uuid.New()
		room := f.createRoom(t, owner, 10, false)
		for range extraMembers {
			if _, err := f.svc.Join(ctx, uuid.New(), room.ID); err != nil {
				t.Fatalf("join: %v", err)
			}
		}

		err := f.svc.Leave(ctx, owner, room.ID)

		var bad *BadRequestError
		if !errors.As(err, &bad) || bad.Message != "Room owner cannot leave. Transfer ownership first." {
			t.Fatalf("members=%d: expected owner leave rejection, got %v", extraMembers, err)
		}
		m, _ := f.rooms.GetMembership(ctx, owner, room.ID)
		if !m.IsActive {
			t.Fatalf("members=%d: owner membership was deactivated", extraMembers)
		}
	}
}

func TestLeave_NotMember(t *testing.T) {
	f := newRoomFixture()
	room := f.createRoom(t, uuid.New(), 10, false)

	err := f.svc.Leave(context.Background(), uuid.New(), room.ID)

	var bad *BadRequestError
	if !errors.As(err, &bad) || bad.Message != "Not a member of this room" {
		t.Fatalf("expected not-member error, got %v", err)
	}
}

func TestJoinByCode(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	room := f.createRoom(t, uuid.New(), 10, true)

	t.Run("code required", func(t *testing.T) {
		_, err := f.svc.JoinByCode(ctx, uuid.New(), " ")
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("invalid code", func(t *testing.T) {
		_, err := f.svc.JoinByCode(ctx, uuid.New(), "NOPE0000")
		var nf *NotFoundError
		if !errors.As(err, &nf) || nf.Message != "Invalid room code" {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
	})

	t.Run("joins private room case-insensitively", func(t *testing.T) {
		user := uuid.New()
		lower := []byte(room.RoomCode)
		for i, c := range lower {
			if c >= 'A' && c <= 'Z' {
				lower[i] = c + ('a' - 'A')
			}
		}
		got, err := f.svc.JoinByCode(ctx, user, string(lower))
		if err != nil {
			t.Fatalf("JoinByCode: %v", err)
		}
		if got.ID != room.ID {
			t.Errorf("joined wrong room %s", got.ID)
		}
	})
}

func TestGetRoom_PrivateAccess(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	owner := uuid.New()
	room := f.createRoom(t, owner, 10, true)

	if _, err := f.svc.GetRoom(ctx, owner, room.ID); err != nil {
		t.Fatalf("owner should see private room: %v", err)
	}

	_, err := f.svc.GetRoom(ctx, uuid.New(), room.ID)
	var forbidden *ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError for outsider, got %v", err)
	}

	member := uuid.New()
	if _, err := f.svc.JoinByCode(ctx, member, room.RoomCode); err != nil {
		t.Fatalf("join: %v", err)
	}
	detail, err := f.svc.GetRoom(ctx, member, room.ID)
	if err != nil {
		t.Fatalf("member should see private room: %v", err)
	}
	if len(detail.Members) != 2 {
		t.Errorf("expected 2 members, got %d", len(detail.Members))
	}
}

func TestListRooms_NeverNil(t *testing.T) {
	f := newRoomFixture()

	rooms, err := f.svc.ListRooms(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("ListRooms: %v", err)
	}
	if rooms == nil {
		t.Error("expected empty slice, got nil")
	}
}

func TestStartSession_RequiresMembership(t *testing.T) {
	f := newRoomFixture()
	room := f.createRoom(t, uuid.New(), 10, false)

	_, err := f.svc.StartSession(context.Background(), uuid.New(), room.ID)

	var forbidden *ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
	if len(f.sessions.sessions) != 0 {
		t.Error("no session should be stored")
	}
}

func TestSession_OneOpenPerUserAndRoom(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	owner := uuid.New()
	room := f.createRoom(t, owner, 10, false)

	first, err := f.svc.StartSession(ctx, owner, room.ID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	_, err = f.svc.StartSession(ctx, owner, room.ID)
	var conflict *ConflictError
	if !errors.As(err, &conflict) || conflict.Message != "Session already active" {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	f.clock.Advance(10 * time.Minute)
	if _, err := f.svc.EndSession(ctx, owner, room.ID, first.ID); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	second, err := f.svc.StartSession(ctx, owner, room.ID)
	if err != nil {
		t.Fatalf("start after end should succeed: %v", err)
	}
	if second.ID == first.ID {
		t.Error("expected a new session row")
	}
}

func TestEndSession_CreditsWholeMinutes(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	owner := uuid.New()
	room := f.createRoom(t, owner, 10, false)

	session, err := f.svc.StartSession(ctx, owner, room.ID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	f.clock.Advance(59*time.Minute + 59*time.Second + 900*time.Millisecond)
	ended, err := f.svc.EndSession(ctx, owner, room.ID, session.ID)
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	if ended.DurationMinutes == nil || *ended.DurationMinutes != 59 {
		t.Fatalf("expected 59 minutes, got %v", ended.DurationMinutes)
	}
	if ended.EndTime == nil || !ended.EndTime.Equal(f.clock.Now()) {
		t.Errorf("end_time should be now, got %v", ended.EndTime)
	}
	if got := f.users.minutes[owner]; got != 59 {
		t.Errorf("expected 59 minutes credited, got %d", got)
	}

	_, err = f.svc.EndSession(ctx, owner, room.ID, session.ID)
	var bad *BadRequestError
	if !errors.As(err, &bad) || bad.Message != "Session already ended" {
		t.Fatalf("expected already-ended error, got %v", err)
	}
	if got := f.users.minutes[owner]; got != 59 {
		t.Errorf("second end must not credit again, total %d", got)
	}
}

func TestEndSession_OtherUsersSession(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	owner := uuid.New()
	room := f.createRoom(t, owner, 10, false)
	session, _ := f.svc.StartSession(ctx, owner, room.ID)

	_, err := f.svc.EndSession(ctx, uuid.New(), room.ID, session.ID)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	_, err = f.svc.EndSession(ctx, owner, uuid.New(), session.ID)
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError for wrong room, got %v", err)
	}
}

func TestSessionDurationMinutes(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		elapsed time.Duration
		want    int
	}{
		{0, 0},
		{59 * time.Second, 0},
		{60 * time.Second, 1},
		{119*time.Second + 999*time.Millisecond, 1},
		{time.Hour, 60},
		{-time.Minute, 0},
	}
	for _, tc := range tests {
		if got := SessionDurationMinutes(start, start.Add(tc.elapsed)); got != tc.want {
			t.Errorf("SessionDurationMinutes(%v) = %d, want %d", tc.elapsed, got, tc.want)
		}
	}
}

func TestWhiteboard_MembersOnlyAndVersioned(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	owner := uuid.New()
	room := f.createRoom(t, owner, 10, false)

	_, err := f.svc.GetWhiteboard(ctx, uuid.New(), room.ID)
	var forbidden *ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}

	wb, err := f.svc.UpdateWhiteboard(ctx, owner, room.ID, json.RawMessage(`{"strokes":[1,2]}`))
	if err != nil {
		t.Fatalf("UpdateWhiteboard: %v", err)
	}
	if wb.Version != 1 {
		t.Errorf("expected version 1, got %d", wb.Version)
	}

	wb, err = f.svc.UpdateWhiteboard(ctx, owner, room.ID, nil)
	if err != nil {
		t.Fatalf("UpdateWhiteboard: %v", err)
	}
	if wb.Version != 2 || string(wb.Data) != "{}" {
		t.Errorf("expected empty doc at version 2, got %s v%d", wb.Data, wb.Version)
	}

	got, err := f.svc.GetWhiteboard(ctx, owner, room.ID)
	if err != nil {
		t.Fatalf("GetWhiteboard: %v", err)
	}
	if string(got.Data) != "{}" {
		t.Errorf("last write should win, got %s", got.Data)
	}
}

func TestRoomEvents_PublishedAfterTransitions(t *testing.T) {
	f := newRoomFixture()
	ctx := context.Background()
	room := f.createRoom(t, uuid.New(), 10, false)
	user := uuid.New()

	if _, err := f.svc.Join(ctx, user, room.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	s, _ := f.svc.StartSession(ctx, user, room.ID)
	_, _ = f.svc.EndSession(ctx, user, room.ID, s.ID)
	_ = f.svc.Leave(ctx, user, room.ID)
	_, _ = f.svc.Join(ctx, user, room.ID)
	_, _ = f.svc.Join(ctx, user, room.ID) // rejected, no event

	want := []string{
		models.EventMemberJoined, models.EventSessionStarted, models.EventSessionEnded,
		models.EventMemberLeft, models.EventMemberJoined,
	}
	got := f.events.types()
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}
