package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/require"

	"studybuddy-backend/internal/models"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestTxManager_CommitsOnSuccess(t *testing.T) {
	mock := newMock(t)
	users := NewUserRepo(mock)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET total_study_time = total_study_time + $1")).
		WithArgs(25, userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := NewTxManager(mock).RunInTx(context.Background(), func(ctx context.Context) error {
		return users.AddStudyTime(ctx, userID, 25)
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTxManager_RollsBackOnError(t *testing.T) {
	mock := newMock(t)
	sessions := NewStudySessionRepo(mock)
	users := NewUserRepo(mock)
	sessionID, userID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE study_sessions SET end_time = $1")).
		WithArgs(pgxmock.AnyArg(), 12, sessionID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET total_study_time")).
		WithArgs(12, userID).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := NewTxManager(mock).RunInTx(context.Background(), func(ctx context.Context) error {
		if err := sessions.End(ctx, sessionID, time.Now(), 12); err != nil {
			return err
		}
		return users.AddStudyTime(ctx, userID, 12)
	})

	require.Error(t, err)
	require.Contains(t, err.Error(), "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTxManager_BeginFailure(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin().WillReturnError(errors.New("pool closed"))

	called := false
	err := NewTxManager(mock).RunInTx(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})

	require.Error(t, err)
	require.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	require.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	require.False(t, IsUniqueViolation(errors.New("plain")))
}

func TestUserRepo_AddStudyTime_MissingUser(t *testing.T) {
	mock := newMock(t)
	userID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET total_study_time")).
		WithArgs(3, userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := NewUserRepo(mock).AddStudyTime(context.Background(), userID, 3)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepo_CountActiveMembers(t *testing.T) {
	mock := newMock(t)
	roomID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)::INT FROM room_memberships WHERE room_id = $1 AND is_active")).
		WithArgs(roomID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	n, err := NewRoomRepo(mock).CountActiveMembers(context.Background(), roomID)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepo_GetMembership(t *testing.T) {
	userID, roomID, membershipID := uuid.New(), uuid.New(), uuid.New()
	joined := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM room_memberships WHERE user_id = $1 AND room_id = $2")).
			WithArgs(userID, roomID).
			WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "room_id", "role", "is_active", "joined_at"}).
				AddRow(membershipID, userID, roomID, models.RoleMember, false, joined))

		m, err := NewRoomRepo(mock).GetMembership(context.Background(), userID, roomID)
		require.NoError(t, err)
		require.Equal(t, membershipID, m.ID)
		require.Equal(t, models.RoleMember, m.Role)
		require.False(t, m.IsActive)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing maps to ErrNotFound", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM room_memberships WHERE user_id = $1 AND room_id = $2")).
			WithArgs(userID, roomID).
			WillReturnError(pgx.ErrNoRows)

		_, err := NewRoomRepo(mock).GetMembership(context.Background(), userID, roomID)
		require.ErrorIs(t, err, ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRoomRepo_SetMembershipActive(t *testing.T) {
	membershipID := uuid.New()
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	t.Run("reactivation resets joined_at", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE room_memberships SET is_active = TRUE, joined_at = $2 WHERE id = $1")).
			WithArgs(membershipID, at).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, NewRoomRepo(mock).SetMembershipActive(context.Background(), membershipID, true, at))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deactivation keeps joined_at", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE room_memberships SET is_active = FALSE WHERE id = $1")).
			WithArgs(membershipID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, NewRoomRepo(mock).SetMembershipActive(context.Background(), membershipID, false, at))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStudySessionRepo_End_AlreadyEnded(t *testing.T) {
	mock := newMock(t)
	sessionID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $3 AND end_time IS NULL")).
		WithArgs(pgxmock.AnyArg(), 5, sessionID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := NewStudySessionRepo(mock).End(context.Background(), sessionID, time.Now(), 5)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFlashcardRepo_SaveReview(t *testing.T) {
	mock := newMock(t)
	now := time.Now()
	next := now.AddDate(0, 0, 4)
	card := &models.Flashcard{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		TimesReviewed: 3,
		CorrectCount:  2,
		LastReviewed:  &now,
		NextReview:    &next,
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE flashcards SET times_reviewed = $1, correct_count = $2")).
		WithArgs(3, 2, pgxmock.AnyArg(), pgxmock.AnyArg(), card.ID, card.UserID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, NewFlashcardRepo(mock).SaveReview(context.Background(), card))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFlashcardRepo_SaveReview_ForeignCard(t *testing.T) {
	mock := newMock(t)
	card := &models.Flashcard{ID: uuid.New(), UserID: uuid.New()}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE flashcards SET")).
		WithArgs(0, 0, pgxmock.AnyArg(), pgxmock.AnyArg(), card.ID, card.UserID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := NewFlashcardRepo(mock).SaveReview(context.Background(), card)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
