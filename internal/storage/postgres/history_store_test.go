package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/web-archiver/internal/archive"
	"github.com/JakeFAU/web-archiver/internal/events"
)

func TestRecordTransitionInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewHistoryStoreWithPool(mock, "")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	evt := events.Event{
		RunID:     "run-1",
		RecordID:  "Ab12Cd",
		URL:       "https://example.com",
		Provider:  "wayback",
		From:      archive.StatusRequested,
		To:        archive.StatusError,
		ErrorCode: 503,
		TS:        now,
	}

	mock.ExpectExec("INSERT INTO archive_transitions").
		WithArgs("run-1", "Ab12Cd", "https://example.com", "wayback", "requested", "error", "", 503, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.RecordTransition(context.Background(), evt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordTransitionPropagatesErrors(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewHistoryStoreWithPool(mock, "transitions")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO transitions").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err = store.RecordTransition(context.Background(), events.Event{
		RecordID: "Ab12Cd",
		Provider: "wayback",
		To:       archive.StatusArchived,
		TS:       time.Now(),
	})
	require.ErrorContains(t, err, "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewHistoryStoreWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS archive_transitions").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryReadsRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewHistoryStoreWithPool(mock, "")
	require.NoError(t, err)

	t1 := time.Unix(1700000000, 0).UTC()
	t2 := t1.Add(time.Second)
	rows := pgxmock.NewRows([]string{
		"run_id", "record_id", "url", "provider", "from_status", "to_status", "location", "error_code", "occurred_at",
	}).
		AddRow("run-1", "Ab12Cd", "https://example.com", "wayback", "not_started", "requested", "", 0, t1).
		AddRow("run-1", "Ab12Cd", "https://example.com", "wayback", "requested", "archived", "https://snap", 0, t2)

	mock.ExpectQuery("SELECT (.+) FROM archive_transitions").
		WithArgs("Ab12Cd", 100).
		WillReturnRows(rows)

	got, err := store.History(context.Background(), "Ab12Cd", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, archive.StatusRequested, got[0].To)
	assert.Equal(t, archive.StatusArchived, got[1].To)
	assert.Equal(t, "https://snap", got[1].Location)
	assert.True(t, got[1].TS.Equal(t2))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewHistoryStoreValidation(t *testing.T) {
	t.Parallel()

	_, err := NewHistoryStoreWithPool(nil, "")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewHistoryStoreWithPool(mock, "bad-name;")
	require.Error(t, err)

	_, err = NewHistoryStore(context.Background(), HistoryStoreConfig{})
	require.Error(t, err)
}
