package service_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"go-fundo-ops/internal/apperr"
	"go-fundo-ops/internal/model"
	"go-fundo-ops/internal/offline"
	"go-fundo-ops/internal/repository"
	"go-fundo-ops/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(date, sector, evaluator, payload string) service.JournalEntry {
	return service.JournalEntry{Date: date, Sector: sector, Evaluator: evaluator, Payload: json.RawMessage(payload)}
}

func trapRow(date, sector, trap string, count int) service.JournalEntry {
	return entry(date, sector, "Ana", fmt.Sprintf(`{"trap_id":%q,"captures":[{"species":"Planococcus","count":%d}]}`, trap, count))
}

func TestAppendRejectsTheWholeCallOnOneBadRow(t *testing.T) {
	f := newFixture(t)

	_, err := f.journals.Append(f.ctx, model.JournalPhenology, []service.JournalEntry{
		entry("2025-03-08", "W1", "Ana", `{"row":1,"stages":[1,2,3,4,5]}`),
		entry("2025-03-08", "W1", "Ana", `{"row":26,"stages":[1,2,3,4,5]}`),
	}, "ana@fundo")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Contains(t, err.Error(), "row 1")

	_, err = f.journals.Append(f.ctx, model.JournalPhenology, []service.JournalEntry{
		entry("2025-03-08", "W1", "Ana", `{"row":1,"stages":[1,2,3,4,5],"extra":true}`),
	}, "ana@fundo")
	assert.True(t, errors.Is(err, apperr.ErrValidation), "unknown payload fields are refused")

	_, err = f.journals.Append(f.ctx, model.JournalPhenology, []service.JournalEntry{
		entry("08/03/2025", "W1", "Ana", `{"row":1,"stages":[1,2,3,4,5]}`),
	}, "ana@fundo")
	assert.True(t, errors.Is(err, apperr.ErrValidation), "date format")

	_, err = f.journals.Append(f.ctx, "weather", []service.JournalEntry{entry("2025-03-08", "W1", "Ana", `{}`)}, "ana@fundo")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	rows, err := f.journals.List(f.ctx, model.JournalPhenology, repository.JournalFilter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAppendAndSessions(t *testing.T) {
	f := newFixture(t)

	rows, err := f.journals.Append(f.ctx, model.JournalThinning, []service.JournalEntry{
		entry("2025-03-08", "W1", "Ana", `{"worker":"Juan","tandas":3}`),
		entry("2025-03-08", "W1", "Ana", `{"worker":"Pedro","tandas":2}`),
		entry("2025-03-09", "W1", "Ana", `{"worker":"Juan","tandas":1}`),
		entry("2025-03-08", "W2", "Luz", `{"worker":"Maria","tandas":4}`),
	}, "ana@fundo")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.NotEmpty(t, rows[0].RowID)
	assert.NotEqual(t, rows[0].RowID, rows[1].RowID)
	assert.Equal(t, day(2025, 3, 8), rows[0].Date)

	from := day(2025, 3, 9)
	listed, err := f.journals.List(f.ctx, model.JournalThinning, repository.JournalFilter{From: &from})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	sessions, err := f.journals.Sessions(f.ctx, model.JournalThinning, repository.JournalFilter{})
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "W1", sessions[0].Sector)
	assert.Equal(t, 2, sessions[0].Rows)
	assert.Equal(t, "W2", sessions[1].Sector)
	assert.Equal(t, day(2025, 3, 9), sessions[2].Date)

	_, err = f.journals.Append(f.ctx, model.JournalThinning, []service.JournalEntry{
		{RowID: rows[0].RowID, Date: "2025-03-10", Sector: "W1", Evaluator: "Ana", Payload: json.RawMessage(`{"worker":"Juan","tandas":1}`)},
	}, "ana@fundo")
	assert.True(t, errors.Is(err, apperr.ErrConflict), "row ids are unique, got %v", err)
}

func syncRecord(seq int64, payload string) offline.PendingRecord {
	return offline.PendingRecord{
		QueueID:   "traps",
		Seq:       seq,
		Payload:   json.RawMessage(payload),
		CreatedAt: time.Date(2025, 3, 9, 7, 0, 0, 0, time.UTC),
	}
}

func TestSyncAcceptsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	good := `{"date":"2025-03-09","sector":"W1","evaluator":"Ana","payload":{"trap_id":"T1","captures":[{"species":"Planococcus","count":3}]}}`
	bad := `{"date":"2025-03-09","sector":"W1","evaluator":"Ana","payload":{"trap_id":"T2","captures":[{"species":"Planococcus","count":-1}]}}`

	_, err := f.sync.Accept(f.ctx, "traps", []offline.PendingRecord{syncRecord(1, good), syncRecord(2, bad)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Contains(t, err.Error(), "record 1 (seq 2)")

	rows, err := f.journals.List(f.ctx, model.JournalTraps, repository.JournalFilter{})
	require.NoError(t, err)
	assert.Empty(t, rows, "a rejected batch writes nothing")

	n, err := f.sync.Accept(f.ctx, "traps", []offline.PendingRecord{syncRecord(1, good), syncRecord(2, good)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// the same queue flushed twice collides on the derived row ids
	_, err = f.sync.Accept(f.ctx, "traps", []offline.PendingRecord{syncRecord(1, good)})
	assert.True(t, errors.Is(err, apperr.ErrConflict), "got %v", err)

	n, err = f.sync.Accept(f.ctx, "traps", nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.sync.Accept(f.ctx, "unknown", []offline.PendingRecord{syncRecord(1, good)})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestQueueFlushThroughLocalSink(t *testing.T) {
	f := newFixture(t)
	store, err := offline.OpenSQLiteStore(t.TempDir() + "/queue.db")
	require.NoError(t, err)
	q := offline.NewQueue(store, offline.NewLocalSink(f.sync), nil)
	defer q.Close()

	for _, count := range []int{2, 5} {
		row := trapRow("2025-03-09", "W1", "T1", count)
		raw, err := json.Marshal(row)
		require.NoError(t, err)
		_, err = q.Enqueue(f.ctx, "traps", raw)
		require.NoError(t, err)
	}

	n, err := q.Flush(f.ctx, "traps")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := q.Count(f.ctx, "traps")
	require.NoError(t, err)
	assert.Zero(t, left)

	rows, err := f.journals.List(f.ctx, model.JournalTraps, repository.JournalFilter{})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
