package history

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Seednode/spotduel/games/spotdiff"
)

type fakeStore struct {
	mu   sync.Mutex
	rows []Row
	err  error
	seen chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{seen: make(chan struct{}, 16)}
}

func (f *fakeStore) Insert(_ context.Context, row Row) error {
	f.mu.Lock()
	if f.err == nil {
		f.rows = append(f.rows, row)
	}
	err := f.err
	f.mu.Unlock()

	f.seen <- struct{}{}
	return err
}

func (f *fakeStore) saved() []Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Row(nil), f.rows...)
}

func sampleResult() spotdiff.RoundResult {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	return spotdiff.RoundResult{
		RoomID:    "r1",
		Level:     1,
		Reason:    spotdiff.ReasonAllLocked,
		Scores:    map[string]int{"a": 3, "b": 2},
		Winners:   []string{"a"},
		StartedAt: started,
		EndedAt:   started.Add(40 * time.Second),
	}
}

func TestNewRow(t *testing.T) {
	row, err := NewRow(sampleResult())
	if err != nil {
		t.Fatalf("new row: %v", err)
	}

	if row.RoomID != "r1" || row.Level != 1 || row.Reason != "all-locked" {
		t.Fatalf("unexpected row %#v", row)
	}
	if row.Winners != "a" {
		t.Fatalf("expected winners a, got %q", row.Winners)
	}
	if row.StartedAt.Location() != time.UTC {
		t.Fatalf("expected UTC timestamps")
	}

	var scores map[string]int
	if err := json.Unmarshal([]byte(row.Scores), &scores); err != nil {
		t.Fatalf("scores not JSON: %v", err)
	}
	if scores["a"] != 3 || scores["b"] != 2 {
		t.Fatalf("unexpected scores %v", scores)
	}
}

func TestNewRowTiesAndEmptyScores(t *testing.T) {
	result := sampleResult()
	result.Scores = nil
	result.Winners = []string{"a", "b"}

	row, err := NewRow(result)
	if err != nil {
		t.Fatalf("new row: %v", err)
	}
	if row.Scores != "{}" {
		t.Fatalf("expected empty object, got %q", row.Scores)
	}
	if row.Winners != "a,b" {
		t.Fatalf("expected a,b, got %q", row.Winners)
	}
}

func TestRecorderWritesQueuedRounds(t *testing.T) {
	store := newFakeStore()
	rec := NewRecorder(store, 4, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	rec.Record(sampleResult())

	select {
	case <-store.seen:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for insert")
	}

	rows := store.saved()
	if len(rows) != 1 || rows[0].RoomID != "r1" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestRecorderDropsWhenFull(t *testing.T) {
	var mu sync.Mutex
	var logged []string
	logf := func(format string, args ...any) {
		mu.Lock()
		logged = append(logged, format)
		mu.Unlock()
	}

	rec := NewRecorder(newFakeStore(), 1, logf)

	done := make(chan struct{})
	go func() {
		rec.Record(sampleResult())
		rec.Record(sampleResult())
		rec.Record(sampleResult())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Record blocked with no writer running")
	}

	if len(rec.results) != 1 {
		t.Fatalf("expected 1 queued round, got %d", len(rec.results))
	}

	mu.Lock()
	defer mu.Unlock()
	if len(logged) != 2 {
		t.Fatalf("expected 2 drop log lines, got %d", len(logged))
	}
}

func TestRecorderSurvivesStoreErrors(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("connection refused")
	rec := NewRecorder(store, 4, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	rec.Record(sampleResult())
	rec.Record(sampleResult())

	for i := 0; i < 2; i++ {
		select {
		case <-store.seen:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for insert attempt")
		}
	}

	if len(store.saved()) != 0 {
		t.Fatalf("expected no rows to be saved")
	}
}
