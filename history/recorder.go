package history

import (
	"context"
	"time"

	"github.com/Seednode/spotduel/games/spotdiff"
)

const (
	defaultBuffer = 64
	insertTimeout = 5 * time.Second
)

type inserter interface {
	Insert(ctx context.Context, row Row) error
}

// Recorder queues finished rounds for a background writer. Record never
// blocks; results that do not fit in the queue are dropped.
type Recorder struct {
	store   inserter
	results chan spotdiff.RoundResult
	logf    func(format string, args ...any)
}

func NewRecorder(store inserter, buffer int, logf func(format string, args ...any)) *Recorder {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}

	return &Recorder{
		store:   store,
		results: make(chan spotdiff.RoundResult, buffer),
		logf:    logf,
	}
}

func (r *Recorder) Record(result spotdiff.RoundResult) {
	select {
	case r.results <- result:
	default:
		r.logf("HISTORY: Queue full, dropped round in %q", result.RoomID)
	}
}

// Run writes queued rounds until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case result := <-r.results:
			r.write(ctx, result)
		}
	}
}

func (r *Recorder) write(ctx context.Context, result spotdiff.RoundResult) {
	row, err := NewRow(result)
	if err != nil {
		r.logf("HISTORY: Could not encode round in %q: %v", result.RoomID, err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, insertTimeout)
	defer cancel()

	if err := r.store.Insert(ctx, row); err != nil {
		r.logf("HISTORY: Could not save round in %q: %v", result.RoomID, err)
		return
	}

	r.logf("HISTORY: Saved %s round in %q", row.Reason, row.RoomID)
}
