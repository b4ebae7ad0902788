package store

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/MJE43/luckyloop/internal/cards"
	"github.com/MJE43/luckyloop/internal/game"
)

var (
	_ DB            = (*SQLiteDB)(nil)
	_ DB            = (*PostgresDB)(nil)
	_ game.Recorder = (*Recorder)(nil)
)

// queueDepth bounds how many batches may wait for the writer.
const queueDepth = 64

// Recorder buffers resolved rounds and hands full batches to a single
// background writer, so rows land in play order. It satisfies
// game.Recorder and never blocks its caller: when the writer falls
// queueDepth batches behind, new batches are dropped and logged.
type Recorder struct {
	db        DB
	logger    *log.Logger
	mu        sync.Mutex
	buffer    []game.RoundRecord
	flushSize int
	timeout   time.Duration
	closed    bool
	dropped   int

	batches chan []game.RoundRecord
	pending sync.WaitGroup
	done    chan struct{}
	once    sync.Once
}

// NewRecorder creates a recorder and starts its writer. flushSize controls
// how many rounds are buffered before a batch insert; 1 writes every round
// as it resolves. Close must be called to drain it.
func NewRecorder(db DB, flushSize int, logger *log.Logger) *Recorder {
	if flushSize <= 0 {
		flushSize = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	r := &Recorder{
		db:        db,
		logger:    logger,
		buffer:    make([]game.RoundRecord, 0, flushSize),
		flushSize: flushSize,
		timeout:   10 * time.Second,
		batches:   make(chan []game.RoundRecord, queueDepth),
		done:      make(chan struct{}),
	}
	go r.run()
	return r
}

// RecordRound adds a round to the buffer and flushes if the buffer is full.
// Rounds recorded after Close are logged and discarded.
func (r *Recorder) RecordRound(rec game.RoundRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		r.dropped++
		r.logger.Printf("store: recorder closed, dropping round %d of session %s", rec.Round, rec.SessionID)
		return
	}
	r.buffer = append(r.buffer, rec)
	if len(r.buffer) >= r.flushSize {
		r.flushLocked()
	}
}

// Flush hands any buffered rounds to the writer and waits until every
// queued batch has been written.
func (r *Recorder) Flush() {
	r.mu.Lock()
	if !r.closed {
		r.flushLocked()
	}
	r.mu.Unlock()
	r.pending.Wait()
}

// Close flushes and stops the writer.
func (r *Recorder) Close() {
	r.once.Do(func() {
		r.mu.Lock()
		r.flushLocked()
		r.closed = true
		close(r.batches)
		r.mu.Unlock()
		<-r.done
	})
}

// Dropped reports how many rounds were discarded because the writer was
// behind or the recorder was closed.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func (r *Recorder) flushLocked() {
	if len(r.buffer) == 0 {
		return
	}
	recs := make([]game.RoundRecord, len(r.buffer))
	copy(recs, r.buffer)
	r.buffer = r.buffer[:0]

	r.pending.Add(1)
	select {
	case r.batches <- recs:
	default:
		r.pending.Done()
		r.dropped += len(recs)
		r.logger.Printf("store: writer behind, dropping %d rounds of session %s", len(recs), recs[0].SessionID)
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for recs := range r.batches {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		for _, batch := range groupBySession(recs) {
			if err := r.write(ctx, batch); err != nil {
				r.logger.Printf("store: flush rounds for session %s: %v", batch[0].SessionID, err)
			}
		}
		cancel()
		r.pending.Done()
	}
}

// write makes sure the session row exists before appending its rounds;
// a restarted game gets a new session id mid-stream.
func (r *Recorder) write(ctx context.Context, recs []game.RoundRecord) error {
	sessionID := recs[0].SessionID
	if err := r.db.SaveSession(ctx, &Session{ID: sessionID}); err != nil {
		return err
	}
	rounds := make([]Round, len(recs))
	for i, rec := range recs {
		rounds[i] = RoundFromRecord(rec)
	}
	return r.db.SaveRounds(ctx, sessionID, rounds)
}

// groupBySession splits records into runs of the same session, keeping
// order.
func groupBySession(recs []game.RoundRecord) [][]game.RoundRecord {
	var out [][]game.RoundRecord
	for i, rec := range recs {
		if i == 0 || rec.SessionID != recs[i-1].SessionID {
			out = append(out, nil)
		}
		out[len(out)-1] = append(out[len(out)-1], rec)
	}
	return out
}

type handCards struct {
	Player []cards.Card `json:"player"`
	Dealer []cards.Card `json:"dealer"`
}

// RoundFromRecord converts a game record into a store row.
func RoundFromRecord(rec game.RoundRecord) Round {
	cardsJSON, err := json.Marshal(handCards{Player: rec.PlayerCards, Dealer: rec.DealerCards})
	if err != nil {
		cardsJSON = []byte("{}")
	}
	return Round{
		SessionID:        rec.SessionID,
		Round:            rec.Round,
		Level:            rec.Level,
		Skill:            rec.Skill,
		Encounter:        rec.Encounter,
		PlayerValue:      rec.PlayerValue,
		DealerValue:      rec.DealerValue,
		Result:           string(rec.Result),
		Bet:              rec.Bet,
		Reward:           rec.Reward,
		Balance:          rec.Balance,
		PersistentSkills: strings.Join(rec.PersistentSkills, ","),
		Cards:            string(cardsJSON),
		CreatedAt:        rec.RecordedAt,
	}
}
