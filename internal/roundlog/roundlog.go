// Package roundlog is the append-only CSV log of resolved rounds.
package roundlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/MJE43/luckyloop/internal/game"
)

// Header is the fixed first row of every log file.
var Header = []string{
	"Round", "Level", "Skill", "Encounter", "PlayerValue", "DealerValue",
	"Result", "Reward", "Balance", "PersistentSkills",
}

// Row is one log line.
type Row struct {
	Round            int
	Level            int
	Skill            string
	Encounter        string
	PlayerValue      int
	DealerValue      int
	Result           string
	Reward           int
	Balance          int
	PersistentSkills string // comma-joined skill names
}

// RowFromRecord converts a session record.
func RowFromRecord(rec game.RoundRecord) Row {
	return Row{
		Round:            rec.Round,
		Level:            rec.Level,
		Skill:            rec.Skill,
		Encounter:        rec.Encounter,
		PlayerValue:      rec.PlayerValue,
		DealerValue:      rec.DealerValue,
		Result:           string(rec.Result),
		Reward:           rec.Reward,
		Balance:          rec.Balance,
		PersistentSkills: strings.Join(rec.PersistentSkills, ","),
	}
}

// Fields renders the row in Header order.
func (r Row) Fields() []string {
	return []string{
		strconv.Itoa(r.Round),
		strconv.Itoa(r.Level),
		r.Skill,
		r.Encounter,
		strconv.Itoa(r.PlayerValue),
		strconv.Itoa(r.DealerValue),
		r.Result,
		strconv.Itoa(r.Reward),
		strconv.Itoa(r.Balance),
		r.PersistentSkills,
	}
}

// Write emits Header followed by rows.
func Write(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Fields()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// File appends rows to a CSV file on disk. It satisfies game.Recorder.
type File struct {
	path   string
	logger *log.Logger
	mu     sync.Mutex
}

var _ game.Recorder = (*File)(nil)

// Open returns a File for path, creating it with the header row when it
// does not exist or is empty. Existing content is never truncated.
func Open(path string, logger *log.Logger) (*File, error) {
	if logger == nil {
		logger = log.Default()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("roundlog: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("roundlog: stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		cw := csv.NewWriter(f)
		if err := cw.Write(Header); err != nil {
			return nil, fmt.Errorf("roundlog: write header: %w", err)
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return nil, fmt.Errorf("roundlog: write header: %w", err)
		}
	}
	return &File{path: path, logger: logger}, nil
}

// Path is the file being appended to.
func (f *File) Path() string { return f.path }

// Append writes one row.
func (f *File) Append(r Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := os.OpenFile(f.path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("roundlog: open %s: %w", f.path, err)
	}
	cw := csv.NewWriter(fh)
	if err := cw.Write(r.Fields()); err != nil {
		fh.Close()
		return err
	}
	cw.Flush()
	return errors.Join(cw.Error(), fh.Close())
}

// RecordRound implements game.Recorder. Write failures are logged.
func (f *File) RecordRound(rec game.RoundRecord) {
	if err := f.Append(RowFromRecord(rec)); err != nil {
		f.logger.Printf("roundlog: append round %d: %v", rec.Round, err)
	}
}
