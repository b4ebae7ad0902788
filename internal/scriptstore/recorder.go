package scriptstore

import (
	"log"

	"github.com/MJE43/luckyloop/internal/scripting"
)

// Play is one strategy run to record, typically a bound Engine.Run.
type Play func() (scripting.EngineSnapshot, error)

// Track records a strategy run around play: the run row is created first,
// then closed with the final statistics and a snapshot of the engine.
// Store failures are logged and never fail the run; the returned id is
// empty when the run could not be created.
func (s *Store) Track(sessionID, script string, maxRounds, startBalance int, play Play) (string, scripting.EngineSnapshot, error) {
	id, err := s.CreateRun(&Run{
		SessionID:    sessionID,
		ScriptSource: script,
		MaxRounds:    maxRounds,
		StartBalance: startBalance,
	})
	if err != nil {
		log.Printf("scriptstore: track run for session %s: %v", sessionID, err)
		snap, playErr := play()
		return "", snap, playErr
	}

	snap, playErr := play()

	state, reason := string(snap.State), snap.StopReason
	if playErr != nil {
		state, reason = string(scripting.StateError), playErr.Error()
	}
	if err := s.EndRun(id, state, reason, StatsFrom(snap.Stats)); err != nil {
		log.Printf("scriptstore: end run %s: %v", id, err)
	}
	round := 0
	if snap.Stats != nil {
		round = snap.Stats.Rounds
	}
	if err := s.InsertSnapshot(id, round, snap); err != nil {
		log.Printf("scriptstore: snapshot run %s: %v", id, err)
	}
	return id, snap, playErr
}
