package game

import (
	"time"

	"github.com/MJE43/luckyloop/internal/cards"
	"github.com/MJE43/luckyloop/internal/rules"
)

// EventKind names something that happened during an action.
type EventKind string

const (
	EventCardDealt     EventKind = "card_dealt"
	EventEncounter     EventKind = "encounter"
	EventDealerReveal  EventKind = "dealer_reveal"
	EventRoundResolved EventKind = "round_resolved"
	EventRoundWon      EventKind = "round_won"
	EventRoundLost     EventKind = "round_lost"
	EventRoundPush     EventKind = "round_push"
	EventLevelUp       EventKind = "level_up"
	EventLevelReplay   EventKind = "level_replay"
	EventSkillChosen   EventKind = "skill_chosen"
	EventGameOver      EventKind = "game_over"
)

// Hand identifies a seat at the table.
type Hand string

const (
	HandPlayer Hand = "player"
	HandDealer Hand = "dealer"
)

// Slot is where a dealt card lands.
type Slot struct {
	Hand  Hand `json:"hand"`
	Index int  `json:"index"`
}

// Event is a notification for presentation and audio layers. Only the fields
// relevant to Kind are set.
type Event struct {
	Kind      EventKind        `json:"kind"`
	Card      *cards.Card      `json:"card,omitempty"`
	Source    string           `json:"source,omitempty"`
	Dest      *Slot            `json:"dest,omitempty"`
	FaceDown  bool             `json:"face_down,omitempty"`
	Encounter *rules.Encounter `json:"encounter,omitempty"`
	Outcome   *Outcome         `json:"outcome,omitempty"`
	Level     int              `json:"level,omitempty"`
	Skill     string           `json:"skill,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

// Notifier receives events as they happen. Implementations must not block;
// the session ignores anything they do, including panics.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

// Notify implements Notifier.
func (f NotifierFunc) Notify(e Event) { f(e) }

// RoundRecord is the persistence log row for one resolved round.
type RoundRecord struct {
	SessionID        string       `json:"session_id"`
	Round            int          `json:"round"`
	Level            int          `json:"level"`
	Skill            string       `json:"skill"`
	Encounter        string       `json:"encounter"`
	PlayerValue      int          `json:"player_value"`
	DealerValue      int          `json:"dealer_value"`
	Result           Result       `json:"result"`
	Reward           int          `json:"reward"`
	Balance          int          `json:"balance"`
	PersistentSkills []string     `json:"persistent_skills"` // names, like Skill
	Bet              int          `json:"bet"`
	PlayerCards      []cards.Card `json:"player_cards"`
	DealerCards      []cards.Card `json:"dealer_cards"`
	RecordedAt       time.Time    `json:"recorded_at"`
}

// Recorder persists resolved rounds. It is fire-and-forget: implementations
// report their own failures.
type Recorder interface {
	RecordRound(RoundRecord)
}

// MultiRecorder fans a record out to several recorders in order.
type MultiRecorder []Recorder

// RecordRound implements Recorder.
func (m MultiRecorder) RecordRound(rec RoundRecord) {
	for _, r := range m {
		if r != nil {
			r.RecordRound(rec)
		}
	}
}
