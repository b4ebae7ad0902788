package game

import "github.com/MJE43/luckyloop/internal/cards"

// SkillView is the display form of a skill.
type SkillView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// EncounterView is the display form of the round's encounter.
type EncounterView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Snapshot is the round state handed to presentation layers. When
// DealerHoleHidden is set, Dealer[0] is a zero Card and DealerValue counts
// only the face-up cards.
type Snapshot struct {
	SessionID         string         `json:"session_id"`
	Balance           int            `json:"balance"`
	Bet               int            `json:"bet"`
	Level             int            `json:"level"`
	MaxLevel          int            `json:"max_level"`
	Threshold         int            `json:"threshold"`
	Round             int            `json:"round"`
	LevelRound        int            `json:"level_round"`
	MaxRoundsPerLevel int            `json:"max_rounds_per_level"`
	Skill             *SkillView     `json:"skill,omitempty"`
	SkillChoices      []SkillView    `json:"skill_choices,omitempty"`
	PersistedSkills   []string       `json:"persisted_skills"`
	Encounter         *EncounterView `json:"encounter,omitempty"`
	InRound           bool           `json:"in_round"`
	SkillPending      bool           `json:"skill_pending"`
	GameOver          bool           `json:"game_over"`
	GameOverReason    string         `json:"game_over_reason,omitempty"`
	Phase             Phase          `json:"phase"`
	Player            []cards.Card   `json:"player"`
	PlayerValue       int            `json:"player_value"`
	Dealer            []cards.Card   `json:"dealer"`
	DealerValue       int            `json:"dealer_value"`
	DealerHoleHidden  bool           `json:"dealer_hole_hidden"`
	LastOutcome       *Outcome       `json:"last_outcome,omitempty"`
	ServerSeedHash    string         `json:"server_seed_hash,omitempty"`
	ClientSeed        string         `json:"client_seed,omitempty"`
	Stats             Stats          `json:"stats"`
}
