// Package game is the blackjack roguelike core: round engine, payouts,
// progression and the session that owns them. It performs no I/O; callers
// observe it through Update values, a Notifier and a Recorder.
package game

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/MJE43/luckyloop/internal/cards"
	"github.com/MJE43/luckyloop/internal/engine"
	"github.com/MJE43/luckyloop/internal/rules"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrUnknownSkill is returned by ChooseSkill for an id not in the catalog.
var ErrUnknownSkill = errors.New("game: unknown skill")

// SafetyNetMode selects how often the Safety Net skill can soften a loss.
type SafetyNetMode string

const (
	// SafetyNetEveryRound halves every qualifying loss while the skill is active.
	SafetyNetEveryRound SafetyNetMode = "every_round"
	// SafetyNetOncePerLevel halves only the first qualifying loss of the level.
	SafetyNetOncePerLevel SafetyNetMode = "once_per_level"
)

// Defaults applied by NewSession to zero Config fields.
const (
	DefaultStartingBalance   = 300
	DefaultMaxRoundsPerLevel = 5
	DefaultMinBet            = 10
	DefaultBetStep           = 50
)

// Reasons reported on ignored actions.
const (
	ReasonGameOver          = "game over"
	ReasonRoundInProgress   = "round in progress"
	ReasonNotInRound        = "no round in progress"
	ReasonSkillPending      = "skill selection pending"
	ReasonNoSkillPending    = "skill already chosen for this level"
	ReasonInsufficientFunds = "insufficient balance"
	ReasonBetOutOfRange     = "bet out of range"
	ReasonUnknownSkill      = "unknown skill"
)

// Config configures a Session. Zero fields take defaults.
type Config struct {
	Catalog           *rules.Catalog
	StartingBalance   int
	MaxRoundsPerLevel int
	MinBet            int
	BetStep           int
	SafetyNetMode     SafetyNetMode

	// Seeds drive the default HMAC source. Fresh seeds are generated when
	// both are empty. Ignored when Source is set.
	Seeds  engine.Seeds
	Source engine.Source

	ShoeFactory ShoeFactory
	Notifier    Notifier
	Recorder    Recorder

	// PersistedSkills is the skill list inherited from a previous session.
	PersistedSkills []string
}

// Update is the result of a control-surface action.
type Update struct {
	State   Snapshot `json:"state"`
	Events  []Event  `json:"events"`
	Ignored bool     `json:"ignored"`
	Reason  string   `json:"reason,omitempty"`
}

// Session owns one run of the game. It is not safe for concurrent use;
// callers serialize actions.
type Session struct {
	id       string
	cfg      Config
	catalog  *rules.Catalog
	src      engine.Source
	seeds    engine.Seeds
	progress Progression

	balance     int
	level       int
	roundNo     int
	levelRounds int
	bet         int
	skill       *rules.Skill
	skillUsed   map[rules.SkillKind]bool
	persisted   []string

	round        *Round
	lastOutcome  *Outcome
	inRound      bool
	revealDealer bool
	skillPending bool
	gameOver     bool
	overReason   string

	stats  Stats
	events []Event
}

// NewSession validates cfg, applies defaults and opens level 1 with skill
// selection pending.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Catalog == nil {
		cfg.Catalog = rules.Default()
	}
	if err := cfg.Catalog.Validate(); err != nil {
		return nil, err
	}
	if cfg.StartingBalance <= 0 {
		cfg.StartingBalance = DefaultStartingBalance
	}
	if cfg.MaxRoundsPerLevel <= 0 {
		cfg.MaxRoundsPerLevel = DefaultMaxRoundsPerLevel
	}
	if cfg.MinBet <= 0 {
		cfg.MinBet = DefaultMinBet
	}
	if cfg.BetStep <= 0 {
		cfg.BetStep = DefaultBetStep
	}
	switch cfg.SafetyNetMode {
	case "":
		cfg.SafetyNetMode = SafetyNetEveryRound
	case SafetyNetEveryRound, SafetyNetOncePerLevel:
	default:
		return nil, fmt.Errorf("game: unknown safety net mode %q", cfg.SafetyNetMode)
	}
	if cfg.ShoeFactory == nil {
		cfg.ShoeFactory = cards.NewShoe
	}

	s := &Session{
		cfg:      cfg,
		catalog:  cfg.Catalog,
		progress: NewProgression(cfg.Catalog, cfg.MaxRoundsPerLevel),
	}
	switch {
	case cfg.Source != nil:
		s.src = cfg.Source
		if hs, ok := cfg.Source.(*engine.HMACSource); ok {
			s.seeds = hs.Seeds()
		}
	default:
		seeds := cfg.Seeds
		if seeds.Server == "" && seeds.Client == "" {
			var err error
			if seeds, err = engine.NewSeeds(); err != nil {
				return nil, fmt.Errorf("game: generate seeds: %w", err)
			}
		}
		s.seeds = seeds
		s.src = engine.NewSource(seeds, 0)
	}

	s.reset(slices.Clone(cfg.PersistedSkills))
	return s, nil
}

func (s *Session) reset(persisted []string) {
	s.id = uuid.NewString()
	s.balance = s.cfg.StartingBalance
	s.roundNo = 0
	s.persisted = persisted
	s.round = nil
	s.lastOutcome = nil
	s.inRound = false
	s.gameOver = false
	s.overReason = ""
	s.stats = Stats{}
	s.startLevel(1)
}

// startLevel resets per-level state and reopens skill selection.
func (s *Session) startLevel(level int) {
	s.level = level
	s.levelRounds = 0
	s.bet = s.catalog.BaseBet(level)
	s.skill = nil
	s.skillUsed = make(map[rules.SkillKind]bool)
	s.revealDealer = false
	s.round = nil
	s.skillPending = true
}

// ID identifies the session; Restart issues a new one.
func (s *Session) ID() string { return s.id }

// Seeds returns the seeds behind the session's random source, if known.
func (s *Session) Seeds() engine.Seeds { return s.seeds }

// Catalog returns the rules the session plays by.
func (s *Session) Catalog() *rules.Catalog { return s.catalog }

func (s *Session) begin() {
	s.events = nil
}

func (s *Session) emit(e Event) {
	s.events = append(s.events, e)
	if s.cfg.Notifier != nil {
		notify(s.cfg.Notifier, e)
	}
}

func notify(n Notifier, e Event) {
	defer func() { _ = recover() }()
	n.Notify(e)
}

func (s *Session) done() Update {
	return Update{State: s.Snapshot(), Events: s.events}
}

func (s *Session) ignored(reason string) Update {
	u := s.done()
	u.Ignored = true
	u.Reason = reason
	return u
}

func (s *Session) endGame(reason string) {
	s.gameOver = true
	s.overReason = reason
	s.inRound = false
	s.emit(Event{Kind: EventGameOver, Reason: reason, Level: s.level})
}

func (s *Session) advance() {
	s.startLevel(s.level + 1)
	s.stats.LevelsCleared++
	s.emit(Event{Kind: EventLevelUp, Level: s.level})
}

// Deal starts a new round. Before dealing it settles any pending level
// transition: a spent level either advances (no cards are dealt, skill
// selection reopens) or is replayed from a fresh round budget.
func (s *Session) Deal() Update {
	s.begin()
	switch {
	case s.gameOver:
		return s.ignored(ReasonGameOver)
	case s.inRound:
		return s.ignored(ReasonRoundInProgress)
	case s.skillPending:
		return s.ignored(ReasonSkillPending)
	}

	switch s.progress.BeforeDeal(s.balance, s.bet, s.level, s.levelRounds) {
	case DecisionGameOver:
		s.endGame(ReasonInsufficientFunds)
		return s.done()
	case DecisionAdvance:
		s.advance()
		return s.done()
	case DecisionReplay:
		s.levelRounds = 0
		s.stats.LevelReplays++
		s.emit(Event{Kind: EventLevelReplay, Level: s.level})
	}

	s.roundNo++
	s.levelRounds++
	level := s.catalog.Level(s.level)
	enc := s.catalog.RollEncounter(s.src)
	if enc != nil {
		s.emit(Event{Kind: EventEncounter, Encounter: enc})
	}
	shoe := s.cfg.ShoeFactory(roundDecks(level, enc), s.src)

	s.round = newRound(s.roundNo, level, enc, shoe, s.src, s.emit)
	s.revealDealer = s.skill != nil && s.skill.Kind == rules.SkillPeek
	s.inRound = true
	s.round.deal()

	// A bonus card can bust the hand before the player acts.
	if cards.IsBust(s.round.Player) {
		s.resolve()
	}
	return s.done()
}

// Hit draws one player card and resolves on bust.
func (s *Session) Hit() Update {
	s.begin()
	if !s.playerTurn() {
		return s.ignored(ReasonNotInRound)
	}
	s.round.hitPlayer()
	if cards.IsBust(s.round.Player) {
		s.resolve()
	}
	return s.done()
}

// Stand ends the player's turn.
func (s *Session) Stand() Update {
	s.begin()
	if !s.playerTurn() {
		return s.ignored(ReasonNotInRound)
	}
	s.resolve()
	return s.done()
}

// Double debits the current bet, doubles it and draws one card. The round
// resolves whether or not that card busts.
func (s *Session) Double() Update {
	s.begin()
	if !s.playerTurn() {
		return s.ignored(ReasonNotInRound)
	}
	if s.balance < s.bet {
		return s.ignored(ReasonInsufficientFunds)
	}
	s.balance -= s.bet
	s.bet *= 2
	s.round.hitPlayer()
	s.resolve()
	return s.done()
}

func (s *Session) playerTurn() bool {
	return !s.gameOver && s.inRound && s.round != nil && s.round.Phase == PhasePlayerTurn
}

func (s *Session) hasSkill(kind rules.SkillKind) bool {
	return s.skill != nil && s.skill.Kind == kind
}

func (s *Session) multiplier() decimal.Decimal {
	m := decimal.NewFromInt(1)
	if s.hasSkill(rules.SkillRewardMultiplier) && s.skill.Magnitude.IsPositive() {
		m = m.Mul(s.skill.Magnitude)
	}
	if enc := s.round.Encounter; enc != nil && enc.Effect.PayoutMultiplier.IsPositive() {
		m = m.Mul(enc.Effect.PayoutMultiplier)
	}
	return m
}

func (s *Session) safetyNetArmed() bool {
	if !s.hasSkill(rules.SkillSafetyNet) {
		return false
	}
	return s.cfg.SafetyNetMode == SafetyNetEveryRound || !s.skillUsed[rules.SkillSafetyNet]
}

// resolve plays the dealer, settles the bet, records the round and checks
// progression.
func (s *Session) resolve() {
	r := s.round
	// The dealer plays out even against a bust; the loss is already decided
	// but the dealer's final total is part of the round record.
	r.playDealer()
	s.revealDealer = true
	s.emit(Event{Kind: EventDealerReveal, Card: &r.Dealer[0]})

	out := settle(settlement{
		player:          r.Player,
		dealer:          r.Dealer,
		bet:             s.bet,
		balance:         s.balance,
		blackjackPayout: r.Level.BlackjackPayout,
		multiplier:      s.multiplier(),
		safetyNet:       s.safetyNetArmed(),
	})
	if out.SafetyNet {
		s.skillUsed[rules.SkillSafetyNet] = true
	}
	s.balance = out.BalanceAfter
	r.Outcome = &out
	r.Phase = PhaseResolved
	s.lastOutcome = &out
	s.inRound = false
	s.stats.add(out)

	s.emit(Event{Kind: EventRoundResolved, Outcome: &out})
	switch out.Result {
	case ResultWin:
		s.emit(Event{Kind: EventRoundWon, Outcome: &out})
	case ResultLoss:
		s.emit(Event{Kind: EventRoundLost, Outcome: &out})
	default:
		s.emit(Event{Kind: EventRoundPush, Outcome: &out})
	}
	s.record(r, out)

	switch s.progress.AfterResolve(s.balance, s.level) {
	case DecisionGameOver:
		s.endGame("bankrupt")
	case DecisionAdvance:
		s.advance()
	}
}

func (s *Session) record(r *Round, out Outcome) {
	if s.cfg.Recorder == nil {
		return
	}
	recordRound(s.cfg.Recorder, RoundRecord{
		SessionID:        s.id,
		Round:            r.Number,
		Level:            r.Level.Level,
		Skill:            s.skillName(),
		Encounter:        encounterName(r.Encounter),
		PlayerValue:      out.PlayerValue,
		DealerValue:      out.DealerValue,
		Result:           out.Result,
		Reward:           out.Reward,
		Balance:          s.balance,
		PersistentSkills: s.persistedNames(),
		Bet:              out.Bet,
		PlayerCards:      slices.Clone(r.Player),
		DealerCards:      slices.Clone(r.Dealer),
		RecordedAt:       time.Now().UTC(),
	})
}

func recordRound(rec Recorder, row RoundRecord) {
	defer func() { _ = recover() }()
	rec.RecordRound(row)
}

func (s *Session) skillName() string {
	if s.skill == nil {
		return ""
	}
	return s.skill.Name
}

// persistedNames maps the persisted skill ids to display names, the same
// form the Skill column uses.
func (s *Session) persistedNames() []string {
	names := make([]string, 0, len(s.persisted))
	for _, id := range s.persisted {
		if sk, ok := s.catalog.Skill(id); ok {
			names = append(names, sk.Name)
			continue
		}
		names = append(names, id)
	}
	return names
}

func encounterName(enc *rules.Encounter) string {
	if enc == nil {
		return ""
	}
	return enc.Name
}

// AdjustBet moves the bet by delta. It is ignored during a round or when
// the result would fall below the minimum bet or above the balance.
func (s *Session) AdjustBet(delta int) Update {
	s.begin()
	switch {
	case s.gameOver:
		return s.ignored(ReasonGameOver)
	case s.inRound:
		return s.ignored(ReasonRoundInProgress)
	}
	next := s.bet + delta
	if next < s.cfg.MinBet || next > s.balance {
		return s.ignored(ReasonBetOutOfRange)
	}
	s.bet = next
	return s.done()
}

// BetUp raises the bet by one step.
func (s *Session) BetUp() Update { return s.AdjustBet(s.cfg.BetStep) }

// BetDown lowers the bet by one step.
func (s *Session) BetDown() Update { return s.AdjustBet(-s.cfg.BetStep) }

// ChooseSkill fills the level's skill slot. An empty id plays the level
// without a skill. Chosen skills join the persisted list once.
func (s *Session) ChooseSkill(id string) (Update, error) {
	s.begin()
	switch {
	case s.gameOver:
		return s.ignored(ReasonGameOver), nil
	case !s.skillPending:
		return s.ignored(ReasonNoSkillPending), nil
	}
	if id == "" {
		s.skill = nil
	} else {
		sk, ok := s.catalog.Skill(id)
		if !ok {
			return s.ignored(ReasonUnknownSkill), fmt.Errorf("%w: %q", ErrUnknownSkill, id)
		}
		s.skill = &sk
		if !slices.Contains(s.persisted, sk.ID) {
			s.persisted = append(s.persisted, sk.ID)
		}
	}
	s.skillUsed = make(map[rules.SkillKind]bool)
	s.skillPending = false
	s.emit(Event{Kind: EventSkillChosen, Skill: id, Level: s.level})
	return s.done(), nil
}

// Restart begins a new session from level 1 with the starting balance.
// keepSkills carries the persisted skill list over.
func (s *Session) Restart(keepSkills bool) Update {
	s.begin()
	var persisted []string
	if keepSkills {
		persisted = s.persisted
	}
	s.reset(persisted)
	return s.done()
}

// AutoPlay plays one round with the basic strategy: deal, hit below 17,
// stand. Events of every step are merged into the returned update.
func (s *Session) AutoPlay() Update {
	var events []Event
	u := s.Deal()
	events = append(events, u.Events...)
	if u.Ignored {
		return u
	}
	for s.playerTurn() && s.round.PlayerValue() < dealerStandOn {
		u = s.Hit()
		events = append(events, u.Events...)
	}
	if s.playerTurn() {
		u = s.Stand()
		events = append(events, u.Events...)
	}
	u.Events = events
	return u
}

// Snapshot reports the current state. The dealer's hole card is masked
// until it is revealed.
func (s *Session) Snapshot() Snapshot {
	level := s.catalog.Level(s.level)
	snap := Snapshot{
		SessionID:         s.id,
		Balance:           s.balance,
		Bet:               s.bet,
		Level:             s.level,
		MaxLevel:          s.catalog.MaxLevel(),
		Threshold:         level.Threshold,
		Round:             s.roundNo,
		LevelRound:        s.levelRounds,
		MaxRoundsPerLevel: s.cfg.MaxRoundsPerLevel,
		PersistedSkills:   slices.Clone(s.persisted),
		InRound:           s.inRound,
		SkillPending:      s.skillPending,
		GameOver:          s.gameOver,
		GameOverReason:    s.overReason,
		Phase:             PhaseNotStarted,
		LastOutcome:       s.lastOutcome,
		ServerSeedHash:    s.seeds.ServerHash(),
		ClientSeed:        s.seeds.Client,
		Stats:             s.stats,
	}
	if s.skill != nil {
		snap.Skill = &SkillView{ID: s.skill.ID, Name: s.skill.Name, Description: s.skill.Description}
	}
	if s.skillPending {
		for _, sk := range s.catalog.Skills {
			snap.SkillChoices = append(snap.SkillChoices, SkillView{ID: sk.ID, Name: sk.Name, Description: sk.Description})
		}
	}
	if r := s.round; r != nil {
		snap.Phase = r.Phase
		snap.Player = slices.Clone(r.Player)
		snap.PlayerValue = r.PlayerValue()
		if r.Encounter != nil {
			snap.Encounter = &EncounterView{ID: r.Encounter.ID, Name: r.Encounter.Name, Description: r.Encounter.Description}
		}
		snap.Dealer = slices.Clone(r.Dealer)
		if s.revealDealer {
			snap.DealerValue = r.DealerValue()
		} else {
			snap.DealerHoleHidden = true
			snap.Dealer[0] = cards.Card{}
			snap.DealerValue = cards.HandValue(r.Dealer[1:])
		}
	}
	return snap
}
