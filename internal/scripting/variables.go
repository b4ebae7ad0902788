package scripting

import (
	"github.com/dop251/goja"

	"github.com/MJE43/luckyloop/internal/cards"
	"github.com/MJE43/luckyloop/internal/game"
)

// Player actions a round() hook may return.
const (
	ActionHit    = "hit"
	ActionStand  = "stand"
	ActionDouble = "double"
)

// injectConstants sets read-only action constants on the JS runtime.
func injectConstants(vm *goja.Runtime) {
	vm.Set("BLACKJACK_STAND", ActionStand)
	vm.Set("BLACKJACK_HIT", ActionHit)
	vm.Set("BLACKJACK_DOUBLE", ActionDouble)
}

// injectVariables sets the strategy globals on the JS runtime. Read-only
// semantics are enforced in syncFromVM: anything the script assigns outside
// the writable set is overwritten on the next injection.
func injectVariables(vm *goja.Runtime, vars *Variables) {
	vm.Set("balance", vars.Balance)
	vm.Set("bet", vars.Bet)
	vm.Set("nextbet", vars.NextBet)
	vm.Set("previousbet", vars.PreviousBet)
	vm.Set("win", vars.Win)
	vm.Set("result", vars.Result)
	vm.Set("reward", vars.Reward)
	vm.Set("running", vars.Running)

	vm.Set("level", vars.Level)
	vm.Set("maxlevel", vars.MaxLevel)
	vm.Set("threshold", vars.Threshold)
	vm.Set("round_number", vars.Round)
	vm.Set("levelround", vars.LevelRound)
	vm.Set("skill", vars.Skill)
	vm.Set("skills", vars.PersistedSkills)
	vm.Set("encounter", vars.Encounter)

	vm.Set("player", cardList(vars.Player))
	vm.Set("playervalue", vars.PlayerValue)
	vm.Set("soft", vars.Soft)
	vm.Set("dealer", cardList(vars.Dealer))
	vm.Set("dealervalue", vars.DealerValue)
	vm.Set("dealerup", vars.DealerUp)
	vm.Set("holehidden", vars.HoleHidden)
	vm.Set("candouble", vars.CanDouble)

	vm.Set("rounds", vars.Stats.Rounds)
	vm.Set("wins", vars.Stats.Wins)
	vm.Set("losses", vars.Stats.Losses)
	vm.Set("pushes", vars.Stats.Pushes)
	vm.Set("winstreak", vars.Stats.WinStreak)
	vm.Set("losestreak", vars.Stats.LoseStreak)
	vm.Set("currentstreak", vars.Stats.CurrentStreak)
	vm.Set("profit", vars.Stats.Profit)
	vm.Set("wagered", vars.Stats.Wagered)
	vm.Set("started_bal", vars.Stats.StartBal)

	vm.Set("stoponwin", vars.StopOnWin)
}

// syncFromVM reads the script-writable variables back into vars.
func syncFromVM(vm *goja.Runtime, vars *Variables) {
	vars.NextBet = toInt(vm.Get("nextbet"))
	vars.StopOnWin = toBool(vm.Get("stoponwin"))
}

// Variables is the state a strategy script sees.
type Variables struct {
	Balance     int    `json:"balance"`
	Bet         int    `json:"bet"`
	NextBet     int    `json:"nextbet"`
	PreviousBet int    `json:"previousbet"`
	Win         bool   `json:"win"`
	Result      string `json:"result"`
	Reward      int    `json:"reward"`
	Running     bool   `json:"running"`

	Level           int      `json:"level"`
	MaxLevel        int      `json:"maxlevel"`
	Threshold       int      `json:"threshold"`
	Round           int      `json:"round_number"`
	LevelRound      int      `json:"levelround"`
	Skill           string   `json:"skill"`
	PersistedSkills []string `json:"skills"`
	Encounter       string   `json:"encounter"`

	Player      []cards.Card `json:"player"`
	PlayerValue int          `json:"playervalue"`
	Soft        bool         `json:"soft"`
	Dealer      []cards.Card `json:"dealer"`
	DealerValue int          `json:"dealervalue"`
	DealerUp    int          `json:"dealerup"`
	HoleHidden  bool         `json:"holehidden"`
	CanDouble   bool         `json:"candouble"`

	// Statistics (pointer, shared with engine)
	Stats *Statistics `json:"-"`

	StopOnWin bool `json:"stoponwin"`
}

// NewVariables creates Variables seeded from a table snapshot.
func NewVariables(stats *Statistics, snap game.Snapshot) *Variables {
	v := &Variables{Stats: stats, NextBet: snap.Bet}
	v.apply(snap)
	return v
}

// apply copies table state into the variables. NextBet is left alone: it
// belongs to the script between rounds.
func (v *Variables) apply(snap game.Snapshot) {
	v.Balance = snap.Balance
	v.Bet = snap.Bet
	v.Level = snap.Level
	v.MaxLevel = snap.MaxLevel
	v.Threshold = snap.Threshold
	v.Round = snap.Round
	v.LevelRound = snap.LevelRound
	v.PersistedSkills = snap.PersistedSkills
	v.Skill = ""
	if snap.Skill != nil {
		v.Skill = snap.Skill.ID
	}
	v.Encounter = ""
	if snap.Encounter != nil {
		v.Encounter = snap.Encounter.ID
	}

	v.Player = snap.Player
	v.PlayerValue = snap.PlayerValue
	v.Soft = cards.IsSoft(snap.Player)
	v.Dealer = snap.Dealer
	v.DealerValue = snap.DealerValue
	v.HoleHidden = snap.DealerHoleHidden
	v.DealerUp = 0
	if len(snap.Dealer) > 1 {
		v.DealerUp = snap.Dealer[1].Value
	}
	v.CanDouble = snap.InRound && snap.Phase == game.PhasePlayerTurn && snap.Balance >= snap.Bet
}

// cardList converts cards to plain JS objects.
func cardList(cs []cards.Card) []map[string]any {
	out := make([]map[string]any, len(cs))
	for i, c := range cs {
		out[i] = map[string]any{"rank": c.Rank, "suit": c.Suit, "value": c.Value}
	}
	return out
}

// --- Conversion helpers ---

func toInt(v goja.Value) int {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0
	}
	return int(v.ToInteger())
}

func toBool(v goja.Value) bool {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return false
	}
	return v.ToBoolean()
}

func toString(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}
