package game

// Stats accumulates session totals for the game-over summary.
type Stats struct {
	Rounds        int `json:"rounds"`
	Wins          int `json:"wins"`
	Losses        int `json:"losses"`
	Pushes        int `json:"pushes"`
	Blackjacks    int `json:"blackjacks"`
	SafetyNets    int `json:"safety_nets"`
	Wagered       int `json:"wagered"`
	Profit        int `json:"profit"`
	BiggestWin    int `json:"biggest_win"`
	BiggestLoss   int `json:"biggest_loss"`
	LevelsCleared int `json:"levels_cleared"`
	LevelReplays  int `json:"level_replays"`

	// Positive = win streak, negative = lose streak.
	CurrentStreak int `json:"current_streak"`
	LongestWin    int `json:"longest_win_streak"`
	LongestLoss   int `json:"longest_loss_streak"`
}

func (st *Stats) add(out Outcome) {
	st.Rounds++
	st.Wagered += out.Bet
	st.Profit += out.Reward
	if out.PlayerBlackjack && out.Result == ResultWin {
		st.Blackjacks++
	}
	if out.SafetyNet {
		st.SafetyNets++
	}

	switch out.Result {
	case ResultWin:
		st.Wins++
		st.BiggestWin = max(st.BiggestWin, out.Reward)
		if st.CurrentStreak > 0 {
			st.CurrentStreak++
		} else {
			st.CurrentStreak = 1
		}
		st.LongestWin = max(st.LongestWin, st.CurrentStreak)
	case ResultLoss:
		st.Losses++
		st.BiggestLoss = min(st.BiggestLoss, out.Reward)
		if st.CurrentStreak < 0 {
			st.CurrentStreak--
		} else {
			st.CurrentStreak = -1
		}
		st.LongestLoss = max(st.LongestLoss, -st.CurrentStreak)
	default:
		st.Pushes++
	}
}

// WinRate is wins over decided rounds, or 0 before any.
func (st Stats) WinRate() float64 {
	decided := st.Wins + st.Losses
	if decided == 0 {
		return 0
	}
	return float64(st.Wins) / float64(decided)
}
