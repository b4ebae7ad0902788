package scripting

import (
	"math"

	"github.com/MJE43/luckyloop/internal/game"
)

// Statistics tracks the rounds played by one strategy run.
type Statistics struct {
	Rounds   int `json:"rounds"`
	Wins     int `json:"wins"`
	Losses   int `json:"losses"`
	Pushes   int `json:"pushes"`
	Wagered  int `json:"wagered"`
	Profit   int `json:"profit"`
	Balance  int `json:"balance"`
	StartBal int `json:"startBal"`

	WinStreak  int `json:"winStreak"`
	LoseStreak int `json:"loseStreak"`
	// Positive = win streak, negative = lose streak, zero after a push.
	CurrentStreak int `json:"currentStreak"`

	HighestStreak int `json:"highestStreak"`
	LowestStreak  int `json:"lowestStreak"`
	HighestBet    int `json:"highestBet"`
	HighestProfit int `json:"highestProfit"`
	LowestProfit  int `json:"lowestProfit"`

	CurrentProfit int `json:"currentProfit"`
	PreviousBet   int `json:"previousBet"`
	LevelsCleared int `json:"levelsCleared"`
}

// ChartPoint is a single data point for the balance chart.
type ChartPoint struct {
	Round   int  `json:"x"`
	Balance int  `json:"y"`
	Win     bool `json:"win"`
}

// ChartBuffer holds a rolling window of chart data points.
type ChartBuffer struct {
	Points []ChartPoint `json:"points"`
	Max    int          `json:"-"`
}

// NewChartBuffer creates a chart buffer with the given max capacity.
func NewChartBuffer(max int) *ChartBuffer {
	if max <= 0 {
		max = 50
	}
	return &ChartBuffer{
		Points: make([]ChartPoint, 0, max),
		Max:    max,
	}
}

// Push adds a data point. When the buffer reaches twice Max it decimates by
// keeping every other point, preserving the first and last.
func (cb *ChartBuffer) Push(p ChartPoint) {
	cb.Points = append(cb.Points, p)

	if len(cb.Points) >= cb.Max*2 {
		decimated := make([]ChartPoint, 0, cb.Max)
		decimated = append(decimated, cb.Points[0])
		for i := 2; i < len(cb.Points)-1; i += 2 {
			decimated = append(decimated, cb.Points[i])
		}
		decimated = append(decimated, cb.Points[len(cb.Points)-1])
		cb.Points = decimated
	}
}

// Reset clears all chart data.
func (cb *ChartBuffer) Reset() {
	cb.Points = cb.Points[:0]
}

// NewStatistics creates a Statistics with starting balance.
func NewStatistics(startBalance int) *Statistics {
	return &Statistics{
		Balance:  startBalance,
		StartBal: startBalance,
	}
}

// RecordRound folds one resolved round into the statistics. Balance is
// taken from the outcome rather than accumulated, so doubled stakes are
// accounted for exactly.
func (s *Statistics) RecordRound(out game.Outcome) {
	s.Rounds++

	s.CurrentProfit = out.Reward
	s.Profit += out.Reward
	s.Wagered += out.Bet
	s.PreviousBet = out.Bet
	s.Balance = out.BalanceAfter

	switch out.Result {
	case game.ResultWin:
		s.Wins++
		s.WinStreak++
		s.LoseStreak = 0
		s.CurrentStreak = s.WinStreak
	case game.ResultLoss:
		s.Losses++
		s.LoseStreak++
		s.WinStreak = 0
		s.CurrentStreak = -s.LoseStreak
	default:
		s.Pushes++
		s.WinStreak = 0
		s.LoseStreak = 0
		s.CurrentStreak = 0
	}

	if out.Bet > s.HighestBet {
		s.HighestBet = out.Bet
	}
	if s.Profit > s.HighestProfit {
		s.HighestProfit = s.Profit
	}
	if s.Profit < s.LowestProfit {
		s.LowestProfit = s.Profit
	}
	if s.CurrentStreak > s.HighestStreak {
		s.HighestStreak = s.CurrentStreak
	}
	if s.CurrentStreak < s.LowestStreak {
		s.LowestStreak = s.CurrentStreak
	}
}

// ProfitPercent returns profit as a percentage of starting balance.
func (s *Statistics) ProfitPercent() float64 {
	if s.StartBal == 0 {
		return 0
	}
	return float64(s.Profit) / math.Abs(float64(s.StartBal)) * 100
}
