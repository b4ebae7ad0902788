package game

import (
	"testing"

	"github.com/MJE43/luckyloop/internal/cards"
	"github.com/MJE43/luckyloop/internal/rules"
)

func TestDealerPolicy(t *testing.T) {
	cat := rules.Default()
	standsEarly, _ := cat.Encounter("dealer_mistake")
	aggressive, _ := cat.Encounter("foggy_table")

	tests := []struct {
		name   string
		level  int
		enc    *rules.Encounter
		dealer []cards.Card
		draws  []cards.Card
		floats []float64
		want   int
	}{
		{"draws below 17", 1, nil, hand("10", "6"), hand("5"), nil, 3},
		{"stands on 17", 1, nil, hand("10", "7"), hand("5"), nil, 2},
		{"stands on soft 17 without H17", 1, nil, hand("A", "6"), hand("5"), nil, 2},
		{"soft 17 redraw taken", 2, nil, hand("A", "6"), hand("3"), []float64{0.3}, 3},
		{"soft 17 redraw declined", 2, nil, hand("A", "6"), hand("3"), []float64{0.7}, 2},
		{"hard 17 never redraws", 2, nil, hand("10", "7"), hand("3"), []float64{0.1}, 2},
		{"stands early on 14", 1, &standsEarly, hand("10", "4"), hand("5"), nil, 2},
		{"stands early still draws below 14", 1, &standsEarly, hand("10", "3"), hand("2", "9"), nil, 3},
		{"aggressive draws on 17", 1, &aggressive, hand("10", "7"), hand("2"), nil, 3},
		{"aggressive stops on 18", 1, &aggressive, hand("10", "8"), hand("2"), nil, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &scriptedSource{floats: tt.floats}
			var dealt int
			r := newRound(1, cat.Level(tt.level), tt.enc, cards.NewStackedShoe(1, src, tt.draws...), src, func(e Event) {
				if e.Kind == EventCardDealt && e.Dest.Hand == HandDealer {
					dealt++
				}
			})
			r.Dealer = tt.dealer
			r.playDealer()
			if len(r.Dealer) != tt.want {
				t.Errorf("dealer holds %v, want %d cards", r.Dealer, tt.want)
			}
			if dealt != len(r.Dealer)-len(tt.dealer) {
				t.Errorf("%d draw events for %d draws", dealt, len(r.Dealer)-len(tt.dealer))
			}
			if r.Phase != PhaseDealerTurn {
				t.Errorf("phase = %s", r.Phase)
			}
		})
	}
}

func TestRoundDecks(t *testing.T) {
	cat := rules.Default()
	lucky, _ := cat.Encounter("lucky_deck")

	tests := []struct {
		level int
		enc   *rules.Encounter
		want  int
	}{
		{1, nil, 1},
		{1, &lucky, 1},
		{2, &lucky, 1},
		{3, &lucky, 3},
		{3, nil, 4},
	}
	for _, tt := range tests {
		if got := roundDecks(cat.Level(tt.level), tt.enc); got != tt.want {
			t.Errorf("roundDecks(level %d, %v) = %d, want %d", tt.level, tt.enc != nil, got, tt.want)
		}
	}
}

func TestRoundDealDrawOrder(t *testing.T) {
	src := &scriptedSource{}
	shoe := cards.NewStackedShoe(1, src, hand("2", "3", "4", "5")...)
	r := newRound(1, rules.Default().Level(1), nil, shoe, src, func(Event) {})
	r.deal()

	if r.Player[0].Rank != "2" || r.Player[1].Rank != "3" || r.Dealer[0].Rank != "4" || r.Dealer[1].Rank != "5" {
		t.Errorf("player %v dealer %v, want p1 p2 d1 d2 draw order", r.Player, r.Dealer)
	}
	if r.Phase != PhasePlayerTurn {
		t.Errorf("phase = %s", r.Phase)
	}
}
