package game

import (
	"github.com/MJE43/luckyloop/internal/cards"
	"github.com/MJE43/luckyloop/internal/engine"
	"github.com/MJE43/luckyloop/internal/rules"
)

// Phase is the lifecycle position of a round.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseDealing    Phase = "dealing"
	PhasePlayerTurn Phase = "player_turn"
	PhaseDealerTurn Phase = "dealer_turn"
	PhaseResolved   Phase = "resolved"
)

// Dealer drawing limits.
const (
	dealerStandOn      = 17
	dealerStandEarlyOn = 14
	dealerAggressiveOn = 18
	soft17RedrawChance = 0.5
	shoeSourceName     = "shoe"
)

// ShoeFactory builds the shoe for a round. NewShoe is the default; tests
// substitute stacked shoes.
type ShoeFactory func(decks int, src engine.Source) *cards.Shoe

// Round is one hand of blackjack against the dealer. Dealer[0] is the hole
// card.
type Round struct {
	Number    int
	Level     rules.LevelConfig
	Encounter *rules.Encounter
	Player    []cards.Card
	Dealer    []cards.Card
	Phase     Phase
	Outcome   *Outcome

	shoe *cards.Shoe
	src  engine.Source
	emit func(Event)
}

func newRound(number int, level rules.LevelConfig, enc *rules.Encounter, shoe *cards.Shoe, src engine.Source, emit func(Event)) *Round {
	return &Round{
		Number:    number,
		Level:     level,
		Encounter: enc,
		Phase:     PhaseNotStarted,
		shoe:      shoe,
		src:       src,
		emit:      emit,
	}
}

// roundDecks is the deck count for a level after an encounter's delta,
// never below one.
func roundDecks(level rules.LevelConfig, enc *rules.Encounter) int {
	decks := level.Decks
	if enc != nil {
		decks += enc.Effect.DecksDelta
	}
	if decks < 1 {
		decks = 1
	}
	return decks
}

// deal draws p1, p2, d1, d2 from the shoe. Events go out in table order
// with the hole card face down.
func (r *Round) deal() {
	r.Phase = PhaseDealing
	p1 := r.shoe.Draw()
	p2 := r.shoe.Draw()
	d1 := r.shoe.Draw()
	d2 := r.shoe.Draw()

	r.Player = []cards.Card{p1, p2}
	r.Dealer = []cards.Card{d1, d2}

	r.dealt(p1, HandPlayer, 0, false)
	r.dealt(d1, HandDealer, 0, true)
	r.dealt(p2, HandPlayer, 1, false)
	r.dealt(d2, HandDealer, 1, false)

	if r.Encounter != nil && r.Encounter.Effect.PlayerExtraCard {
		r.hitPlayer()
	}
	r.Phase = PhasePlayerTurn
}

func (r *Round) dealt(c cards.Card, hand Hand, idx int, faceDown bool) {
	r.emit(Event{
		Kind:     EventCardDealt,
		Card:     &c,
		Source:   shoeSourceName,
		Dest:     &Slot{Hand: hand, Index: idx},
		FaceDown: faceDown,
	})
}

func (r *Round) hitPlayer() cards.Card {
	c := r.shoe.Draw()
	r.Player = append(r.Player, c)
	r.dealt(c, HandPlayer, len(r.Player)-1, false)
	return c
}

func (r *Round) hitDealer() {
	c := r.shoe.Draw()
	r.Dealer = append(r.Dealer, c)
	r.dealt(c, HandDealer, len(r.Dealer)-1, false)
}

// PlayerValue is the best total of the player's hand.
func (r *Round) PlayerValue() int { return cards.HandValue(r.Player) }

// DealerValue is the best total of the dealer's full hand.
func (r *Round) DealerValue() int { return cards.HandValue(r.Dealer) }

// playDealer draws for the dealer until its policy says stop.
func (r *Round) playDealer() {
	r.Phase = PhaseDealerTurn
	for r.dealerDraws() {
		r.hitDealer()
	}
}

func (r *Round) dealerDraws() bool {
	dv := r.DealerValue()
	if r.Encounter != nil {
		switch {
		case r.Encounter.Effect.DealerStandsEarly:
			return dv < dealerStandEarlyOn
		case r.Encounter.Effect.DealerHitsAggressively:
			return dv < dealerAggressiveOn
		}
	}
	if dv < dealerStandOn {
		return true
	}
	if dv == dealerStandOn && r.Level.DealerHitsSoft17 && cards.IsSoft(r.Dealer) {
		return r.src.Float64() < soft17RedrawChance
	}
	return false
}

func (r *Round) encounterID() string {
	if r.Encounter == nil {
		return ""
	}
	return r.Encounter.ID
}
