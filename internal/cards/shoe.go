package cards

import "github.com/MJE43/luckyloop/internal/engine"

// Shoe is a shuffled multi-deck draw pile. It is owned by a single round and
// is not safe for concurrent use.
type Shoe struct {
	decks      int
	cards      []Card
	src        engine.Source
	reshuffles int
}

// NewShoe builds and shuffles a shoe of decks x 52 cards. decks below 1 are
// raised to 1.
func NewShoe(decks int, src engine.Source) *Shoe {
	s := &Shoe{decks: max(1, decks), src: src}
	s.reset()
	return s
}

// NewStackedShoe builds a shoe whose next draws return order, first element
// first. Once order is used up the shoe reshuffles a full set of decks.
func NewStackedShoe(decks int, src engine.Source, order ...Card) *Shoe {
	s := &Shoe{decks: max(1, decks), src: src}
	s.cards = make([]Card, len(order))
	for i, c := range order {
		s.cards[len(order)-1-i] = c
	}
	return s
}

// FullDeck returns one unshuffled 52-card deck.
func FullDeck() []Card {
	deck := make([]Card, 0, 52)
	for _, rank := range Ranks {
		for _, suit := range Suits {
			deck = append(deck, NewCard(rank, suit))
		}
	}
	return deck
}

func (s *Shoe) reset() {
	s.cards = make([]Card, 0, s.decks*52)
	for i := 0; i < s.decks; i++ {
		s.cards = append(s.cards, FullDeck()...)
	}
	engine.Shuffle(s.src, len(s.cards), func(i, j int) {
		s.cards[i], s.cards[j] = s.cards[j], s.cards[i]
	})
}

// Draw removes and returns the card at the end of the shoe, reshuffling a
// fresh set of decks first when the shoe is empty.
func (s *Shoe) Draw() Card {
	if len(s.cards) == 0 {
		s.reset()
		s.reshuffles++
	}
	c := s.cards[len(s.cards)-1]
	s.cards = s.cards[:len(s.cards)-1]
	return c
}

// Remaining is the number of cards left before the next reshuffle.
func (s *Shoe) Remaining() int { return len(s.cards) }

// Decks is the number of decks the shoe refills to.
func (s *Shoe) Decks() int { return s.decks }

// Reshuffles counts how many times Draw found the shoe empty.
func (s *Shoe) Reshuffles() int { return s.reshuffles }
