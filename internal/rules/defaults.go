package rules

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
)

// DefaultEncounterChance is the per-round probability of an encounter.
const DefaultEncounterChance = 0.18

// Skill ids of the built-in catalog.
const (
	LuckCharm     = "luck_charm"
	CardPeek      = "card_peek"
	ExtraDouble   = "extra_double"
	RewardBooster = "reward_booster"
	SafetyNet     = "safety_net"
)

// Default returns the built-in three-level catalog.
func Default() *Catalog {
	return &Catalog{
		Levels: []LevelConfig{
			{Level: 1, Decks: 1, DealerHitsSoft17: false, BlackjackPayout: decimal.RequireFromString("1.5"), Threshold: 500, BaseBet: 100},
			{Level: 2, Decks: 2, DealerHitsSoft17: true, BlackjackPayout: decimal.RequireFromString("1.33"), Threshold: 1200, BaseBet: 200},
			{Level: 3, Decks: 4, DealerHitsSoft17: true, BlackjackPayout: decimal.RequireFromString("1.2"), Threshold: 2500, BaseBet: 500},
		},
		Skills: []Skill{
			{ID: LuckCharm, Name: "Luck Charm", Description: "+5% illustrative win chance for this level", Kind: SkillWinChance, Magnitude: decimal.RequireFromString("0.05")},
			{ID: CardPeek, Name: "Card Peek", Description: "Reveal dealer's hole card for the level", Kind: SkillPeek},
			{ID: ExtraDouble, Name: "Extra Double", Description: "Allow one extra double-down this level", Kind: SkillExtraDouble, Magnitude: decimal.NewFromInt(1)},
			{ID: RewardBooster, Name: "Reward Booster", Description: "Multiply win rewards by 1.5 this level", Kind: SkillRewardMultiplier, Magnitude: decimal.RequireFromString("1.5")},
			{ID: SafetyNet, Name: "Safety Net", Description: "First loss that would drop below 0 is halved", Kind: SkillSafetyNet},
		},
		Encounters: []Encounter{
			{ID: "lucky_deck", Name: "Lucky Deck", Description: "Fewer decks this round, easier!", Effect: EncounterEffect{DecksDelta: -1}},
			{ID: "dealer_mistake", Name: "Dealer Mistake", Description: "Dealer stands early this round", Effect: EncounterEffect{DealerStandsEarly: true}},
			{ID: "high_stakes", Name: "High Stakes", Description: "Double payout but house edge increases", Effect: EncounterEffect{PayoutMultiplier: decimal.NewFromInt(2), HouseEdge: decimal.RequireFromString("0.05")}},
			{ID: "bonus_card", Name: "Bonus Card", Description: "Player draws an extra card automatically", Effect: EncounterEffect{PlayerExtraCard: true}},
			{ID: "foggy_table", Name: "Foggy Table", Description: "Dealer hits more aggressively this round", Effect: EncounterEffect{DealerHitsAggressively: true}},
		},
		EncounterChance: DefaultEncounterChance,
		FallbackBet:     15,
	}
}

// Load reads a JSON catalog from path and validates it.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read catalog: %w", err)
	}

	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("rules: decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
