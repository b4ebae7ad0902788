// Package scripting runs JavaScript playing strategies against a game
// table. A strategy defines round(), returning BLACKJACK_HIT,
// BLACKJACK_STAND or BLACKJACK_DOUBLE for the hand in front of it, and may
// define chooseskill(choices) to fill skill slots and afterround() to set
// nextbet or call stop() between rounds.
package scripting
