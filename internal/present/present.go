// Package present renders game state and events for a terminal.
package present

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/MJE43/luckyloop/internal/cards"
	"github.com/MJE43/luckyloop/internal/game"
)

var printer = message.NewPrinter(language.English)

// Money formats an amount with thousands separators.
func Money(n int) string {
	return printer.Sprintf("%d", n)
}

// Signed formats an amount with an explicit sign.
func Signed(n int) string {
	if n > 0 {
		return "+" + Money(n)
	}
	return Money(n)
}

// Card renders one card with a colored suit. The zero Card is a face-down
// card.
func Card(c cards.Card) string {
	if c == (cards.Card{}) {
		return pterm.Gray("[??]")
	}
	switch c.Suit {
	case "hearts", "diamonds":
		return "[" + pterm.LightRed(c.String()) + "]"
	default:
		return "[" + c.String() + "]"
	}
}

// Hand renders cards side by side.
func Hand(cs []cards.Card) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = Card(c)
	}
	return strings.Join(parts, " ")
}

// Table renders the full table view: status, dealer, player and any
// active skill or encounter.
func Table(snap game.Snapshot) string {
	box := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)

	status := fmt.Sprintf("Balance: %s\nBet: %s\nLevel %d/%d  target %s\nRound %d/%d",
		Money(snap.Balance), Money(snap.Bet), snap.Level, snap.MaxLevel, Money(snap.Threshold),
		snap.LevelRound, snap.MaxRoundsPerLevel)
	statusPanel := pterm.Panel{Data: box.WithTitle(pterm.LightYellow("|STATUS|")).WithTitleTopCenter().Sprint(status)}

	dealer := "-"
	if len(snap.Dealer) > 0 {
		dealer = fmt.Sprintf("%s\nValue: %d", Hand(snap.Dealer), snap.DealerValue)
		if snap.DealerHoleHidden {
			dealer += " + ?"
		}
	}
	player := "-"
	if len(snap.Player) > 0 {
		player = fmt.Sprintf("%s\nValue: %d", Hand(snap.Player), snap.PlayerValue)
	}
	table := []pterm.Panel{
		{Data: box.WithTitle("Dealer").WithTitleTopLeft().Sprint(dealer)},
		{Data: box.WithTitle("You").WithTitleTopLeft().Sprint(player)},
	}

	var extras []pterm.Panel
	if snap.Skill != nil {
		extras = append(extras, pterm.Panel{Data: box.WithTitle(pterm.LightCyan("|SKILL|")).WithTitleTopCenter().
			Sprintf("%s\n%s", snap.Skill.Name, snap.Skill.Description)})
	}
	if snap.Encounter != nil {
		extras = append(extras, pterm.Panel{Data: box.WithTitle(pterm.LightMagenta("|ENCOUNTER|")).WithTitleTopCenter().
			Sprintf("%s\n%s", snap.Encounter.Name, snap.Encounter.Description)})
	}

	rows := pterm.Panels{{statusPanel}, table}
	if len(extras) > 0 {
		rows = append(rows, extras)
	}
	out, err := pterm.DefaultPanel.WithPanels(rows).Srender()
	if err != nil {
		return status
	}
	return out
}

// Summary renders the game-over report.
func Summary(snap game.Snapshot) string {
	data := pterm.TableData{
		{"Final balance", Money(snap.Balance)},
		{"Level reached", fmt.Sprintf("%d/%d", snap.Level, snap.MaxLevel)},
		{"Rounds this level", fmt.Sprintf("%d/%d", snap.LevelRound, snap.MaxRoundsPerLevel)},
		{"Rounds played", Money(snap.Stats.Rounds)},
		{"Won / lost / pushed", fmt.Sprintf("%d / %d / %d", snap.Stats.Wins, snap.Stats.Losses, snap.Stats.Pushes)},
		{"Profit", Signed(snap.Stats.Profit)},
	}
	if len(snap.PersistedSkills) > 0 {
		data = append(data, []string{"Skills collected", strings.Join(snap.PersistedSkills, ", ")})
	}
	out, err := pterm.DefaultTable.WithData(data).Srender()
	if err != nil {
		return fmt.Sprintf("Final balance %s", Money(snap.Balance))
	}
	title := pterm.LightRed("GAME OVER")
	if snap.GameOverReason != "" {
		title += ": " + snap.GameOverReason
	}
	return title + "\n" + out
}

// SkillOptions lists the pending skill choices as menu lines. The first
// option plays without a skill.
func SkillOptions(snap game.Snapshot) []string {
	opts := []string{"none: play this level without a skill"}
	for _, sk := range snap.SkillChoices {
		opts = append(opts, fmt.Sprintf("%s: %s", sk.ID, sk.Description))
	}
	return opts
}

// SkillID extracts the id from a SkillOptions line; "none" maps to "".
func SkillID(option string) string {
	id, _, _ := strings.Cut(option, ":")
	if id == "none" {
		return ""
	}
	return id
}

// Notifier prints game events as they happen. It satisfies game.Notifier.
type Notifier struct {
	info    *pterm.PrefixPrinter
	success *pterm.PrefixPrinter
	warning *pterm.PrefixPrinter
	fail    *pterm.PrefixPrinter
	// Cards also prints every dealt card.
	Cards bool
}

var _ game.Notifier = (*Notifier)(nil)

// NewNotifier writes to w; nil means stdout.
func NewNotifier(w io.Writer) *Notifier {
	if w == nil {
		w = os.Stdout
	}
	return &Notifier{
		info:    pterm.Info.WithWriter(w),
		success: pterm.Success.WithWriter(w),
		warning: pterm.Warning.WithWriter(w),
		fail:    pterm.Error.WithWriter(w),
	}
}

// Notify implements game.Notifier.
func (n *Notifier) Notify(ev game.Event) {
	switch ev.Kind {
	case game.EventCardDealt:
		if !n.Cards || ev.Dest == nil {
			return
		}
		c := "face down"
		if !ev.FaceDown && ev.Card != nil {
			c = Card(*ev.Card)
		}
		n.info.Printfln("%s card %d: %s", ev.Dest.Hand, ev.Dest.Index+1, c)
	case game.EventEncounter:
		if ev.Encounter != nil {
			n.warning.Printfln("Encounter! %s: %s", ev.Encounter.Name, ev.Encounter.Description)
		}
	case game.EventRoundResolved:
		if ev.Outcome != nil {
			n.outcome(*ev.Outcome)
		}
	case game.EventLevelUp:
		n.success.Printfln("Level up! Welcome to level %d", ev.Level)
	case game.EventLevelReplay:
		n.warning.Printfln("Round cap reached without the target, replaying level %d", ev.Level)
	case game.EventSkillChosen:
		if ev.Skill == "" {
			n.info.Printfln("Playing level %d without a skill", ev.Level)
		} else {
			n.info.Printfln("Skill for level %d: %s", ev.Level, ev.Skill)
		}
	case game.EventGameOver:
		n.fail.Printfln("Game over: %s", ev.Reason)
	}
}

func (n *Notifier) outcome(o game.Outcome) {
	hands := fmt.Sprintf("%d vs %d", o.PlayerValue, o.DealerValue)
	switch {
	case o.PlayerBlackjack && o.Result == game.ResultWin:
		hands = "Blackjack"
	case o.DealerBlackjack && o.Result == game.ResultLoss:
		hands = "dealer blackjack"
	}
	msg := fmt.Sprintf("%s, reward %s, balance %s", hands, Signed(o.Reward), Money(o.BalanceAfter))
	if o.SafetyNet {
		msg += " (safety net)"
	}
	switch o.Result {
	case game.ResultWin:
		n.success.Println("You win! " + msg)
	case game.ResultLoss:
		n.fail.Println("You lose. " + msg)
	default:
		n.info.Println("Push. " + msg)
	}
}
