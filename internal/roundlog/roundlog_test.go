package roundlog

import (
	"bytes"
	"encoding/csv"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MJE43/luckyloop/internal/game"
)

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	fh, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer fh.Close()
	rows, err := csv.NewReader(fh).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	return rows
}

func TestOpenWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	for i := 0; i < 2; i++ {
		if _, err := Open(path, nil); err != nil {
			t.Fatalf("Open #%d: %v", i, err)
		}
	}
	rows := readAll(t, path)
	if len(rows) != 1 || strings.Join(rows[0], ",") != "Round,Level,Skill,Encounter,PlayerValue,DealerValue,Result,Reward,Balance,PersistentSkills" {
		t.Errorf("rows = %v", rows)
	}
}

func TestRecordRoundAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	f, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}

	f.RecordRound(game.RoundRecord{
		Round: 1, Level: 1, PlayerValue: 21, DealerValue: 16,
		Result: game.ResultWin, Reward: 150, Balance: 450,
	})
	f.RecordRound(game.RoundRecord{
		Round: 2, Level: 1, Skill: "Safety Net", Encounter: "High Stakes", PlayerValue: 17, DealerValue: 19,
		Result: game.ResultLoss, Reward: -200, Balance: 250, PersistentSkills: []string{"Safety Net", "Card Peek"},
	})

	// Reopening must not truncate.
	if _, err := Open(path, nil); err != nil {
		t.Fatal(err)
	}

	rows := readAll(t, path)
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if got := strings.Join(rows[1], "|"); got != "1|1|||21|16|win|150|450|" {
		t.Errorf("row 1 = %s", got)
	}
	if got := rows[2][9]; got != "Safety Net,Card Peek" {
		t.Errorf("persisted skills column = %q", got)
	}
	if rows[2][7] != "-200" {
		t.Errorf("reward column = %q", rows[2][7])
	}
}

func TestRecordRoundLogsFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.csv")
	var buf bytes.Buffer
	f, err := Open(path, log.New(&buf, "", 0))
	if err != nil {
		t.Fatal(err)
	}
	os.Remove(path)

	f.RecordRound(game.RoundRecord{Round: 7})
	if !strings.Contains(buf.String(), "roundlog: append round 7") {
		t.Errorf("log = %q", buf.String())
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, []Row{{Round: 1, Level: 2, Skill: "Card Peek", Result: "push", Balance: 300, PersistentSkills: "Card Peek,Luck Charm"}})
	if err != nil {
		t.Fatal(err)
	}
	want := "Round,Level,Skill,Encounter,PlayerValue,DealerValue,Result,Reward,Balance,PersistentSkills\n" +
		"1,2,Card Peek,,0,0,push,0,300,\"Card Peek,Luck Charm\"\n"
	if buf.String() != want {
		t.Errorf("csv =\n%s\nwant\n%s", buf.String(), want)
	}
}
