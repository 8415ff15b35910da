package main

import (
	"testing"

	"github.com/matthewjhunter/courier/internal/storage"
)

func TestPickGame(t *testing.T) {
	one := []storage.Game{{ID: 7, Name: "Hades II"}}
	if g := pickGame(one, "hades"); g == nil || g.ID != 7 {
		t.Errorf("single hit should be picked, got %v", g)
	}

	many := []storage.Game{{ID: 1, Name: "Hades"}, {ID: 2, Name: "Hades II"}}
	if g := pickGame(many, "hades"); g == nil || g.ID != 1 {
		t.Errorf("exact name should be picked, got %v", g)
	}
	if g := pickGame(many, "had"); g != nil {
		t.Errorf("ambiguous search should pick nothing, got %v", g)
	}

	dupes := []storage.Game{{ID: 1, Name: "Doom"}, {ID: 2, Name: "DOOM"}}
	if g := pickGame(dupes, "doom"); g != nil {
		t.Errorf("two exact matches should pick nothing, got %v", g)
	}
}

func TestParseGameID(t *testing.T) {
	if id, err := parseGameID("1942"); err != nil || id != 1942 {
		t.Errorf("parseGameID(1942) = %d, %v", id, err)
	}
	for _, s := range []string{"", "0", "-3", "abc"} {
		if _, err := parseGameID(s); err == nil {
			t.Errorf("parseGameID(%q) should fail", s)
		}
	}
}
