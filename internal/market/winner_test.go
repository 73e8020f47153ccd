package market

import (
	"testing"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

func TestResolveWinner(t *testing.T) {
	teams := []domain.Option{{Label: "Lakers"}, {Label: "Celtics"}}
	yesNo := []domain.Option{{Label: "Yes"}, {Label: "No"}}
	match := []domain.Option{{Label: "Home"}, {Label: "Away"}, {Label: "Draw Result"}}
	city := []domain.Option{{Label: "Man"}, {Label: "Man City"}}
	towns := []domain.Option{{Label: "Paris"}, {Label: "Lyon"}}

	tests := []struct {
		name string
		raw  string
		opts []domain.Option
		want string
	}{
		{"yes maps to first", "YES", teams, "Lakers"},
		{"no maps to second", "NO", teams, "Celtics"},
		{"draw maps to third", "DRAW", match, "Draw Result"},
		{"invalid", "invalid - no majority", teams, "Invalid"},
		{"invalid beats label no", "invalid - no majority", yesNo, "Invalid"},
		{"label equality", "celtics", teams, "Celtics"},
		{"label contained", "Winner: Lakers (final)", teams, "Lakers"},
		{"longest label wins", "Man City won", city, "Man City"},
		{"label not matched mid word", "Lakersville", teams, "Lakersville"},
		{"accented letter before label", "Éparis", towns, "Éparis"},
		{"accented letter after label", "Parisé", towns, "Parisé"},
		{"label inside guillemets", "Vainqueur: «Lyon»", towns, "Lyon"},
		{"yes without options", "YES", nil, "YES"},
		{"draw without third option", "DRAW", teams, "DRAW"},
		{"unknown passes through trimmed", "  Postponed  ", teams, "Postponed"},
		{"empty", "   ", teams, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveWinner(tt.raw, tt.opts); got != tt.want {
				t.Errorf("ResolveWinner(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestResolveWinnerLeadingWordOnly(t *testing.T) {
	teams := []domain.Option{{Label: "Lakers"}, {Label: "Celtics"}}
	if got := ResolveWinner("Nobody", teams); got != "Nobody" {
		t.Errorf("ResolveWinner(Nobody) = %q, want passthrough", got)
	}
	if got := ResolveWinner("Yes.", teams); got != "Lakers" {
		t.Errorf("ResolveWinner(Yes.) = %q, want Lakers", got)
	}
}
