package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestInitialModelPrefill(t *testing.T) {
	m := InitialModel(map[int]string{ProfileName: "prod", VaultAddress: " https://vault.internal:8200 "})
	if m.Value(ProfileName) != "prod" {
		t.Fatalf("Got [%s]... wanted [prod]", m.Value(ProfileName))
	}
	if m.Value(VaultAddress) != "https://vault.internal:8200" {
		t.Fatalf("Got [%s]... wanted [https://vault.internal:8200]", m.Value(VaultAddress))
	}
	if !strings.Contains(m.View(), "Ledger Endpoint") {
		t.Fatal("view is missing the ledger endpoint field")
	}
}

func TestNavigationAndQuit(t *testing.T) {
	var model tea.Model = InitialModel(nil)
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyTab})
	if got := model.(Model).focused; got != OidcIssuer {
		t.Fatalf("Got [%d]... wanted [%d]", got, OidcIssuer)
	}
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if got := model.(Model).focused; got != LedgerEndpoint {
		t.Fatalf("Got [%d]... wanted [%d]", got, LedgerEndpoint)
	}
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if !model.(Model).Quit {
		t.Fatal("expected escape to quit without saving")
	}
}
