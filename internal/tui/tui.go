package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Field indexes into Model.Inputs.
const (
	ProfileName = iota
	OidcIssuer
	ClientID
	ClientSecret
	BlobBackend
	BlobCluster
	BlobGateway
	VaultAddress
	VaultToken
	LedgerBackend
	LedgerEndpoint
	fieldCount
)

type field struct {
	label       string
	placeholder string
	width       int
	secret      bool
}

var fields = [fieldCount]field{
	ProfileName:    {label: "Profile Name", placeholder: "default", width: 20},
	OidcIssuer:     {label: "OIDC Issuer", placeholder: "https://idp.example.org/realms/cti", width: 100},
	ClientID:       {label: "Client ID", placeholder: "ctivault", width: 20},
	ClientSecret:   {label: "Client Secret", placeholder: "leave empty for browser login", width: 40, secret: true},
	BlobBackend:    {label: "Blob Backend", placeholder: "ipfs | local | memory", width: 20},
	BlobCluster:    {label: "IPFS Cluster", placeholder: "http://127.0.0.1:9094", width: 100},
	BlobGateway:    {label: "IPFS Gateway", placeholder: "http://127.0.0.1:8080", width: 100},
	VaultAddress:   {label: "Vault Address", placeholder: "http://127.0.0.1:8200", width: 100},
	VaultToken:     {label: "Vault Token", placeholder: "token or CTIVAULT_VAULT_TOKEN", width: 40, secret: true},
	LedgerBackend:  {label: "Ledger Backend", placeholder: "gateway | memory | badger | postgres", width: 40},
	LedgerEndpoint: {label: "Ledger Endpoint", placeholder: "http://127.0.0.1:8080/api/ledger", width: 100},
}

type (
	errMsg error
)

const (
	hotPink  = lipgloss.Color("#FF06B7")
	darkGray = lipgloss.Color("#767676")
)

var (
	inputStyle    = lipgloss.NewStyle().Foreground(hotPink)
	continueStyle = lipgloss.NewStyle().Foreground(darkGray)
)

type Model struct {
	Inputs  []textinput.Model
	focused int
	err     error
	Quit    bool
}

// InitialModel builds the profile form. values pre-fills fields by index,
// typically from an existing profile.
func InitialModel(values map[int]string) Model {
	inputs := make([]textinput.Model, fieldCount)
	for i, f := range fields {
		inputs[i] = textinput.New()
		inputs[i].Placeholder = f.placeholder
		inputs[i].CharLimit = 156
		inputs[i].Width = f.width
		if f.secret {
			inputs[i].EchoMode = textinput.EchoPassword
		}
		if v, ok := values[i]; ok {
			inputs[i].SetValue(v)
		}
	}
	inputs[ProfileName].Focus()

	return Model{
		Inputs: inputs,
	}
}

// Value returns the trimmed value of field i.
func (m Model) Value(i int) string {
	return strings.TrimSpace(m.Inputs[i].Value())
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd = make([]tea.Cmd, len(m.Inputs))
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEnter:
			if m.focused == len(m.Inputs)-1 {
				return m, tea.Quit
			}
			m.nextInput()
		case tea.KeyCtrlC, tea.KeyEsc:
			m.Quit = true
			return m, tea.Quit
		case tea.KeyShiftTab, tea.KeyCtrlP:
			m.prevInput()
		case tea.KeyTab, tea.KeyCtrlN:
			m.nextInput()
		}
		for i := range m.Inputs {
			m.Inputs[i].Blur()
		}
		m.Inputs[m.focused].Focus()

	case errMsg:
		m.err = msg
		return m, nil
	}

	for i := range m.Inputs {
		m.Inputs[i], cmds[i] = m.Inputs[i].Update(msg)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString("\n")
	for i, f := range fields {
		b.WriteString(" ")
		b.WriteString(inputStyle.Width(24).Render(f.label))
		b.WriteString("  ")
		b.WriteString(m.Inputs[i].View())
		b.WriteString("\n")
	}
	b.WriteString("\n ")
	b.WriteString(continueStyle.Render("Submit ->"))
	b.WriteString("\n\n")
	return b.String()
}

// nextInput focuses the next input field
func (m *Model) nextInput() {
	m.focused = (m.focused + 1) % len(m.Inputs)
}

// prevInput focuses the previous input field
func (m *Model) prevInput() {
	m.focused--
	// Wrap around
	if m.focused < 0 {
		m.focused = len(m.Inputs) - 1
	}
}
