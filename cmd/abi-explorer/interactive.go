package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/native-abi/abi"
	"github.com/wippyai/native-abi/witsig"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	regStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F9E2AF"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateInputSig modelState = iota
	stateSelectFunc
	stateShowSequence
)

type explorerModel struct {
	err      error
	desc     *abi.Descriptor
	abiIdx   int
	dir      abi.Direction
	input    textinput.Model
	sigs     []witsig.Signature
	selected int
	seq      *abi.CallingSequence
	state    modelState
}

func newExplorerModel(desc *abi.Descriptor) *explorerModel {
	ti := textinput.New()
	ti.Placeholder = "add: func(a: s32, b: s32) -> s32;"
	ti.Prompt = "sig: "
	ti.Width = 64
	ti.Focus()

	idx := 0
	for i, d := range knownABIs {
		if d.Name == desc.Name {
			idx = i
		}
	}

	return &explorerModel{
		desc:   desc,
		abiIdx: idx,
		input:  ti,
		state:  stateInputSig,
	}
}

func (m *explorerModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *explorerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateInputSig {
				return m, tea.Quit
			}

		case "up", "k":
			switch m.state {
			case stateInputSig:
				if msg.String() == "up" {
					m.abiIdx = (m.abiIdx + len(knownABIs) - 1) % len(knownABIs)
					m.desc = knownABIs[m.abiIdx]
					return m, nil
				}
			case stateSelectFunc:
				if m.selected > 0 {
					m.selected--
				}
				return m, nil
			}

		case "down", "j":
			switch m.state {
			case stateInputSig:
				if msg.String() == "down" {
					m.abiIdx = (m.abiIdx + 1) % len(knownABIs)
					m.desc = knownABIs[m.abiIdx]
					return m, nil
				}
			case stateSelectFunc:
				if m.selected < len(m.sigs)-1 {
					m.selected++
				}
				return m, nil
			}

		case "tab":
			if m.dir == abi.Downcall {
				m.dir = abi.Upcall
			} else {
				m.dir = abi.Downcall
			}
			if m.state == stateShowSequence {
				m.arrange()
			}
			return m, nil

		case "enter":
			switch m.state {
			case stateInputSig:
				m.parseSignatures()
			case stateSelectFunc:
				m.arrange()
			case stateShowSequence:
				m.state = stateSelectFunc
				m.seq = nil
			}
			return m, nil

		case "esc":
			switch m.state {
			case stateSelectFunc:
				m.state = stateInputSig
				m.sigs = nil
				m.err = nil
			case stateShowSequence:
				m.state = stateSelectFunc
				m.seq = nil
				m.err = nil
			}
			return m, nil
		}
	}

	if m.state == stateInputSig {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *explorerModel) parseSignatures() {
	sigs, err := witsig.ParseText(m.input.Value())
	if err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.sigs = sigs
	m.selected = 0
	if len(sigs) == 1 {
		m.arrange()
		return
	}
	m.state = stateSelectFunc
}

func (m *explorerModel) arrange() {
	seq, err := abi.Arrange(m.desc, m.sigs[m.selected].Func, m.dir)
	if err != nil {
		m.err = err
		m.state = stateSelectFunc
		return
	}
	m.err = nil
	m.seq = seq
	m.state = stateShowSequence
}

func (m *explorerModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("ABI Explorer"))
	b.WriteString(fmt.Sprintf(" %s • %s\n\n", m.desc.Name, m.dir))

	switch m.state {
	case stateInputSig:
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			b.WriteString("\n\n")
		}
		b.WriteString(helpStyle.Render("↑/↓ abi • tab direction • enter arrange • ctrl+c quit"))

	case stateSelectFunc:
		b.WriteString("Select a function:\n\n")
		for i, sig := range m.sigs {
			line := funcStyle.Render(sig.Name) + typeStyle.Render(" "+sig.Func.String())
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> ") + line)
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			b.WriteString("\n\n")
		}
		b.WriteString(helpStyle.Render("↑/↓ select • tab direction • enter arrange • esc back • q quit"))

	case stateShowSequence:
		b.WriteString(m.renderSequence())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab direction • enter/esc back • q quit"))
	}

	return b.String()
}

func (m *explorerModel) renderSequence() string {
	seq := m.seq
	sig := m.sigs[m.selected]

	var b strings.Builder
	b.WriteString(funcStyle.Render(sig.Name))
	b.WriteString(typeStyle.Render(" " + seq.Fn.String()))
	b.WriteString("\n\n")

	for i, a := range seq.Args {
		storages := make([]string, len(a.Storages))
		for j, s := range a.Storages {
			storages[j] = regStyle.Render(s.String())
		}
		tag := ""
		if a.Synthetic {
			tag = helpStyle.Render("  (hidden return)")
		}
		b.WriteString(fmt.Sprintf("  arg%-3d %s %-9s %s%s\n",
			i, typeStyle.Render(fmt.Sprintf("%-12s", a.Layout)), a.Class.Class,
			strings.Join(storages, ", "), tag))
	}

	if ret := seq.Fn.Return(); ret != nil {
		where := "memory via hidden pointer"
		if !seq.HiddenReturn {
			regs := make([]string, len(seq.ReturnRegs))
			for j, s := range seq.ReturnRegs {
				regs[j] = regStyle.Render(s.String())
			}
			where = strings.Join(regs, ", ")
		}
		b.WriteString(fmt.Sprintf("  ret    %s %-9s %s\n",
			typeStyle.Render(fmt.Sprintf("%-12s", ret)), seq.ReturnClass.Class, where))
	}

	b.WriteString(fmt.Sprintf("\n  stack bytes: %d\n", seq.StackBytes))
	return b.String()
}

func runInteractive(desc *abi.Descriptor) error {
	p := tea.NewProgram(newExplorerModel(desc), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
