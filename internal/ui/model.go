package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bep/debounce"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/0xlemi/tunepitch/internal/pitch"
	"github.com/0xlemi/tunepitch/internal/tuner"
)

// How long reference changes must settle before they are logged
const referenceLogDelay = 500 * time.Millisecond

var (
	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			PaddingLeft(2).
			PaddingRight(2).
			MarginBottom(1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CCCCCC"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F"))

	// Note colors
	noteColors = map[string]string{
		"C": "#E8D6B0", // Beige
		"D": "#A020F0", // Purple
		"E": "#FFFF00", // Yellow
		"F": "#FFA500", // Orange
		"G": "#00FF00", // Green
		"A": "#FF0000", // Red
		"B": "#0000FF", // Blue
	}
)

// noteBlock returns a bordered block style in the given background color
func noteBlock(color string) lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FAFAFA")).
		Background(lipgloss.Color(color)).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#333333"))
}

// Get the next natural note (for sharp note colors)
func getNextNote(note string) string {
	switch note {
	case "C":
		return "D"
	case "D":
		return "E"
	case "E":
		return "F"
	case "F":
		return "G"
	case "G":
		return "A"
	case "A":
		return "B"
	default:
		return "C"
	}
}

// renderNote draws the note name; sharps are split between the colors of
// their two neighbouring naturals
func renderNote(note pitch.Note) string {
	if !strings.HasSuffix(note.Name, "#") {
		return noteBlock(noteColors[note.Name]).Padding(2, 4).Render(note.String())
	}

	base := note.Name[:1]
	left := noteBlock(noteColors[base]).
		BorderRight(false).
		PaddingLeft(2).
		PaddingRight(1).
		PaddingTop(2).
		PaddingBottom(2)
	right := noteBlock(noteColors[getNextNote(base)]).
		BorderLeft(false).
		PaddingLeft(1).
		PaddingRight(2).
		PaddingTop(2).
		PaddingBottom(2)

	return lipgloss.JoinHorizontal(lipgloss.Top,
		left.Render(base),
		right.Render(fmt.Sprintf("#%d", note.Octave)))
}

// TickMsg represents an analysis tick
type TickMsg time.Time

// startedMsg reports the outcome of an audio acquisition
type startedMsg struct {
	err error
}

// Model represents the UI state
type Model struct {
	ctx      context.Context
	session  *tuner.Session
	interval time.Duration
	logger   *slog.Logger
	announce func(f func())

	display tuner.Display
	err     error
	width   int
	height  int
}

// NewModel creates a UI model driving session once per interval
func NewModel(ctx context.Context, session *tuner.Session, interval time.Duration, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}
	return Model{
		ctx:      ctx,
		session:  session,
		interval: interval,
		logger:   logger.With("component", "ui"),
		announce: debounce.New(referenceLogDelay),
	}
}

// Init starts listening and the analysis ticks
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.start(), m.tick())
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) start() tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		return startedMsg{err: session.Start(ctx)}
	}
}

// Update updates the UI model based on messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case startedMsg:
		if msg.err != nil && !errors.Is(msg.err, tuner.ErrStopped) && !errors.Is(msg.err, tuner.ErrAlreadyListening) {
			m.err = msg.err
		}

	case TickMsg:
		// The next tick is only scheduled once this cycle is done
		if m.session.State() == tuner.Listening {
			d, err := m.session.Cycle()
			m.display = d
			if err != nil && !errors.Is(err, tuner.ErrNotListening) {
				m.err = err
			}
		}
		return m, m.tick()
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "s", " ":
		// Also abandons a device open that has not returned yet
		if m.session.State() == tuner.Listening || m.session.Acquiring() {
			m.session.Stop()
			m.display = tuner.NoSignal
			return m, nil
		}
		m.err = nil
		return m, m.start()

	case "c":
		if a4, ok := m.session.Calibrate(); ok {
			m.logger.Info("reference calibrated", "a4", a4)
		}

	case "+", "=", "up", "k":
		m.nudgeReference(1)

	case "-", "down", "j":
		m.nudgeReference(-1)
	}

	return m, nil
}

func (m Model) nudgeReference(step float64) {
	a4 := m.session.Reference() + step
	if err := m.session.SetReference(a4); err != nil {
		return
	}
	logger := m.logger
	m.announce(func() {
		logger.Info("reference pitch set", "a4", a4)
	})
}

// View renders the UI
func (m Model) View() string {
	s := titleStyle.Render("TunePitch - Instrument Tuner")
	s += "\n"

	if m.display.Signal {
		s += renderNote(m.display.Note)
		s += "\n"
		s += renderDial(m.display, dialWidth)
		s += "\n"

		info := fmt.Sprintf("Frequency: %.2f Hz | Cents: %+d",
			m.display.Note.Frequency,
			m.display.Note.Cents)
		s += infoStyle.Render(info)
	} else {
		s += renderDial(m.display, dialWidth)
		s += "\n"
		if m.session.State() == tuner.Listening {
			s += infoStyle.Render("Play a note to tune")
		} else {
			s += infoStyle.Render("Stopped")
		}
	}

	s += "\n\n"
	s += infoStyle.Render(fmt.Sprintf("A4 = %.0f Hz", m.session.Reference()))

	if m.err != nil {
		s += "\n"
		s += errorStyle.Render(m.err.Error())
	}

	s += "\n\n"
	s += infoStyle.Render("s start/stop | c calibrate on low E | +/- A4 | q quit")

	return s
}
