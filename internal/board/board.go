// Package board is the live terminal view of the pending offer set. It is a
// thin consumer of the engine: countdowns come from the timer manager,
// accept/decline go through the orchestrator, and no lifecycle logic lives
// here.
package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/calloutapp/callout/internal/availability"
	"github.com/calloutapp/callout/internal/dispatch"
	"github.com/calloutapp/callout/internal/model"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	offerTitleStyle = lipgloss.NewStyle().
			Bold(true)

	offerSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	selectedTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("24"))

	selectedSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Background(lipgloss.Color("24"))

	countdownStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	expiredStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	emergencyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(1, 0, 0, 1)
)

// tickMsg drives the once-a-second countdown refresh.
type tickMsg time.Time

// actionDoneMsg is sent when an async accept/decline completes.
type actionDoneMsg struct {
	offerID string
	res     model.Resolution
	err     error
}

// offerItemHeight is the rendered height of one list entry: title line,
// subtitle line, blank separator.
const offerItemHeight = 3

// chromeHeight is the fixed rows around the list: title, status bar, blank
// above; notice and hint below.
const chromeHeight = 6

// Model is the bubbletea model for the offer board. The offer list scrolls
// inside a viewport; the cursor is kept visible by adjusting its offset.
type Model struct {
	orch  *dispatch.Orchestrator
	avail *availability.Controller
	ctx   context.Context

	offers []model.JobOffer
	cursor int
	notice string
	width  int
	list   viewport.Model
	ready  bool
}

// New creates a board over a running orchestrator.
func New(ctx context.Context, orch *dispatch.Orchestrator, avail *availability.Controller) Model {
	return Model{
		ctx:    ctx,
		orch:   orch,
		avail:  avail,
		offers: orch.Pending(),
	}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		listHeight := msg.Height - chromeHeight
		if listHeight < offerItemHeight {
			listHeight = offerItemHeight
		}
		if !m.ready {
			m.list = viewport.New(msg.Width, listHeight)
			m.ready = true
		} else {
			m.list.Width = msg.Width
			m.list.Height = listHeight
		}
		m.list.SetContent(m.renderOffers())

	case tickMsg:
		m.offers = m.orch.Pending()
		if m.cursor >= len(m.offers) && m.cursor > 0 {
			m.cursor = len(m.offers) - 1
		}
		m.list.SetContent(m.renderOffers())
		return m, tick()

	case actionDoneMsg:
		switch {
		case msg.err != nil && errors.Is(msg.err, model.ErrOfferGone):
			m.notice = fmt.Sprintf("offer %s is no longer available", msg.offerID)
		case msg.err != nil && errors.Is(msg.err, model.ErrBusy):
			m.notice = "request already in flight"
		case msg.err != nil:
			m.notice = fmt.Sprintf("request failed, try again: %v", msg.err)
		case msg.res.Kind == model.ResolutionAccepted:
			m.notice = fmt.Sprintf("accepted %s", msg.res.Job.TaskName)
		default:
			m.notice = fmt.Sprintf("offer %s %s", msg.offerID, msg.res.Kind)
		}
		m.offers = m.orch.Pending()
		m.list.SetContent(m.renderOffers())

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			m.list.SetContent(m.renderOffers())
			m.ensureCursorVisible()
		case "down", "j":
			if m.cursor < len(m.offers)-1 {
				m.cursor++
			}
			m.list.SetContent(m.renderOffers())
			m.ensureCursorVisible()
		case "a":
			if offer, ok := m.selected(); ok {
				return m, m.acceptCmd(offer.ID)
			}
		case "d":
			if offer, ok := m.selected(); ok {
				return m, m.declineCmd(offer.ID)
			}
		default:
			// Forward pgup/pgdn/home/end to the viewport.
			var cmd tea.Cmd
			m.list, cmd = m.list.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// ensureCursorVisible scrolls the list so the selected offer stays on screen.
func (m *Model) ensureCursorVisible() {
	cursorTop := m.cursor * offerItemHeight
	cursorBottom := cursorTop + offerItemHeight - 1
	if cursorTop < m.list.YOffset {
		m.list.SetYOffset(cursorTop)
	} else if cursorBottom >= m.list.YOffset+m.list.Height {
		m.list.SetYOffset(cursorBottom - m.list.Height + 1)
	}
}

func (m Model) selected() (model.JobOffer, bool) {
	if m.cursor < 0 || m.cursor >= len(m.offers) {
		return model.JobOffer{}, false
	}
	return m.offers[m.cursor], true
}

func (m Model) acceptCmd(offerID string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.orch.Accept(m.ctx, offerID)
		return actionDoneMsg{offerID: offerID, res: res, err: err}
	}
}

func (m Model) declineCmd(offerID string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.orch.Decline(m.ctx, offerID)
		return actionDoneMsg{offerID: offerID, res: res, err: err}
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("callout · pending offers"))
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")

	if m.ready {
		b.WriteString(m.list.View())
		b.WriteString("\n")
	} else {
		b.WriteString(m.renderOffers())
	}

	if m.notice != "" {
		b.WriteString(noticeStyle.Render(" " + m.notice))
		b.WriteString("\n")
	}
	b.WriteString(hintStyle.Render("a accept · d decline · j/k move · q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderOffers() string {
	if len(m.offers) == 0 {
		return noticeStyle.Render("  no pending offers") + "\n"
	}

	var b strings.Builder
	for i, offer := range m.offers {
		title := fmt.Sprintf("%s · %s  $%.2f", offer.TaskName, offer.CustomerArea, offer.EstimatedPrice)
		if offer.Level == model.LevelEmergency {
			title += emergencyStyle.Render("  [emergency]")
		}
		subtitle := fmt.Sprintf("  %.1f km · %s · %s", offer.DistanceKm, offer.CategoryName, m.countdown(offer.ID))

		if i == m.cursor {
			b.WriteString(selectedTitleStyle.Render("> " + title))
			b.WriteString("\n")
			b.WriteString(selectedSubtitleStyle.Render(subtitle))
		} else {
			b.WriteString(offerTitleStyle.Render("  " + title))
			b.WriteString("\n")
			b.WriteString(offerSubtitleStyle.Render(subtitle))
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

func (m Model) statusLine() string {
	status := m.avail.Status()
	parts := []string{}
	if status.IsOnline {
		parts = append(parts, "online")
	} else {
		parts = append(parts, "offline")
	}
	if status.Level == model.LevelEmergency {
		if status.IsOnCall {
			parts = append(parts, "on call")
		} else {
			parts = append(parts, "off call")
		}
	}
	parts = append(parts, fmt.Sprintf("level %d", status.Level))
	return statusBarStyle.Render(strings.Join(parts, " · "))
}

func (m Model) countdown(offerID string) string {
	cd, ok := m.orch.Timers().Remaining(offerID)
	if !ok {
		return "--"
	}
	if cd.Expired {
		return expiredStyle.Render("expired")
	}
	return countdownStyle.Render(fmt.Sprintf("%d:%02d left", cd.Minutes, cd.Seconds))
}

// Run starts the board and blocks until the user quits.
func Run(ctx context.Context, orch *dispatch.Orchestrator, avail *availability.Controller) error {
	p := tea.NewProgram(New(ctx, orch, avail))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running offer board: %w", err)
	}
	return nil
}
