package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/decred/slog"
	"github.com/vctt94/bisonbotkit/logging"

	"github.com/NFTcolumn/pixelponies/client"
	"github.com/NFTcolumn/pixelponies/raceanim"
)

type appMode int

const (
	pickMode appMode = iota
	trackMode
	viewLogs
)

const trackWidth = 40

type appstate struct {
	sync.Mutex
	mode   appMode
	ctx    context.Context
	cancel context.CancelFunc
	pc     *client.PonyClient

	dataDir    string
	log        slog.Logger
	logBackend *logging.LogBackend

	msgCh       chan tea.Msg
	viewport    viewport.Model
	logViewport viewport.Model

	notification string

	// Pony and bet cursors for the pick screen.
	ponyCursor int
	betCursor  int

	// Live lane state painted by the animation driver.
	lanePos    [raceanim.Lanes]float64
	laneWinner [raceanim.Lanes]bool
	lanePlace  [raceanim.Lanes]int
}

// trackAnimator adapts the race driver to the client's animator hook,
// painting onto the appstate lanes.
type trackAnimator struct {
	driver *raceanim.Driver
	as     *appstate
}

func (ta *trackAnimator) Play(ctx context.Context, winners [3]int) error {
	ta.as.resetTrack(winners)
	return ta.driver.Play(ctx, winners, ta.as)
}

func (m *appstate) resetTrack(winners [3]int) {
	m.Lock()
	for i := range m.lanePos {
		m.lanePos[i] = 0
		m.laneWinner[i] = false
		m.lanePlace[i] = 0
	}
	for place, lane := range winners {
		m.lanePlace[lane] = place + 1
	}
	m.Unlock()
}

// SetPosition implements raceanim.Surface.
func (m *appstate) SetPosition(lane int, pos float64) {
	m.Lock()
	m.lanePos[lane] = pos
	m.Unlock()
	select {
	case m.msgCh <- client.UpdatedMsg{}:
	default:
	}
}

// MarkWinner implements raceanim.Surface.
func (m *appstate) MarkWinner(lane int) {
	m.Lock()
	m.laneWinner[lane] = true
	m.Unlock()
	select {
	case m.msgCh <- client.UpdatedMsg{}:
	default:
	}
}

func (m *appstate) listenForUpdates() tea.Cmd {
	return func() tea.Msg {
		go func() {
			for msg := range m.pc.UpdatesCh {
				m.msgCh <- msg
			}
		}()
		return nil
	}
}

func (m *appstate) listenForErrors() tea.Cmd {
	return func() tea.Msg {
		go func() {
			for err := range m.pc.ErrorsCh {
				m.msgCh <- fmt.Sprintf("Error: %v", err)
			}
		}()
		return nil
	}
}

func (m *appstate) Init() tea.Cmd {
	m.msgCh = make(chan tea.Msg)
	m.viewport = viewport.New(0, 0)
	m.logViewport = viewport.New(0, 0)

	return tea.Batch(
		m.listenForUpdates(),
		m.listenForErrors(),
		tea.EnterAltScreen,
	)
}

func (m *appstate) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Lock()
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height
		m.logViewport.Width = msg.Width
		m.logViewport.Height = msg.Height - 6
		m.Unlock()
		return m, nil
	case client.UpdatedMsg:
		// Follow the client between the pick screen and the track.
		if m.pc.TrackVisible() {
			m.mode = trackMode
		} else if m.mode == trackMode {
			m.mode = pickMode
		}
		return m, m.waitForMsg()
	case string:
		m.notification = msg
		return m, m.waitForMsg()
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.cancel()
			return m, tea.Quit
		}
		return m.handleKey(msg)
	}
	return m, m.waitForMsg()
}

func (m *appstate) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode == viewLogs {
		switch msg.String() {
		case "esc", "q", "v":
			m.mode = pickMode
			return m, m.waitForMsg()
		}
		var cmd tea.Cmd
		m.logViewport, cmd = m.logViewport.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "up", "k":
		if m.ponyCursor > 0 {
			m.ponyCursor--
		}
	case "down", "j":
		if m.ponyCursor < raceanim.Lanes-1 {
			m.ponyCursor++
		}
	case "enter", " ":
		m.pc.SelectHorse(m.ponyCursor)
	case "b":
		opts := client.BetAmounts()
		m.betCursor = (m.betCursor + 1) % len(opts)
		m.pc.SelectBet(opts[m.betCursor].Amount)
	case "a":
		go func() {
			if err := m.pc.RequestApproval(m.ctx); err != nil {
				m.log.Debugf("approval attempt: %v", err)
			}
		}()
	case "c":
		go func() {
			if err := m.pc.CheckApproval(m.ctx); err != nil {
				m.log.Debugf("approval check: %v", err)
			}
		}()
	case "r":
		go func() {
			if err := m.pc.Race(m.ctx); err != nil {
				m.log.Debugf("race attempt: %v", err)
			}
		}()
	case "g":
		go m.pc.RefreshAll(m.ctx)
	case "t", "esc":
		if m.mode == trackMode && !m.pc.Racing() {
			m.pc.CloseTrack(m.ctx)
			m.mode = pickMode
		}
	case "x":
		m.pc.ClearSelection()
	case "v":
		if lines := m.logBackend.LastLogLines(100); len(lines) > 0 {
			m.logViewport.SetContent(strings.Join(lines, "\n"))
			m.logViewport.GotoBottom()
		}
		m.mode = viewLogs
	}
	return m, m.waitForMsg()
}

func (m *appstate) waitForMsg() tea.Cmd {
	return func() tea.Msg {
		return <-m.msgCh
	}
}

func (m *appstate) View() string {
	var b strings.Builder

	b.WriteString("========== Pixel Ponies ==========\n\n")

	if m.notification != "" {
		b.WriteString(fmt.Sprintf("🔔 %s\n\n", m.notification))
	}
	b.WriteString(fmt.Sprintf("📢 %s\n\n", m.pc.Status()))

	stats, nativeBal, tokenBal, tickets := m.pc.CachedStats()
	b.WriteString(fmt.Sprintf("👤 Player: %s\n", m.pc.Player))
	b.WriteString(fmt.Sprintf("💰 Balance: %s ETH | %s PONY\n", client.FormatEth(nativeBal), client.FormatPony(tokenBal)))
	if stats != nil {
		b.WriteString(fmt.Sprintf("🏆 Jackpot: %s PONY | Races: %s | Players: %s\n",
			client.FormatPony(stats.Jackpot), stats.TotalRaces, stats.TotalPlayers))
	}
	b.WriteString(fmt.Sprintf("🎟️ Jackpot tickets: %d\n\n", tickets))

	switch m.mode {
	case trackMode:
		m.renderTrack(&b)
	case viewLogs:
		b.WriteString("===== Logs =====\n")
		b.WriteString(m.logViewport.View())
		b.WriteString("\n[Esc] - Back\n")
	default:
		m.renderPicker(&b)
	}

	return b.String()
}

func (m *appstate) renderPicker(b *strings.Builder) {
	horse, bet := m.pc.Selection()

	b.WriteString("===== Pick Your Pony =====\n")
	for i := 0; i < raceanim.Lanes; i++ {
		cursor := "  "
		if i == m.ponyCursor {
			cursor = "> "
		}
		mark := " "
		if i == horse {
			mark = "*"
		}
		b.WriteString(fmt.Sprintf("%s[%s] Pony #%d\n", cursor, mark, i+1))
	}

	b.WriteString("\n===== Bet =====\n")
	for _, opt := range client.BetAmounts() {
		mark := " "
		if bet != nil && opt.Amount.Cmp(bet) == 0 {
			mark = "*"
		}
		b.WriteString(fmt.Sprintf("[%s] %s PONY  ", mark, opt.Label))
	}
	b.WriteString("\n\n===== Controls =====\n")
	b.WriteString("[↑/↓] - Move  [Enter] - Pick pony  [B] - Cycle bet\n")
	b.WriteString("[A] - STEP 1: Approve PONY  [C] - Check approval\n")
	b.WriteString("[R] - STEP 2: RACE!\n")
	b.WriteString("[G] - Refresh  [X] - Clear selection  [V] - View logs  [Ctrl+C] - Exit\n")
}

func (m *appstate) renderTrack(b *strings.Builder) {
	horse, _ := m.pc.Selection()

	m.Lock()
	pos := m.lanePos
	winner := m.laneWinner
	place := m.lanePlace
	m.Unlock()

	b.WriteString("===== Race Track =====\n")
	for i := 0; i < raceanim.Lanes; i++ {
		run := int(pos[i] * trackWidth)
		if run > trackWidth {
			run = trackWidth
		}
		b.WriteString(fmt.Sprintf("%2d %s🐎%s|", i+1,
			strings.Repeat("·", run), strings.Repeat(" ", trackWidth-run)))
		if winner[i] {
			switch place[i] {
			case 1:
				b.WriteString(" 🥇")
			case 2:
				b.WriteString(" 🥈")
			case 3:
				b.WriteString(" 🥉")
			}
		}
		if i == horse {
			b.WriteString(" ← you")
		}
		b.WriteString("\n")
	}

	if outcome, won := m.pc.LastOutcome(); outcome != nil && !m.pc.Racing() {
		if won {
			b.WriteString(fmt.Sprintf("\n🎉 You won %s PONY!\n", client.FormatPony(outcome.Payout)))
		} else {
			b.WriteString("\n😞 Better luck next time!\n")
		}
	}
	b.WriteString("\n[T/Esc] - Close track  [Ctrl+C] - Exit\n")
}
