// Package tui provides the Bubble Tea practice interface.
package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/projectlif/liplearn/internal/catalog"
	"github.com/projectlif/liplearn/internal/events"
	"github.com/projectlif/liplearn/internal/generator"
	"github.com/projectlif/liplearn/internal/model"
)

// Session is the recording state machine driven by the UI.
type Session interface {
	Start() error
	Stop()
	Cancel()
	SetMode(mode model.Mode)
	SetCategory(name string)
	SetTarget(label string)
	State() model.SessionState
	Config() model.CaptureConfig
	Target() string
	Stats() model.SessionStats
	CameraReady() bool
}

// WeakFunc returns the weak labels of a mode for target selection.
type WeakFunc func(mode model.Mode) map[string]struct{}

// Options wires the model to the session and its event stream.
type Options struct {
	Session    Session
	Events     <-chan events.Event
	Catalog    *catalog.Catalog
	Picker     *generator.Picker
	FocusWeak  bool
	WeakFactor float64
	Weak       WeakFunc
	Progress   model.Progress
	Now        func() time.Time
}

type eventMsg struct {
	ev events.Event
}

type eventsClosedMsg struct{}

type noticeExpiredMsg struct {
	id int
}

type clockMsg time.Time

type notice struct {
	id    int
	level events.NoticeLevel
	text  string
}

// Model implements the Bubble Tea practice UI.
type Model struct {
	sess       Session
	events     <-chan events.Event
	catalog    *catalog.Catalog
	picker     *generator.Picker
	focusWeak  bool
	weakFactor float64
	weak       WeakFunc
	now        func() time.Time

	width  int
	height int

	state       model.SessionState
	countdown   int
	frames      int
	frameTarget int
	last        *model.Attempt
	overlay     *model.Overlay
	cameraErr   error
	progress    model.Progress
	notice      *notice
	noticeSeq   int

	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	bar      progress.Model
	quitting bool
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	targetStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F0F0F0"))
	countStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	recordStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF4D4F"))
	resultStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#52C41A"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	overlayStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
)

const contentMargin = 4

// NewModel constructs the practice UI model.
func NewModel(opts Options) *Model {
	if opts.Catalog == nil {
		opts.Catalog = catalog.New()
	}
	if opts.Picker == nil {
		opts.Picker = generator.New()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = countStyle
	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())

	m := &Model{
		sess:       opts.Session,
		events:     opts.Events,
		catalog:    opts.Catalog,
		picker:     opts.Picker,
		focusWeak:  opts.FocusWeak,
		weakFactor: opts.WeakFactor,
		weak:       opts.Weak,
		now:        opts.Now,
		state:      opts.Session.State(),
		progress:   opts.Progress,
		keys:       newKeyMap(),
		help:       help.New(),
		spinner:    sp,
		bar:        bar,
	}
	m.frameTarget = opts.Session.Config().TargetFrameCount()
	if opts.Session.Target() == "" {
		m.nextTarget()
	}
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), tickClock())
}

func waitForEvent(ch <-chan events.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{ev: ev}
	}
}

func tickClock() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return clockMsg(t)
	})
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.bar.Width = max(10, min(60, msg.Width-2*contentMargin))
		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	case eventMsg:
		cmd := m.handleEvent(msg.ev)
		return m, tea.Batch(cmd, waitForEvent(m.events))
	case eventsClosedMsg:
		return m, nil
	case noticeExpiredMsg:
		if m.notice != nil && m.notice.id == msg.id {
			m.notice = nil
		}
		return m, nil
	case clockMsg:
		if m.quitting {
			return m, nil
		}
		return m, tickClock()
	case spinner.TickMsg:
		if m.state != model.StateSubmitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return tea.Quit
	case key.Matches(msg, m.keys.Start):
		if err := m.sess.Start(); err != nil {
			return m.showNotice(events.NoticeError, startErrorText(err), 3*time.Second)
		}
	case key.Matches(msg, m.keys.Stop):
		m.sess.Stop()
	case key.Matches(msg, m.keys.Cancel):
		m.sess.Cancel()
	case key.Matches(msg, m.keys.Mode):
		next := model.ModeWord
		if m.sess.Config().Mode == model.ModeWord {
			next = model.ModeSyllable
		}
		m.sess.SetMode(next)
		m.last = nil
		m.nextTarget()
	case key.Matches(msg, m.keys.NextCategory), key.Matches(msg, m.keys.PrevCategory):
		step := 1
		if key.Matches(msg, m.keys.PrevCategory) {
			step = -1
		}
		cfg := m.sess.Config()
		m.sess.SetCategory(m.catalog.Cycle(cfg.Mode, cfg.Category, step))
		m.nextTarget()
	case key.Matches(msg, m.keys.NextTarget):
		m.nextTarget()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return nil
}

func startErrorText(err error) string {
	if errors.Is(err, model.ErrCameraNotReady) {
		return "Camera is not ready."
	}
	return fmt.Sprintf("Cannot start recording: %v", err)
}

func (m *Model) handleEvent(ev events.Event) tea.Cmd {
	switch ev := ev.(type) {
	case events.StateChanged:
		m.state = ev.To
		switch ev.To {
		case model.StateCountingDown:
			m.frames = 0
			m.last = nil
		case model.StateRecording:
			m.countdown = 0
		case model.StateSubmitting:
			return m.spinner.Tick
		}
	case events.CountdownTick:
		m.countdown = ev.Remaining
	case events.FrameCaptured:
		m.frames = ev.Count
		m.frameTarget = ev.Target
	case events.ResultReady:
		attempt := ev.Attempt
		m.last = &attempt
		if attempt.Hit() {
			m.nextTarget()
		}
	case events.Notice:
		return m.showNotice(ev.Level, ev.Message, ev.TTL)
	case events.CameraStatus:
		m.cameraErr = ev.Err
	case events.ModeChanged:
		m.frameTarget = ev.Config.TargetFrameCount()
		m.frames = 0
	case events.OverlayUpdated:
		m.overlay = ev.Overlay
	case events.ProgressUpdated:
		m.progress = ev.Progress
	case events.Mastered:
		return m.showNotice(events.NoticeSuccess, fmt.Sprintf("Mastered %q! +%d points", strings.ToUpper(ev.ID), ev.PointsEarned), 5*time.Second)
	}
	return nil
}

func (m *Model) showNotice(level events.NoticeLevel, text string, ttl time.Duration) tea.Cmd {
	m.noticeSeq++
	id := m.noticeSeq
	m.notice = &notice{id: id, level: level, text: text}
	if ttl <= 0 {
		ttl = 3 * time.Second
	}
	return tea.Tick(ttl, func(time.Time) tea.Msg {
		return noticeExpiredMsg{id: id}
	})
}

func (m *Model) nextTarget() {
	cfg := m.sess.Config()
	cat, ok := m.catalog.Lookup(cfg.Mode, cfg.Category)
	if !ok {
		return
	}
	var weak map[string]struct{}
	if m.focusWeak && m.weak != nil {
		weak = m.weak(cfg.Mode)
	}
	m.sess.SetTarget(m.picker.PickWeighted(cat.Labels(), weak, m.weakFactor))
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	contentWidth := 60
	if m.width > 0 {
		contentWidth = max(20, m.width-2*contentMargin)
	}

	sections := []string{m.renderHeader(), "", m.renderBody(contentWidth)}
	if ov := renderOverlay(m.overlay, 24, 8); ov != "" {
		sections = append(sections, "", overlayStyle.Render(ov))
	}
	if m.notice != nil {
		sections = append(sections, "", noticeStyle(m.notice.level).Render(m.notice.text))
	}
	sections = append(sections, "", m.renderFooter(), m.help.View(m.keys))
	content := lipgloss.JoinVertical(lipgloss.Left, sections...)
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func noticeStyle(level events.NoticeLevel) lipgloss.Style {
	switch level {
	case events.NoticeError:
		return errorStyle
	case events.NoticeSuccess:
		return successStyle
	default:
		return infoStyle
	}
}

func (m *Model) renderHeader() string {
	cfg := m.sess.Config()
	camera := successStyle.Render("camera ready")
	if !m.sess.CameraReady() {
		camera = errorStyle.Render("camera off")
	}
	segments := []string{
		titleStyle.Render("LipLearn"),
		headerStyle.Render(cfg.Mode.Label()),
		headerStyle.Render(strings.ToUpper(cfg.Category)),
		camera,
	}
	return strings.Join(segments, footerStyle.Render(" · "))
}

func (m *Model) renderBody(width int) string {
	target := m.sess.Target()
	switch m.state {
	case model.StateCountingDown:
		return lipgloss.JoinVertical(lipgloss.Left,
			pendingStyle.Render("Get ready to say "+strings.ToUpper(target)),
			countStyle.Render(fmt.Sprintf("%d", m.countdown)),
		)
	case model.StateRecording:
		pct := 0.0
		if m.frameTarget > 0 {
			pct = float64(m.frames) / float64(m.frameTarget)
		}
		return lipgloss.JoinVertical(lipgloss.Left,
			recordStyle.Render("● REC")+" "+targetStyle.Render(strings.ToUpper(target)),
			m.bar.ViewAs(pct),
			pendingStyle.Render(fmt.Sprintf("%d/%d frames", m.frames, m.frameTarget)),
		)
	case model.StateSubmitting:
		return m.spinner.View() + " " + pendingStyle.Render("Analyzing your lip movements...")
	case model.StateShowingResult:
		if m.last != nil {
			return renderResult(*m.last)
		}
	case model.StateError:
		msg := "Camera unavailable."
		if m.cameraErr != nil {
			msg = fmt.Sprintf("Camera unavailable: %v", m.cameraErr)
		}
		return errorStyle.Render(strings.Join(wrapWords(msg, width), "\n"))
	}
	return m.renderIdle(target, width)
}

func (m *Model) renderIdle(target string, width int) string {
	if target == "" {
		return pendingStyle.Render("No entries in this category.")
	}
	lines := []string{pendingStyle.Render("Say") + " " + targetStyle.Render(strings.ToUpper(target))}
	if entry, ok := m.catalog.Entry(target); ok && entry.Description != "" {
		for _, line := range wrapWords(entry.Description, width) {
			lines = append(lines, pendingStyle.Render(line))
		}
	}
	if m.progress.IsCompleted(target) {
		lines = append(lines, successStyle.Render("Mastered"))
	}
	lines = append(lines, "", pendingStyle.Render("Press space to record"))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderResult(a model.Attempt) string {
	lines := resultLines(a)
	if len(lines) == 0 {
		return ""
	}
	out := make([]string, 0, len(lines)+1)
	out = append(out, resultStyle.Render(lines[0]))
	for _, line := range lines[1:] {
		out = append(out, headerStyle.Render(line))
	}
	if a.Target != "" {
		verdict := errorStyle.Render("✗ target " + strings.ToUpper(a.Target))
		if a.Hit() {
			verdict = successStyle.Render("✓ target " + strings.ToUpper(a.Target))
		}
		out = append(out, verdict)
	}
	return lipgloss.JoinVertical(lipgloss.Left, out...)
}

func (m *Model) renderFooter() string {
	st := m.sess.Stats()
	segments := []string{
		fmt.Sprintf("Predictions %d", st.TotalPredictions),
		fmt.Sprintf("Avg %.1f%%", st.AverageAccuracy()*100),
	}
	if !st.StartedAt.IsZero() {
		segments = append(segments, "Session "+formatTime(m.now().Sub(st.StartedAt)))
	}
	segments = append(segments,
		fmt.Sprintf("Points %d", m.progress.Points),
		fmt.Sprintf("Mastered %d", len(m.progress.Completed)),
	)
	return footerStyle.Render(strings.Join(segments, "  "))
}
