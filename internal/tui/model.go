package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"equilibrium/internal/articles"
	"equilibrium/internal/recommender"
)

// PlatformPort is the TUI-facing subset of the article platform.
type PlatformPort interface {
	Articles() []articles.Article
	Article(id int) (articles.Article, error)
	Read(id int) (articles.Article, error)
	Teaser(a articles.Article, width int) string
	Publish(d articles.Draft) (articles.Article, error)
	Delete(id int) error
	Refit(ctx context.Context) error
	Recommend(id, quantity int) ([]articles.Article, error)
	Search(query string, quantity int) ([]articles.Article, error)
	TopTerms(id, n int) ([]string, error)
	Unavailable() bool
	Like(id int) (bool, error)
	Dislike(id int) (bool, error)
	Save(id int) (bool, error)
	Unsave(id int) (bool, error)
	Reader() *articles.Reader
	Saved() []articles.Article
	Stats() articles.Stats
	TopTags(n int) []articles.TagCount
	ModelInfo() (recommender.Info, error)
}

// Options sizes the lists shown by the TUI.
type Options struct {
	Recommendations int
	SearchResults   int
	TeaserWidth     int
	TopTerms        int
}

type screen int

const (
	screenList screen = iota
	screenReader
	screenSearch
	screenResults
	screenSaved
	screenAdd
	screenStats
)

const (
	msgUnavailable = "recommendations unavailable"
	msgBusy        = "model refit in progress, try again shortly"
)

// refitDoneMsg reports the end of a background refit.
type refitDoneMsg struct{ err error }

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	ctx      context.Context
	platform PlatformPort
	opts     Options

	screen screen
	back   screen

	items   []articles.Article
	heading string
	cursor  int

	article   articles.Article
	lastQuery string
	viewport  viewport.Model

	search textinput.Model
	title  textinput.Model
	tags   textinput.Model
	body   textarea.Model
	focus  int

	status string
	busy   bool
	ready  bool
	width  int
	height int
}

// New creates a new TUI model instance. Background refits run under ctx.
func New(ctx context.Context, platform PlatformPort, opts Options) Model {
	if opts.Recommendations <= 0 {
		opts.Recommendations = 5
	}
	if opts.SearchResults <= 0 {
		opts.SearchResults = 10
	}
	if opts.TeaserWidth <= 0 {
		opts.TeaserWidth = 72
	}
	if opts.TopTerms <= 0 {
		opts.TopTerms = 8
	}

	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "keywords, then Enter"
	search.CharLimit = 0

	title := textinput.New()
	title.Prompt = "Title: "
	title.CharLimit = 200
	tags := textinput.New()
	tags.Prompt = "Tags:  "
	tags.Placeholder = "comma separated"

	body := textarea.New()
	body.Placeholder = "Article text"
	body.ShowLineNumbers = false
	body.CharLimit = 0

	m := Model{
		ctx:      ctx,
		platform: platform,
		opts:     opts,
		viewport: viewport.New(0, 0),
		search:   search,
		title:    title,
		tags:     tags,
		body:     body,
		status:   "Loaded. Press / to search, a to write, q to quit.",
	}
	return m.showList()
}

// Init initializes the model.
func (m Model) Init() tea.Cmd { return nil }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.resize(msg.Width, msg.Height)
		return m, nil
	case refitDoneMsg:
		m.busy = false
		switch {
		case msg.err == nil:
			m.status = "Model refitted."
		case errors.Is(msg.err, recommender.ErrPersistence):
			m.status = "Model refitted, but the snapshot could not be saved."
		default:
			m.status = "Refit failed: " + msg.err.Error()
		}
		if m.screen == screenList {
			m = m.showList()
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.screen {
		case screenSearch:
			return m.updateSearch(msg)
		case screenAdd:
			return m.updateAdd(msg)
		case screenReader:
			return m.updateReader(msg)
		case screenStats:
			return m.updateStats(msg)
		default:
			return m.updateList(msg)
		}
	}
	return m.forward(msg)
}

// forward passes non-key messages, such as cursor blinks, to the active input.
func (m Model) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.screen {
	case screenSearch:
		m.search, cmd = m.search.Update(msg)
	case screenAdd:
		m, cmd = m.updateFocused(msg)
	case screenReader:
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	_, fh := articleBoxStyle.GetFrameSize()
	fw, _ := articleBoxStyle.GetFrameSize()
	reserved := 4 // header, model line, status, help
	m.viewport.Width = max(20, width-fw)
	m.viewport.Height = max(3, height-reserved-fh)
	m.search.Width = max(10, width-4)
	m.body.SetWidth(max(20, width-4))
	m.body.SetHeight(max(3, height-reserved-6))
	if m.screen == screenReader {
		m.viewport.SetContent(m.renderArticle())
	}
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		if len(m.items) > 0 {
			m.cursor = (m.cursor - 1 + len(m.items)) % len(m.items)
		}
	case "down", "j":
		if len(m.items) > 0 {
			m.cursor = (m.cursor + 1) % len(m.items)
		}
	case "enter":
		if a, ok := m.selected(); ok {
			m = m.open(a.ID)
		}
	case "esc":
		if m.screen != screenList {
			m = m.showList()
		}
	case "/":
		m.screen = screenSearch
		m.search.Reset()
		cmd := m.search.Focus()
		return m, cmd
	case "v":
		m = m.showItems(screenSaved, "Saved articles", m.platform.Saved())
	case "a":
		return m.openForm()
	case "x":
		if a, ok := m.selected(); ok {
			return m.deleteArticle(a.ID)
		}
	case "i":
		m.back = m.screen
		m.screen = screenStats
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.search.Blur()
		return m.showList(), nil
	case tea.KeyEnter:
		q := strings.TrimSpace(m.search.Value())
		if q == "" {
			return m, nil
		}
		m.search.Blur()
		res, err := m.platform.Search(q, m.opts.SearchResults)
		if err != nil {
			m = m.showList()
			m.status = m.describe(err)
			return m, nil
		}
		m.lastQuery = q
		m = m.showItems(screenResults, fmt.Sprintf("Results for %q", q), res)
		switch {
		case len(res) > 0:
			m.status = fmt.Sprintf("%d result(s).", len(res))
		case m.platform.Unavailable():
			m.status = msgUnavailable
		default:
			m.status = "No matching articles."
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m Model) updateReader(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := m.article.ID
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "backspace":
		if m.back == screenList {
			return m.showList(), nil
		}
		m.screen = m.back
		return m, nil
	case "l":
		changed, err := m.platform.Like(id)
		m.status = interaction(changed, err, "Liked.", "Already liked.")
		return m.refreshArticle(), nil
	case "d":
		changed, err := m.platform.Dislike(id)
		m.status = interaction(changed, err, "Disliked.", "Already disliked.")
		return m.refreshArticle(), nil
	case "s":
		if m.platform.Reader().IsSaved(id) {
			changed, err := m.platform.Unsave(id)
			m.status = interaction(changed, err, "Removed from saved.", "Not saved.")
		} else {
			changed, err := m.platform.Save(id)
			m.status = interaction(changed, err, "Saved.", "Already saved.")
		}
		return m.refreshArticle(), nil
	case "r":
		recs, err := m.platform.Recommend(id, m.opts.Recommendations)
		switch {
		case err != nil:
			m.status = m.describe(err)
		case len(recs) == 0 && m.platform.Unavailable():
			m.status = msgUnavailable
		case len(recs) == 0:
			m.status = "No similar articles."
		default:
			m.lastQuery = ""
			m = m.showItems(screenResults, fmt.Sprintf("Similar to %q", m.article.Title), recs)
			m.status = fmt.Sprintf("%d recommendation(s).", len(recs))
		}
		return m, nil
	case "t":
		terms, err := m.platform.TopTerms(id, m.opts.TopTerms)
		switch {
		case err != nil:
			m.status = m.describe(err)
		case len(terms) == 0:
			m.status = "No characteristic terms."
		default:
			m.status = "Top terms: " + strings.Join(terms, ", ")
		}
		return m, nil
	case "x":
		return m.deleteArticle(id)
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) updateStats(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "i", "backspace":
		if m.back == screenList {
			return m.showList(), nil
		}
		m.screen = m.back
	}
	return m, nil
}

func (m Model) updateAdd(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.status = "Draft discarded."
		return m.showList(), nil
	case tea.KeyTab, tea.KeyShiftTab:
		step := 1
		if msg.Type == tea.KeyShiftTab {
			step = 2
		}
		cmd := m.setFocus((m.focus + step) % 3)
		return m, cmd
	case tea.KeyCtrlS:
		return m.publish()
	}
	return m.updateFocused(msg)
}

func (m Model) updateFocused(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focus {
	case 0:
		m.title, cmd = m.title.Update(msg)
	case 1:
		m.tags, cmd = m.tags.Update(msg)
	default:
		m.body, cmd = m.body.Update(msg)
	}
	return m, cmd
}

func (m *Model) setFocus(i int) tea.Cmd {
	m.focus = i
	m.title.Blur()
	m.tags.Blur()
	m.body.Blur()
	switch i {
	case 0:
		return m.title.Focus()
	case 1:
		return m.tags.Focus()
	default:
		return m.body.Focus()
	}
}

func (m Model) openForm() (tea.Model, tea.Cmd) {
	if m.busy {
		m.status = msgBusy
		return m, nil
	}
	m.title.Reset()
	m.tags.Reset()
	m.body.Reset()
	m.screen = screenAdd
	m.status = "Tab switches fields, ctrl+s publishes, esc cancels."
	cmd := m.setFocus(0)
	return m, cmd
}

func (m Model) publish() (tea.Model, tea.Cmd) {
	if m.busy {
		m.status = msgBusy
		return m, nil
	}
	a, err := m.platform.Publish(articles.Draft{
		Title: m.title.Value(),
		Tags:  articles.ParseTags(m.tags.Value()),
		Body:  m.body.Value(),
	})
	if err != nil {
		m.status = "Error: " + err.Error()
		return m, nil
	}
	m = m.showList()
	m.status = fmt.Sprintf("Published %q, refitting model.", a.Title)
	return m.startRefit()
}

func (m Model) deleteArticle(id int) (tea.Model, tea.Cmd) {
	if m.busy {
		m.status = msgBusy
		return m, nil
	}
	if err := m.platform.Delete(id); err != nil {
		m.status = "Error: " + err.Error()
		return m, nil
	}
	m = m.showList()
	m.status = fmt.Sprintf("Deleted article %d, refitting model.", id)
	return m.startRefit()
}

// startRefit rebuilds the model off the UI goroutine.
func (m Model) startRefit() (tea.Model, tea.Cmd) {
	m.busy = true
	ctx, p := m.ctx, m.platform
	return m, func() tea.Msg {
		return refitDoneMsg{err: p.Refit(ctx)}
	}
}

func (m Model) showList() Model {
	return m.showItems(screenList, "Articles", m.platform.Articles())
}

func (m Model) showItems(s screen, heading string, items []articles.Article) Model {
	m.screen = s
	m.heading = heading
	m.items = items
	if m.cursor >= len(items) || s != screenList {
		m.cursor = 0
	}
	return m
}

func (m Model) selected() (articles.Article, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return articles.Article{}, false
	}
	return m.items[m.cursor], true
}

func (m Model) open(id int) Model {
	a, err := m.platform.Read(id)
	if err != nil {
		m.status = "Error: " + err.Error()
		return m
	}
	if m.screen != screenResults {
		m.lastQuery = ""
	}
	m.back = m.screen
	m.screen = screenReader
	m.article = a
	m.viewport.SetContent(m.renderArticle())
	m.viewport.GotoTop()
	m.status = "l like · d dislike · s save · r similar · t terms · x delete · esc back"
	return m
}

func (m Model) refreshArticle() Model {
	if a, err := m.platform.Article(m.article.ID); err == nil {
		m.article = a
		m.viewport.SetContent(m.renderArticle())
	}
	return m
}

// describe turns a platform error into a status line.
func (m Model) describe(err error) string {
	if errors.Is(err, recommender.ErrNotReady) {
		if m.busy {
			return msgUnavailable + " while the model refits"
		}
		return msgUnavailable
	}
	return "Error: " + err.Error()
}

func interaction(changed bool, err error, done, already string) string {
	switch {
	case err != nil:
		return "Error: " + err.Error()
	case changed:
		return done
	default:
		return already
	}
}
