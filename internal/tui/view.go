package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"equilibrium/internal/summarizer"
	"equilibrium/internal/text"
)

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	highlightStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	selectedStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("11")).Padding(0, 1)
	itemStyle       = lipgloss.NewStyle().Border(lipgloss.HiddenBorder()).Padding(0, 1)
	articleBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// View renders the TUI layout for the current screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	var body string
	switch m.screen {
	case screenReader:
		body = articleBoxStyle.Render(m.viewport.View())
	case screenSearch:
		body = headerStyle.Render("Search") + "\n" + queryBoxStyle.Render(m.search.View())
	case screenAdd:
		body = headerStyle.Render("New article") + "\n" +
			queryBoxStyle.Render(m.title.View()+"\n"+m.tags.View()) + "\n" +
			queryBoxStyle.Render(m.body.View())
	case screenStats:
		body = m.renderStats()
	default:
		body = m.renderList()
	}
	header := headerStyle.Render("Equilibrium") + "  " + m.modelLine()
	status := statusStyle.Render(m.status)
	return header + "\n" + body + "\n" + status + "\n" + dimStyle.Render(m.help())
}

func (m Model) modelLine() string {
	switch {
	case m.busy:
		return warnStyle.Render("refitting model")
	case m.platform.Unavailable():
		return warnStyle.Render(msgUnavailable)
	}
	info, err := m.platform.ModelInfo()
	if err != nil {
		return warnStyle.Render(msgUnavailable)
	}
	gen := info.Generation
	if len(gen) > 8 {
		gen = gen[:8]
	}
	return dimStyle.Render(fmt.Sprintf("%d articles · %d terms · model %s", info.Documents, info.Terms, gen))
}

func (m Model) help() string {
	switch m.screen {
	case screenReader:
		return "↑/↓ scroll · l like · d dislike · s save · r similar · t terms · x delete · esc back · q quit"
	case screenSearch:
		return "enter search · esc cancel"
	case screenAdd:
		return "tab next field · ctrl+s publish · esc cancel"
	case screenStats:
		return "esc back · q quit"
	case screenList:
		return "↑/↓ move · enter read · / search · v saved · a write · x delete · i stats · q quit"
	default:
		return "↑/↓ move · enter read · esc articles · / search · q quit"
	}
}

// renderList shows the articles around the cursor, each as a boxed widget.
func (m Model) renderList() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(m.heading))
	b.WriteString("\n")
	if len(m.items) == 0 {
		b.WriteString(dimStyle.Render("Nothing here yet."))
		return b.String()
	}
	// every widget is four lines tall including its border
	visible := max(1, (m.height-4)/4)
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}
	end := min(len(m.items), start+visible)
	width := max(20, m.width-4)
	for i := start; i < end; i++ {
		a := m.items[i]
		title := truncate(a.Title, width-12)
		meta := fmt.Sprintf("♥ %d  ✗ %d", a.Likes, a.Dislikes)
		line := headerStyle.Render(title) + "  " + dimStyle.Render(meta)
		teaser := dimStyle.Render(m.platform.Teaser(a, min(m.opts.TeaserWidth, width)))
		style := itemStyle
		if i == m.cursor {
			style = selectedStyle
		}
		b.WriteString(style.Width(width).Render(line + "\n" + teaser))
		b.WriteString("\n")
	}
	if len(m.items) > visible {
		b.WriteString(dimStyle.Render(fmt.Sprintf("%d/%d", m.cursor+1, len(m.items))))
	}
	return b.String()
}

// renderArticle formats the open article for the viewport. After a search the
// sentence sharing most words with the query is highlighted.
func (m Model) renderArticle() string {
	a := m.article
	var meta []string
	if a.AuthorID != 0 {
		meta = append(meta, fmt.Sprintf("author %d", a.AuthorID))
	}
	if len(a.Tags) > 0 {
		meta = append(meta, strings.Join(a.Tags, ", "))
	}
	meta = append(meta,
		fmt.Sprintf("%d min read", a.ReadingTime),
		fmt.Sprintf("♥ %d  ✗ %d  seen %d", a.Likes, a.Dislikes, a.Views),
	)
	if m.platform.Reader().IsSaved(a.ID) {
		meta = append(meta, "saved")
	}
	width := max(20, m.viewport.Width-2)
	body := highlightBestSentence(a.Body, m.lastQuery)
	return headerStyle.Render(a.Title) + "\n" +
		dimStyle.Render(strings.Join(meta, " · ")) + "\n\n" +
		lipgloss.NewStyle().Width(width).Render(body)
}

func (m Model) renderStats() string {
	st := m.platform.Stats()
	var b strings.Builder
	b.WriteString(headerStyle.Render("Statistics"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Articles: %d\nLikes: %d\nDislikes: %d\nViews: %d\n", st.Articles, st.Likes, st.Dislikes, st.Views)
	if info, err := m.platform.ModelInfo(); err == nil {
		fmt.Fprintf(&b, "Model: %d documents, %d terms, fitted %s\n", info.Documents, info.Terms, info.FittedAt.Format("2006-01-02 15:04"))
	}
	tags := m.platform.TopTags(10)
	if len(tags) > 0 {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("Top tags"))
		b.WriteString("\n")
		top := tags[0].Count
		for _, t := range tags {
			bar := strings.Repeat("█", max(1, t.Count*20/top))
			fmt.Fprintf(&b, "%-16s %s %d\n", truncate(t.Tag, 16), bar, t.Count)
		}
	}
	return articleBoxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width < 2 || len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

// highlightBestSentence styles the sentence sharing most words with query.
// Everything between sentences, paragraph breaks included, is kept.
func highlightBestSentence(body, query string) string {
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return body
	}
	best, bestScore := [2]int{}, 0
	for _, sp := range summarizer.SentenceSpans(body) {
		if score := tokenOverlapScore(qTokens, body[sp[0]:sp[1]]); score > bestScore {
			best, bestScore = sp, score
		}
	}
	if bestScore == 0 {
		return body
	}
	return body[:best[0]] + highlightStyle.Render(body[best[0]:best[1]]) + body[best[1]:]
}

func toTokenSet(s string) map[string]struct{} {
	tokens := text.Words(s)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := make(map[string]struct{})
	for _, t := range text.Words(sentence) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
