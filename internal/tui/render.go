package tui

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"ragnotebook/internal/normalize"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	groupStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Underline(true)
	cardStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	activeCard     = cardStyle.BorderForeground(lipgloss.Color("14"))
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

var medals = [...]string{"", "🥇", "🥈", "🥉"}

const snippetLimit = 400

// RenderView lays out a routed retrieval view as text cards. selected is the
// index of the expanded document across the view, or -1.
func RenderView(v normalize.View, query string, selected int) string {
	var b strings.Builder
	if v.Warning != "" {
		b.WriteString(warnStyle.Render(v.Warning))
		b.WriteString("\n\n")
	}
	switch v.Mode {
	case normalize.ViewGrouped:
		idx := 0
		for _, g := range v.Groups {
			b.WriteString(groupStyle.Render(fmt.Sprintf("Query: %s", g.Query)))
			b.WriteString(dimStyle.Render(fmt.Sprintf("  (%d)", len(g.Items))))
			b.WriteString("\n")
			for _, item := range g.Items {
				b.WriteString(renderItem(item, 0, query, idx == selected))
				b.WriteString("\n")
				idx++
			}
		}
	case normalize.ViewRanked:
		for i, item := range v.Items {
			b.WriteString(renderItem(item, v.Medal(item.Rank), query, i == selected))
			b.WriteString("\n")
		}
	default:
		b.WriteString(dimStyle.Render("No documents found."))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Documents flattens a view in display order.
func Documents(v normalize.View) []normalize.RankedDocument {
	if v.Mode != normalize.ViewGrouped {
		return v.Items
	}
	var out []normalize.RankedDocument
	for _, g := range v.Groups {
		out = append(out, g.Items...)
	}
	return out
}

func renderItem(item normalize.RankedDocument, medal int, query string, selected bool) string {
	d := item.Document
	head := fmt.Sprintf("#%d %s", item.Rank, titleStyle.Render(d.Title))
	if medal > 0 && medal < len(medals) {
		head = medals[medal] + " " + head
	}
	head += "  " + statusStyle.Render(d.FormattedScore())

	lines := []string{head}
	if d.URL != "" {
		lines = append(lines, dimStyle.Render(d.URL))
	}
	content := d.Content
	if !selected {
		content = snippet(content, snippetLimit)
	}
	lines = append(lines, highlightBestSentence(content, query))
	if selected && len(d.Metadata) > 0 {
		keys := make([]string, 0, len(d.Metadata))
		for k := range d.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lines = append(lines, dimStyle.Render(fmt.Sprintf("%s: %v", k, d.Metadata[k])))
		}
	}
	style := cardStyle
	if selected {
		style = activeCard
	}
	return style.Render(strings.Join(lines, "\n"))
}

func snippet(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := splitSentences(text)
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.TrimSpace(text)
	}
	bestIdx := -1
	bestScore := 0
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

// splitSentences keeps an unterminated tail as its own sentence.
func splitSentences(text string) []string {
	var out []string
	end := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		out = append(out, text[loc[0]:loc[1]])
		end = loc[1]
	}
	if tail := strings.TrimSpace(text[end:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
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
