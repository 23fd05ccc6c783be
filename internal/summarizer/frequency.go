package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"equilibrium/internal/domain"
	"equilibrium/internal/text"
)

var _ domain.Summarizer = (*FrequencySummarizer)(nil)

var sentencePattern = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)

// FrequencySummarizer ranks sentences by word frequency (stopwords filtered).
type FrequencySummarizer struct {
	tokenizer *text.Tokenizer
}

// NewFrequencySummarizer creates a frequency-based sentence ranker summarizer.
func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{tokenizer: text.NewTokenizer(text.EnglishStopwords(), false)}
}

// Summarize returns a short summary by ranking sentences using token frequency.
func (s *FrequencySummarizer) Summarize(body string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	sentences := Sentences(body)
	if len(sentences) == 0 {
		return strings.TrimSpace(body), nil
	}
	tokens := make([][]string, len(sentences))
	freq := map[string]float64{}
	for i, sent := range sentences {
		tokens[i] = s.tokenizer.Tokens(sent)
		for _, tok := range tokens[i] {
			freq[tok]++
		}
	}
	// Normalize frequencies
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}
	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i := range sentences {
		sscore := 0.0
		for _, tok := range tokens[i] {
			sscore += freq[tok]
		}
		// Normalize by sentence length to avoid bias
		if l := float64(len(tokens[i])); l > 0 {
			sscore /= math.Sqrt(l)
		}
		scores[i] = pair{i, sscore}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if maxSentences > len(scores) {
		maxSentences = len(scores)
	}
	// Keep original order among selected
	selected := make([]int, maxSentences)
	for i := 0; i < maxSentences; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, 0, len(selected))
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return strings.Join(out, " "), nil
}

// Teaser returns the single highest ranked sentence of body, cut to at most
// width runes.
func (s *FrequencySummarizer) Teaser(body string, width int) string {
	sum, _ := s.Summarize(body, 1)
	sum = strings.Join(strings.Fields(sum), " ")
	r := []rune(sum)
	if width > 1 && len(r) > width {
		return strings.TrimSpace(string(r[:width-1])) + "…"
	}
	return sum
}

// Sentences splits text into trimmed sentences. Trailing text without a
// terminator counts as a sentence.
func Sentences(s string) []string {
	spans := SentenceSpans(s)
	out := make([]string, len(spans))
	for i, sp := range spans {
		out[i] = s[sp[0]:sp[1]]
	}
	return out
}

// SentenceSpans returns the byte offsets of each sentence in s with
// surrounding whitespace excluded, so callers can rewrite one sentence
// and keep the text between them.
func SentenceSpans(s string) [][2]int {
	found := sentencePattern.FindAllStringIndex(s, -1)
	out := make([][2]int, 0, len(found)+1)
	end := 0
	for _, loc := range found {
		if sp, ok := trimSpan(s, loc[0], loc[1]); ok {
			out = append(out, sp)
		}
		end = loc[1]
	}
	if sp, ok := trimSpan(s, end, len(s)); ok {
		out = append(out, sp)
	}
	return out
}

func trimSpan(s string, start, end int) ([2]int, bool) {
	seg := s[start:end]
	lead := len(seg) - len(strings.TrimLeftFunc(seg, unicode.IsSpace))
	trimmed := strings.TrimSpace(seg)
	if trimmed == "" {
		return [2]int{}, false
	}
	return [2]int{start + lead, start + lead + len(trimmed)}, true
}
