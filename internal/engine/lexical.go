package engine

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"docrag/internal/domain"
	"docrag/internal/registry"
)

var wordPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// lexicalQuery ranks corpus fragments by token-set overlap with the
// query (Ochiai coefficient). The fragment order from the corpus is
// deterministic, so equal scores keep a stable ranking.
func (e *Engine) lexicalQuery(corpus *registry.Corpus, text string, k int) []domain.Match {
	queryTokens := tokenSet(text)
	fragments := corpus.Fragments()

	matches := make([]domain.Match, len(fragments))
	for i, frag := range fragments {
		matches[i] = domain.Match{
			Fragment:   frag,
			Score:      ochiai(queryTokens, frag.Text),
			DocumentID: frag.DocumentID,
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k]
}

func tokenSet(text string) map[string]struct{} {
	tokens := wordPattern.FindAllString(strings.ToLower(text), -1)
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

// ochiai is |Q ∩ T| / sqrt(|Q| * |T|) over distinct token sets.
func ochiai(query map[string]struct{}, text string) float64 {
	target := tokenSet(text)
	if len(query) == 0 || len(target) == 0 {
		return 0
	}
	shared := 0
	for tok := range target {
		if _, ok := query[tok]; ok {
			shared++
		}
	}
	return float64(shared) / math.Sqrt(float64(len(query))*float64(len(target)))
}
