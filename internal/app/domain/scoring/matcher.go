package scoring

import (
	"strings"

	"github.com/patrickmn/go-cache"
	ahocorasick "github.com/petar-dambovaliev/aho-corasick"

	"github.com/cairntrips/cairn/internal/app/domain/activities"
)

// noSynonyms marks terms with no synonym set so repeat lookups skip the
// table entirely.
type noSynonyms struct{}

// matchesSynonyms reports whether the text mentions any synonym of the search
// term. The synonym set is compiled into an Aho-Corasick automaton once per
// term and reused for every text scanned afterwards.
func (s *ServiceImpl) matchesSynonyms(term, text string) bool {
	key := "synonyms:" + strings.ToLower(strings.TrimSpace(term))
	if cached, found := s.cache.Get(key); found {
		if automaton, ok := cached.(ahocorasick.AhoCorasick); ok {
			return len(automaton.FindAll(text)) > 0
		}
		return false
	}

	synonyms := activities.Synonyms(term)
	if len(synonyms) == 0 {
		s.cache.Set(key, noSynonyms{}, cache.DefaultExpiration)
		return false
	}

	automaton := buildAutomaton(synonyms)
	s.cache.Set(key, automaton, cache.DefaultExpiration)
	return len(automaton.FindAll(text)) > 0
}

func buildAutomaton(patterns []string) ahocorasick.AhoCorasick {
	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  false,
		MatchKind:            ahocorasick.LeftMostLongestMatch,
		DFA:                  true,
	})
	return builder.Build(patterns)
}
