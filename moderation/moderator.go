// Package moderation masks forbidden words in relayed text.
package moderation

import (
	"chat-relay/contract"
	"chat-relay/errors"
	"log/slog"
	"sort"
	"unicode"

	"github.com/abadojack/whatlanggo"
	goahocorasick "github.com/anknown/ahocorasick"
)

var _ contract.Censor = (*Moderator)(nil)

// leet folds look-alike characters onto the letter they stand for.
var leet = map[rune]rune{
	'4': 'a', '@': 'a',
	'3': 'e', '€': 'e',
	'1': 'i', '!': 'i', '|': 'i',
	'0': 'o',
	'5': 's', '$': 's',
}

// Moderator finds every dictionary word in a message, whatever the case, the
// leet substitutions or the punctuation inserted between letters.
type Moderator struct {
	log     *slog.Logger
	machine *goahocorasick.Machine
	mask    rune
}

// NewModerator builds the automaton from words. Words folding to nothing ("...", " ")
// are skipped, ErrEmptyWords is returned when none is left.
func NewModerator(words []string, mask rune, log *slog.Logger) (*Moderator, error) {
	var patterns [][]rune
	for _, word := range words {
		if folded, _ := fold(word); len(folded) > 0 {
			patterns = append(patterns, folded)
		}
	}
	if len(patterns) == 0 {
		return nil, errors.ErrEmptyWords
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{log: log, machine: machine, mask: mask}, nil
}

// Censor masks each match rune by rune in the original text, so spacing and
// surrounding punctuation survive. Matched words are returned by position.
func (m *Moderator) Censor(text string) (string, []string) {
	folded, positions := fold(text)
	if len(folded) == 0 {
		return text, nil
	}
	hits := m.machine.MultiPatternSearch(folded, false)
	if len(hits) == 0 {
		return text, nil
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Pos < hits[j].Pos })

	out := []rune(text)
	words := make([]string, 0, len(hits))
	for _, hit := range hits {
		last := hit.Pos + len(hit.Word) - 1
		if hit.Pos < 0 || last >= len(positions) {
			continue
		}
		for i := positions[hit.Pos]; i <= positions[last]; i++ {
			out[i] = m.mask
		}
		words = append(words, string(hit.Word))
	}

	if m.log != nil && len(words) > 0 {
		m.log.Debug("Message censored",
			"words", len(words), "lang", whatlanggo.Detect(text).Lang.Iso6391())
	}
	return string(out), words
}

// fold lowercases text, undoes leet substitutions and drops separators.
// positions[i] is the index in []rune(text) of folded[i].
func fold(text string) (folded []rune, positions []int) {
	for i, r := range []rune(text) {
		if plain, ok := leet[r]; ok {
			r = plain
		}
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		folded = append(folded, unicode.ToLower(r))
		positions = append(positions, i)
	}
	return folded, positions
}
