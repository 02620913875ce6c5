package textnorm

import (
	"math/rand"
	"strings"
	"time"
)

// Per-character corruption probabilities. Low on purpose: augmented samples
// must stay readable as the same message.
const (
	typoProb      = 0.03
	leetProb      = 0.04
	homoglyphProb = 0.03
)

// leetMap substitutes digits for visually similar letters, the most common
// spam obfuscation seen in the wild ("fr33 c4sh").
var leetMap = map[rune]rune{
	'a': '4', 'e': '3', 'i': '1', 'o': '0', 's': '5', 't': '7', 'l': '1',
}

// homoglyphMap substitutes visually identical Cyrillic/Greek codepoints.
var homoglyphMap = map[rune]rune{
	'o': 'ο', 'a': 'а', 'e': 'е', 'c': 'с',
}

// Augmenter generates noisy variants of spam samples for training-time
// robustness. Not safe for concurrent use (owns its rand source).
type Augmenter struct {
	rnd *rand.Rand
}

func NewAugmenter() *Augmenter {
	return &Augmenter{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewAugmenterWithSource returns an augmenter with a caller-controlled source,
// for deterministic tests.
func NewAugmenterWithSource(src rand.Source) *Augmenter {
	return &Augmenter{rnd: rand.New(src)}
}

// AddNoise picks one of the three corruption strategies uniformly at random
// and applies it once.
func (a *Augmenter) AddNoise(text string) string {
	switch a.rnd.Intn(3) {
	case 0:
		return a.typo(text)
	case 1:
		return a.leet(text)
	default:
		return a.homoglyph(text)
	}
}

// typo transposes adjacent characters or drops a character at low
// per-position probability.
func (a *Augmenter) typo(text string) string {
	runes := []rune(text)
	var out []rune
	for i := 0; i < len(runes); {
		switch {
		case a.rnd.Float64() < typoProb && i+1 < len(runes):
			out = append(out, runes[i+1], runes[i])
			i += 2
		case a.rnd.Float64() < typoProb/2:
			i++
		default:
			out = append(out, runes[i])
			i++
		}
	}
	return string(out)
}

func (a *Augmenter) leet(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		lower := toLowerRune(r)
		if sub, ok := leetMap[lower]; ok && a.rnd.Float64() < leetProb {
			b.WriteRune(sub)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (a *Augmenter) homoglyph(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		lower := toLowerRune(r)
		if sub, ok := homoglyphMap[lower]; ok && a.rnd.Float64() < homoglyphProb {
			b.WriteRune(sub)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func toLowerRune(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}
