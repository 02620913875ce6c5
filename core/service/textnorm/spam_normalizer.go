// Package textnorm implements deterministic text normalization and
// training-time adversarial augmentation for short messages.
package textnorm

import (
	"regexp"
	"strings"
)

// Sentinel tokens substituted for masked content. The numeric feature branch
// counts these to proxy for originally-present URLs, emails and phone numbers.
const (
	SentinelURL   = "URL"
	SentinelEmail = "EMAIL"
	SentinelPhone = "PHONE"
)

var (
	spaceRe = regexp.MustCompile(`\s+`)
	urlRe   = regexp.MustCompile(`https?://\S+|www\.\S+`)
	emailRe = regexp.MustCompile(`\S+@\S+`)
	// Typical SMS phone shapes: optional country code, grouped digit runs.
	// Deliberately looser than E.164.
	phoneRe = regexp.MustCompile(`(\+?\d{1,3}[-.\s]?)?(\(?\d{2,4}\)?[-.\s]?){1,3}\d{2,4}`)
	htmlRe  = regexp.MustCompile(`<.*?>`)
	digitRe = regexp.MustCompile(`\d+`)
	emojiRe = regexp.MustCompile(`[\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}\x{1F1E0}-\x{1F1FF}]+`)
)

const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

var stopwords = func() map[string]bool {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "when",
		"at", "by", "for", "with", "about", "against", "between", "into",
		"through", "during", "before", "after", "above", "below", "to", "from",
		"up", "down", "in", "out", "on", "off", "over", "under", "again",
		"further", "once", "here", "there", "all", "any", "both", "each",
		"few", "more", "most", "other", "some", "such", "no", "nor", "not",
		"only", "own", "same", "so", "than", "too", "very", "can", "will",
		"just", "should", "now", "i", "me", "my", "we", "our", "you", "your",
		"he", "him", "his", "she", "her", "it", "its", "they", "them", "their",
		"what", "which", "who", "this", "that", "these", "those", "am", "is",
		"are", "was", "were", "be", "been", "being", "have", "has", "had",
		"do", "does", "did", "of", "as", "until", "while",
	}
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}()

// Options toggles individual normalization stages. The zero value disables
// everything; use DefaultOptions for the training/serving configuration.
type Options struct {
	Lowercase       bool
	RemoveStopwords bool
	RemoveEmojis    bool
	MaskURLs        bool
	MaskEmails      bool
	MaskPhones      bool
	StripHTML       bool
	RemoveDigits    bool
}

// DefaultOptions mirrors the configuration the scoring pipeline trains with.
func DefaultOptions() Options {
	return Options{
		Lowercase:       true,
		RemoveStopwords: true,
		RemoveEmojis:    true,
		MaskURLs:        true,
		MaskEmails:      true,
		MaskPhones:      true,
		StripHTML:       true,
		RemoveDigits:    false,
	}
}

// Normalizer is a pure, deterministic text-to-text transform. Safe for
// concurrent use.
type Normalizer struct {
	opts Options
}

func New(opts Options) *Normalizer {
	return &Normalizer{opts: opts}
}

// MaskPII applies only the whitespace and masking stages, preserving case and
// punctuation. The numeric feature extractor uses this to count sentinels
// without losing the case/punctuation signals it also measures.
func (n *Normalizer) MaskPII(text string) string {
	text = collapseWhitespace(text)
	if n.opts.MaskURLs {
		text = urlRe.ReplaceAllString(text, " "+SentinelURL+" ")
	}
	if n.opts.MaskEmails {
		text = emailRe.ReplaceAllString(text, " "+SentinelEmail+" ")
	}
	if n.opts.MaskPhones {
		text = phoneRe.ReplaceAllString(text, " "+SentinelPhone+" ")
	}
	if n.opts.StripHTML {
		text = htmlRe.ReplaceAllString(text, " ")
	}
	return text
}

// Normalize runs the full stage order: whitespace → masking (before case
// folding, so patterns match original case) → emoji strip → punctuation strip
// → case fold → digit removal → stopword filter → final collapse. Output is a
// single-line, whitespace-collapsed string; empty input yields empty output.
func (n *Normalizer) Normalize(text string) string {
	text = n.MaskPII(text)
	if n.opts.RemoveEmojis {
		text = emojiRe.ReplaceAllString(text, " ")
	}
	text = stripPunctuation(text)
	if n.opts.Lowercase {
		text = strings.ToLower(text)
	}
	if n.opts.RemoveDigits {
		text = digitRe.ReplaceAllString(text, " ")
	}
	text = collapseWhitespace(text)
	if n.opts.RemoveStopwords {
		tokens := strings.Fields(text)
		kept := tokens[:0]
		for _, tok := range tokens {
			if !stopwords[tok] {
				kept = append(kept, tok)
			}
		}
		text = strings.Join(kept, " ")
	}
	return text
}

func collapseWhitespace(text string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}

func stripPunctuation(text string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(punctuation, r) {
			return ' '
		}
		return r
	}, text)
}
