package speech

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	speechURLPattern          = regexp.MustCompile(`https?://\S+`)
	speechFencedCodePattern   = regexp.MustCompile("(?s)```.*?```")
	speechInlineCodePattern   = regexp.MustCompile("`[^`]*`")
	speechMarkdownLinkPattern = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
	speechBulletPattern       = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+\.)\s+`)
	speechHeadingPattern      = regexp.MustCompile(`(?m)^#{1,6}\s+`)
)

// NormalizeSpeechText removes markup and symbol noise from model text so the
// synthesized speech sounds conversational. Links keep their label, URLs and
// code are dropped entirely, whitespace collapses to single spaces.
func NormalizeSpeechText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	raw = speechFencedCodePattern.ReplaceAllString(raw, " ")
	raw = speechInlineCodePattern.ReplaceAllString(raw, " ")
	raw = speechMarkdownLinkPattern.ReplaceAllString(raw, "$1")
	raw = speechURLPattern.ReplaceAllString(raw, " ")
	raw = speechHeadingPattern.ReplaceAllString(raw, "")
	raw = speechBulletPattern.ReplaceAllString(raw, "")

	raw = strings.NewReplacer(
		"*", " ",
		"_", " ",
		"\\", " ",
		"|", " ",
		"#", " ",
		"~", " ",
		"<", " ",
		">", " ",
	).Replace(raw)

	var b strings.Builder
	b.Grow(len(raw))
	prevSpace := true

	for _, r := range raw {
		switch {
		case r == '‍' || r == '️' || r == '⃣':
			continue
		case unicode.IsSpace(r):
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsControl(r):
			continue
		case unicode.In(r, unicode.So, unicode.Sm, unicode.Sk):
			// Emoji and symbol glyphs sound wrong when spoken.
			continue
		default:
			b.WriteRune(r)
			prevSpace = false
		}
	}

	return strings.TrimSpace(b.String())
}

// SplitReply normalizes raw reply text, caps its total length, and splits it
// into speakable chunks within [minLen, maxLen].
func SplitReply(raw string, maxLen, minLen, maxTotal int) []string {
	text := NormalizeSpeechText(raw)
	if maxTotal > 0 {
		if r := []rune(text); len(r) > maxTotal {
			text = strings.TrimSpace(string(r[:maxTotal]))
		}
	}
	if text == "" {
		return nil
	}
	return SplitChunks(text, maxLen, minLen)
}

// SplitChunks greedily splits text left to right, preferring to cut at a
// sentence boundary before a capitalized start, then at any sentence
// terminator, then at a comma or semicolon, then at a space, and only as a
// last resort mid-word at maxLen. Pieces shorter than minLen are discarded,
// which can drop a short tail.
func SplitChunks(text string, maxLen, minLen int) []string {
	if maxLen <= 0 {
		return nil
	}
	runes := []rune(strings.TrimSpace(text))
	var out []string

	for len(runes) > 0 {
		if len(runes) <= maxLen {
			piece := strings.TrimSpace(string(runes))
			if utf8.RuneCountInString(piece) >= minLen {
				out = append(out, piece)
			}
			break
		}

		cut := splitPoint(runes[:maxLen])
		piece := strings.TrimSpace(string(runes[:cut]))
		if utf8.RuneCountInString(piece) >= minLen {
			out = append(out, piece)
		}
		runes = runes[cut:]
		for len(runes) > 0 && unicode.IsSpace(runes[0]) {
			runes = runes[1:]
		}
	}
	return out
}

// splitPoint returns how many runes of the window form the next piece.
// Boundary candidates in the first third (quarter for plain spaces) are
// rejected so chunks never degenerate into slivers.
func splitPoint(window []rune) int {
	n := len(window)
	third := n / 3
	quarter := n / 4

	// Sentence end, whitespace, then a capitalized start.
	for i := n - 2; i > third; i-- {
		if !isSentenceEnd(window[i]) || !unicode.IsSpace(window[i+1]) {
			continue
		}
		j := i + 1
		for j < n && unicode.IsSpace(window[j]) {
			j++
		}
		if j < n && unicode.IsUpper(window[j]) {
			return i + 1
		}
	}

	// Any sentence terminator followed by a space.
	for i := n - 2; i > third; i-- {
		if isSentenceEnd(window[i]) && window[i+1] == ' ' {
			return i + 1
		}
	}

	// Clause boundary.
	for i := n - 1; i > third; i-- {
		if window[i] == ',' || window[i] == ';' {
			return i + 1
		}
	}

	// Plain space.
	for i := n - 1; i > quarter; i-- {
		if window[i] == ' ' {
			return i
		}
	}

	// Hard cut.
	return n
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '?' || r == '!'
}
