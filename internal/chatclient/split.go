package chatclient

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ChunkLimit is the per-clip character budget used for speech requests.
const ChunkLimit = 1000

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// sentences cuts text after every run of terminators. The tail after the last
// terminator run is returned as its own segment.
func sentences(text string) []string {
	var out []string
	start := 0
	inTerm := false
	for i, r := range text {
		if isTerminator(r) {
			inTerm = true
			continue
		}
		if inTerm {
			out = append(out, text[start:i])
			start = i
			inTerm = false
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// wrapWords breaks a segment longer than limit after the last whitespace that
// keeps the piece within limit. A word longer than limit ends its own piece at
// the next whitespace; a trailing unbreakable word stays whole.
func wrapWords(seg string, limit int) []string {
	var out []string
	for utf8.RuneCountInString(seg) > limit {
		cut, n, word := 0, 0, false
		for i, r := range seg {
			if n >= limit && cut > 0 {
				break
			}
			n++
			if !unicode.IsSpace(r) {
				word = true
				continue
			}
			switch {
			case !word:
			case n > limit:
				cut = i
			default:
				cut = i + utf8.RuneLen(r)
			}
		}
		if cut == 0 || cut == len(seg) {
			break
		}
		out = append(out, seg[:cut])
		seg = seg[cut:]
	}
	return append(out, seg)
}

// SplitText breaks text into chunks of at most limit characters at sentence
// boundaries, falling back to whitespace inside sentences longer than limit.
// Concatenating the chunks yields text unchanged. A chunk is longer than limit
// only when it holds a single word longer than limit.
func SplitText(text string, limit int) []string {
	if limit <= 0 {
		limit = ChunkLimit
	}
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var (
		chunks []string
		cur    strings.Builder
		curLen int
	)
	for _, sentence := range sentences(text) {
		for _, seg := range wrapWords(sentence, limit) {
			n := utf8.RuneCountInString(seg)
			if curLen > 0 && curLen+n > limit {
				chunks = append(chunks, cur.String())
				cur.Reset()
				curLen = 0
			}
			cur.WriteString(seg)
			curLen += n
		}
	}
	if curLen > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}
