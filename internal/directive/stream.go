package directive

import "strings"

// Streamer filters directive tags out of an incremental text stream so a
// partially received tag is never displayed. Text after an unclosed
// bracket is withheld until the bracket resolves or the stream ends.
type Streamer struct {
	pending string
}

// Push adds a raw increment and returns the display-safe portion:
// complete well-formed tags removed, a trailing unclosed bracket run
// withheld.
func (s *Streamer) Push(text string) string {
	s.pending += text

	cut := len(s.pending)
	if open := strings.LastIndexByte(s.pending, '['); open >= 0 {
		if strings.IndexByte(s.pending[open:], ']') < 0 {
			cut = open
		}
	}

	emit := s.pending[:cut]
	s.pending = s.pending[cut:]
	return stripTags(emit)
}

// Flush drains whatever is still withheld. An unmatched bracket is
// literal content at this point.
func (s *Streamer) Flush() string {
	out := stripTags(s.pending)
	s.pending = ""
	return out
}

// stripTags removes well-formed tags without the whitespace cleanup Strip
// applies; incremental output must not trim across chunk boundaries.
func stripTags(text string) string {
	var b strings.Builder
	for _, tok := range tokenize(text) {
		if tok.directive != nil {
			continue
		}
		b.WriteString(tok.text)
	}
	return b.String()
}
