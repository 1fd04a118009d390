// Package directive implements the embedded command grammar the narrative
// model uses to trigger side effects: bracketed tags for image, video,
// voice and power-release actions. Extraction and stripping are separate
// passes over the same token stream so each can be tested on its own.
package directive

import (
	"strings"

	"companion-engine/backend/internal/models"
)

// Kind discriminates directive variants.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindVoice Kind = "voice"
	KindPower Kind = "power"
)

// Perspective is the camera framing of an image directive.
type Perspective string

const (
	PerspectiveSelfie Perspective = "selfie"
	PerspectiveViewer Perspective = "viewer"
)

// Directive is the sum type of parsed directive variants.
type Directive interface {
	Kind() Kind
}

// Image asks for an in-chat picture from the given perspective.
type Image struct {
	Perspective Perspective
	Description string
}

// Video asks for a short in-chat video clip.
type Video struct {
	Description string
}

// Voice asks for a spoken line following the instruction.
type Voice struct {
	Instruction string
}

// Power announces a power release at a severity tier. Effect is the
// free-text phrase the model supplied; the canonical tier description is
// resolved separately against the character's power system.
type Power struct {
	Level  models.PowerLevel
	Effect string
}

func (Image) Kind() Kind { return KindImage }
func (Video) Kind() Kind { return KindVideo }
func (Voice) Kind() Kind { return KindVoice }
func (Power) Kind() Kind { return KindPower }

// token is one segment of the scanned narrative: either literal text or a
// well-formed directive tag.
type token struct {
	text      string // raw text, tag brackets included for directives
	directive Directive
}

// tokenize splits narrative text into literal runs and well-formed
// directive tags. Malformed tags (unknown head token, missing payload,
// unmatched bracket) stay literal.
func tokenize(text string) []token {
	var tokens []token
	var literal strings.Builder

	flush := func() {
		if literal.Len() > 0 {
			tokens = append(tokens, token{text: literal.String()})
			literal.Reset()
		}
	}

	for i := 0; i < len(text); {
		open := strings.IndexByte(text[i:], '[')
		if open < 0 {
			literal.WriteString(text[i:])
			break
		}
		literal.WriteString(text[i : i+open])
		i += open

		close := strings.IndexByte(text[i:], ']')
		if close < 0 {
			// Unmatched bracket: the rest is literal.
			literal.WriteString(text[i:])
			break
		}

		raw := text[i : i+close+1]
		if d := parseTag(text[i+1 : i+close]); d != nil {
			flush()
			tokens = append(tokens, token{text: raw, directive: d})
			i += close + 1
			continue
		}

		// Not a tag. Only this bracket is literal; a real tag may still
		// open before the ']' that stopped the scan.
		literal.WriteByte('[')
		i++
	}
	flush()
	return tokens
}

// parseTag parses the inside of a bracketed tag. Returns nil when the tag
// is not a valid directive.
func parseTag(body string) Directive {
	head, rest, ok := strings.Cut(body, ":")
	if !ok {
		return nil
	}

	switch strings.ToUpper(strings.TrimSpace(head)) {
	case "IMAGE":
		perspective, desc, ok := strings.Cut(rest, "|")
		if !ok {
			return nil
		}
		desc = strings.TrimSpace(desc)
		if desc == "" {
			return nil
		}
		switch Perspective(strings.ToLower(strings.TrimSpace(perspective))) {
		case PerspectiveSelfie:
			return Image{Perspective: PerspectiveSelfie, Description: desc}
		case PerspectiveViewer:
			return Image{Perspective: PerspectiveViewer, Description: desc}
		}
		return nil
	case "VIDEO":
		desc := strings.TrimSpace(rest)
		if desc == "" {
			return nil
		}
		return Video{Description: desc}
	case "VOICE":
		instruction := strings.TrimSpace(rest)
		if instruction == "" {
			return nil
		}
		return Voice{Instruction: instruction}
	case "POWER":
		levelToken, effect, ok := strings.Cut(rest, "|")
		if !ok {
			return nil
		}
		level, valid := models.ParsePowerLevel(levelToken)
		if !valid {
			return nil
		}
		effect = strings.TrimSpace(effect)
		if effect == "" {
			return nil
		}
		return Power{Level: level, Effect: effect}
	}
	return nil
}

// Extract returns the honored directives of a narrative turn: the first
// well-formed directive of each kind, in order of appearance. Later
// duplicates of a kind are stripped from display but not honored.
func Extract(text string) []Directive {
	seen := make(map[Kind]bool, 4)
	var out []Directive
	for _, tok := range tokenize(text) {
		if tok.directive == nil {
			continue
		}
		k := tok.directive.Kind()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, tok.directive)
	}
	return out
}

// Strip removes every well-formed directive tag from the narrative text,
// leaving malformed tags as literal content. Pure transform; the user
// never sees raw directive syntax.
func Strip(text string) string {
	var b strings.Builder
	gap := false
	for _, tok := range tokenize(text) {
		if tok.directive != nil {
			gap = true
			continue
		}
		chunk := tok.text
		if gap {
			// Collapse only the seam a removed tag leaves behind; spaces
			// the model wrote elsewhere stay untouched.
			if strings.HasSuffix(b.String(), " ") {
				chunk = strings.TrimLeft(chunk, " ")
			}
			gap = false
		}
		b.WriteString(chunk)
	}
	return strings.TrimSpace(b.String())
}
