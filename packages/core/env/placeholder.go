package env

import (
	"regexp"
	"strings"
)

type segmentKind int

const (
	segmentLiteral segmentKind = iota
	segmentExpr
	segmentEnv
)

type segment struct {
	kind segmentKind
	text string
}

var envNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// parseSegments splits s into literal text, ${{ expr }} and ${NAME} parts.
// A ${ that does not form a valid env placeholder is kept as literal text.
func parseSegments(s string) ([]segment, error) {
	var segments []segment
	var literal strings.Builder
	rest := s

	flush := func() {
		if literal.Len() > 0 {
			segments = append(segments, segment{kind: segmentLiteral, text: literal.String()})
			literal.Reset()
		}
	}

	for {
		idx := strings.Index(rest, "${")
		if idx < 0 {
			literal.WriteString(rest)
			break
		}
		literal.WriteString(rest[:idx])
		rest = rest[idx+2:]

		if strings.HasPrefix(rest, "{") {
			body := rest[1:]
			end := findClosingBraces(body)
			if end < 0 {
				return nil, ErrUnclosed
			}
			flush()
			segments = append(segments, segment{kind: segmentExpr, text: strings.TrimSpace(body[:end])})
			rest = body[end+2:]
			continue
		}

		end := strings.IndexByte(rest, '}')
		if end < 0 || !envNamePattern.MatchString(rest[:end]) {
			literal.WriteString("${")
			continue
		}
		flush()
		segments = append(segments, segment{kind: segmentEnv, text: rest[:end]})
		rest = rest[end+1:]
	}

	flush()
	return segments, nil
}

// findClosingBraces returns the index of the "}}" that closes an expression,
// skipping braces nested in map literals and anything inside string literals.
func findClosingBraces(s string) int {
	depth := 0
	inString := false
	var quote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			if ch == '\\' && i+1 < len(s) {
				i++
				continue
			}
			if ch == quote {
				inString = false
			}
			continue
		}
		switch ch {
		case '\'', '"', '`':
			inString = true
			quote = ch
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
				continue
			}
			if i+1 < len(s) && s[i+1] == '}' {
				return i
			}
		}
	}
	return -1
}

func hasDynamic(segments []segment) bool {
	for _, seg := range segments {
		if seg.kind != segmentLiteral {
			return true
		}
	}
	return false
}
