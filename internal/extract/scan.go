package extract

import (
	"strings"
)

// maxBracketStarts bounds how many opening braces the bracket scan will try
// when earlier ones do not yield a valid object.
const maxBracketStarts = 8

// fencedBlocks returns the bodies of ``` or ~~~ fenced blocks in order. An
// unterminated final fence contributes everything after it.
func fencedBlocks(s string) []string {
	var blocks []string
	rest := s
	for {
		open, marker := nextFence(rest)
		if open < 0 {
			return blocks
		}
		body := rest[open+len(marker):]
		i := 0
		for i < len(body) && isInfoChar(body[i]) {
			i++
		}
		body = body[i:]
		end := strings.Index(body, marker)
		if end < 0 {
			return append(blocks, body)
		}
		blocks = append(blocks, body[:end])
		rest = body[end+len(marker):]
	}
}

func nextFence(s string) (int, string) {
	backtick := strings.Index(s, "```")
	tilde := strings.Index(s, "~~~")
	switch {
	case backtick < 0 && tilde < 0:
		return -1, ""
	case tilde < 0 || (backtick >= 0 && backtick < tilde):
		return backtick, "```"
	default:
		return tilde, "~~~"
	}
}

func isInfoChar(c byte) bool {
	return c == '`' || c == '~' || c == '-' || c == '_' || c == '+' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// preferObjectBlocks orders blocks so that bodies starting with '{' come first.
func preferObjectBlocks(blocks []string) []string {
	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if strings.HasPrefix(strings.TrimSpace(b), "{") {
			out = append(out, b)
		}
	}
	for _, b := range blocks {
		if !strings.HasPrefix(strings.TrimSpace(b), "{") && strings.Contains(b, "{") {
			out = append(out, b)
		}
	}
	return out
}

// objectSpan returns the exclusive end of the object opening at s[start], or
// -1 if it never closes. Brackets inside string literals are ignored.
func objectSpan(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// bracketCandidates yields balanced {...} spans. Later spans start after the
// end of earlier ones so a nested object is never mistaken for the answer.
func bracketCandidates(s string) []string {
	var out []string
	from := 0
	for len(out) < maxBracketStarts {
		idx := strings.IndexByte(s[from:], '{')
		if idx < 0 {
			break
		}
		start := from + idx
		end := objectSpan(s, start)
		if end < 0 {
			break
		}
		out = append(out, s[start:end])
		from = end
	}
	return out
}

// repairSources lists the texts the repair pass tries, in order: the first
// fenced body containing an object, then the payload from each top-level
// brace. An unclosed brace ends the list since everything after it belongs
// to that object.
func repairSources(blocks []string, raw string) []string {
	var out []string
	if objects := preferObjectBlocks(blocks); len(objects) > 0 {
		out = append(out, objects[0])
	}
	from := 0
	for n := 0; n < maxBracketStarts; n++ {
		idx := strings.IndexByte(raw[from:], '{')
		if idx < 0 {
			break
		}
		start := from + idx
		out = append(out, raw[start:])
		end := objectSpan(raw, start)
		if end < 0 {
			break
		}
		from = end
	}
	return out
}

type frame struct {
	kind       byte // '{' or '['
	afterColon bool
}

type safePoint struct {
	end   int
	open  []byte
	quote bool
}

// repair applies conservative fixes to a truncated or slightly broken
// object: raw control characters inside strings are escaped, an unterminated
// string in value position is closed, text after the last complete value (or
// an unmatched closing bracket) is dropped, trailing commas are removed and
// the open brackets are closed. Scalars cut off at the end are dropped.
func repair(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	s = escapeControlChars(s[start:])

	var (
		stack []frame
		safe  safePoint
		found bool
	)
	mark := func(end int, quote bool) {
		open := make([]byte, len(stack))
		for i, f := range stack {
			open[i] = f.kind
		}
		safe = safePoint{end: end, open: open, quote: quote}
		found = true
	}
	inValuePosition := func() bool {
		if len(stack) == 0 {
			return false
		}
		top := stack[len(stack)-1]
		return top.kind == '[' || top.afterColon
	}
	valueDone := func(end int) {
		if len(stack) == 0 {
			mark(end, false)
			return
		}
		if inValuePosition() {
			stack[len(stack)-1].afterColon = false
			mark(end, false)
		}
	}

	i := 0
scan:
	for i < len(s) {
		c := s[i]
		switch {
		case c == '"':
			end, closed := scanString(s, i)
			if !closed {
				if inValuePosition() {
					s = s[:end]
					mark(len(s), true)
				}
				break scan
			}
			i = end
			valueDone(i)
		case c == '{' || c == '[':
			if len(stack) > 0 && !inValuePosition() {
				break scan
			}
			stack = append(stack, frame{kind: c})
			i++
			mark(i, false)
		case c == '}' || c == ']':
			want := byte('{')
			if c == ']' {
				want = '['
			}
			if len(stack) == 0 || stack[len(stack)-1].kind != want {
				break scan
			}
			stack = stack[:len(stack)-1]
			i++
			valueDone(i)
			if len(stack) == 0 {
				break scan
			}
		case c == ':':
			if len(stack) > 0 && stack[len(stack)-1].kind == '{' {
				stack[len(stack)-1].afterColon = true
			}
			i++
		case c == ',':
			if len(stack) > 0 {
				stack[len(stack)-1].afterColon = false
			}
			i++
		case isSpace(c):
			i++
		default:
			j := i
			for j < len(s) && !isDelimiter(s[j]) {
				j++
			}
			if j == len(s) {
				break scan
			}
			i = j
			valueDone(i)
		}
	}
	// Nothing beyond the root brace survived.
	if !found || safe.end <= 1 {
		return "", false
	}

	var b strings.Builder
	b.WriteString(s[:safe.end])
	if safe.quote {
		b.WriteByte('"')
	}
	out := strings.TrimRight(stripTrailingCommas(b.String()), " \t\r\n")
	out = strings.TrimSuffix(out, ",")
	b.Reset()
	b.WriteString(out)
	for k := len(safe.open) - 1; k >= 0; k-- {
		if safe.open[k] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String(), true
}

// scanString reports where the string literal opening at s[i] ends. For an
// unterminated literal end is where its content can be cut safely: before
// an escape the input stops in the middle of, otherwise len(s).
func scanString(s string, i int) (end int, closed bool) {
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			if j+1 >= len(s) || (s[j+1] == 'u' && j+6 > len(s)) {
				return j, false
			}
			j++
		case '"':
			return j + 1, true
		}
	}
	return len(s), false
}

// stripTrailingCommas removes commas that directly precede a closing bracket.
func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// escapeControlChars escapes literal newlines and tabs inside string literals.
func escapeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			b.WriteByte(c)
			continue
		}
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			inString = false
		case c == '\n':
			b.WriteString(`\n`)
			continue
		case c == '\r':
			b.WriteString(`\r`)
			continue
		case c == '\t':
			b.WriteString(`\t`)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDelimiter(c byte) bool {
	return isSpace(c) || c == ',' || c == '}' || c == ']' || c == ':' || c == '"' || c == '{' || c == '['
}
