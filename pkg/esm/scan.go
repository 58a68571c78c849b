package esm

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// scanner walks fragment source byte by byte, tracking line and column for
// error reporting.
type scanner struct {
	src  string
	pos  int
	line int
	col  int
}

func newScanner(src string, pos int) *scanner {
	s := &scanner{src: src, line: 1, col: 1}
	for s.pos < pos && s.pos < len(src) {
		s.advance()
	}
	return s
}

func (s *scanner) eof() bool {
	return s.pos >= len(s.src)
}

func (s *scanner) peek(lit string) bool {
	return strings.HasPrefix(s.src[s.pos:], lit)
}

func (s *scanner) consume(lit string) bool {
	if !s.peek(lit) {
		return false
	}
	for i := 0; i < len(lit); i++ {
		s.advance()
	}
	return true
}

func (s *scanner) advance() {
	if s.pos >= len(s.src) {
		return
	}
	if s.src[s.pos] == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	s.pos++
}

// skipSpace skips whitespace and comments.
func (s *scanner) skipSpace() {
	for !s.eof() {
		switch {
		case s.peek("//"):
			for !s.eof() && s.src[s.pos] != '\n' {
				s.advance()
			}
		case s.peek("/*"):
			s.consume("/*")
			for !s.eof() && !s.peek("*/") {
				s.advance()
			}
			s.consume("*/")
		case isSpace(s.src[s.pos]):
			s.advance()
		default:
			return
		}
	}
}

// keyword consumes word when it appears at the current position followed by
// a non-identifier character.
func (s *scanner) keyword(word string) bool {
	if !s.peek(word) {
		return false
	}
	if end := s.pos + len(word); end < len(s.src) && isIdentPart(rune(s.src[end])) {
		return false
	}
	return s.consume(word)
}

func (s *scanner) identifier() string {
	start := s.pos
	for !s.eof() {
		r, size := utf8.DecodeRuneInString(s.src[s.pos:])
		if s.pos == start && !isIdentStart(r) || s.pos > start && !isIdentPart(r) {
			break
		}
		for i := 0; i < size; i++ {
			s.advance()
		}
	}
	return s.src[start:s.pos]
}

// stringLiteral reads a single or double quoted string. Escapes are kept
// verbatim apart from the quote itself; module specifiers never need more.
func (s *scanner) stringLiteral() (string, bool) {
	if s.eof() || (s.src[s.pos] != '"' && s.src[s.pos] != '\'') {
		return "", false
	}
	quote := s.src[s.pos]
	s.advance()
	var b strings.Builder
	for !s.eof() {
		c := s.src[s.pos]
		switch {
		case c == quote:
			s.advance()
			return b.String(), true
		case c == '\\' && s.pos+1 < len(s.src):
			s.advance()
			b.WriteByte(s.src[s.pos])
		case c == '\n':
			return "", false
		default:
			b.WriteByte(c)
		}
		s.advance()
	}
	return "", false
}

func (s *scanner) errorf(msg string) *SyntaxError {
	return &SyntaxError{Offset: s.pos, Line: s.line, Column: s.col, Message: msg}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isIdentStart(r rune) bool {
	return r == '$' || r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r) || r == '\u200c' || r == '\u200d'
}

// segment is a top-level slice of a program fragment that starts either at
// the beginning of the source or at an import/export keyword.
type segment struct {
	start, end int
	keyword    string
}

// splitTopLevel cuts src at every import/export keyword that begins a
// statement outside of any bracket, string, template or comment.
func splitTopLevel(src string) []segment {
	var (
		segs      []segment
		depth     int
		stmtStart = true
		cur       = segment{}
	)
	cut := func(at int, kw string) {
		cur.end = at
		if cur.end > cur.start || cur.keyword != "" {
			segs = append(segs, cur)
		}
		cur = segment{start: at, keyword: kw}
	}

	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			continue
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				i = len(src)
			} else {
				i += end + 4
			}
			continue
		case c == '"' || c == '\'':
			i = skipQuoted(src, i)
			stmtStart = false
			continue
		case c == '`':
			i = skipTemplate(src, i)
			stmtStart = false
			continue
		case c == '(' || c == '[' || c == '{':
			depth++
			stmtStart = c == '{'
		case c == ')' || c == ']' || c == '}':
			if depth > 0 {
				depth--
			}
			stmtStart = c == '}'
		case c == ';' || c == '\n':
			stmtStart = true
		case isSpace(c):
		default:
			if depth == 0 && stmtStart {
				if kw := moduleKeyword(src, i); kw != "" {
					cut(i, kw)
					i += len(kw)
					stmtStart = false
					continue
				}
			}
			stmtStart = false
		}
		i++
	}
	cut(len(src), "")
	return segs
}

// moduleKeyword reports whether an import or export statement starts at i.
// import(...) and import.meta are expressions, not statements.
func moduleKeyword(src string, i int) string {
	for _, kw := range []string{"import", "export"} {
		if !strings.HasPrefix(src[i:], kw) {
			continue
		}
		end := i + len(kw)
		if end < len(src) {
			r, _ := utf8.DecodeRuneInString(src[end:])
			if isIdentPart(r) {
				return ""
			}
			if kw == "import" {
				rest := strings.TrimLeft(src[end:], " \t")
				if strings.HasPrefix(rest, "(") || strings.HasPrefix(rest, ".") {
					return ""
				}
			}
		}
		return kw
	}
	return ""
}

func skipQuoted(src string, i int) int {
	quote := src[i]
	for i++; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case quote, '\n':
			return i + 1
		}
	}
	return i
}

func skipTemplate(src string, i int) int {
	for i++; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case '`':
			return i + 1
		case '$':
			if i+1 < len(src) && src[i+1] == '{' {
				i = skipBraces(src, i+1) - 1
			}
		}
	}
	return i
}

// skipBraces returns the offset just past the brace that closes the one at i.
func skipBraces(src string, i int) int {
	depth := 0
	for i < len(src) {
		switch src[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		case '"', '\'':
			i = skipQuoted(src, i)
			continue
		case '`':
			i = skipTemplate(src, i)
			continue
		}
		i++
	}
	return i
}

// blankOutside returns src with every byte outside [start, end) replaced by
// a space, keeping newlines, so positions reported by the script parser still
// point into the original fragment.
func blankOutside(src string, start, end int) string {
	b := []byte(src)
	for i := range b {
		if (i < start || i >= end) && b[i] != '\n' {
			b[i] = ' '
		}
	}
	return string(b)
}
