package markdown

// braceScanner finds the brace that closes an expression, skipping braces
// inside strings, template literals and comments. It keeps its state between
// calls so an expression can be fed line by line.
type braceScanner struct {
	depth   int
	quote   byte
	comment byte // '/' for a line comment, '*' for a block comment
	// templates holds the depth at which each open ${ substitution started.
	templates []int
}

// feed scans b, which continues the input seen so far, and returns the index
// just past the closing brace, or -1 when the expression is still open.
func (s *braceScanner) feed(b []byte) int {
	for i := 0; i < len(b); i++ {
		c := b[i]
		next := byte(0)
		if i+1 < len(b) {
			next = b[i+1]
		}

		switch {
		case s.comment == '/':
			if c == '\n' {
				s.comment = 0
			}
		case s.comment == '*':
			if c == '*' && next == '/' {
				s.comment = 0
				i++
			}
		case s.quote != 0:
			switch {
			case c == '\\':
				i++
			case c == s.quote:
				s.quote = 0
			case s.quote == '`' && c == '$' && next == '{':
				s.templates = append(s.templates, s.depth)
				s.depth++
				s.quote = 0
				i++
			case c == '\n' && s.quote != '`':
				// Unterminated string; the script parser reports it.
				s.quote = 0
			}
		case c == '/' && (next == '/' || next == '*'):
			s.comment = next
			i++
		case c == '"' || c == '\'' || c == '`':
			s.quote = c
		case c == '{':
			s.depth++
		case c == '}':
			s.depth--
			if n := len(s.templates); n > 0 && s.templates[n-1] == s.depth {
				s.templates = s.templates[:n-1]
				s.quote = '`'
				continue
			}
			if s.depth <= 0 {
				return i + 1
			}
		}
	}
	return -1
}
