package sqlaug

import "strings"

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// skipQuoted returns the offset of the quote closing the literal opened at i.
// Doubled quotes inside the literal are escapes.
func skipQuoted(s string, i int) int {
	q := s[i]
	for j := i + 1; j < len(s); j++ {
		if s[j] != q {
			continue
		}
		if j+1 < len(s) && s[j+1] == q {
			j++
			continue
		}
		return j
	}
	return len(s) - 1
}

// matchWords reports whether the whitespace separated words start at i,
// bounded by non-identifier characters.
func matchWords(s string, i int, words []string) bool {
	if i > 0 && isIdentByte(s[i-1]) {
		return false
	}
	j := i
	for n, w := range words {
		if n > 0 {
			k := j
			for k < len(s) && isSpace(s[k]) {
				k++
			}
			if k == j {
				return false
			}
			j = k
		}
		if len(s)-j < len(w) || !strings.EqualFold(s[j:j+len(w)], w) {
			return false
		}
		j += len(w)
	}
	return j == len(s) || !isIdentByte(s[j])
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// topLevel finds keyword at parenthesis depth zero outside literals and
// comments, starting the search at from. It returns -1 when absent.
func topLevel(s, keyword string, from int) int {
	words := strings.Fields(keyword)
	depth := 0
	for i := from; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(s, i)
			continue
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			nl := strings.IndexByte(s[i:], '\n')
			if nl < 0 {
				return -1
			}
			i += nl
			continue
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return -1
			}
			i += end + 3
			continue
		case c == '(':
			depth++
			continue
		case c == ')':
			depth--
			continue
		}
		if depth == 0 && matchWords(s, i, words) {
			return i
		}
	}
	return -1
}

// splitTopLevel cuts s at every top-level occurrence of sep.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(s, i)
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// firstIdent reads an identifier, optionally dotted, from the start of s.
func firstIdent(s string) (ident, rest string) {
	s = strings.TrimLeft(s, " \t\r\n")
	i := 0
	for i < len(s) && (isIdentByte(s[i]) || s[i] == '.') {
		i++
	}
	return s[:i], s[i:]
}
