package lint

import "strings"

// attrList is the text between the parentheses of a tag's attribute list.
type attrList struct {
	line int
	body string
}

// attributeLists finds attribute lists that directly follow the tag at the
// start of a line, such as a(href="/" title="x"). Lists may span lines.
func attributeLists(src string) []attrList {
	var lists []attrList
	line := 1
	i := 0
	for i < len(src) {
		j := i
		for j < len(src) && isSpace(src[j]) && src[j] != '\n' {
			j++
		}
		k := j
		for k < len(src) && isTagChar(src[k]) {
			k++
		}
		if k > j && k < len(src) && src[k] == '(' {
			if body, end, ok := balanced(src, k); ok {
				lists = append(lists, attrList{line: line, body: body})
				line += strings.Count(src[i:end], "\n")
				i = end
			}
		}

		nl := strings.IndexByte(src[i:], '\n')
		if nl < 0 {
			break
		}
		i += nl + 1
		line++
	}
	return lists
}

// attributeNames returns attribute names in order of appearance.
func attributeNames(body string) []string {
	var names []string
	i := 0
	for i < len(body) {
		if body[i] == ',' || isSpace(body[i]) {
			i++
			continue
		}
		start := i
		for i < len(body) && !isSpace(body[i]) && strings.IndexByte(",=!", body[i]) < 0 {
			i++
		}
		if i == start {
			i++
			continue
		}
		names = append(names, body[start:i])

		j := skipSpace(body, i)
		switch {
		case strings.HasPrefix(body[j:], "!="):
			j += 2
		case j < len(body) && body[j] == '=':
			j++
		default:
			continue
		}
		i = skipValue(body, skipSpace(body, j))
	}
	return names
}

// skipValue skips an attribute value, following binary operators so that
// "a" + b counts as one value.
func skipValue(s string, i int) int {
	for {
		i = skipTerm(s, i)
		j := skipSpace(s, i)
		if j < len(s) && strings.IndexByte("+-*/?:|&", s[j]) >= 0 {
			i = skipSpace(s, j+1)
			continue
		}
		return i
	}
}

func skipTerm(s string, i int) int {
	depth := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '"' || c == '\'' || c == '`':
			i = skipQuoted(s, i)
			continue
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case depth <= 0 && (c == ',' || isSpace(c)):
			return i
		}
		i++
	}
	return i
}

// balanced returns the text inside the parenthesis at open, and the index
// after its match.
func balanced(s string, open int) (string, int, bool) {
	depth := 0
	i := open
	for i < len(s) {
		switch s[i] {
		case '"', '\'', '`':
			i = skipQuoted(s, i)
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[open+1 : i], i + 1, true
			}
		}
		i++
	}
	return "", 0, false
}

func skipQuoted(s string, i int) int {
	q := s[i]
	for i++; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case q:
			return i + 1
		}
	}
	return len(s)
}

func skipSpace(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isTagChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		strings.IndexByte("-_.#:+", c) >= 0
}
