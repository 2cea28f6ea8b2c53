package commands

import (
	"strings"
)

// splitScript cuts a SQL script into statements on semicolons outside quoted
// text. Comments are dropped. Single-quoted literals (with '' escapes), double
// quoted identifiers and PostgreSQL dollar-quoted bodies are kept intact.
// PL/SQL blocks terminated by "/" are not recognized.
func splitScript(script string) []string {
	var (
		stmts []string
		cur   strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(script); {
		c := script[i]
		switch {
		case c == '-' && strings.HasPrefix(script[i:], "--"):
			end := strings.IndexByte(script[i:], '\n')
			if end < 0 {
				i = len(script)
				continue
			}
			i += end
		case c == '/' && strings.HasPrefix(script[i:], "/*"):
			end := strings.Index(script[i+2:], "*/")
			if end < 0 {
				i = len(script)
				continue
			}
			i += end + 4
			cur.WriteByte(' ')
		case c == '\'' || c == '"':
			n := quotedLen(script[i:], c)
			cur.WriteString(script[i : i+n])
			i += n
		case c == '$':
			if tag, ok := dollarTag(script[i:]); ok {
				end := strings.Index(script[i+len(tag):], tag)
				n := len(script) - i
				if end >= 0 {
					n = len(tag) + end + len(tag)
				}
				cur.WriteString(script[i : i+n])
				i += n
				continue
			}
			cur.WriteByte(c)
			i++
		case c == ';':
			flush()
			i++
		default:
			cur.WriteByte(c)
			i++
		}
	}
	flush()
	return stmts
}

// quotedLen returns the length of the quoted run at the start of s, including
// both quotes. A doubled quote is an escape. An unterminated run extends to
// the end of s.
func quotedLen(s string, q byte) int {
	for i := 1; i < len(s); i++ {
		if s[i] != q {
			continue
		}
		if i+1 < len(s) && s[i+1] == q {
			i++
			continue
		}
		return i + 1
	}
	return len(s)
}

// dollarTag recognizes "$$" or "$tag$" at the start of s. Positional
// parameters such as $1 are not tags.
func dollarTag(s string) (string, bool) {
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '$':
			return s[:i+1], true
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 1:
		default:
			return "", false
		}
	}
	return "", false
}
