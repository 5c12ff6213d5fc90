package table

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cognicore/confstat/pkg/confstat/internalerr"
)

// ParseList decodes a serialized list of strings. Two encodings are
// accepted: a JSON array (as written by Flatten) and a Python list literal
// with single- or double-quoted items (as written by pandas). An empty
// cell is an empty list.
func ParseList(serialized string) ([]string, error) {
	s := strings.TrimSpace(serialized)
	if s == "" {
		return nil, nil
	}

	var out []string
	if err := json.Unmarshal([]byte(s), &out); err == nil {
		return out, nil
	}

	out, err := parseLiteralList(s)
	if err != nil {
		return nil, fmt.Errorf("%w: list %q: %v", internalerr.ErrMalformedRow, truncate(s, 60), err)
	}
	return out, nil
}

func parseLiteralList(s string) ([]string, error) {
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("not a list")
	}
	body := []rune(s[1 : len(s)-1])
	var items []string

	i := 0
	skipSpace := func() {
		for i < len(body) && (body[i] == ' ' || body[i] == '\t' || body[i] == '\n' || body[i] == '\r') {
			i++
		}
	}

	for {
		skipSpace()
		if i >= len(body) {
			return items, nil
		}
		quote := body[i]
		if quote != '\'' && quote != '"' {
			return nil, fmt.Errorf("unexpected %q at offset %d", body[i], i)
		}
		i++

		var b strings.Builder
		closed := false
		for i < len(body) {
			r := body[i]
			if r == '\\' && i+1 < len(body) {
				b.WriteRune(unescape(body[i+1]))
				i += 2
				continue
			}
			i++
			if r == quote {
				closed = true
				break
			}
			b.WriteRune(r)
		}
		if !closed {
			return nil, fmt.Errorf("unterminated string")
		}
		items = append(items, b.String())

		skipSpace()
		if i >= len(body) {
			return items, nil
		}
		if body[i] != ',' {
			return nil, fmt.Errorf("expected ',' at offset %d", i)
		}
		i++
	}
}

func unescape(r rune) rune {
	switch r {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return r
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
