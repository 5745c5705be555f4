package profile

import (
	"regexp"
	"strings"

	"codeberg.org/mutker/monitorctl/internal/errors"
)

// compileGlob turns a shell-style pattern into an anchored regular
// expression. `*` matches any run of characters including path
// separators, `?` a single character, and `[seq]` / `[!seq]` character
// sets. Matching is case sensitive.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(translateGlob(pattern))
	if err != nil {
		return nil, errors.New().Wrap(ErrInvalidPattern, err).WithData(pattern)
	}

	return re, nil
}

func translateGlob(pattern string) string {
	var b strings.Builder
	b.WriteString("^")

	for i := 0; i < len(pattern); {
		c := pattern[i]
		i++
		switch c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '[':
			j := i
			if j < len(pattern) && (pattern[j] == '!' || pattern[j] == ']') {
				j++
			}
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j >= len(pattern) {
				// Unterminated set matches a literal bracket
				b.WriteString(`\[`)
				continue
			}
			set := strings.ReplaceAll(pattern[i:j], `\`, `\\`)
			if set[0] == '!' {
				set = "^" + set[1:]
			}
			b.WriteString("[" + set + "]")
			i = j + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}

	b.WriteString("$")

	return b.String()
}
