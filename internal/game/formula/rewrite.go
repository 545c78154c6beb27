package formula

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cory-johannsen/d20sheet/internal/game/dice"
)

// seededFuncs receive the evaluation seed and an occurrence index as their
// first two arguments.
var seededFuncs = map[string]bool{
	"sizeRoll": true,
}

var bareDice = regexp.MustCompile(`^[dD][0-9]+([kK][hH][0-9]+)?$`)

// rewritten is a formula translated into expr syntax. Vars maps each
// generated identifier index to the @path it reads.
type rewritten struct {
	Source string
	Vars   []string
}

// rewrite translates @path references into generated identifiers and dice
// terms into seeded _roll calls.
func rewrite(formula string) (rewritten, error) {
	var (
		out   []byte
		vars  []string
		index = map[string]int{}
		occ   int
	)
	varIdent := func(path string) string {
		i, ok := index[path]
		if !ok {
			i = len(vars)
			index[path] = i
			vars = append(vars, path)
		}
		return "_v" + strconv.Itoa(i)
	}
	emitRoll := func(count string, e dice.Expression) {
		out = fmt.Appendf(out, "_roll(_seed, %d, %s, %d, %d)", occ, count, e.Sides, e.KeepHighest)
		occ++
	}

	s := formula
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '"' || c == '\'':
			j := strings.IndexByte(s[i+1:], c)
			if j < 0 {
				return rewritten{}, errors.New("unterminated string")
			}
			out = append(out, s[i:i+j+2]...)
			i += j + 2

		case c == '@':
			j := i + 1
			for j < len(s) && isPathChar(s[j]) {
				j++
			}
			path := strings.TrimRight(s[i+1:j], ".")
			if path == "" {
				return rewritten{}, errors.New("empty variable reference")
			}
			out = append(out, varIdent(path)...)
			i = j

		case isDigit(c) || (c == '.' && i+1 < len(s) && isDigit(s[i+1])):
			j := i
			for j < len(s) && (isDigit(s[j]) || s[j] == '.') {
				j++
			}
			if j < len(s) && (s[j] == 'd' || s[j] == 'D') && j+1 < len(s) && isDigit(s[j+1]) {
				k := diceEnd(s, j+1)
				e, err := dice.Parse(s[i:k])
				if err != nil {
					return rewritten{}, err
				}
				emitRoll(strconv.Itoa(e.Count), e)
				i = k
				continue
			}
			out = append(out, s[i:j]...)
			i = j

		case isIdentStart(c):
			j := i
			for j < len(s) && isIdentChar(s[j]) {
				j++
			}
			word := s[i:j]
			switch {
			case bareDice.MatchString(word):
				e, err := dice.Parse("1" + word)
				if err != nil {
					return rewritten{}, err
				}
				count := "1"
				if open := groupStart(out); open >= 0 {
					// "(@cl)d6" or "ceil(@hd / 2)d6": the group is the dice count.
					count = string(out[open:])
					out = out[:open]
				}
				emitRoll(count, e)
			case word[0] == '_':
				return rewritten{}, fmt.Errorf("reserved identifier %q", word)
			case seededFuncs[word]:
				k := skipSpace(s, j)
				if k >= len(s) || s[k] != '(' {
					return rewritten{}, fmt.Errorf("%s must be called", word)
				}
				out = fmt.Appendf(out, "%s(_seed, %d, ", word, occ)
				occ++
				j = k + 1
			default:
				out = append(out, word...)
			}
			i = j

		default:
			out = append(out, c)
			i++
		}
	}
	return rewritten{Source: string(out), Vars: vars}, nil
}

// groupStart returns the start of the parenthesised group or call that
// ends out (ignoring trailing spaces), or -1.
func groupStart(out []byte) int {
	end := len(out)
	for end > 0 && out[end-1] == ' ' {
		end--
	}
	if end == 0 || out[end-1] != ')' {
		return -1
	}
	depth := 0
	for i := end - 1; i >= 0; i-- {
		switch out[i] {
		case ')':
			depth++
		case '(':
			depth--
			if depth == 0 {
				// A call such as ceil(x) is the count as a whole.
				for i > 0 && isIdentChar(out[i-1]) {
					i--
				}
				return i
			}
		}
	}
	return -1
}

func diceEnd(s string, i int) int {
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i+2 < len(s) && strings.EqualFold(s[i:i+2], "kh") && isDigit(s[i+2]) {
		i += 2
		for i < len(s) && isDigit(s[i]) {
			i++
		}
	}
	return i
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return i
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c|0x20 >= 'a' && c|0x20 <= 'z') }
func isIdentChar(c byte) bool  { return isIdentStart(c) || isDigit(c) }
func isPathChar(c byte) bool   { return isIdentChar(c) || c == '.' }
