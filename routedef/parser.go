package routedef

import (
	"fmt"
	"strconv"
	"strings"
)

// filter expression scanner, producing one Filter from the function call
// notation: name(arg, ...), with double quoted string and number arguments
type scanner struct {
	input string
	pos   int
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.input) && (s.input[s.pos] == ' ' || s.input[s.pos] == '\t') {
		s.pos++
	}
}

func (s *scanner) fail(message string) error {
	return fmt.Errorf("%s at position %d in %q", message, s.pos, s.input)
}

func isNameByte(b byte, first bool) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b == '_':
		return true
	case b >= '0' && b <= '9':
		return !first
	default:
		return false
	}
}

func (s *scanner) name() (string, error) {
	start := s.pos
	for s.pos < len(s.input) && isNameByte(s.input[s.pos], s.pos == start) {
		s.pos++
	}

	if s.pos == start {
		return "", s.fail("expected filter name")
	}

	return s.input[start:s.pos], nil
}

func (s *scanner) stringArg() (string, error) {
	// opening quote already seen
	s.pos++
	var b strings.Builder
	for s.pos < len(s.input) {
		switch c := s.input[s.pos]; c {
		case '\\':
			if s.pos+1 == len(s.input) {
				return "", s.fail("unterminated escape")
			}

			s.pos++
			switch e := s.input[s.pos]; e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(e)
			}

			s.pos++
		case '"':
			s.pos++
			return b.String(), nil
		default:
			b.WriteByte(c)
			s.pos++
		}
	}

	return "", s.fail("unterminated string")
}

func (s *scanner) numberArg() (interface{}, error) {
	start := s.pos
	if s.input[s.pos] == '-' {
		s.pos++
	}

	dot := false
	for s.pos < len(s.input) {
		c := s.input[s.pos]
		if c == '.' {
			if dot {
				return nil, s.fail("invalid number")
			}

			dot = true
			s.pos++
			continue
		}

		if c < '0' || c > '9' {
			break
		}

		s.pos++
	}

	text := s.input[start:s.pos]
	if dot {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, s.fail("invalid number")
		}

		return f, nil
	}

	i, err := strconv.Atoi(text)
	if err != nil {
		return nil, s.fail("invalid number")
	}

	return i, nil
}

func (s *scanner) arg() (interface{}, error) {
	switch c := s.input[s.pos]; {
	case c == '"':
		return s.stringArg()
	case c == '-' || c >= '0' && c <= '9':
		return s.numberArg()
	default:
		return nil, s.fail("expected argument")
	}
}

func (s *scanner) args() ([]interface{}, error) {
	var args []interface{}
	for {
		s.skipSpace()
		if s.pos == len(s.input) {
			return nil, s.fail("unterminated arguments")
		}

		if s.input[s.pos] == ')' {
			if len(args) > 0 {
				return nil, s.fail("expected argument")
			}

			s.pos++
			return args, nil
		}

		a, err := s.arg()
		if err != nil {
			return nil, err
		}

		args = append(args, a)
		s.skipSpace()
		if s.pos == len(s.input) {
			return nil, s.fail("unterminated arguments")
		}

		switch s.input[s.pos] {
		case ',':
			s.pos++
		case ')':
			s.pos++
			return args, nil
		default:
			return nil, s.fail("expected ',' or ')'")
		}
	}
}

// ParseFilter parses a single filter declaration of the form name(arg, ...).
func ParseFilter(expr string) (*Filter, error) {
	s := &scanner{input: expr}
	s.skipSpace()
	name, err := s.name()
	if err != nil {
		return nil, err
	}

	s.skipSpace()
	if s.pos == len(s.input) || s.input[s.pos] != '(' {
		return nil, s.fail("expected '('")
	}

	s.pos++
	args, err := s.args()
	if err != nil {
		return nil, err
	}

	s.skipSpace()
	if s.pos != len(s.input) {
		return nil, s.fail("unexpected trailing input")
	}

	return &Filter{Name: name, Args: args}, nil
}

// ParseFilters parses a list of filter declarations.
func ParseFilters(exprs []string) ([]*Filter, error) {
	fs := make([]*Filter, 0, len(exprs))
	for _, e := range exprs {
		f, err := ParseFilter(e)
		if err != nil {
			return nil, err
		}

		fs = append(fs, f)
	}

	return fs, nil
}
