package semver

import (
	"fmt"
	"strings"

	"github.com/zepo-dev/zepo/internal/errtypes"
)

// tokenType enumerates the lexical tokens of a range expression,
// mirroring zepo::semver::Range::TokenType.
type tokenType int

const (
	tokVersion tokenType = iota
	tokLt
	tokGt
	tokLtEq
	tokGtEq
	tokEq
	tokHyphen
	tokTilde
	tokOr
	tokCaret
)

type rangeToken struct {
	typ   tokenType
	value string
}

// isValidVersionChar mirrors isVaildVersionCharactor from the original
// lexer: digits, letters (for prerelease/build tags), '.', '-', '+'
// and '*' (wildcard) are all part of a version literal run.
func isValidVersionChar(ch byte) bool {
	return (ch >= '0' && ch <= '9') ||
		(ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		ch == '.' || ch == '-' || ch == '+' || ch == '*'
}

// lex tokenizes a range expression. It fixes a bug present in the
// original C++ lexer, where a bare '<' always yielded LtEq (the '='
// check's true branch emitted LtEq and the code unconditionally
// emitted LtEq again afterward regardless of the check's outcome, so
// Lt was never reachable). Here a bare '<' yields Lt and '<=' yields
// LtEq, matching '>' / '>=' handling directly above it in the original.
func lex(expr string) ([]rangeToken, error) {
	var tokens []rangeToken
	i := 0
	n := len(expr)

	for i < n {
		ch := expr[i]
		switch {
		case ch == '^':
			tokens = append(tokens, rangeToken{typ: tokCaret})
			i++
		case ch == '~':
			tokens = append(tokens, rangeToken{typ: tokTilde})
			i++
		case ch == '*' || (ch >= '0' && ch <= '9') || ch == 'v' || ch == 'V':
			if ch == 'v' || ch == 'V' {
				i++
				if i >= n || !isValidVersionChar(expr[i]) {
					return nil, &errtypes.LexError{Pos: i, Err: fmt.Errorf("invalid version range")}
				}
			}
			begin := i
			enteredPrerelease := false
			for i < n {
				c := expr[i]
				if !isValidVersionChar(c) {
					break
				}
				if c == '-' {
					if enteredPrerelease {
						return nil, &errtypes.LexError{Pos: i, Err: fmt.Errorf("invalid version range")}
					}
					enteredPrerelease = true
				}
				if c == '+' && !enteredPrerelease {
					return nil, &errtypes.LexError{Pos: i, Err: fmt.Errorf("invalid version range")}
				}
				if c == '*' && enteredPrerelease {
					return nil, &errtypes.LexError{Pos: i, Err: fmt.Errorf("invalid version range")}
				}
				i++
			}
			tokens = append(tokens, rangeToken{typ: tokVersion, value: expr[begin:i]})
		case ch == '=':
			tokens = append(tokens, rangeToken{typ: tokEq})
			i++
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '|':
			i++
			if i >= n || expr[i] != '|' {
				return nil, &errtypes.LexError{Pos: i, Err: fmt.Errorf("invalid operator")}
			}
			i++
			tokens = append(tokens, rangeToken{typ: tokOr})
		case ch == '>':
			i++
			if i < n && expr[i] == '=' {
				i++
				tokens = append(tokens, rangeToken{typ: tokGtEq})
			} else {
				tokens = append(tokens, rangeToken{typ: tokGt})
			}
		case ch == '<':
			i++
			if i < n && expr[i] == '=' {
				i++
				tokens = append(tokens, rangeToken{typ: tokLtEq})
			} else {
				tokens = append(tokens, rangeToken{typ: tokLt})
			}
		case ch == '-':
			tokens = append(tokens, rangeToken{typ: tokHyphen})
			i++
		default:
			return nil, &errtypes.LexError{Pos: i, Err: fmt.Errorf("invalid character")}
		}
	}
	return tokens, nil
}

// node is the evaluable range AST, mirroring Range::BaseNode.
type node interface {
	eval(v Version) (bool, error)
}

type versionNode struct {
	pattern string
}

func (n versionNode) eval(v Version) (bool, error) {
	return evalWildcardPattern(n.pattern, v)
}

type hyphenNode struct {
	from, to Version
}

func (n hyphenNode) eval(v Version) (bool, error) {
	return v.GreaterOrEqual(n.from) && v.LessOrEqual(n.to), nil
}

type andNode struct {
	left, right node
}

func (n andNode) eval(v Version) (bool, error) {
	l, err := n.left.eval(v)
	if err != nil || !l {
		return false, err
	}
	return n.right.eval(v)
}

type orNode struct {
	left, right node
}

func (n orNode) eval(v Version) (bool, error) {
	l, err := n.left.eval(v)
	if err != nil {
		return false, err
	}
	if l {
		return true, nil
	}
	return n.right.eval(v)
}

type compareNode struct {
	op     tokenType
	target Version
}

func (n compareNode) eval(v Version) (bool, error) {
	switch n.op {
	case tokLt:
		return v.LessThan(n.target), nil
	case tokLtEq:
		return v.LessOrEqual(n.target), nil
	case tokGt:
		return v.GreaterThan(n.target), nil
	case tokGtEq:
		return v.GreaterOrEqual(n.target), nil
	case tokEq:
		return v.Equal(n.target), nil
	case tokCaret:
		return v.SatisfiesCaret(n.target), nil
	case tokTilde:
		return v.SatisfiesTilde(n.target), nil
	default:
		return false, fmt.Errorf("semver: unknown comparison operator %d", n.op)
	}
}

// evalWildcardPattern handles a bare version literal token, which may
// contain '*' wildcards (e.g. "1.2.*", "1.*", "*"). A literal with no
// wildcard is an exact-match comparison; a wildcard fixes the leading
// components and leaves the rest free, same as npm's "1.2.x" family.
func evalWildcardPattern(pattern string, v Version) (bool, error) {
	if pattern == "*" || pattern == "" {
		return true, nil
	}
	parts := strings.SplitN(pattern, ".", 3)
	want := []string{"*", "*", "*"}
	for i := 0; i < len(parts) && i < 3; i++ {
		want[i] = parts[i]
	}
	if want[0] != "*" {
		if fmt.Sprint(v.Major()) != want[0] {
			return false, nil
		}
	}
	if want[1] != "*" {
		if fmt.Sprint(v.Minor()) != want[1] {
			return false, nil
		}
	}
	if want[2] != "*" {
		if fmt.Sprint(v.Patch()) != want[2] {
			return false, nil
		}
	}
	return true, nil
}

// parser is a recursive-descent parser over the token stream, mirroring
// Range::parser: Comparison-level terms (bare versions and
// operator+version pairs) implicitly AND together by adjacency; a
// top-level "||" starts a new Union-level alternative, recursing to
// parse everything to its right as the other OrNode branch.
func parseRange(tokens []rangeToken) (node, error) {
	pos := 0
	n, next, err := parseSequence(tokens, pos)
	if err != nil {
		return nil, err
	}
	if next != len(tokens) {
		return nil, &errtypes.ParseError{Pos: next, What: "unexpected trailing tokens"}
	}
	return n, nil
}

func parseSequence(tokens []rangeToken, pos int) (node, int, error) {
	var current node
	for pos < len(tokens) {
		t := tokens[pos]

		switch t.typ {
		case tokCaret, tokGt, tokGtEq, tokEq, tokLt, tokLtEq, tokTilde:
			pos++
			if pos >= len(tokens) {
				return nil, pos, &errtypes.ParseError{Pos: pos, What: "unexpected eof"}
			}
			vt := tokens[pos]
			if vt.typ != tokVersion {
				return nil, pos, &errtypes.ParseError{Pos: pos, What: "expected version literal"}
			}
			v, err := ParseVersion(vt.value)
			if err != nil {
				return nil, pos, err
			}
			pos++
			created := node(compareNode{op: t.typ, target: v})
			current = combineAnd(current, created)

		case tokVersion:
			lookaheadPos := pos + 1
			created := node(versionNode{pattern: t.value})
			pos++
			if pos < len(tokens) && tokens[pos].typ == tokHyphen {
				pos++
				if pos >= len(tokens) || tokens[pos].typ != tokVersion {
					return nil, pos, &errtypes.ParseError{Pos: pos, What: "expected version literal after '-'"}
				}
				from, err := ParseVersion(t.value)
				if err != nil {
					return nil, pos, err
				}
				to, err := ParseVersion(tokens[pos].value)
				if err != nil {
					return nil, pos, err
				}
				pos++
				created = hyphenNode{from: from, to: to}
				_ = lookaheadPos
			}
			current = combineAnd(current, created)

		case tokOr:
			pos++
			right, nextPos, err := parseSequence(tokens, pos)
			if err != nil {
				return nil, nextPos, err
			}
			current = orNode{left: current, right: right}
			return current, nextPos, nil

		case tokHyphen:
			return nil, pos, &errtypes.ParseError{Pos: pos, What: "unexpected '-'"}

		default:
			return nil, pos, &errtypes.ParseError{Pos: pos, What: "unexpected token"}
		}
	}
	if current == nil {
		return nil, pos, &errtypes.ParseError{Pos: pos, What: "unexpected eof"}
	}
	return current, pos, nil
}

func combineAnd(current, created node) node {
	if current == nil {
		return created
	}
	return andNode{left: current, right: created}
}

// Range is a compiled version-range expression.
type Range struct {
	expr string
	root node
}

// ParseRange compiles a range expression into an evaluable Range.
func ParseRange(expr string) (*Range, error) {
	tokens, err := lex(expr)
	if err != nil {
		return nil, err
	}
	root, err := parseRange(tokens)
	if err != nil {
		return nil, fmt.Errorf("semver: invalid range %q: %w", expr, err)
	}
	return &Range{expr: expr, root: root}, nil
}

// MustParseRange is ParseRange but panics on error.
func MustParseRange(expr string) *Range {
	r, err := ParseRange(expr)
	if err != nil {
		panic(err)
	}
	return r
}

// Satisfies reports whether v satisfies the range.
func (r *Range) Satisfies(v Version) bool {
	ok, err := r.root.eval(v)
	if err != nil {
		return false
	}
	return ok
}

func (r *Range) String() string { return r.expr }
