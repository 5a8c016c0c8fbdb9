package asm

import (
	"fmt"
	"strings"
)

// tokenizeExpr splits s into the token stream expr.Parser expects:
// quoted character constants, multi-character and single-character
// operators/punctuation, and bareword/numeric atoms.
func tokenizeExpr(s string) ([]string, error) {
	var toks []string
	i, n := 0, len(s)
	for i < n {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '\'' || c == '"' || c == '`':
			j := i + 1
			for j < n && s[j] != c {
				if s[j] == '\\' && j+1 < n {
					j++
				}
				j++
			}
			if j >= n {
				return nil, fmt.Errorf("unmatched quote in expression %q", s)
			}
			toks = append(toks, s[i:j+1])
			i = j + 1
		case strings.IndexByte("()[],:?", c) >= 0:
			toks = append(toks, string(c))
			i++
		default:
			if tok, ok := matchMultiOp(s[i:]); ok {
				toks = append(toks, tok)
				i += len(tok)
				continue
			}
			if strings.IndexByte("+-*/%<>=!&^|~", c) >= 0 {
				toks = append(toks, string(c))
				i++
				continue
			}
			j := i
			for j < n && !isExprDelim(s[j]) {
				j++
			}
			if j == i {
				return nil, fmt.Errorf("unexpected character %q in expression %q", c, s)
			}
			toks = append(toks, s[i:j])
			i = j
		}
	}
	return toks, nil
}

var multiOps = []string{"<<", ">>", "<=", ">=", "==", "!=", "&&", "||", "??"}

func matchMultiOp(s string) (string, bool) {
	for _, op := range multiOps {
		if strings.HasPrefix(s, op) {
			return op, true
		}
	}
	return "", false
}

func isExprDelim(c byte) bool {
	return c == ' ' || c == '\t' || strings.IndexByte("()[],:?+-*/%<>=!&^|~'\"`", c) >= 0
}
