// Package asm implements the CSX64 assembler front end: translating
// NASM-like source text into an in-memory object file ready for the
// linker. It is the encode side of the binary contract the isa package
// defines and the vm package decodes.
package asm

import (
	"fmt"
	"strings"
)

// Line is one parsed source line: an optional label, an optional
// mnemonic/directive name, and its comma-separated, trimmed argument list.
type Line struct {
	Label string
	Op    string
	Args  []string
	Num   uint32
}

// splitLine implements the line model: `[label:] [op [arg, arg, ...]]`,
// stripping a `;`-led comment (outside quotes) and splitting arguments on
// commas that are not inside a quoted string.
func splitLine(raw string, num uint32) (Line, error) {
	body, err := stripComment(raw)
	if err != nil {
		return Line{}, fmt.Errorf("line %d: %w", num, err)
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return Line{Num: num}, nil
	}

	label := ""
	if idx := strings.IndexByte(body, ':'); idx >= 0 && !withinQuotes(body, idx) {
		label = strings.TrimSpace(body[:idx])
		body = strings.TrimSpace(body[idx+1:])
	}
	if body == "" {
		return Line{Label: label, Num: num}, nil
	}

	op, rest := splitFirstWord(body)
	var args []string
	if rest != "" {
		args, err = splitArgs(rest)
		if err != nil {
			return Line{}, fmt.Errorf("line %d: %w", num, err)
		}
	}
	return Line{Label: label, Op: strings.ToLower(op), Args: args, Num: num}, nil
}

// stripComment truncates s at the first unquoted ';', failing if a quote
// opened on this line is never closed.
func stripComment(s string) (string, error) {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
		case ';':
			return s[:i], nil
		}
	}
	if quote != 0 {
		return "", fmt.Errorf("unmatched quote")
	}
	return s, nil
}

// withinQuotes reports whether position upto falls inside an open quote
// run starting earlier in s.
func withinQuotes(s string, upto int) bool {
	var quote byte
	for i := 0; i < upto && i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		if c == '\'' || c == '"' || c == '`' {
			quote = c
		}
	}
	return quote != 0
}

func splitFirstWord(s string) (string, string) {
	s = strings.TrimLeft(s, " \t")
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}

// splitArgs splits s on commas that are not inside a quoted string,
// trimming each argument; an unmatched quote or an empty argument is a
// format error.
func splitArgs(s string) ([]string, error) {
	var args []string
	var cur strings.Builder
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			cur.WriteByte(c)
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
			cur.WriteByte(c)
		case ',':
			arg := strings.TrimSpace(cur.String())
			if arg == "" {
				return nil, fmt.Errorf("empty argument")
			}
			args = append(args, arg)
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unmatched quote in argument list")
	}
	last := strings.TrimSpace(cur.String())
	if last == "" {
		return nil, fmt.Errorf("empty argument")
	}
	args = append(args, last)
	return args, nil
}
