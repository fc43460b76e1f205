package raw

import (
	"fmt"

	"github.com/wudi/pdfrename/scanner"
)

// TokenReader adapts a scanner for object assembly. It supports single-token
// pushback, which assembly needs when a lookahead token turns out to belong
// to the caller (the keyword after a trailer dictionary, for example).
type TokenReader struct {
	s      scanner.Scanner
	pushed []scanner.Token
}

func NewTokenReader(s scanner.Scanner) *TokenReader { return &TokenReader{s: s} }

func (r *TokenReader) Next() (scanner.Token, error) {
	if n := len(r.pushed); n > 0 {
		tok := r.pushed[n-1]
		r.pushed = r.pushed[:n-1]
		return tok, nil
	}
	return r.s.Next()
}

// Unread pushes tok back so the next Next call returns it again.
func (r *TokenReader) Unread(tok scanner.Token) { r.pushed = append(r.pushed, tok) }

// Scanner returns the underlying scanner, for callers that need to adjust
// stream length hints between tokens.
func (r *TokenReader) Scanner() scanner.Scanner { return r.s }

// ParseObject assembles the next complete object from the token stream.
// It handles dictionaries, arrays, names, strings, numbers, booleans, null
// and indirect references. Stream payloads are not assembled here; callers
// that expect a stream read its token themselves after the dictionary, once
// the Length hint is known.
func ParseObject(r *TokenReader) (Object, error) {
	tok, err := r.Next()
	if err != nil {
		return nil, err
	}
	return objectFromToken(r, tok)
}

func objectFromToken(r *TokenReader, tok scanner.Token) (Object, error) {
	switch tok.Type {
	case scanner.TokenDict:
		return parseDict(r, tok)
	case scanner.TokenArray:
		return parseArray(r)
	case scanner.TokenName:
		return NameObj{Val: tok.Str}, nil
	case scanner.TokenString:
		return &StringObj{Bytes: tok.Bytes, Hex: tok.Hex}, nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return NumberInt(tok.Int), nil
		}
		return NumberFloat(tok.Float), nil
	case scanner.TokenBoolean:
		return BoolObj{V: tok.Bool}, nil
	case scanner.TokenNull:
		return NullObj{}, nil
	case scanner.TokenRef:
		return RefObj{R: ObjectRef{Num: int(tok.Int), Gen: tok.Gen}}, nil
	default:
		return nil, fmt.Errorf("unexpected token %q at offset %d", tok.Str, tok.Pos)
	}
}

func parseDict(r *TokenReader, open scanner.Token) (Object, error) {
	d := Dict()
	for {
		tok, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("unterminated dictionary at offset %d: %w", open.Pos, err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == ">>" {
			return d, nil
		}
		if tok.Type != scanner.TokenName {
			return nil, fmt.Errorf("dictionary key must be a name, got %q at offset %d", tok.Str, tok.Pos)
		}
		key := NameObj{Val: tok.Str}
		valTok, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("dictionary missing value for /%s: %w", key.Val, err)
		}
		val, err := objectFromToken(r, valTok)
		if err != nil {
			return nil, err
		}
		d.Set(key, val)
	}
}

func parseArray(r *TokenReader) (Object, error) {
	a := NewArray()
	for {
		tok, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("unterminated array: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "]" {
			return a, nil
		}
		item, err := objectFromToken(r, tok)
		if err != nil {
			return nil, err
		}
		a.Append(item)
	}
}
