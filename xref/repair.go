package xref

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/wudi/pdfrename/ir/raw"
	"github.com/wudi/pdfrename/recovery"
	"github.com/wudi/pdfrename/scanner"
)

// repairScan rebuilds a cross-reference table for a document whose xref
// data is missing or unusable. It walks the whole file looking for
// "N G obj" headers, records the offset of each, and keeps the last
// trailer dictionary it encounters. Later duplicates of an object number
// win, matching incremental-update semantics.
func repairScan(ctx context.Context, data []byte, strat recovery.Strategy) (*table, error) {
	s := scanner.New(bytes.NewReader(data), scanner.Config{Recovery: strat})
	entries := make(map[int]entry)
	var lastTrailer raw.Dictionary

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		before := s.Position()
		tok, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// skip undecodable bytes rather than stalling on them
			if s.Position() == before {
				if serr := s.Seek(before + 1); serr != nil {
					break
				}
			}
			continue
		}

		switch {
		case tok.Type == scanner.TokenNumber && tok.IsInt:
			numTok := tok
			genTok, err := s.Next()
			if err != nil {
				continue
			}
			if genTok.Type != scanner.TokenNumber || !genTok.IsInt {
				// genTok may begin the real header; rescan from it
				s.Seek(genTok.Pos)
				continue
			}
			kwTok, err := s.Next()
			if err != nil {
				continue
			}
			if kwTok.Type == scanner.TokenKeyword && kwTok.Str == "obj" {
				entries[int(numTok.Int)] = entry{offset: numTok.Pos, gen: int(genTok.Int)}
			} else {
				s.Seek(genTok.Pos)
			}

		case tok.Type == scanner.TokenKeyword && tok.Str == "trailer":
			obj, err := raw.ParseObject(raw.NewTokenReader(s))
			if err != nil {
				continue
			}
			if d, ok := obj.(raw.Dictionary); ok {
				lastTrailer = d
			}
		}
	}

	if len(entries) == 0 {
		return nil, errors.New("no object headers found")
	}
	if lastTrailer == nil {
		maxNum := 0
		for n := range entries {
			if n > maxNum {
				maxNum = n
			}
		}
		lastTrailer = raw.Dict()
		lastTrailer.Set(raw.NameObj{Val: "Size"}, raw.NumberInt(int64(maxNum)+1))
	}
	return &table{entries: entries, trailer: lastTrailer, typ: "table"}, nil
}
