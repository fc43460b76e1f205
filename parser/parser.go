// Package parser assembles readable documents from the lower layers:
// xref resolution, object loading, decryption. It owns no interpretation
// of page content; that lives in extractor.
package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wudi/pdfrename/ir/raw"
	"github.com/wudi/pdfrename/recovery"
	"github.com/wudi/pdfrename/security"
	"github.com/wudi/pdfrename/xref"
)

// Config controls document assembly.
type Config struct {
	// Recovery steers how damaged files are treated. Nil means strict.
	Recovery recovery.Strategy
	// Password authenticates encrypted documents. The empty password is
	// always tried; most encrypted PDFs in the wild use it.
	Password string
}

// Document is an open, authenticated PDF. It keeps the underlying reader
// until Close.
type Document struct {
	reader  io.ReaderAt
	closer  io.Closer
	trailer raw.Dictionary
	loader  *Loader
	handler security.Handler
	version string
}

// Open reads the file at path. The returned document holds the file handle;
// callers must Close it.
func Open(ctx context.Context, path string, cfg Config) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(ctx, f, cfg)
	if err != nil {
		f.Close()
		return nil, err
	}
	doc.closer = f
	return doc, nil
}

// Parse assembles a document from an in-memory or already-open reader.
func Parse(ctx context.Context, r io.ReaderAt, cfg Config) (*Document, error) {
	resolver := xref.NewResolver(xref.ResolverConfig{Recovery: cfg.Recovery})
	table, err := resolver.Resolve(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("resolve xref: %w", err)
	}
	trailer := resolver.Trailer()

	handler, err := buildSecurity(ctx, r, table, trailer, cfg)
	if err != nil {
		return nil, err
	}
	if err := authenticate(handler, cfg.Password); err != nil {
		return nil, err
	}

	return &Document{
		reader:  r,
		trailer: trailer,
		loader:  NewLoader(r, table, handler, cfg.Recovery),
		handler: handler,
		version: headerVersion(r),
	}, nil
}

func (d *Document) Close() error {
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}

func (d *Document) Trailer() raw.Dictionary      { return d.trailer }
func (d *Document) Version() string              { return d.version }
func (d *Document) Encrypted() bool              { return d.handler.IsEncrypted() }
func (d *Document) Permissions() raw.Permissions { return d.handler.Permissions() }
func (d *Document) Loader() *Loader              { return d.loader }

// Load materializes an indirect object.
func (d *Document) Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	return d.loader.Load(ctx, ref)
}

// Deref resolves obj when it is a reference; direct objects pass through.
func (d *Document) Deref(ctx context.Context, obj raw.Object) raw.Object {
	return d.loader.Deref(ctx, obj)
}

// Catalog loads the document catalog via the trailer Root entry.
func (d *Document) Catalog(ctx context.Context) (raw.Dictionary, error) {
	if d.trailer == nil {
		return nil, errors.New("document has no trailer")
	}
	obj, ok := d.trailer.Get(raw.NameObj{Val: "Root"})
	if !ok {
		return nil, errors.New("trailer has no Root")
	}
	cat := d.loader.DerefDict(ctx, obj)
	if cat == nil {
		return nil, errors.New("catalog is not a dictionary")
	}
	return cat, nil
}

// Info loads the trailer Info dictionary. A document without one yields
// (nil, nil).
func (d *Document) Info(ctx context.Context) (raw.Dictionary, error) {
	if d.trailer == nil {
		return nil, nil
	}
	obj, ok := d.trailer.Get(raw.NameObj{Val: "Info"})
	if !ok {
		return nil, nil
	}
	return d.loader.DerefDict(ctx, obj), nil
}

func buildSecurity(ctx context.Context, r io.ReaderAt, table xref.Table, trailer raw.Dictionary, cfg Config) (security.Handler, error) {
	if trailer == nil {
		return security.NoopHandler(), nil
	}
	encObj, ok := trailer.Get(raw.NameObj{Val: "Encrypt"})
	if !ok {
		return security.NoopHandler(), nil
	}
	var encDict raw.Dictionary
	switch v := encObj.(type) {
	case raw.Dictionary:
		encDict = v
	case raw.Reference:
		// bootstrap loader without decryption to fetch the Encrypt dict
		plain := NewLoader(r, table, security.NoopHandler(), cfg.Recovery)
		obj, err := plain.Load(ctx, v.Ref())
		if err != nil {
			return nil, fmt.Errorf("load Encrypt dictionary: %w", err)
		}
		encDict, _ = obj.(raw.Dictionary)
	}
	if encDict == nil {
		return security.NoopHandler(), nil
	}
	return (&security.HandlerBuilder{}).
		WithEncryptDict(encDict).
		WithTrailer(trailer).
		Build()
}

// authenticate tries the empty password first, then the configured one.
func authenticate(h security.Handler, password string) error {
	if !h.IsEncrypted() {
		return nil
	}
	if err := h.Authenticate(""); err == nil {
		return nil
	}
	if err := h.Authenticate(password); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	return nil
}

// headerVersion reads the %PDF-N.M comment from the first line.
func headerVersion(r io.ReaderAt) string {
	buf := make([]byte, 32)
	n, _ := r.ReadAt(buf, 0)
	line := string(buf[:n])
	if idx := strings.IndexAny(line, "\r\n"); idx >= 0 {
		line = line[:idx]
	}
	if strings.HasPrefix(line, "%PDF-") {
		return strings.TrimSpace(line[len("%PDF-"):])
	}
	return ""
}
