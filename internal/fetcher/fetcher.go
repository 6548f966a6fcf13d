// Package fetcher gathers named documents from local paths, ZIP archives,
// FTP directories and HTTP URLs, and reads XLSX workbooks back.
package fetcher

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Document is one input file held in memory.
type Document struct {
	Name string
	Data []byte
}

// Downloader fetches a single remote file.
type Downloader interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// DefaultExtensions are the document extensions collected from directories,
// archives and FTP listings.
var DefaultExtensions = []string{".xml"}

// Options configures a Collector.
type Options struct {
	Extensions []string
	FTP        FTPOptions
	HTTP       HTTPOptions
}

// Collector resolves input arguments into documents.
type Collector struct {
	exts []string
	ftp  *FTPFetcher
	http Downloader
}

// NewCollector creates a Collector with the given options.
func NewCollector(opts Options) *Collector {
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	return &Collector{
		exts: exts,
		ftp:  NewFTPFetcher(opts.FTP),
		http: NewHTTPFetcher(opts.HTTP),
	}
}

// Collect resolves every input in order. An input may be a file, a directory
// (non-recursive), a .zip archive, an ftp:// file or directory URL (trailing
// slash), or an http(s):// URL. Documents keep input order; directory and
// archive members are sorted by name.
func (c *Collector) Collect(ctx context.Context, inputs []string) ([]Document, error) {
	var docs []Document
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return docs, eris.Wrap(err, "fetcher: collect cancelled")
		}

		got, err := c.collectOne(ctx, in)
		if err != nil {
			return docs, err
		}
		zap.L().Debug("fetcher: collected input",
			zap.String("input", in),
			zap.Int("documents", len(got)),
		)
		docs = append(docs, got...)
	}
	return docs, nil
}

func (c *Collector) collectOne(ctx context.Context, in string) ([]Document, error) {
	switch {
	case strings.HasPrefix(in, "ftp://"):
		if strings.HasSuffix(in, "/") {
			return c.ftp.List(ctx, in, c.exts)
		}
		return download(ctx, c.ftp, in)
	case strings.HasPrefix(in, "http://"), strings.HasPrefix(in, "https://"):
		return download(ctx, c.http, in)
	}

	info, err := os.Stat(in)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: stat %s", in)
	}
	if info.IsDir() {
		return ReadDir(in, c.exts)
	}
	if strings.EqualFold(filepath.Ext(in), ".zip") {
		return ReadZIP(in, c.exts)
	}
	doc, err := ReadFile(in)
	if err != nil {
		return nil, err
	}
	return []Document{doc}, nil
}

func download(ctx context.Context, d Downloader, rawURL string) ([]Document, error) {
	body, err := d.Download(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read %s", rawURL)
	}
	return []Document{{Name: path.Base(strings.SplitN(rawURL, "?", 2)[0]), Data: data}}, nil
}

// ReadFile loads one local file, named by its base name.
func ReadFile(p string) (Document, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return Document{}, eris.Wrapf(err, "fetcher: read %s", p)
	}
	return Document{Name: filepath.Base(p), Data: data}, nil
}

// ReadDir loads the files directly inside dir whose extension matches exts.
func ReadDir(dir string, exts []string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read dir %s", dir)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && HasExtension(e.Name(), exts) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	docs := make([]Document, 0, len(names))
	for _, n := range names {
		doc, err := ReadFile(filepath.Join(dir, n))
		if err != nil {
			return docs, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// HasExtension reports whether name ends in one of exts, ignoring case.
func HasExtension(name string, exts []string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}
