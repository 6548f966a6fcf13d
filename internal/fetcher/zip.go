package fetcher

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// maxZIPEntrySize caps a single decompressed archive member.
const maxZIPEntrySize = 64 << 20

// ReadZIP loads the members of the archive at zipPath whose extension matches exts.
func ReadZIP(zipPath string, exts []string) ([]Document, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	return readZIP(&r.Reader, exts)
}

// ReadZIPBytes loads matching members from an in-memory archive.
func ReadZIPBytes(data []byte, exts []string) ([]Document, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	return readZIP(r, exts)
}

func readZIP(r *zip.Reader, exts []string) ([]Document, error) {
	files := make([]*zip.File, 0, len(r.File))
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !HasExtension(f.Name, exts) {
			continue
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	docs := make([]Document, 0, len(files))
	for _, f := range files {
		doc, err := readZIPEntry(f)
		if err != nil {
			return docs, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// readZIPEntry reads one member. Names escaping the archive root are
// rejected (zip slip).
func readZIPEntry(f *zip.File) (Document, error) {
	if !safeEntryName(f.Name) {
		return Document{}, eris.Errorf("zip: illegal path %q (zip slip attempt)", f.Name)
	}

	rc, err := f.Open()
	if err != nil {
		return Document{}, eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(rc, maxZIPEntrySize+1))
	if err != nil {
		return Document{}, eris.Wrapf(err, "zip: read entry %s", f.Name)
	}
	if len(data) > maxZIPEntrySize {
		return Document{}, eris.Errorf("zip: entry %s exceeds %d bytes", f.Name, maxZIPEntrySize)
	}
	return Document{Name: path.Base(f.Name), Data: data}, nil
}

func safeEntryName(name string) bool {
	name = strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(name, "/") {
		return false
	}
	clean := path.Clean(name)
	return clean != ".." && !strings.HasPrefix(clean, "../")
}
