// Package selector parses markup documents into a queryable tree and resolves
// ordered lists of candidate paths against it.
package selector

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/text/encoding/htmlindex"
)

// Document is a parsed markup document. Candidate paths are CSS selectors
// matched against element local names, case-insensitively.
type Document struct {
	doc *goquery.Document
}

// Root returns the selection holding the document node.
func (d *Document) Root() *goquery.Selection {
	if d == nil || d.doc == nil {
		return nil
	}
	return d.doc.Selection
}

// Has reports whether any element matches candidate.
func (d *Document) Has(candidate string) bool {
	return Exists(d.Root(), candidate)
}

// ParseBytes parses an in-memory document.
func ParseBytes(data []byte) (*Document, error) {
	return Parse(bytes.NewReader(data))
}

// Parse reads a well-formed XML document. Malformed markup, unsupported
// charsets and documents without a root element are errors.
func Parse(r io.Reader) (*Document, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "selector: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	root := &html.Node{Type: html.DocumentNode}
	current := root
	depth := 0
	sawRoot := false

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "selector: read token")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 && sawRoot {
				return nil, eris.New("selector: multiple root elements")
			}
			sawRoot = true
			el := &html.Node{
				Type: html.ElementNode,
				Data: strings.ToLower(t.Name.Local),
			}
			for _, a := range t.Attr {
				el.Attr = append(el.Attr, html.Attribute{Key: strings.ToLower(a.Name.Local), Val: a.Value})
			}
			current.AppendChild(el)
			current = el
			depth++
		case xml.EndElement:
			current = current.Parent
			depth--
		case xml.CharData:
			if depth == 0 {
				continue
			}
			current.AppendChild(&html.Node{Type: html.TextNode, Data: string(t)})
		}
	}

	if !sawRoot {
		return nil, eris.New("selector: document has no root element")
	}

	return &Document{doc: goquery.NewDocumentFromNode(root)}, nil
}
