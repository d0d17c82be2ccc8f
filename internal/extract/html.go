package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockAtoms end a line of text. EDGAR filings lay out tables with
// <tr>/<td>, so cells are tab-separated and rows end a line.
var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Tr: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Table: true, atom.Section: true, atom.Article: true, atom.Hr: true,
}

// extractHTML returns the visible text of an HTML document. Script, style
// and head content is skipped and inline XBRL tags are treated as text.
func extractHTML(content []byte) (string, error) {
	z := html.NewTokenizer(bytes.NewReader(content))
	var (
		b    strings.Builder
		skip int
	)
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return "", fmt.Errorf("parse HTML: %w", err)
			}
			return collapseLines(b.String()), nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			switch {
			case a == atom.Script || a == atom.Style || a == atom.Head:
				if tt == html.StartTagToken {
					skip++
				}
			case a == atom.Td || a == atom.Th:
				b.WriteByte('\t')
			case blockAtoms[a]:
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			switch {
			case a == atom.Script || a == atom.Style || a == atom.Head:
				if skip > 0 {
					skip--
				}
			case blockAtoms[a]:
				b.WriteByte('\n')
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

// collapseLines normalizes whitespace inside each line, trims tabs at the
// edges and drops runs of empty lines down to one paragraph break.
func collapseLines(s string) string {
	var out []string
	blank := false
	for _, line := range strings.Split(s, "\n") {
		cells := strings.Split(line, "\t")
		kept := cells[:0]
		for _, c := range cells {
			if c = strings.Join(strings.Fields(c), " "); c != "" {
				kept = append(kept, c)
			}
		}
		if len(kept) == 0 {
			if len(out) > 0 && !blank {
				out = append(out, "")
				blank = true
			}
			continue
		}
		out = append(out, strings.Join(kept, "\t"))
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
