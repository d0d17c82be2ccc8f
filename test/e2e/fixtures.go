package e2e

import (
	"archive/zip"
	"bytes"
	"html"

	"github.com/xuri/excelize/v2"
)

// FileExtensions are the formats the file-based tests write.
var FileExtensions = []string{".txt", ".md", ".html", ".docx", ".pptx", ".xlsx", ".ods"}

// WriteMinimalFile returns the bytes of a minimal file of type ext holding text.
func WriteMinimalFile(ext, text string) ([]byte, error) {
	switch ext {
	case ".docx":
		return zipOf("word/document.xml", `<w:document><w:body><w:p><w:r><w:t>`+html.EscapeString(text)+`</w:t></w:r></w:p></w:body></w:document>`)
	case ".pptx":
		return zipOf("ppt/slides/slide1.xml", `<p:sld><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>`+html.EscapeString(text)+`</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`)
	case ".ods":
		return zipOf("content.xml", `<office:document><office:body><table:table><table:table-row><table:table-cell><text:p>`+html.EscapeString(text)+`</text:p></table:table-cell></table:table-row></table:table></office:body></office:document>`)
	case ".html":
		return []byte("<html><body><p>" + html.EscapeString(text) + "</p></body></html>"), nil
	case ".xlsx":
		return minimalXlsx(text)
	default:
		return []byte(text), nil
	}
}

func zipOf(name, content string) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create(name)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func minimalXlsx(text string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetCellValue("Sheet1", "A1", text); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
