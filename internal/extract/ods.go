package extract

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

const odsContentPath = "content.xml"

var (
	odsRow     = regexp.MustCompile(`(?s)<table:table-row[^>]*>.*?</table:table-row>`)
	odsCell    = regexp.MustCompile(`(?s)<table:table-cell[^>]*/>|<table:table-cell[^>]*>.*?</table:table-cell>`)
	odsTextP   = regexp.MustCompile(`(?s)<text:p[^>]*>(.*?)</text:p>`)
	xmlElement = regexp.MustCompile(`<[^>]+>`)
)

// extractODS renders an OpenDocument spreadsheet like extractExcel: one
// line per row, cells separated by tabs, empty rows dropped.
func extractODS(content []byte) (string, error) {
	zr, err := openZip(content, "ODS")
	if err != nil {
		return "", err
	}
	contentXML, err := readZipEntry(zr, odsContentPath)
	if err != nil {
		return "", fmt.Errorf("extract ODS: %w", err)
	}
	if contentXML == nil {
		return "", fmt.Errorf("extract ODS: %s not found", odsContentPath)
	}

	var lines []string
	for _, row := range odsRow.FindAllString(string(contentXML), -1) {
		var cells []string
		for _, cell := range odsCell.FindAllString(row, -1) {
			var parts []string
			for _, p := range odsTextP.FindAllStringSubmatch(cell, -1) {
				parts = append(parts, strings.TrimSpace(html.UnescapeString(xmlElement.ReplaceAllString(p[1], ""))))
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		if line := strings.TrimRight(strings.Join(cells, "\t"), "\t"); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}
