package app

import (
	"regexp"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// linkTargetRe matches the inline <href> markers the converter emits after
// anchor text.
var linkTargetRe = regexp.MustCompile(`<(https?://[^<>\s]+)>`)

// writeTextPDF renders the converted text as a plain A4 document, one
// paragraph per line, turning link targets into clickable PDF links. Core
// fonts only cover cp1252, so text is translated and anything outside that
// range degrades to the translator's substitute.
func writeTextPDF(text string, outPath string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Helvetica", "", 11)
	pdf.AddPage()

	for _, line := range strings.Split(text, "\r\n") {
		s := strings.TrimSpace(line)
		if s == "" {
			pdf.Ln(5)
			continue
		}
		parts := linkTargetRe.FindAllStringSubmatchIndex(s, -1)
		if len(parts) == 0 {
			pdf.MultiCell(0, 5, tr(s), "", "L", false)
			continue
		}
		pos := 0
		for _, m := range parts {
			// m: [fullStart, fullEnd, urlStart, urlEnd]
			if m[0] > pos {
				pdf.Write(5, tr(s[pos:m[0]]))
			}
			url := s[m[2]:m[3]]
			pdf.WriteLinkString(5, tr("<"+url+">"), url)
			pos = m[1]
		}
		if pos < len(s) {
			pdf.Write(5, tr(s[pos:]))
		}
		pdf.Ln(6)
	}

	return pdf.OutputFileAndClose(outPath)
}
