package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/lu4p/cat"
)

const (
	contentTypesPath    = "[Content_Types].xml"
	docxDefaultPath     = "word/document.xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	pptxSlidePrefix     = "ppt/slides/slide"
	openDocumentContent = "content.xml"
)

var (
	// wordText matches <w:t>text</w:t> with any attributes.
	wordText = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	// drawingText matches <a:t>text</a:t> runs in slides.
	drawingText = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)
	// odfText matches leaf text:p, text:span and text:h elements in document order.
	odfText = regexp.MustCompile(`<text:(?:p|span|h)[^>]*>([^<]*)</text:(?:p|span|h)>`)

	// mainPartRe finds the main document part in either attribute order.
	mainPartRe = []*regexp.Regexp{
		regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`),
		regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`),
	}
	slideNumber = regexp.MustCompile(`slide(\d+)\.xml$`)
)

func openZip(content []byte, format string) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", format, err)
	}
	return zr, nil
}

// readEntry returns the bytes of the named zip entry, or nil when it does not exist.
func readEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		return data, nil
	}
	return nil, nil
}

// appendMatches appends the first capture group of every match in xml to b, space separated.
func appendMatches(b *strings.Builder, re *regexp.Regexp, xml []byte) {
	for _, m := range re.FindAllSubmatch(xml, -1) {
		part := strings.TrimSpace(string(m[1]))
		if part == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(part)
	}
}

// extractDOCX collects every <w:t> run from the main document part. The part is located
// through [Content_Types].xml, falling back to word/document.xml.
func extractDOCX(content []byte) (string, error) {
	zr, err := openZip(content, "DOCX")
	if err != nil {
		return "", err
	}
	docPath := docxDefaultPath
	if types, err := readEntry(zr, contentTypesPath); err == nil && types != nil {
		for _, re := range mainPartRe {
			if m := re.FindSubmatch(types); len(m) > 1 {
				docPath = strings.TrimPrefix(string(m[1]), "/")
				break
			}
		}
	}
	docXML, err := readEntry(zr, docPath)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	if docXML == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", docPath)
	}
	var b strings.Builder
	appendMatches(&b, wordText, docXML)
	return b.String(), nil
}

// extractPPTX collects <a:t> runs from every slide, in slide number order.
func extractPPTX(content []byte) (string, error) {
	zr, err := openZip(content, "PPTX")
	if err != nil {
		return "", err
	}
	type slide struct {
		n    int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, pptxSlidePrefix) {
			continue
		}
		m := slideNumber.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{n: n, name: f.Name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var b strings.Builder
	for _, s := range slides {
		xml, err := readEntry(zr, s.name)
		if err != nil {
			return "", fmt.Errorf("extract PPTX: %w", err)
		}
		appendMatches(&b, drawingText, xml)
	}
	return b.String(), nil
}

// extractOpenDocument collects paragraph, span and heading text from content.xml of an ODP
// or ODS package.
func extractOpenDocument(content []byte) (string, error) {
	zr, err := openZip(content, "OpenDocument")
	if err != nil {
		return "", err
	}
	xml, err := readEntry(zr, openDocumentContent)
	if err != nil {
		return "", fmt.Errorf("extract OpenDocument: %w", err)
	}
	if xml == nil {
		return "", fmt.Errorf("extract OpenDocument: %s not found", openDocumentContent)
	}
	var b strings.Builder
	appendMatches(&b, odfText, xml)
	return b.String(), nil
}

// extractWithCat handles ODT and RTF, detecting the format from content.
func extractWithCat(content []byte) (string, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return "", fmt.Errorf("extract document: %w", err)
	}
	return strings.TrimSpace(text), nil
}
