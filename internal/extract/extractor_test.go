package extract

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

// zipOf returns zip bytes holding the given entries, written in order.
func zipOf(entries ...[2]string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		fw, _ := w.Create(e[0])
		_, _ = fw.Write([]byte(e[1]))
	}
	_ = w.Close()
	return buf.Bytes()
}

func wordXML(text string) string {
	return `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p w:rsidR="00A1"><w:r><w:t xml:space="preserve">` +
		text + `</w:t></w:r></w:p></w:body></w:document>`
}

func slideXML(text string) string {
	return `<p:sld><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
}

func contentTypes(partName string, reversed bool) string {
	const ct = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	override := `<Override PartName="/` + partName + `" ContentType="` + ct + `"/>`
	if reversed {
		override = `<Override ContentType="` + ct + `" PartName="/` + partName + `"/>`
	}
	return `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` + override + `</Types>`
}

func TestExtractBytes(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		ext     string
		want    string
	}{
		{"plain", []byte("Hello world\nLine 2"), ".txt", "Hello world\nLine 2"},
		{"plain utf8", []byte("caf\xc3\xa9"), ".md", "café"},
		{"plain invalid utf8", []byte("hello\x80world"), ".rst", "hello\uFFFDworld"},
		{"plain bom", []byte("\xef\xbb\xbfbom text"), ".txt", "bom text"},
		{"nfc normalized", []byte("cafe\u0301"), ".txt", "caf\u00e9"},
		{"unknown extension", []byte("raw content"), ".xyz", "raw content"},
		{"uppercase extension", zipOf([2]string{"word/document.xml", wordXML("Upper")}), ".DOCX", "Upper"},
		{"docx", zipOf([2]string{"word/document.xml", wordXML("Searchable docx content")}), ".docx", "Searchable docx content"},
		{
			"docx content types",
			zipOf(
				[2]string{"[Content_Types].xml", contentTypes("word/document2.xml", false)},
				[2]string{"word/document2.xml", wordXML("Content from document2")},
			),
			".docx", "Content from document2",
		},
		{
			"docx content types reversed",
			zipOf(
				[2]string{"[Content_Types].xml", contentTypes("word/document3.xml", true)},
				[2]string{"word/document3.xml", wordXML("Reversed order test")},
			),
			".docx", "Reversed order test",
		},
		{
			"pptx slides in number order",
			zipOf(
				[2]string{"ppt/slides/slide10.xml", slideXML("Tenth")},
				[2]string{"ppt/slides/slide2.xml", slideXML("Second")},
				[2]string{"ppt/slides/slide1.xml", slideXML("First")},
			),
			".pptx", "First Second Tenth",
		},
		{
			"pptx without slides",
			zipOf([2]string{"ppt/slides/other.xml", ""}, [2]string{"docProps/core.xml", ""}),
			".pptx", "",
		},
		{
			"odp document order",
			zipOf([2]string{"content.xml", `<office:document><draw:page><text:h>Slide title</text:h><text:p>Body text</text:p></draw:page></office:document>`}),
			".odp", "Slide title Body text",
		},
		{
			"ods cells",
			zipOf([2]string{"content.xml", `<table:table-row><table:table-cell><text:p>Cell A</text:p></table:table-cell><table:table-cell><text:span>Cell B</text:span></table:table-cell></table:table-row>`}),
			".ods", "Cell A Cell B",
		},
	}
	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ExtractBytes(tt.content, tt.ext)
			if err != nil {
				t.Fatalf("ExtractBytes: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractBytes_errors(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		ext     string
	}{
		{"docx not zip", []byte("not a zip"), ".docx"},
		{"docx missing body", zipOf([2]string{"docProps/core.xml", ""}), ".docx"},
		{"pptx not zip", []byte("not a zip"), ".pptx"},
		{"odp content missing", zipOf([2]string{"meta.xml", ""}), ".odp"},
		{"ods not zip", []byte("nope"), ".ods"},
		{"xlsx not zip", []byte("nope"), ".xlsx"},
		{"pdf garbage", []byte("%PDF-garbage"), ".pdf"},
	}
	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.ExtractBytes(tt.content, tt.ext); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestExtractBytes_excel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Title")
	f.SetCellValue("Sheet1", "A2", "Value 1")
	f.SetCellValue("Sheet1", "B2", "Value 2")
	f.SetCellValue("Sheet1", "A4", "After gap")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got, err := NewExtractor().ExtractBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Title\nValue 1\tValue 2\nAfter gap" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_rtf(t *testing.T) {
	content := []byte(`{\rtf1\ansi{\fonttbl\f0\fswiss Helvetica;}\f0\pard Hello RTF world.\par}`)
	got, err := NewExtractor().ExtractBytes(content, ".rtf")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if !strings.Contains(got, "Hello RTF world.") {
		t.Errorf("got %q", got)
	}
}

func TestExtract_files(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "test.txt")
	if err := os.WriteFile(txt, []byte("File content"), 0600); err != nil {
		t.Fatal(err)
	}
	xlsx := filepath.Join(dir, "data.xlsx")
	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "Searchable text")
	if err := f.SaveAs(xlsx); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	f.Close()
	pptx := filepath.Join(dir, "deck.pptx")
	if err := os.WriteFile(pptx, zipOf([2]string{"ppt/slides/slide1.xml", slideXML("Deck text")}), 0600); err != nil {
		t.Fatal(err)
	}

	e := NewExtractor()
	for path, want := range map[string]string{txt: "File content", xlsx: "Searchable text", pptx: "Deck text"} {
		got, err := e.Extract(path)
		if err != nil {
			t.Fatalf("Extract(%s): %v", path, err)
		}
		if got != want {
			t.Errorf("Extract(%s) = %q, want %q", path, got, want)
		}
	}

	if _, err := e.Extract(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestSupported(t *testing.T) {
	for _, ext := range []string{".pdf", ".PDF", ".docx", ".rtf", ".xlsx", ".md"} {
		if !Supported(ext) {
			t.Errorf("Supported(%q) = false", ext)
		}
	}
	for _, ext := range []string{".go", "", ".exe"} {
		if Supported(ext) {
			t.Errorf("Supported(%q) = true", ext)
		}
	}
}
