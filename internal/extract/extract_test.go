package extract

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	mu    sync.Mutex
	calls [][]string
	// handle answers a call; nil returns empty output.
	handle func(name string, args []string) ([]byte, error)
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]string{name}, args...))
	m.mu.Unlock()
	if m.handle == nil {
		return nil, nil
	}
	return m.handle(name, args)
}

func (m *mockRunner) called(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c[0] == name {
			n++
		}
	}
	return n
}

// spyOCR records every recognized image.
type spyOCR struct {
	mu     sync.Mutex
	images []string
}

func (s *spyOCR) Recognize(_ context.Context, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = append(s.images, filepath.Base(path))
	return "text of " + filepath.Base(path), nil
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0644))
	return p
}

func writeZip(t *testing.T, dir, name string, members map[string]string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for member, body := range members {
		w, err := zw.Create(member)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return p
}

func TestReaderFor_UnknownExtensionYieldsEmpty(t *testing.T) {
	e := New(DefaultConfig(), WithRunner(&mockRunner{}), WithOCR(&spyOCR{}))

	assert.False(t, e.Supports("exe"))
	assert.Equal(t, "", e.Extract(context.Background(), "/nonexistent/file.exe", "exe"))
}

func TestFormats_ListsEverySupportedExtension(t *testing.T) {
	e := New(DefaultConfig())
	assert.Equal(t, []string{
		"csv", "docx", "htm", "html", "jpeg", "jpg", "odt", "pdf",
		"png", "pptx", "tif", "tiff", "txt", "xls", "xlsx", "xml",
	}, e.Formats())
}

func TestNormalizeExtension(t *testing.T) {
	assert.Equal(t, "pdf", NormalizeExtension(".PDF"))
	assert.Equal(t, "docx", NormalizeExtension(" docx "))
	assert.True(t, New(DefaultConfig()).Supports(".JPG"))
}

func TestExtract_CSV(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "data.csv", []byte("nom,service\nDupont,RH\n,\nMartin,\"Finances, budget\"\n"))

	got := New(DefaultConfig()).Extract(context.Background(), p, "csv")
	assert.Equal(t, "nom service\nDupont RH\nMartin Finances, budget", got)
}

func TestExtract_EmptyTablesYieldEmptyText(t *testing.T) {
	dir := t.TempDir()
	e := New(DefaultConfig())

	for _, ext := range []string{"csv", "xlsx", "xls"} {
		p := writeFile(t, dir, "empty."+ext, nil)
		assert.Equal(t, "", e.Extract(context.Background(), p, ext), ext)
	}
}

func TestExtract_XLSX(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "budget.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Poste"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "Montant"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "Voirie"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 1200))
	_, err := f.NewSheet("Annexe")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Annexe", "A1", "Notes"))
	require.NoError(t, f.SaveAs(p))
	require.NoError(t, f.Close())

	got := New(DefaultConfig()).Extract(context.Background(), p, "xlsx")
	assert.Equal(t, "Poste Montant\nVoirie 1200\nNotes", got)
}

func TestExtract_CorruptFileDegradesToEmpty(t *testing.T) {
	dir := t.TempDir()
	e := New(DefaultConfig())

	for _, ext := range []string{"xlsx", "xls", "docx", "odt", "pptx"} {
		p := writeFile(t, dir, "broken."+ext, []byte("not an office file"))
		assert.Equal(t, "", e.Extract(context.Background(), p, ext), ext)
	}
	assert.Equal(t, "", e.Extract(context.Background(), filepath.Join(dir, "missing.txt"), "txt"))
}

func TestExtract_DOCX(t *testing.T) {
	p := writeZip(t, t.TempDir(), "note.docx", map[string]string{
		"word/document.xml": `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:pPr><w:pStyle w:val="Titre"/></w:pPr><w:r><w:t>Note de </w:t></w:r><w:r><w:t>service</w:t></w:r></w:p>
<w:p><w:r><w:t>Réunion</w:t><w:tab/><w:t>lundi</w:t></w:r></w:p>
<w:p></w:p>
</w:body>
</w:document>`,
	})

	got := New(DefaultConfig()).Extract(context.Background(), p, "docx")
	assert.Equal(t, "Note de service\nRéunion\tlundi", got)
}

func TestExtract_ODT(t *testing.T) {
	p := writeZip(t, t.TempDir(), "cr.odt", map[string]string{
		"content.xml": `<?xml version="1.0"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0">
<office:body><office:text>
<text:h>Compte rendu</text:h>
<text:p>Présents<text:s/>: <text:span>Jean</text:span></text:p>
</office:text></office:body>
</office:document-content>`,
	})

	got := New(DefaultConfig()).Extract(context.Background(), p, "odt")
	assert.Equal(t, "Compte rendu\nPrésents : Jean", got)
}

func TestExtract_PPTX_SlideOrder(t *testing.T) {
	slide := func(text string) string {
		return `<p:sld xmlns:p="p" xmlns:a="a"><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` +
			text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
	}
	p := writeZip(t, t.TempDir(), "deck.pptx", map[string]string{
		"ppt/slides/slide10.xml":            slide("dix"),
		"ppt/slides/slide2.xml":             slide("deux"),
		"ppt/slides/slide1.xml":             slide("un"),
		"ppt/slides/_rels/slide1.xml.rels":  "<Relationships/>",
		"ppt/slideLayouts/slideLayout1.xml": slide("layout"),
	})

	got := New(DefaultConfig()).Extract(context.Background(), p, "pptx")
	assert.Equal(t, "un\ndeux\ndix", got)
}

func TestExtract_MarkupIsPassedThrough(t *testing.T) {
	p := writeFile(t, t.TempDir(), "page.html", []byte("<p>Bonjour</p>"))
	assert.Equal(t, "<p>Bonjour</p>", New(DefaultConfig()).Extract(context.Background(), p, "html"))
}

func TestExtract_PlainTextDetectsEncoding(t *testing.T) {
	dir := t.TempDir()

	utf := writeFile(t, dir, "utf8.txt", []byte("\xEF\xBB\xBFÉté à la mairie"))
	assert.Equal(t, "Été à la mairie", New(DefaultConfig()).Extract(context.Background(), utf, "txt"))

	// Latin-1 encoded French prose
	latin := []byte("Le caf\xe9 de la gare est ferm\xe9 pendant les cong\xe9s. " +
		"Le conseil municipal a vot\xe9 le budget. La s\xe9ance est lev\xe9e et le proc\xe8s-verbal sera publi\xe9.")
	p := writeFile(t, dir, "latin1.txt", latin)

	got := New(DefaultConfig()).Extract(context.Background(), p, "txt")
	assert.Contains(t, got, "café")
	assert.Contains(t, got, "fermé")
}

func TestExtract_PDFTextLayerSkipsOCR(t *testing.T) {
	runner := &mockRunner{handle: func(name string, _ []string) ([]byte, error) {
		if name == "pdftotext" {
			return []byte("Arrêté municipal\f"), nil
		}
		return nil, errors.New("unexpected")
	}}
	ocr := &spyOCR{}
	e := New(DefaultConfig(), WithRunner(runner), WithOCR(ocr))

	got := e.Extract(context.Background(), "/docs/arrete.pdf", "pdf")

	assert.Equal(t, "Arrêté municipal", got)
	assert.Empty(t, ocr.images)
	assert.Equal(t, 0, runner.called("pdftoppm"))
}

func TestExtract_PDFWithoutTextFallsBackToOCR(t *testing.T) {
	// Given: a PDF whose text layer is blank and which renders three pages
	runner := &mockRunner{handle: func(name string, args []string) ([]byte, error) {
		switch name {
		case "pdftotext":
			return []byte(" \f\n\f "), nil
		case "pdftoppm":
			prefix := args[len(args)-1]
			for _, n := range []string{"10", "02", "01"} {
				if err := os.WriteFile(prefix+"-"+n+".png", []byte("png"), 0644); err != nil {
					return nil, err
				}
			}
			return nil, nil
		}
		return nil, errors.New("unexpected " + name)
	}}
	ocr := &spyOCR{}
	e := New(DefaultConfig(), WithRunner(runner), WithOCR(ocr))

	// When: extracting
	got := e.Extract(context.Background(), "/docs/scan.pdf", "pdf")

	// Then: every page is recognized in page order
	assert.Equal(t, []string{"page-01.png", "page-02.png", "page-10.png"}, ocr.images)
	assert.Equal(t, "text of page-01.png\ntext of page-02.png\ntext of page-10.png", got)

	// And: pages were rendered at the configured resolution
	require.Equal(t, 1, runner.called("pdftoppm"))
	assert.Contains(t, strings.Join(runner.calls[1], " "), "-r 300 -png /docs/scan.pdf")
}

func TestExtract_PDFToolFailureDegrades(t *testing.T) {
	runner := &mockRunner{handle: func(string, []string) ([]byte, error) {
		return nil, errors.New("pdftotext failed: exit status 1")
	}}
	e := New(DefaultConfig(), WithRunner(runner), WithOCR(&spyOCR{}))

	assert.Equal(t, "", e.Extract(context.Background(), "/docs/bad.pdf", "pdf"))
}

func TestExtract_ImagesGoThroughOCR(t *testing.T) {
	ocr := &spyOCR{}
	e := New(DefaultConfig(), WithRunner(&mockRunner{}), WithOCR(ocr))

	for _, ext := range []string{"jpg", "JPEG", "png", "tiff", "tif"} {
		got := e.Extract(context.Background(), "/scans/page."+ext, ext)
		assert.Equal(t, "text of page."+ext, got)
	}
	assert.Len(t, ocr.images, 5)
}

func TestTesseract_Recognize(t *testing.T) {
	runner := &mockRunner{handle: func(string, []string) ([]byte, error) {
		return []byte("  Bonjour\n\n"), nil
	}}
	tess := Tesseract{Binary: "tesseract", Language: "fra", Runner: runner}

	got, err := tess.Recognize(context.Background(), "/tmp/p.png")
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", got)
	assert.Equal(t, []string{"tesseract", "/tmp/p.png", "stdout", "-l", "fra"}, runner.calls[0])
}

func TestDefaultOCRUsesConfiguredLanguage(t *testing.T) {
	runner := &mockRunner{}
	cfg := DefaultConfig()
	cfg.OCRLanguage = "eng"
	e := New(cfg, WithRunner(runner))

	e.Extract(context.Background(), "/scans/a.png", "png")

	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"tesseract", "/scans/a.png", "stdout", "-l", "eng"}, runner.calls[0])
}

func TestIsBlank(t *testing.T) {
	assert.True(t, isBlank(""))
	assert.True(t, isBlank(" \n\t\f\x00"))
	assert.False(t, isBlank("\f a"))
}
