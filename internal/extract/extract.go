// Package extract turns document files into plain text for indexing.
//
// A reader is picked from the file extension alone. Extraction never fails
// from the caller's point of view: a reader error is logged and yields
// empty text, so a damaged upload is still indexed by title, path and tags.
package extract

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// Config holds Extractor settings.
type Config struct {
	// OCRLanguage is the tesseract language code.
	OCRLanguage string
	// PDFToText, PDFToPPM and Tesseract name the external binaries.
	PDFToText string
	PDFToPPM  string
	Tesseract string
	// DPI is the rasterization resolution for scanned PDF pages.
	DPI int
	// PreviewDir receives <folder>/<file>.png previews.
	PreviewDir string
}

// DefaultConfig returns the poppler + tesseract defaults.
func DefaultConfig() Config {
	return Config{
		OCRLanguage: "fra",
		PDFToText:   "pdftotext",
		PDFToPPM:    "pdftoppm",
		Tesseract:   "tesseract",
		DPI:         300,
	}
}

// Reader extracts the text of one file format.
type Reader interface {
	Read(ctx context.Context, path string) (string, error)
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc func(ctx context.Context, path string) (string, error)

// Read implements Reader.
func (f ReaderFunc) Read(ctx context.Context, path string) (string, error) { return f(ctx, path) }

// noopReader is used for unsupported extensions.
var noopReader = ReaderFunc(func(context.Context, string) (string, error) { return "", nil })

// Extractor dispatches files to format readers.
type Extractor struct {
	cfg     Config
	runner  CommandRunner
	ocr     OCR
	readers map[string]Reader
	logger  *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithRunner replaces the command runner used for poppler tools.
func WithRunner(r CommandRunner) Option {
	return func(e *Extractor) { e.runner = r }
}

// WithOCR replaces the OCR engine.
func WithOCR(o OCR) Option {
	return func(e *Extractor) { e.ocr = o }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Extractor.
func New(cfg Config, opts ...Option) *Extractor {
	def := DefaultConfig()
	if cfg.PDFToText == "" {
		cfg.PDFToText = def.PDFToText
	}
	if cfg.PDFToPPM == "" {
		cfg.PDFToPPM = def.PDFToPPM
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = def.Tesseract
	}
	if cfg.DPI <= 0 {
		cfg.DPI = def.DPI
	}

	e := &Extractor{
		cfg:    cfg,
		runner: ExecRunner{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ocr == nil {
		e.ocr = Tesseract{Binary: cfg.Tesseract, Language: cfg.OCRLanguage, Runner: e.runner}
	}

	pdf := &pdfReader{cfg: cfg, runner: e.runner, ocr: e.ocr}
	image := ReaderFunc(func(ctx context.Context, path string) (string, error) {
		return e.ocr.Recognize(ctx, path)
	})
	e.readers = map[string]Reader{
		"csv":  ReaderFunc(readCSV),
		"xlsx": ReaderFunc(readXLSX),
		"xls":  ReaderFunc(readXLS),
		"docx": ReaderFunc(readDOCX),
		"odt":  ReaderFunc(readODT),
		"pptx": ReaderFunc(readPPTX),
		"html": ReaderFunc(readMarkup),
		"htm":  ReaderFunc(readMarkup),
		"xml":  ReaderFunc(readMarkup),
		"txt":  ReaderFunc(readPlainText),
		"pdf":  pdf,
		"jpg":  image,
		"jpeg": image,
		"png":  image,
		"tiff": image,
		"tif":  image,
	}
	return e
}

// NormalizeExtension lowercases ext and drops a leading dot.
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// ReaderFor returns the reader for ext, or a reader that yields "" when the
// extension is unsupported.
func (e *Extractor) ReaderFor(ext string) Reader {
	if r, ok := e.readers[NormalizeExtension(ext)]; ok {
		return r
	}
	return noopReader
}

// Supports reports whether ext has a dedicated reader.
func (e *Extractor) Supports(ext string) bool {
	_, ok := e.readers[NormalizeExtension(ext)]
	return ok
}

// Formats lists the supported extensions, sorted.
func (e *Extractor) Formats() []string {
	out := make([]string, 0, len(e.readers))
	for ext := range e.readers {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extract returns the text of the file at path, read as format ext.
// Errors are logged and produce "".
func (e *Extractor) Extract(ctx context.Context, path, ext string) string {
	ext = NormalizeExtension(ext)
	text, err := e.ReaderFor(ext).Read(ctx, path)
	if err != nil {
		e.logger.Warn("extract_failed",
			slog.String("path", path),
			slog.String("extension", ext),
			slog.String("error", err.Error()))
		return ""
	}

	text = strings.ToValidUTF8(text, "�")
	e.logger.Debug("extract_completed",
		slog.String("path", path),
		slog.String("extension", ext),
		slog.Int("chars", len(text)))
	return text
}

// isEmptyFile reports whether path is a zero-byte file.
func isEmptyFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.Size() == 0, nil
}
