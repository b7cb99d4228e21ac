package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// pdfReader reads the text layer with pdftotext and falls back to OCR of
// every rendered page when the layer is blank.
type pdfReader struct {
	cfg    Config
	runner CommandRunner
	ocr    OCR
}

// Read implements Reader.
func (r *pdfReader) Read(ctx context.Context, path string) (string, error) {
	out, err := r.runner.Run(ctx, r.cfg.PDFToText, "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", err
	}

	text := string(out)
	if !isBlank(text) {
		return strings.TrimSpace(text), nil
	}
	return r.ocrPages(ctx, path)
}

// ocrPages rasterizes path into a scratch directory and recognizes each
// page in order.
func (r *pdfReader) ocrPages(ctx context.Context, path string) (string, error) {
	tmp, err := os.MkdirTemp("", "docsearch-ocr-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmp)

	prefix := filepath.Join(tmp, "page")
	_, err = r.runner.Run(ctx, r.cfg.PDFToPPM, "-r", strconv.Itoa(r.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", err
	}

	pages, err := renderedPages(tmp)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(pages))
	for _, page := range pages {
		text, err := r.ocr.Recognize(ctx, page)
		if err != nil {
			return "", fmt.Errorf("ocr %s: %w", filepath.Base(page), err)
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

// renderedPages lists pdftoppm output files ordered by page number.
// pdftoppm zero-pads the number to the page count width, so the order
// is numeric, not lexical.
func renderedPages(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, err
	}
	pageNum := func(p string) int {
		base := strings.TrimSuffix(filepath.Base(p), ".png")
		n, _ := strconv.Atoi(base[strings.LastIndex(base, "-")+1:])
		return n
	}
	sort.Slice(matches, func(i, j int) bool { return pageNum(matches[i]) < pageNum(matches[j]) })
	return matches, nil
}

// isBlank reports whether s holds no visible characters.
func isBlank(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) && unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
