package extract

import (
	"context"
	"strings"
)

// OCR recognizes the text in a raster image file.
type OCR interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// Tesseract runs the tesseract CLI, writing the text to stdout.
type Tesseract struct {
	Binary   string
	Language string
	Runner   CommandRunner
}

// Recognize implements OCR.
func (t Tesseract) Recognize(ctx context.Context, imagePath string) (string, error) {
	bin := t.Binary
	if bin == "" {
		bin = "tesseract"
	}
	args := []string{imagePath, "stdout"}
	if t.Language != "" {
		args = append(args, "-l", t.Language)
	}

	runner := t.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	out, err := runner.Run(ctx, bin, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
