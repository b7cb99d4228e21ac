package extract

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/tiff" // register decoder
)

// PreviewPath returns where the preview of fileID in folderID is stored.
func (e *Extractor) PreviewPath(folderID, fileID string) string {
	return filepath.Join(e.cfg.PreviewDir, folderID, fileID+".png")
}

// Screenshot writes a PNG preview: the first page of a PDF, or a PNG copy
// of a raster image. Other formats are skipped. Callers treat failures as
// non-fatal.
func (e *Extractor) Screenshot(ctx context.Context, path, ext, folderID, fileID string) error {
	if e.cfg.PreviewDir == "" {
		return nil
	}
	if strings.ContainsAny(folderID+fileID, `/\`) || folderID == ".." || fileID == ".." {
		return fmt.Errorf("invalid preview id %q/%q", folderID, fileID)
	}

	var err error
	switch NormalizeExtension(ext) {
	case "pdf":
		err = e.pdfPreview(ctx, path, folderID, fileID)
	case "jpg", "jpeg", "png", "tiff", "tif":
		err = e.imagePreview(path, folderID, fileID)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("preview %s: %w", filepath.Base(path), err)
	}

	e.logger.Debug("preview_written",
		slog.String("path", path),
		slog.String("preview", e.PreviewPath(folderID, fileID)))
	return nil
}

func (e *Extractor) pdfPreview(ctx context.Context, path, folderID, fileID string) error {
	dest := e.PreviewPath(folderID, fileID)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	// -singlefile writes exactly <prefix>.png
	prefix := strings.TrimSuffix(dest, ".png")
	_, err := e.runner.Run(ctx, e.cfg.PDFToPPM, "-png", "-f", "1", "-l", "1", "-singlefile", path, prefix)
	return err
}

func (e *Extractor) imagePreview(path, folderID, fileID string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	img, _, err := image.Decode(src)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	dest := e.PreviewPath(folderID, fileID)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".preview-*.png")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
