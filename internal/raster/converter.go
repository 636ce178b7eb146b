package raster

import (
	"context"
	"fmt"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gen2brain/go-fitz"
)

// PageImage describes one rasterized PDF page.
type PageImage struct {
	PageNumber int // 1-based
	ImagePath  string
	Width      int
	Height     int
}

// Converter renders PDF pages to JPEG files.
type Converter struct {
	quality int
	logger  *slog.Logger
}

func NewConverter(quality int, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	return &Converter{quality: quality, logger: logger}
}

// Convert renders every page of pdfPath as page_N.jpg under outDir
// (created if missing). Page numbering starts at 1.
func (c *Converter) Convert(ctx context.Context, pdfPath, outDir string) ([]PageImage, error) {
	start := time.Now()

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer func() {
		if err := doc.Close(); err != nil {
			c.logger.Warn("raster.close_error", "path", pdfPath, "error", err)
		}
	}()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, fmt.Errorf("pdf has no pages: %s", pdfPath)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	c.logger.Info("raster.start", "path", pdfPath, "pages", pageCount, "out_dir", outDir)

	pages := make([]PageImage, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		img, err := doc.Image(i)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i+1, err)
		}

		outPath := filepath.Join(outDir, fmt.Sprintf("page_%d.jpg", i+1))
		f, err := os.Create(outPath)
		if err != nil {
			return nil, fmt.Errorf("create page image %d: %w", i+1, err)
		}
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: c.quality})
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, fmt.Errorf("encode page %d: %w", i+1, err)
		}

		bounds := img.Bounds()
		pages = append(pages, PageImage{
			PageNumber: i + 1,
			ImagePath:  outPath,
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
		})
	}

	c.logger.Info("raster.done",
		"path", pdfPath,
		"pages", len(pages),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return pages, nil
}
