// Copyright 2026 Phillip Cloud
// Licensed under the Apache License, Version 2.0

package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// TextExtractor pulls the native text layer from a PDF. Implementations
// shell out to poppler-utils (pdfinfo, pdftotext).
type TextExtractor interface {
	PageCount(ctx context.Context, pdfPath string) (int, error)
	ExtractPage(ctx context.Context, pdfPath string, pageIndex0 int) (string, error)
}

// Rasterizer renders a single PDF page to a grayscale raster at the given
// DPI. This is the single typed contract standing in for the several
// duck-typed renderer call shapes the original source tried at runtime.
type Rasterizer interface {
	RenderPage(ctx context.Context, pdfPath string, pageIndex0 int, dpi int, grayscale bool) (Image, error)
}

// OcrEngine runs OCR on a rendered page image.
type OcrEngine interface {
	OCRImage(ctx context.Context, img Image, psm int, oem int) (string, error)
}

// LegacyDocConverter extracts text from legacy .doc files and, as a
// second-chance fallback, converts DOC/DOCX to PDF via a headless office
// suite so the PDF text-layer pass can take over.
type LegacyDocConverter interface {
	ExtractDocText(ctx context.Context, docPath string) (string, error)
	ConvertToPDF(ctx context.Context, docPath string, workDir string) (string, error)
}

// PortfolioDetacher lists and extracts embedded attachments from a PDF
// portfolio.
type PortfolioDetacher interface {
	ListAttachments(ctx context.Context, pdfPath string) (int, error)
	ExtractAll(ctx context.Context, pdfPath string, outDir string) error
}

// ExecTextExtractor shells out to pdfinfo and pdftotext.
type ExecTextExtractor struct{}

// PageCount reads the "Pages:" line from pdfinfo's output.
func (ExecTextExtractor) PageCount(ctx context.Context, pdfPath string) (int, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "pdfinfo", pdfPath) //nolint:gosec // args constructed internally
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("pdfinfo: %s: %w", strings.TrimSpace(stderr.String()), err)
	}
	for _, line := range strings.Split(stdout.String(), "\n") {
		if rest, ok := strings.CutPrefix(line, "Pages:"); ok {
			n, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil {
				return 0, fmt.Errorf("parse page count: %w", err)
			}
			return n, nil
		}
	}
	return 0, fmt.Errorf("pdfinfo: no Pages: line in output")
}

// ExtractPage runs pdftotext -layout -f N -l N, normalizing CRLF to LF.
func (ExecTextExtractor) ExtractPage(ctx context.Context, pdfPath string, pageIndex0 int) (string, error) {
	page := strconv.Itoa(pageIndex0 + 1)
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext( //nolint:gosec // args constructed internally
		ctx,
		"pdftotext", "-layout", "-f", page, "-l", page, pdfPath, "-",
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext: %s: %w", strings.TrimSpace(stderr.String()), err)
	}
	text := stdout.String()
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return text, nil
}

// ExecRasterizer shells out to pdftoppm to render a single PDF page to PNG.
type ExecRasterizer struct{}

// RenderPage calls pdftoppm -png -f N -l N -r DPI [-gray] and decodes the
// single resulting page image.
func (ExecRasterizer) RenderPage(ctx context.Context, pdfPath string, pageIndex0 int, dpi int, grayscale bool) (Image, error) {
	tmpDir, err := os.MkdirTemp("", "docextract-raster-*")
	if err != nil {
		return Image{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir) //nolint:errcheck // best-effort cleanup

	page := strconv.Itoa(pageIndex0 + 1)
	outPrefix := filepath.Join(tmpDir, "page")
	args := []string{
		"-png",
		"-f", page,
		"-l", page,
		"-r", strconv.Itoa(dpi),
	}
	if grayscale {
		args = append(args, "-gray")
	}
	args = append(args, pdfPath, outPrefix)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "pdftoppm", args...) //nolint:gosec // args constructed internally
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Image{}, fmt.Errorf("pdftoppm: %s: %w", strings.TrimSpace(stderr.String()), err)
	}

	matches, err := filepath.Glob(outPrefix + "*.png")
	if err != nil {
		return Image{}, fmt.Errorf("glob rendered page: %w", err)
	}
	if len(matches) == 0 {
		return Image{}, fmt.Errorf("pdftoppm produced no output for page %d", pageIndex0+1)
	}

	data, err := os.ReadFile(matches[0]) //nolint:gosec // path from our own glob
	if err != nil {
		return Image{}, fmt.Errorf("read rendered page: %w", err)
	}
	return decodePNGGray(data)
}

// ExecOcrEngine shells out to tesseract.
type ExecOcrEngine struct{}

// OCRImage encodes img to a temp PNG and runs tesseract against it.
func (ExecOcrEngine) OCRImage(ctx context.Context, img Image, psm int, oem int) (string, error) {
	png, err := img.EncodePNG()
	if err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "docextract-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir) //nolint:errcheck // best-effort cleanup

	imgPath := filepath.Join(tmpDir, "page.png")
	if err := os.WriteFile(imgPath, png, 0o600); err != nil {
		return "", fmt.Errorf("write temp image: %w", err)
	}

	return ocrFile(ctx, imgPath, psm, oem)
}

// OCRImageFile runs tesseract directly against an image file already on
// disk. The cascades in this module do not call it; they OCR in-memory
// images through OcrEngine.
func OCRImageFile(ctx context.Context, imgPath string, psm int, oem int) (string, error) {
	return ocrFile(ctx, imgPath, psm, oem)
}

func ocrFile(ctx context.Context, imgPath string, psm int, oem int) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext( //nolint:gosec // args constructed internally
		ctx,
		"tesseract", imgPath, "stdout",
		"-l", "eng",
		"--oem", strconv.Itoa(oem),
		"--psm", strconv.Itoa(psm),
		"-c", "tessedit_do_invert=1",
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %s: %w", strings.TrimSpace(stderr.String()), err)
	}
	return stdout.String(), nil
}

// ExecLegacyDocConverter shells out to antiword/catdoc for .doc extraction
// and libreoffice/unoconv for the DOC/DOCX-to-PDF fallback.
type ExecLegacyDocConverter struct{}

// ExtractDocText tries antiword first, then catdoc.
func (ExecLegacyDocConverter) ExtractDocText(ctx context.Context, docPath string) (string, error) {
	if text, err := runCapture(ctx, "antiword", docPath); err == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}
	if text, err := runCapture(ctx, "catdoc", docPath); err == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}
	return "", fmt.Errorf("neither antiword nor catdoc produced text for %s", docPath)
}

// ConvertToPDF converts a DOC/DOCX file to PDF via libreoffice (preferred)
// or unoconv, writing the output under workDir with a unique name.
func (ExecLegacyDocConverter) ConvertToPDF(ctx context.Context, docPath string, workDir string) (string, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	outPath := filepath.Join(workDir, fmt.Sprintf("fallback_%s.pdf", uuid.NewString()))

	if tools := HasLibreOffice(); tools {
		cmd := exec.CommandContext( //nolint:gosec // args constructed internally
			ctx,
			"libreoffice", "--headless", "--convert-to", "pdf", "--outdir", workDir, docPath,
		)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err == nil {
			guessed := filepath.Join(workDir, strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath))+".pdf")
			if _, statErr := os.Stat(guessed); statErr == nil {
				if err := os.Rename(guessed, outPath); err == nil {
					return outPath, nil
				}
			}
		}
	}

	if HasUnoconv() {
		cmd := exec.CommandContext(ctx, "unoconv", "-f", "pdf", "-o", outPath, docPath) //nolint:gosec // args constructed internally
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err == nil {
			if _, statErr := os.Stat(outPath); statErr == nil {
				return outPath, nil
			}
		}
	}

	return "", fmt.Errorf("DOC->PDF conversion failed: libreoffice/unoconv unavailable or erred")
}

func runCapture(ctx context.Context, name string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // args constructed internally
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %s: %w", name, strings.TrimSpace(stderr.String()), err)
	}
	return stdout.String(), nil
}

// ExecPortfolioDetacher shells out to pdfdetach.
type ExecPortfolioDetacher struct{}

// ListAttachments counts the numbered lines pdfdetach -list prints, one
// per embedded attachment.
func (ExecPortfolioDetacher) ListAttachments(ctx context.Context, pdfPath string) (int, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "pdfdetach", "-list", pdfPath) //nolint:gosec // args constructed internally
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		// pdfdetach exits non-zero for PDFs with no embedded files on some
		// poppler builds; treat that as zero attachments, not an error.
		return 0, nil
	}
	count := 0
	for _, line := range strings.Split(stdout.String(), "\n") {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		colon := strings.IndexByte(trimmed, ':')
		if colon <= 0 {
			continue
		}
		if _, err := strconv.Atoi(trimmed[:colon]); err == nil {
			count++
		}
	}
	return count, nil
}

// ExtractAll calls pdfdetach -saveall -o outDir pdfPath.
func (ExecPortfolioDetacher) ExtractAll(ctx context.Context, pdfPath string, outDir string) error {
	if err := os.MkdirAll(outDir, 0o2775); err != nil {
		return fmt.Errorf("create portfolio out dir: %w", err)
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "pdfdetach", "-saveall", "-o", outDir, pdfPath) //nolint:gosec // args constructed internally
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pdfdetach: %s: %w", strings.TrimSpace(stderr.String()), err)
	}
	return nil
}
