// Copyright 2026 Phillip Cloud
// Licensed under the Apache License, Version 2.0

package cascade

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/docextract/docextract/internal/logging"
	"github.com/docextract/docextract/internal/reliability"
	"github.com/docextract/docextract/internal/tools"
)

// DocConfig bundles the DOC/DOCX cascade's cutoffs.
type DocConfig struct {
	PassDocCutoff   float64
	PassDocxCutoff  float64
	DocImgOcrCutoff float64
	WorkDir         string
}

const (
	docPassName      = "doc_text"
	docxPassName     = "docx_text"
	docPDFPassName   = "doc_pdf_text"
	docxImgPassName  = "docx_img_ocr"
	maxDocxOCRImages = 12
	docxImgUpscaleMinSide = 600
)

// RunDocCascade extracts text from a DOC or DOCX file, accepting native
// extraction above the configured cutoff and otherwise falling through to
// a DOC/DOCX->PDF->text-layer second chance, and, for DOCX only, a final
// image-OCR pass over the document's embedded pictures.
func RunDocCascade(
	ctx context.Context,
	log *logging.Logger,
	cfg DocConfig,
	legacy tools.LegacyDocConverter,
	textExtractor tools.TextExtractor,
	ocrEngine tools.OcrEngine,
	ext string,
	path string,
) Outcome {
	var (
		text     string
		err      error
		method   string
		cutoff   float64
	)

	switch strings.ToLower(ext) {
	case ".docx":
		method = docxPassName
		cutoff = cfg.PassDocxCutoff
		text, err = docxText(path)
	case ".doc":
		method = docPassName
		cutoff = cfg.PassDocCutoff
		text, err = legacy.ExtractDocText(ctx, path)
	default:
		return Outcome{Accepted: false, PassUsed: "doc_extract_error"}
	}

	if err != nil {
		if log != nil {
			log.Error("DOC open/extract failed: %s :: %v", path, err)
		}
		return Outcome{Accepted: false, PassUsed: "doc_extract_error"}
	}

	score := reliability.Score(text)
	if strings.TrimSpace(text) != "" && score >= cutoff {
		if log != nil {
			log.Info("DOC accept (native): %s reliability=%.2f", path, score)
		}
		return Outcome{
			Accepted: true,
			Mode:     ModePerDoc,
			DocText:  text,
			Score:    score,
			PassUsed: method,
			UsedOCR:  false,
		}
	}

	if log != nil {
		log.Warn("DOC/DOCX below cutoff or empty: %s reliability=%.2f < %.2f -- attempting DOC->PDF TXT fallback", path, score, cutoff)
	}

	if outcome, ok := fallbackViaPDF(ctx, log, legacy, textExtractor, cfg.WorkDir, path); ok {
		return outcome
	}

	if strings.ToLower(ext) == ".docx" {
		if outcome, ok := fallbackViaEmbeddedImages(ctx, log, ocrEngine, cfg.DocImgOcrCutoff, path); ok {
			return outcome
		}
	}

	return Outcome{
		Accepted: false,
		Mode:     ModePerDoc,
		Score:    score,
		PassUsed: method,
		UsedOCR:  false,
	}
}

// fallbackViaEmbeddedImages is the DOCX-only last resort: OCR the pictures
// embedded under word/media/*, upscaling any image whose shorter side is
// under 600px, and accept per-image text once any image clears the
// configured cutoff. Pages are numbered in archive-listing order.
func fallbackViaEmbeddedImages(ctx context.Context, log *logging.Logger, ocrEngine tools.OcrEngine, cutoff float64, path string) (Outcome, bool) {
	if ocrEngine == nil {
		return Outcome{}, false
	}
	images, err := extractDocxMediaImages(path)
	if err != nil {
		if log != nil {
			log.Error("DOCX embedded image extraction failed: %s :: %v", path, err)
		}
		return Outcome{}, false
	}
	if len(images) > maxDocxOCRImages {
		if log != nil {
			log.Warn("DOCX embedded image count %d exceeds cap %d, only the first %d are OCR'd", len(images), maxDocxOCRImages, maxDocxOCRImages)
		}
		images = images[:maxDocxOCRImages]
	}

	var pages []Page
	bestScore := 0.0
	for i, img := range images {
		if img.Width < docxImgUpscaleMinSide || img.Height < docxImgUpscaleMinSide {
			img = upscale2x(img)
		}
		text, err := ocrEngine.OCRImage(ctx, img, tesseractPSM, tesseractOEM)
		if err != nil {
			if log != nil {
				log.Warn("DOCX embedded image OCR failed @%d: %v", i+1, err)
			}
			continue
		}
		score := reliability.Score(text)
		if score > bestScore {
			bestScore = score
		}
		if score >= cutoff {
			pages = append(pages, Page{Number: len(pages) + 1, Text: text, Reliability: score})
		}
	}

	if len(pages) == 0 {
		return Outcome{}, false
	}
	if log != nil {
		log.Info("DOCX embedded image OCR accept: %s best_score=%.2f", path, bestScore)
	}
	return acceptOutcome(ModePerPage, pages, bestScore, docxImgPassName, true), true
}

// fallbackViaPDF converts path to a temporary PDF via a headless office
// converter and runs the PDF text-layer extraction against it with no
// cutoff -- any non-blank text is accepted, matching the original's
// "let reliability be handled here, we just want any text" fallback.
func fallbackViaPDF(
	ctx context.Context,
	log *logging.Logger,
	legacy tools.LegacyDocConverter,
	textExtractor tools.TextExtractor,
	workDir string,
	path string,
) (Outcome, bool) {
	pdfPath, err := legacy.ConvertToPDF(ctx, path, workDir)
	if err != nil {
		if log != nil {
			log.Error("DOC->PDF conversion error: %v", err)
		}
		return Outcome{}, false
	}
	defer os.Remove(pdfPath) //nolint:errcheck // temp PDF, best-effort cleanup

	pages, err := textExtractor.PageCount(ctx, pdfPath)
	if err != nil || pages <= 0 {
		if log != nil {
			log.Error("DOC->PDF conversion failed to produce a valid PDF file")
		}
		return Outcome{}, false
	}

	var doc strings.Builder
	for i := 0; i < pages; i++ {
		text, err := textExtractor.ExtractPage(ctx, pdfPath, i)
		if err != nil {
			continue
		}
		if i > 0 {
			doc.WriteString("\n")
		}
		doc.WriteString(text)
	}

	text := doc.String()
	if strings.TrimSpace(text) == "" {
		if log != nil {
			log.Warn("PDF TXT fallback produced no usable text")
		}
		return Outcome{}, false
	}

	score := reliability.Score(text)
	if log != nil {
		log.Info("PDF TXT fallback success: reliability=%.2f", score)
	}
	return Outcome{
		Accepted: true,
		Mode:     ModePerDoc,
		DocText:  text,
		Score:    score,
		PassUsed: docPDFPassName,
		UsedOCR:  false,
	}, true
}

// wordDocumentEntry is the OPC package part name a DOCX stores its body
// text in; wordHeaderFooterPrefixes match the parts holding header/footer
// text.
const wordDocumentEntry = "word/document.xml"

var wordHeaderFooterPrefixes = []string{"word/header", "word/footer"}

type wBody struct {
	Body wBodyInner `xml:"body"`
}

// hfBody matches a header/footer part's root (<w:hdr> or <w:ftr>), whose
// paragraphs sit directly under the root rather than inside a <w:body>.
type hfBody struct {
	Paragraphs []wParagraph `xml:"p"`
}

type wBodyInner struct {
	Paragraphs []wParagraph `xml:"p"`
	Tables     []wTable     `xml:"tbl"`
}

type wParagraph struct {
	Runs []wRun `xml:"r"`
}

type wRun struct {
	Text []string `xml:"t"`
}

type wTable struct {
	Rows []wRow `xml:"tr"`
}

type wRow struct {
	Cells []wCell `xml:"tc"`
}

type wCell struct {
	Paragraphs []wParagraph `xml:"p"`
}

func (p wParagraph) text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		for _, t := range r.Text {
			b.WriteString(t)
		}
	}
	return b.String()
}

// docxText extracts paragraph text, then tab-joined table cell text per
// row, then header/footer paragraph text, joined with newlines -- the
// same document order the original python-docx-based reader walked.
func docxText(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer r.Close()

	var bodyXML []byte
	var headerFooterXML [][]byte

	for _, f := range r.File {
		switch {
		case f.Name == wordDocumentEntry:
			bodyXML, err = readZipEntry(f)
			if err != nil {
				return "", fmt.Errorf("read %s: %w", wordDocumentEntry, err)
			}
		case hasAnyPrefix(f.Name, wordHeaderFooterPrefixes) && strings.HasSuffix(f.Name, ".xml"):
			data, err := readZipEntry(f)
			if err == nil {
				headerFooterXML = append(headerFooterXML, data)
			}
		}
	}
	if bodyXML == nil {
		return "", fmt.Errorf("docx missing %s", wordDocumentEntry)
	}

	var doc wBody
	if err := xml.Unmarshal(bodyXML, &doc); err != nil {
		return "", fmt.Errorf("parse %s: %w", wordDocumentEntry, err)
	}

	var parts []string
	for _, p := range doc.Body.Paragraphs {
		if t := p.text(); t != "" {
			parts = append(parts, t)
		}
	}
	for _, tbl := range doc.Body.Tables {
		for _, row := range tbl.Rows {
			cellTexts := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				var cb strings.Builder
				for _, p := range cell.Paragraphs {
					cb.WriteString(p.text())
				}
				cellTexts = append(cellTexts, cb.String())
			}
			if joined := strings.Join(cellTexts, "\t"); strings.TrimSpace(joined) != "" {
				parts = append(parts, joined)
			}
		}
	}
	for _, hf := range headerFooterXML {
		var section hfBody
		if err := xml.Unmarshal(hf, &section); err != nil {
			continue
		}
		for _, p := range section.Paragraphs {
			if t := p.text(); t != "" {
				parts = append(parts, t)
			}
		}
	}

	return strings.Join(parts, "\n"), nil
}

// wordMediaPrefix is the OPC package part prefix DOCX stores embedded
// pictures under.
const wordMediaPrefix = "word/media/"

// extractDocxMediaImages decodes every image under word/media/*, in zip
// listing order, skipping entries that aren't decodable raster images
// (e.g. embedded WMF/EMF vector drawings, which none of our decoders
// handle).
func extractDocxMediaImages(path string) ([]tools.Image, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer r.Close()

	var images []tools.Image
	for _, f := range r.File {
		if !strings.HasPrefix(f.Name, wordMediaPrefix) || f.FileInfo().IsDir() {
			continue
		}
		data, err := readZipEntry(f)
		if err != nil {
			continue
		}
		decoded, err := decodeSingleImage(data)
		if err != nil {
			continue
		}
		images = append(images, toToolsImage(decoded))
	}
	return images, nil
}

// upscale2x doubles an image's dimensions via nearest-neighbor sampling --
// cheap and sufficient to give tesseract more pixels per glyph on small
// embedded scans.
func upscale2x(img tools.Image) tools.Image {
	out := tools.Image{Width: img.Width * 2, Height: img.Height * 2, Gray: make([]byte, img.Width*2*img.Height*2)}
	for y := 0; y < out.Height; y++ {
		srcY := y / 2
		for x := 0; x < out.Width; x++ {
			srcX := x / 2
			out.Gray[y*out.Width+x] = img.Gray[srcY*img.Width+srcX]
		}
	}
	return out
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
