// Copyright 2026 Phillip Cloud
// Licensed under the Apache License, Version 2.0

// Package cascade implements the tiered, cost-escalating extraction passes:
// native text first, then progressively more expensive and more aggressive
// OCR, each gated by a reliability cutoff.
package cascade

import (
	"context"
	"math"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/docextract/docextract/internal/logging"
	"github.com/docextract/docextract/internal/reliability"
	"github.com/docextract/docextract/internal/resource"
	"github.com/docextract/docextract/internal/tools"
)

// Mode is the aggregation granularity a PDF is processed at.
type Mode int

const (
	ModePerDoc Mode = iota
	ModePerPage
)

// Page is one extracted page, numbered from 1.
type Page struct {
	Number      int
	Text        string
	Reliability float64
}

// Outcome is the normalized result of a pass invocation: either a set of
// per-page results or a single concatenated document text, never both.
type Outcome struct {
	Accepted bool
	Mode     Mode
	Pages    []Page
	DocText  string
	Score    float64
	PassUsed string
	UsedOCR  bool
}

// PDFConfig bundles the cutoffs and thresholds that parameterize the PDF
// cascade.
type PDFConfig struct {
	PassTxtCutoff    float64
	PassOcrACutoff   float64
	PassOcrBCutoff   float64
	BigPDFSizeLimMB  int
	BigPDFPageLimit  int
	MaxOCRPages      int
	MinFreeWorkBytes int64
	WorkDir          string
}

const (
	textLayerSampleCap        = 6
	scanOnlyMinSampledChars   = 40
	scanOnlyMaxSampledScore   = 0.15
	rasterDPIFast             = 300
	rasterDPIAggressive       = 400
	tesseractPSM              = 6
	tesseractOEM              = 1
	pdfPassName               = "pdf_text"
	ocrAPassName              = "pdf_ocr_a"
	ocrBPassName              = "pdf_ocr_b"
)

var rotationSweep = []int{0, 90, 270}

// RunPDFCascade runs the text-layer -> OCR-A -> OCR-B cascade over pdfPath
// and returns the first accepting pass's outcome, or the last attempted
// pass's rejection if none accepted.
func RunPDFCascade(
	ctx context.Context,
	log *logging.Logger,
	cfg PDFConfig,
	textExtractor tools.TextExtractor,
	rasterizer tools.Rasterizer,
	ocrEngine tools.OcrEngine,
	pdfPath string,
) Outcome {
	pages, err := textExtractor.PageCount(ctx, pdfPath)
	if err != nil {
		if log != nil {
			log.Error("page count failed for %s: %v", pdfPath, err)
		}
		pages = 0
	}

	sizeMB := fileSizeMB(pdfPath)
	mode := ModePerDoc
	if sizeMB >= cfg.BigPDFSizeLimMB || pages >= cfg.BigPDFPageLimit {
		mode = ModePerPage
	}

	if outcome, ok := tryTextLayer(ctx, log, cfg, textExtractor, pdfPath, pages, mode); ok {
		return outcome
	}

	// Entering OCR forces per-page granularity regardless of the initial
	// mode selection: OCR quality varies page to page.
	mode = ModePerPage

	if cfg.MaxOCRPages > 0 && pages > cfg.MaxOCRPages {
		if log != nil {
			log.Warn("MAX_OCR_PAGES: capping %s at %d of %d pages", pdfPath, cfg.MaxOCRPages, pages)
		}
		pages = cfg.MaxOCRPages
	}

	if !resource.HasHeadroom(cfg.WorkDir, cfg.MinFreeWorkBytes) {
		if log != nil {
			log.Error("LOW_DISK: workdir below %s free -- failing %s before OCR", humanize.Bytes(uint64(cfg.MinFreeWorkBytes)), pdfPath)
		}
		return Outcome{Accepted: false, Mode: mode, PassUsed: ocrAPassName, UsedOCR: true}
	}

	if outcome, ok := tryOCRA(ctx, log, cfg, rasterizer, ocrEngine, pdfPath, pages); ok {
		return outcome
	}

	if outcome, ok := tryOCRB(ctx, log, cfg, rasterizer, ocrEngine, pdfPath, pages); ok {
		return outcome
	}

	return Outcome{Accepted: false, Mode: mode, PassUsed: ocrBPassName, UsedOCR: true}
}

func tryTextLayer(
	ctx context.Context,
	log *logging.Logger,
	cfg PDFConfig,
	textExtractor tools.TextExtractor,
	pdfPath string,
	pages int,
	mode Mode,
) (Outcome, bool) {
	if pages <= 0 {
		return Outcome{}, false
	}

	sampleIdx := evenlySpacedIndices(pages, textLayerSampleCap)
	var sampled strings.Builder
	for _, idx := range sampleIdx {
		text, err := textExtractor.ExtractPage(ctx, pdfPath, idx)
		if err != nil {
			if log != nil {
				log.Error("text-layer sample failed for %s page %d: %v", pdfPath, idx+1, err)
			}
			continue
		}
		sampled.WriteString(text)
	}
	sampledText := sampled.String()
	if len([]rune(sampledText)) < scanOnlyMinSampledChars || reliability.Score(sampledText) < scanOnlyMaxSampledScore {
		return Outcome{}, false
	}

	results := make([]Page, 0, pages)
	for i := 0; i < pages; i++ {
		text, err := textExtractor.ExtractPage(ctx, pdfPath, i)
		if err != nil {
			if log != nil {
				log.Error("text-layer extract failed for %s page %d: %v", pdfPath, i+1, err)
			}
			text = ""
		}
		results = append(results, Page{Number: i + 1, Text: text, Reliability: reliability.Score(text)})
	}

	med := reliability.Median(scoresOf(results))
	if med < cfg.PassTxtCutoff {
		return Outcome{}, false
	}

	return acceptOutcome(mode, results, med, pdfPassName, false), true
}

func tryOCRA(
	ctx context.Context,
	log *logging.Logger,
	cfg PDFConfig,
	rasterizer tools.Rasterizer,
	ocrEngine tools.OcrEngine,
	pdfPath string,
	pages int,
) (Outcome, bool) {
	if pages <= 0 {
		return Outcome{}, false
	}
	results := make([]Page, 0, pages)
	for i := 0; i < pages; i++ {
		img, err := rasterizer.RenderPage(ctx, pdfPath, i, rasterDPIFast, true)
		if err != nil {
			if log != nil {
				log.Error("OCR-A render failed for %s page %d: %v", pdfPath, i+1, err)
			}
			results = append(results, Page{Number: i + 1})
			continue
		}
		text, err := ocrEngine.OCRImage(ctx, img, tesseractPSM, tesseractOEM)
		if err != nil {
			if log != nil {
				log.Error("OCR-A failed for %s page %d: %v", pdfPath, i+1, err)
			}
			text = ""
		}
		results = append(results, Page{Number: i + 1, Text: text, Reliability: reliability.Score(text)})
	}

	med := reliability.Median(scoresOf(results))
	if med < cfg.PassOcrACutoff {
		return Outcome{}, false
	}
	return acceptOutcome(ModePerPage, results, med, ocrAPassName, true), true
}

func tryOCRB(
	ctx context.Context,
	log *logging.Logger,
	cfg PDFConfig,
	rasterizer tools.Rasterizer,
	ocrEngine tools.OcrEngine,
	pdfPath string,
	pages int,
) (Outcome, bool) {
	if pages <= 0 {
		return Outcome{}, false
	}
	results := make([]Page, 0, pages)
	for i := 0; i < pages; i++ {
		img, err := rasterizer.RenderPage(ctx, pdfPath, i, rasterDPIAggressive, true)
		if err != nil {
			if log != nil {
				log.Error("OCR-B render failed for %s page %d: %v", pdfPath, i+1, err)
			}
			results = append(results, Page{Number: i + 1})
			continue
		}

		best := Page{Number: i + 1}
		for _, deg := range rotationSweep {
			rotated := img.Rotate(deg)
			text, err := ocrEngine.OCRImage(ctx, rotated, tesseractPSM, tesseractOEM)
			if err != nil {
				if log != nil {
					log.Error("OCR-B failed for %s page %d rotation %d: %v", pdfPath, i+1, deg, err)
				}
				continue
			}
			score := reliability.Score(text)
			if score >= best.Reliability {
				best = Page{Number: i + 1, Text: text, Reliability: score}
			}
		}
		results = append(results, best)
	}

	med := reliability.Median(scoresOf(results))
	if med < cfg.PassOcrBCutoff {
		return Outcome{}, false
	}
	return acceptOutcome(ModePerPage, results, med, ocrBPassName, true), true
}

func acceptOutcome(mode Mode, pages []Page, score float64, passName string, usedOCR bool) Outcome {
	if mode == ModePerDoc {
		var doc strings.Builder
		for i, p := range pages {
			if i > 0 {
				doc.WriteString("\n")
			}
			doc.WriteString(p.Text)
		}
		return Outcome{
			Accepted: true,
			Mode:     ModePerDoc,
			DocText:  doc.String(),
			Score:    score,
			PassUsed: passName,
			UsedOCR:  usedOCR,
		}
	}
	return Outcome{
		Accepted: true,
		Mode:     ModePerPage,
		Pages:    pages,
		Score:    score,
		PassUsed: passName,
		UsedOCR:  usedOCR,
	}
}

func scoresOf(pages []Page) []float64 {
	scores := make([]float64, len(pages))
	for i, p := range pages {
		scores[i] = p.Reliability
	}
	return scores
}

// evenlySpacedIndices returns up to cap 0-based indices spread evenly
// across [0, n), deterministic for a given (n, cap).
func evenlySpacedIndices(n, cap int) []int {
	if n <= 0 {
		return nil
	}
	if n <= cap {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := make([]int, cap)
	for i := 0; i < cap; i++ {
		out[i] = int(math.Round(float64(i) * float64(n-1) / float64(cap-1)))
	}
	return out
}

func fileSizeMB(path string) int {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return int(math.Ceil(float64(info.Size()) / (1024 * 1024)))
}
