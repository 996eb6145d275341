// Copyright 2026 Phillip Cloud
// Licensed under the Apache License, Version 2.0

package cascade

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docextract/docextract/internal/tools"
)

type stubTextExtractor struct {
	pages    int
	pageText map[int]string
	err      error
}

func (s stubTextExtractor) PageCount(context.Context, string) (int, error) {
	return s.pages, s.err
}

func (s stubTextExtractor) ExtractPage(_ context.Context, _ string, idx int) (string, error) {
	return s.pageText[idx], nil
}

type stubRasterizer struct {
	img tools.Image
}

func (s stubRasterizer) RenderPage(context.Context, string, int, int, bool) (tools.Image, error) {
	return s.img, nil
}

type stubOCR struct {
	textByRotation map[int]string
	lastRotation   int
	calls          int
}

func (s *stubOCR) OCRImage(_ context.Context, img tools.Image, _, _ int) (string, error) {
	s.calls++
	return s.textByRotation[s.calls%len(s.textByRotation)], nil
}

func defaultConfig(workDir string) PDFConfig {
	return PDFConfig{
		PassTxtCutoff:    0.80,
		PassOcrACutoff:   0.70,
		PassOcrBCutoff:   0.60,
		BigPDFSizeLimMB:  50,
		BigPDFPageLimit:  500,
		MinFreeWorkBytes: 0,
		WorkDir:          workDir,
	}
}

func writeTempFile(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestRunPDFCascade_AcceptsCleanTextLayer(t *testing.T) {
	path := writeTempFile(t, 100)
	extractor := stubTextExtractor{
		pages: 3,
		pageText: map[int]string{
			0: "clean page one text",
			1: "clean page two text",
			2: "clean page three text",
		},
	}
	outcome := RunPDFCascade(context.Background(), nil, defaultConfig(t.TempDir()), extractor, stubRasterizer{}, &stubOCR{}, path)
	assert.True(t, outcome.Accepted)
	assert.Equal(t, pdfPassName, outcome.PassUsed)
	assert.False(t, outcome.UsedOCR)
	assert.Equal(t, ModePerDoc, outcome.Mode)
}

func TestRunPDFCascade_EscalatesToOCRAWhenScanOnly(t *testing.T) {
	path := writeTempFile(t, 100)
	extractor := stubTextExtractor{pages: 1, pageText: map[int]string{0: ""}}
	ocr := &stubOCR{textByRotation: map[int]string{0: "good ocr text here", 1: "good ocr text here"}}
	outcome := RunPDFCascade(context.Background(), nil, defaultConfig(t.TempDir()), extractor, stubRasterizer{}, ocr, path)
	assert.True(t, outcome.Accepted)
	assert.Equal(t, ocrAPassName, outcome.PassUsed)
	assert.True(t, outcome.UsedOCR)
	assert.Equal(t, ModePerPage, outcome.Mode)
}

func TestRunPDFCascade_FailsAllPassesYieldsRejectedOutcome(t *testing.T) {
	path := writeTempFile(t, 100)
	extractor := stubTextExtractor{pages: 1, pageText: map[int]string{0: ""}}
	ocr := &stubOCR{textByRotation: map[int]string{0: "!!!", 1: "!!!"}}
	outcome := RunPDFCascade(context.Background(), nil, defaultConfig(t.TempDir()), extractor, stubRasterizer{}, ocr, path)
	assert.False(t, outcome.Accepted)
	assert.Equal(t, ocrBPassName, outcome.PassUsed)
	assert.True(t, outcome.UsedOCR)
}

func TestRunPDFCascade_LowDiskFailsBeforeOCR(t *testing.T) {
	path := writeTempFile(t, 100)
	extractor := stubTextExtractor{pages: 1, pageText: map[int]string{0: ""}}
	cfg := defaultConfig(t.TempDir())
	cfg.MinFreeWorkBytes = 1 << 62
	outcome := RunPDFCascade(context.Background(), nil, cfg, extractor, stubRasterizer{}, &stubOCR{}, path)
	assert.False(t, outcome.Accepted)
	assert.Equal(t, ocrAPassName, outcome.PassUsed)
}

func TestRunPDFCascade_MaxOCRPagesCapsPagesOCRd(t *testing.T) {
	path := writeTempFile(t, 100)
	extractor := stubTextExtractor{pages: 5, pageText: map[int]string{0: "", 1: "", 2: "", 3: "", 4: ""}}
	ocr := &stubOCR{textByRotation: map[int]string{0: "good ocr text here", 1: "good ocr text here"}}
	cfg := defaultConfig(t.TempDir())
	cfg.MaxOCRPages = 2
	outcome := RunPDFCascade(context.Background(), nil, cfg, extractor, stubRasterizer{}, ocr, path)
	assert.True(t, outcome.Accepted)
	assert.Len(t, outcome.Pages, 2)
}

func TestEvenlySpacedIndices_CoversFullRangeWhenFewerThanCap(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2}, evenlySpacedIndices(3, 6))
}

func TestEvenlySpacedIndices_SpreadsAcrossLargeRange(t *testing.T) {
	idx := evenlySpacedIndices(100, 6)
	require.Len(t, idx, 6)
	assert.Equal(t, 0, idx[0])
	assert.Equal(t, 99, idx[len(idx)-1])
}
