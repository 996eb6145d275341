// Copyright 2026 Phillip Cloud
// Licensed under the Apache License, Version 2.0

package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docextract/docextract/internal/config"
	"github.com/docextract/docextract/internal/tools"
)

type noopTextExtractor struct{}

func (noopTextExtractor) PageCount(context.Context, string) (int, error) { return 0, nil }
func (noopTextExtractor) ExtractPage(context.Context, string, int) (string, error) {
	return "", nil
}

type noopRasterizer struct{}

func (noopRasterizer) RenderPage(context.Context, string, int, int, bool) (tools.Image, error) {
	return tools.Image{}, nil
}

type noopOCR struct{}

func (noopOCR) OCRImage(context.Context, tools.Image, int, int) (string, error) { return "", nil }

type noopLegacyConverter struct{}

func (noopLegacyConverter) ExtractDocText(context.Context, string) (string, error) { return "", nil }
func (noopLegacyConverter) ConvertToPDF(context.Context, string, string) (string, error) {
	return "", nil
}

type noopPortfolioDetacher struct{}

func (noopPortfolioDetacher) ListAttachments(context.Context, string) (int, error) { return 0, nil }
func (noopPortfolioDetacher) ExtractAll(context.Context, string, string) error { return nil }

func testConfig() config.Config {
	return config.Config{
		Cascade: config.Cascade{
			PassTxtCutoff:     0.80,
			PassOcrACutoff:    0.70,
			PassOcrBCutoff:    0.60,
			PassDocCutoff:     0.75,
			PassDocxCutoff:    0.70,
			DocImgOcrCutoff:   0.50,
			BigPDFSizeLimitMB: 50,
			BigPDFPageLimit:   500,
		},
		Output: config.Output{MaxCombinedBytes: config.DefaultMaxCombinedBytes},
		Logging: config.Logging{Level: "INFO"},
	}
}

func testAdapters() Adapters {
	return Adapters{
		TextExtractor:     noopTextExtractor{},
		Rasterizer:        noopRasterizer{},
		OcrEngine:         noopOCR{},
		LegacyConverter:   noopLegacyConverter{},
		PortfolioDetacher: noopPortfolioDetacher{},
	}
}

func TestRun_PlainTextFileAcceptedAndCataloged(t *testing.T) {
	runRoot := t.TempDir()
	outputRoot := t.TempDir()
	workDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(runRoot, "note.txt"), []byte("Hello World"), 0o644))

	cfg := testConfig()
	cfg.Paths.WorkDir = workDir
	require.NoError(t, Run(context.Background(), nil, cfg, testAdapters(), runRoot, outputRoot, workDir))

	assert.NoFileExists(t, filepath.Join(runRoot, "note.txt"))

	csvPath := filepath.Join(outputRoot, "note.csv")
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"OK"`)
	assert.Contains(t, string(data), "note.txt")

	txtPath := filepath.Join(outputRoot, "txt", "note.txt")
	assert.FileExists(t, txtPath)
}

func TestRun_UnsupportedFileQuarantinedWithManifestRow(t *testing.T) {
	runRoot := t.TempDir()
	outputRoot := t.TempDir()
	workDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(runRoot, "sheet.xlsx"), []byte("ignored"), 0o644))

	cfg := testConfig()
	cfg.Paths.WorkDir = workDir
	require.NoError(t, Run(context.Background(), nil, cfg, testAdapters(), runRoot, outputRoot, workDir))

	assert.NoFileExists(t, filepath.Join(runRoot, "sheet.xlsx"))
	assert.FileExists(t, filepath.Join(outputRoot, mandatoryReviewDirName, "sheet.xlsx"))

	manifest, err := os.ReadFile(filepath.Join(outputRoot, reviewManifestName))
	require.NoError(t, err)
	assert.Contains(t, string(manifest), "sheet.xlsx")
	assert.Contains(t, string(manifest), "unsupported")

	csvPath := filepath.Join(outputRoot, filepath.Base(runRoot)+".csv")
	catalog, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(catalog), "MANDATORY_REVIEW")
}

func TestRun_NoiseWavDeletedWithoutQuarantine(t *testing.T) {
	runRoot := t.TempDir()
	outputRoot := t.TempDir()
	workDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(runRoot, "silence.wav"), []byte("RIFF"), 0o644))

	cfg := testConfig()
	cfg.Paths.WorkDir = workDir
	require.NoError(t, Run(context.Background(), nil, cfg, testAdapters(), runRoot, outputRoot, workDir))

	assert.NoFileExists(t, filepath.Join(runRoot, "silence.wav"))
	assert.NoFileExists(t, filepath.Join(outputRoot, mandatoryReviewDirName, "silence.wav"))
}

func TestRun_SingleProcessableFileUsesStemCSVName(t *testing.T) {
	runRoot := t.TempDir()
	outputRoot := t.TempDir()
	workDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(runRoot, "invoice.txt"), []byte("Invoice total due"), 0o644))

	cfg := testConfig()
	cfg.Paths.WorkDir = workDir
	require.NoError(t, Run(context.Background(), nil, cfg, testAdapters(), runRoot, outputRoot, workDir))

	assert.FileExists(t, filepath.Join(outputRoot, "invoice.csv"))
}

func TestRun_SkipsHiddenAndMandatoryReviewDirectories(t *testing.T) {
	runRoot := t.TempDir()
	outputRoot := t.TempDir()
	workDir := t.TempDir()

	hidden := filepath.Join(runRoot, ".hidden")
	require.NoError(t, os.MkdirAll(hidden, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(hidden, "skip.txt"), []byte("should not be seen"), 0o644))

	mr := filepath.Join(runRoot, mandatoryReviewDirName)
	require.NoError(t, os.MkdirAll(mr, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(mr, "already_quarantined.txt"), []byte("leave me alone"), 0o644))

	cfg := testConfig()
	cfg.Paths.WorkDir = workDir
	require.NoError(t, Run(context.Background(), nil, cfg, testAdapters(), runRoot, outputRoot, workDir))

	assert.FileExists(t, filepath.Join(hidden, "skip.txt"))
	assert.FileExists(t, filepath.Join(mr, "already_quarantined.txt"))
}

func TestDiscoverFiles_SortsWithinDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644))

	files, err := discoverFiles(root)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(root, "a.txt"), files[0])
	assert.Equal(t, filepath.Join(root, "b.txt"), files[1])
}
