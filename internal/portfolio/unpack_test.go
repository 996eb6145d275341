// Copyright 2026 Phillip Cloud
// Licensed under the Apache License, Version 2.0

package portfolio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDetacher struct {
	counts map[string]int
	listErr error
	extractErr error
	extractedNames []string
}

func (s stubDetacher) ListAttachments(ctx context.Context, pdfPath string) (int, error) {
	if s.listErr != nil {
		return 0, s.listErr
	}
	return s.counts[pdfPath], nil
}

func (s stubDetacher) ExtractAll(ctx context.Context, pdfPath, outDir string) error {
	if s.extractErr != nil {
		return s.extractErr
	}
	for _, name := range s.extractedNames {
		if err := os.WriteFile(filepath.Join(outDir, name), []byte("child"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func TestUnpackAll_ExtractsAndNeutralizesPortfolioParent(t *testing.T) {
	root := t.TempDir()
	workDir := t.TempDir()

	parent := filepath.Join(root, "statement.pdf")
	require.NoError(t, os.WriteFile(parent, []byte("%PDF-1.4"), 0o644))

	det := stubDetacher{
		counts:         map[string]int{parent: 2},
		extractedNames: []string{"a.xlsx", "b.docx"},
	}

	results, err := UnpackAll(context.Background(), nil, det, root, workDir)
	require.NoError(t, err)
	require.Len(t, results, 1)

	got := results[0]
	assert.Equal(t, 2, got.ChildCount)
	assert.DirExists(t, got.OutDir)
	assert.FileExists(t, got.ManifestPath)

	assert.NoFileExists(t, parent)

	entries, err := os.ReadDir(got.OutDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "statement.pdf::a.xlsx")
	assert.Contains(t, names, "statement.pdf::b.docx")
}

func TestUnpackAll_SkipsPDFsWithNoAttachments(t *testing.T) {
	root := t.TempDir()
	plain := filepath.Join(root, "plain.pdf")
	require.NoError(t, os.WriteFile(plain, []byte("%PDF-1.4"), 0o644))

	det := stubDetacher{counts: map[string]int{}}
	results, err := UnpackAll(context.Background(), nil, det, root, t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.FileExists(t, plain)
}

func TestUnpackAll_SkipsHiddenDirectories(t *testing.T) {
	root := t.TempDir()
	hidden := filepath.Join(root, ".mandatory-review-ish")
	require.NoError(t, os.MkdirAll(hidden, 0o755))
	hiddenPDF := filepath.Join(hidden, "x.pdf")
	require.NoError(t, os.WriteFile(hiddenPDF, []byte("%PDF-1.4"), 0o644))

	det := stubDetacher{counts: map[string]int{hiddenPDF: 5}}
	results, err := UnpackAll(context.Background(), nil, det, root, t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestNeutralizeParent_MovesUnderWorkDirPortfolioHidden(t *testing.T) {
	root := t.TempDir()
	workDir := t.TempDir()

	sub := filepath.Join(root, "statements", "2026")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	parent := filepath.Join(sub, "bundle.pdf")
	require.NoError(t, os.WriteFile(parent, []byte("%PDF-1.4"), 0o644))

	require.NoError(t, NeutralizeParent(parent, root, workDir))

	assert.NoFileExists(t, parent)
	dest := filepath.Join(workDir, "portfolio_hidden", "statements", "2026", ".bundle.pdf")
	assert.FileExists(t, dest)
}

func TestNeutralizeParent_FallsBackToInPlaceDotRenameOutsideRoot(t *testing.T) {
	other := t.TempDir()
	parent := filepath.Join(other, "loose.pdf")
	require.NoError(t, os.WriteFile(parent, []byte("%PDF-1.4"), 0o644))

	require.NoError(t, NeutralizeParent(parent, t.TempDir(), t.TempDir()))

	assert.NoFileExists(t, parent)
	assert.FileExists(t, filepath.Join(other, ".loose.pdf"))
}
