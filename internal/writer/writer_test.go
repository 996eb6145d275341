// Copyright 2026 Phillip Cloud
// Licensed under the Apache License, Version 2.0

package writer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite_SimpleAcceptedTextFile(t *testing.T) {
	inputRoot := t.TempDir()
	outputRoot := t.TempDir()
	origFile := filepath.Join(inputRoot, "one.txt")
	require.NoError(t, os.WriteFile(origFile, []byte("Hello World"), 0o644))

	csvPath := filepath.Join(outputRoot, "one.csv")

	Write(nil, Result{
		CSVPath:      csvPath,
		OriginalFile: origFile,
		InputRoot:    inputRoot,
		Pages:        []Page{{Number: 1, Text: "Hello World"}},
		PassUsed:     "txt",
		Score:        1.0,
		HasScore:     true,
		Status:       "OK",
		UsedOCR:      false,
	})

	txtPath := filepath.Join(outputRoot, "txt", "one.txt")
	data, err := os.ReadFile(txtPath)
	require.NoError(t, err)
	content := string(data)
	assert.True(t, strings.HasPrefix(content, "# original_file: "))
	assert.Contains(t, content, "=== [PAGE 1] ===")
	assert.Contains(t, content, "Hello World")

	csvData, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(csvData), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `"original_file","original_name","relative_path","txt_relative_path","pages","processed_at","pass_used","score","status","used_ocr","run_id","notes"`, lines[0])
	assert.Contains(t, lines[1], `"one.txt"`)
	assert.Contains(t, lines[1], `"1.00"`)
	assert.Contains(t, lines[1], `"OK"`)
	assert.Contains(t, lines[1], `"false"`)
}

func TestWrite_NoTextYieldsEmptyTxtRelativePath(t *testing.T) {
	inputRoot := t.TempDir()
	outputRoot := t.TempDir()
	origFile := filepath.Join(inputRoot, "bad.pdf")
	require.NoError(t, os.WriteFile(origFile, []byte("whatever"), 0o644))

	csvPath := filepath.Join(outputRoot, "run.csv")
	Write(nil, Result{
		CSVPath:      csvPath,
		OriginalFile: origFile,
		InputRoot:    inputRoot,
		Pages:        nil,
		PassUsed:     "pdf_ocr_b",
		Status:       "ERROR",
	})

	_, err := os.Stat(filepath.Join(outputRoot, "txt", "bad.txt"))
	assert.True(t, os.IsNotExist(err))

	csvData, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(csvData), "\n"), "\n")
	require.Len(t, lines, 2)
	fields := strings.Split(lines[1], ",")
	assert.Equal(t, `""`, fields[3], "txt_relative_path should be empty")
}

func TestWrite_HonorsResultMaxCombinedBytesOverDefault(t *testing.T) {
	inputRoot := t.TempDir()
	outputRoot := t.TempDir()

	write := func(name, text string) {
		origFile := filepath.Join(inputRoot, name)
		require.NoError(t, os.WriteFile(origFile, []byte(text), 0o644))
		Write(nil, Result{
			CSVPath:          filepath.Join(outputRoot, "run.csv"),
			OriginalFile:     origFile,
			InputRoot:        inputRoot,
			Pages:            []Page{{Number: 1, Text: text}},
			PassUsed:         "txt",
			HasScore:         false,
			Status:           "OK",
			MaxCombinedBytes: 64,
		})
	}

	write("one.txt", strings.Repeat("a", 50))
	write("two.txt", strings.Repeat("b", 50))

	prefix := filepath.Base(outputRoot) + "_all_text"
	_, err := os.Stat(filepath.Join(outputRoot, prefix+"_001.txt"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(outputRoot, prefix+"_002.txt"))
	require.NoError(t, err, "second document should have rolled into a new chunk under the small override budget")
}

func TestWrite_ZeroMaxCombinedBytesFallsBackToDefault(t *testing.T) {
	inputRoot := t.TempDir()
	outputRoot := t.TempDir()
	origFile := filepath.Join(inputRoot, "one.txt")
	require.NoError(t, os.WriteFile(origFile, []byte("small"), 0o644))

	Write(nil, Result{
		CSVPath:      filepath.Join(outputRoot, "run.csv"),
		OriginalFile: origFile,
		InputRoot:    inputRoot,
		Pages:        []Page{{Number: 1, Text: "small"}},
		PassUsed:     "txt",
		Status:       "OK",
	})

	prefix := filepath.Base(outputRoot) + "_all_text"
	_, err := os.Stat(filepath.Join(outputRoot, prefix+"_001.txt"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(outputRoot, prefix+"_002.txt"))
	assert.True(t, os.IsNotExist(err), "a single small document must not trigger a second chunk under the default budget")
}

func TestPickCombinedPath_StartsAtChunk001(t *testing.T) {
	dir := t.TempDir()
	path, err := PickCombinedPath(dir, 100, 1000)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, filepath.Base(dir)+"_all_text_001.txt"), path)
}

func TestPickCombinedPath_RollsOverWhenFull(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Base(dir) + "_all_text"
	full := filepath.Join(dir, prefix+"_001.txt")
	require.NoError(t, os.WriteFile(full, []byte(strings.Repeat("x", 900)), 0o644))

	path, err := PickCombinedPath(dir, 200, 1000)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, prefix+"_002.txt"), path)
}

func TestPickCombinedPath_ReusesChunkThatStillFits(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Base(dir) + "_all_text"
	full := filepath.Join(dir, prefix+"_001.txt")
	require.NoError(t, os.WriteFile(full, []byte(strings.Repeat("x", 100)), 0o644))

	path, err := PickCombinedPath(dir, 50, 1000)
	require.NoError(t, err)
	assert.Equal(t, full, path)
}

func TestPickCombinedPath_NeverSplitsDocumentAcrossChunks(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Base(dir) + "_all_text"
	full := filepath.Join(dir, prefix+"_001.txt")
	require.NoError(t, os.WriteFile(full, []byte(strings.Repeat("x", 999)), 0o644))

	path, err := PickCombinedPath(dir, 5, 1000)
	require.NoError(t, err)
	assert.NotEqual(t, full, path, "a document that does not fit the remaining budget must roll to a new chunk rather than split")
}

func TestEnsureCatalog_CreatesStructure(t *testing.T) {
	outputRoot := t.TempDir()
	csvPath := filepath.Join(outputRoot, "run.csv")
	require.NoError(t, EnsureCatalog(outputRoot, csvPath))

	_, err := os.Stat(filepath.Join(outputRoot, "Mandatory Review"))
	require.NoError(t, err)

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, `"original_file","original_name","relative_path","txt_relative_path","pages","processed_at","pass_used","score","status","used_ocr","run_id","notes"`+"\n", string(data))
}
