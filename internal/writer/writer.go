// Copyright 2026 Phillip Cloud
// Licensed under the Apache License, Version 2.0

// Package writer is the single place that turns a pass result into
// on-disk artifacts: the per-document text file, the run's combined-text
// chunk files, and the run catalog CSV.
package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docextract/docextract/internal/logging"
)

// Page is one page's text, numbered from 1.
type Page struct {
	Number int
	Text   string
}

// Result is everything write_result needs to know about a finished pass
// invocation, independent of whether it accepted or fell through to
// mandatory review.
type Result struct {
	CSVPath      string
	OriginalFile string
	InputRoot    string
	Pages        []Page
	PassUsed     string
	Score        float64
	HasScore     bool
	Status       string
	UsedOCR      bool
	Notes        string

	// MaxCombinedBytes is the per-chunk byte budget passed to
	// PickCombinedPath. Zero falls back to DefaultMaxCombinedBytes, so
	// callers that don't have a configured value on hand still get a
	// sane chunk size instead of an unbounded one.
	MaxCombinedBytes int64
}

// CatalogHeader is the fixed 12-column header every catalog file starts
// with.
var CatalogHeader = []string{
	"original_file", "original_name", "relative_path", "txt_relative_path",
	"pages", "processed_at", "pass_used", "score", "status", "used_ocr",
	"run_id", "notes",
}

// Write performs the full write_result operation: it writes the per-doc
// text file (if any page carries non-blank text), appends that text to
// the run's combined-text chunks, and always appends exactly one catalog
// row. I/O failures while writing the text file degrade gracefully to an
// empty txt_relative_path rather than aborting the catalog append; catalog
// append failures are logged and swallowed, per the caller's contract that
// this function never raises.
func Write(log *logging.Logger, r Result) {
	csvPath, err := filepath.Abs(r.CSVPath)
	if err != nil {
		csvPath = r.CSVPath
	}
	origPath, err := filepath.Abs(r.OriginalFile)
	if err != nil {
		origPath = r.OriginalFile
	}

	relativePath := relativeTo(r.InputRoot, origPath)
	outputRoot := filepath.Dir(csvPath)
	txtRoot := filepath.Join(outputRoot, "txt")
	txtRelative := strings.TrimSuffix(relativePath, filepath.Ext(relativePath)) + ".txt"
	txtPath := filepath.Join(txtRoot, txtRelative)

	processedAt := time.Now().UTC().Format("2006-01-02T15:04:05Z")
	runID := strings.TrimSuffix(filepath.Base(csvPath), filepath.Ext(csvPath))

	hasText := false
	for _, p := range r.Pages {
		if strings.TrimSpace(p.Text) != "" {
			hasText = true
			break
		}
	}

	txtRelativeOut := ""
	if hasText {
		block := buildDocBlock(docBlockInput{
			origPath:     origPath,
			relativePath: relativePath,
			pages:        r.Pages,
			processedAt:  processedAt,
			passUsed:     r.PassUsed,
			score:        r.Score,
			hasScore:     r.HasScore,
			status:       r.Status,
		})

		txtRelativeOut = txtRelative
		if err := writeTextFile(txtPath, block); err != nil {
			if log != nil {
				log.Error("failed to write text file for %s: %v", origPath, err)
			}
			txtRelativeOut = ""
		}

		maxCombinedBytes := r.MaxCombinedBytes
		if maxCombinedBytes <= 0 {
			maxCombinedBytes = DefaultMaxCombinedBytes
		}
		if err := appendCombined(outputRoot, block, maxCombinedBytes); err != nil && log != nil {
			log.Error("failed to append to combined text file for %s: %v", origPath, err)
		}
	}

	scoreStr := ""
	if r.HasScore {
		scoreStr = fmt.Sprintf("%.2f", r.Score)
	}

	row := []string{
		origPath,
		filepath.Base(origPath),
		relativePath,
		txtRelativeOut,
		strconv.Itoa(len(r.Pages)),
		processedAt,
		r.PassUsed,
		scoreStr,
		r.Status,
		strconv.FormatBool(r.UsedOCR),
		runID,
		r.Notes,
	}
	if err := appendCatalogRow(csvPath, row); err != nil && log != nil {
		log.Error("failed to append catalog row for %s: %v", origPath, err)
	}
}

// relativeTo returns origPath relative to root, or its basename if the
// relation does not hold -- we never let a misconfigured input root crash
// the writer.
func relativeTo(root, origPath string) string {
	if root == "" {
		return filepath.Base(origPath)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return filepath.Base(origPath)
	}
	rel, err := filepath.Rel(absRoot, origPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.Base(origPath)
	}
	return rel
}

type docBlockInput struct {
	origPath     string
	relativePath string
	pages        []Page
	processedAt  string
	passUsed     string
	score        float64
	hasScore     bool
	status       string
}

// buildDocBlock renders the header-plus-pages text block that is written
// both to the per-document .txt file and appended to the combined chunk,
// making the block the atomic unit chunking never splits.
func buildDocBlock(in docBlockInput) string {
	var b strings.Builder
	scoreStr := ""
	if in.hasScore {
		scoreStr = strconv.FormatFloat(in.score, 'g', -1, 64)
	}
	fmt.Fprintf(&b, "# original_file: %s\n", in.origPath)
	fmt.Fprintf(&b, "# original_name: %s\n", filepath.Base(in.origPath))
	fmt.Fprintf(&b, "# relative_path: %s\n", in.relativePath)
	fmt.Fprintf(&b, "# pages: %d\n", len(in.pages))
	fmt.Fprintf(&b, "# processed_at: %s\n", in.processedAt)
	fmt.Fprintf(&b, "# pass_used: %s\n", in.passUsed)
	fmt.Fprintf(&b, "# score: %s\n", scoreStr)
	fmt.Fprintf(&b, "# status: %s\n", in.status)
	b.WriteString("\n")

	for _, p := range in.pages {
		fmt.Fprintf(&b, "=== [PAGE %d] ===\n\n", p.Number)
		if p.Text != "" {
			b.WriteString(p.Text)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeTextFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dirs: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o664); err != nil { //nolint:gosec // matches original unRAID-friendly mode
		return err
	}
	_ = os.Chmod(path, 0o664) // best-effort; WriteFile's mode is already 0o664 modulo umask
	return nil
}

const combinedBreak = "----- DOCUMENT BREAK -----\n\n"

// appendCombined picks the correct combined-text chunk for this run and
// appends the document block plus a break marker.
func appendCombined(outputRoot, block string, maxBytes int64) error {
	target, err := PickCombinedPath(outputRoot, len(block), maxBytes)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent dirs: %w", err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664) //nolint:gosec // matches original unRAID-friendly mode
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteString(block); err != nil {
		return err
	}
	if _, err := f.WriteString(combinedBreak); err != nil {
		return err
	}
	return os.Chmod(target, 0o664)
}

// DefaultMaxCombinedBytes is the fallback byte budget used when callers
// don't have a configured override on hand (e.g. direct PickCombinedPath
// callers in tests). Matches config.DefaultMaxCombinedBytes.
const DefaultMaxCombinedBytes = 3_000_000

// PickCombinedPath picks the correct combined-text chunk file for
// appending pendingBytes more content under outputRoot, honoring maxBytes
// as the per-chunk budget. Chunks are named "<parent>_all_text_NNN.txt"
// where <parent> is outputRoot's own directory name. A document is never
// split: if it doesn't fit in the highest-numbered existing chunk, a new
// chunk is started. If the highest chunk's numeric suffix can't be
// parsed, the next index falls back to a simple count of existing chunks.
func PickCombinedPath(outputRoot string, pendingBytes int, maxBytes int64) (string, error) {
	parentName := filepath.Base(outputRoot)
	if parentName == "" || parentName == "." || parentName == string(filepath.Separator) {
		parentName = "all_text"
	}
	prefix := parentName + "_all_text"

	entries, err := os.ReadDir(outputRoot)
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("list output root: %w", err)
	}

	var existing []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix+"_") && strings.HasSuffix(name, ".txt") {
			existing = append(existing, name)
		}
	}
	sort.Strings(existing)

	if len(existing) == 0 {
		return filepath.Join(outputRoot, fmt.Sprintf("%s_001.txt", prefix)), nil
	}

	current := existing[len(existing)-1]
	currentPath := filepath.Join(outputRoot, current)
	currentSize := int64(0)
	if info, err := os.Stat(currentPath); err == nil {
		currentSize = info.Size()
	}

	if currentSize+int64(pendingBytes) <= maxBytes {
		return currentPath, nil
	}

	stem := strings.TrimSuffix(current, ".txt")
	idx := len(existing)
	if at := strings.LastIndexByte(stem, '_'); at >= 0 {
		if n, err := strconv.Atoi(stem[at+1:]); err == nil {
			idx = n
		}
	}
	return filepath.Join(outputRoot, fmt.Sprintf("%s_%03d.txt", prefix, idx+1)), nil
}

// EnsureCatalog creates the output root, its Mandatory Review quarantine
// directory, and the catalog file with its header, if they don't already
// exist.
func EnsureCatalog(outputRoot, csvPath string) error {
	if err := os.MkdirAll(outputRoot, 0o2775); err != nil {
		return fmt.Errorf("create output root: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(outputRoot, "Mandatory Review"), 0o2775); err != nil {
		return fmt.Errorf("create mandatory review dir: %w", err)
	}
	if _, err := os.Stat(csvPath); err == nil {
		return nil
	}
	f, err := os.OpenFile(csvPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o664) //nolint:gosec // matches original unRAID-friendly mode
	if err != nil {
		return fmt.Errorf("create catalog: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(QuoteCSVRow(CatalogHeader)); err != nil {
		return fmt.Errorf("write catalog header: %w", err)
	}
	return nil
}

func appendCatalogRow(csvPath string, row []string) error {
	if err := os.MkdirAll(filepath.Dir(csvPath), 0o2775); err != nil {
		return fmt.Errorf("create parent dirs: %w", err)
	}
	f, err := os.OpenFile(csvPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664) //nolint:gosec // matches original unRAID-friendly mode
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err == nil && info.Size() == 0 {
		if _, err := f.WriteString(QuoteCSVRow(CatalogHeader)); err != nil {
			return err
		}
	}

	if _, err := f.WriteString(QuoteCSVRow(row)); err != nil {
		return err
	}
	return os.Chmod(csvPath, 0o664)
}

// QuoteCSVRow renders row as one CSV line with every field double-quoted,
// matching the original writer's csv.QUOTE_ALL behavior (encoding/csv only
// quotes fields that need it, so it can't express this directly). Shared
// by the catalog and the orchestrator's review manifest, which need the
// identical quoting contract.
func QuoteCSVRow(row []string) string {
	fields := make([]string, len(row))
	for i, v := range row {
		fields[i] = `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
	}
	return strings.Join(fields, ",") + "\n"
}
