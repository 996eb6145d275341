// Copyright 2026 Phillip Cloud
// Licensed under the Apache License, Version 2.0

// Package orchestrator drives a single run: it walks the run tree,
// classifies every file, dispatches it to the matching extraction
// cascade, and carries out the terminal disposition -- delete the source
// on success, quarantine it to "Mandatory Review" with a manifest entry
// on failure.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/docextract/docextract/internal/cascade"
	"github.com/docextract/docextract/internal/config"
	"github.com/docextract/docextract/internal/logging"
	"github.com/docextract/docextract/internal/portfolio"
	"github.com/docextract/docextract/internal/resource"
	"github.com/docextract/docextract/internal/tools"
	"github.com/docextract/docextract/internal/writer"
)

// mandatoryReviewDirName is the quarantine directory the orchestrator
// never walks on the same run.
const mandatoryReviewDirName = "Mandatory Review"

// reviewManifestName is the per-run CSV recording why each quarantined
// file was rejected.
const reviewManifestName = "review_manifest.csv"

var reviewManifestHeader = []string{"filename", "reason", "note"}

// ignoredJunkNames are left behind by empty-directory pruning without
// being treated as "the directory still has content".
var ignoredJunkNames = map[string]bool{
	".DS_Store": true,
	"Thumbs.db": true,
}

// Adapters bundles every external-tool contract the cascades need. A
// caller assembles these once per process (typically the Exec*
// implementations in internal/tools) and passes them through.
type Adapters struct {
	TextExtractor     tools.TextExtractor
	Rasterizer        tools.Rasterizer
	OcrEngine         tools.OcrEngine
	LegacyConverter   tools.LegacyDocConverter
	PortfolioDetacher tools.PortfolioDetacher
}

// classification is the orchestrator's per-file routing decision.
type classification int

const (
	classPDF classification = iota
	classDocx
	classDoc
	classTxt
	classImage
	classNoise
	classUnsupported
)

var imageExts = map[string]bool{
	".tif": true, ".tiff": true, ".png": true, ".jpg": true, ".jpeg": true,
	".bmp": true, ".gif": true,
}

func classify(ext string) classification {
	switch strings.ToLower(ext) {
	case ".pdf":
		return classPDF
	case ".docx":
		return classDocx
	case ".doc":
		return classDoc
	case ".txt":
		return classTxt
	case ".wav":
		return classNoise
	}
	if imageExts[strings.ToLower(ext)] {
		return classImage
	}
	return classUnsupported
}

// Run executes a single run: process everything under runRoot, writing
// per-document artifacts and the catalog under outputRoot, using workDir
// for transient files. It never returns a non-nil error for individual
// file failures -- those are quarantined -- only for conditions that
// prevent the run itself from starting (e.g. the catalog directory
// structure could not be created).
func Run(ctx context.Context, log *logging.Logger, cfg config.Config, ad Adapters, runRoot, outputRoot, workDir string) error {
	absRoot, err := filepath.Abs(runRoot)
	if err != nil {
		return fmt.Errorf("resolve run root: %w", err)
	}
	absOutput, err := filepath.Abs(outputRoot)
	if err != nil {
		return fmt.Errorf("resolve output root: %w", err)
	}

	if _, err := portfolio.UnpackAll(ctx, log, ad.PortfolioDetacher, absRoot, workDir); err != nil && log != nil {
		log.Error("portfolio pre-pass failed: %v", err)
	}

	files, err := discoverFiles(absRoot)
	if err != nil {
		return fmt.Errorf("walk run root: %w", err)
	}

	processable := 0
	for _, f := range files {
		c := classify(filepath.Ext(f))
		if c != classNoise && c != classUnsupported {
			processable++
		}
	}

	csvName := filepath.Base(absRoot) + ".csv"
	if processable == 1 {
		for _, f := range files {
			c := classify(filepath.Ext(f))
			if c != classNoise && c != classUnsupported {
				csvName = strings.TrimSuffix(filepath.Base(f), filepath.Ext(f)) + ".csv"
				break
			}
		}
	}
	csvPath := filepath.Join(absOutput, csvName)

	if err := writer.EnsureCatalog(absOutput, csvPath); err != nil {
		return fmt.Errorf("ensure catalog: %w", err)
	}

	quarantineDir := filepath.Join(absOutput, mandatoryReviewDirName)
	manifestPath := filepath.Join(absOutput, reviewManifestName)

	for _, f := range files {
		processFile(ctx, log, cfg, ad, absRoot, csvPath, quarantineDir, manifestPath, f)
	}

	pruneEmptyDirs(absRoot)
	removeIfEmptyUnderParent(absRoot, filepath.Dir(absRoot))

	return nil
}

// discoverFiles walks runRoot depth-first, skipping "Mandatory Review"
// and any directory beginning with ".", and returns files sorted within
// each directory so catalog rows come out in deterministic tree-walk
// order.
func discoverFiles(runRoot string) ([]string, error) {
	var files []string
	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, e := range entries {
			if e.IsDir() {
				if e.Name() == mandatoryReviewDirName || strings.HasPrefix(e.Name(), ".") {
					continue
				}
				if err := walk(filepath.Join(dir, e.Name())); err != nil {
					return err
				}
				continue
			}
			if strings.HasPrefix(e.Name(), ".") {
				continue
			}
			files = append(files, filepath.Join(dir, e.Name()))
		}
		return nil
	}
	if err := walk(runRoot); err != nil {
		return nil, err
	}
	return files, nil
}

func processFile(ctx context.Context, log *logging.Logger, cfg config.Config, ad Adapters, inputRoot, csvPath, quarantineDir, manifestPath, path string) {
	ext := filepath.Ext(path)
	switch classify(ext) {
	case classNoise:
		if err := os.Remove(path); err != nil && log != nil {
			log.Error("failed to delete noise file %s: %v", path, err)
		}
		return
	case classUnsupported:
		writer.Write(log, writer.Result{
			CSVPath:      csvPath,
			OriginalFile: path,
			InputRoot:    inputRoot,
			PassUsed:     "unsupported",
			Status:       "MANDATORY_REVIEW",
		})
		quarantine(log, manifestPath, quarantineDir, path, "unsupported", "")
		return
	}

	outcome, status := dispatch(ctx, log, cfg, ad, ext, path)

	writer.Write(log, writer.Result{
		CSVPath:          csvPath,
		OriginalFile:     path,
		InputRoot:        inputRoot,
		Pages:            toWriterPages(outcome),
		PassUsed:         outcome.PassUsed,
		Score:            outcome.Score,
		HasScore:         outcome.Accepted,
		Status:           status,
		UsedOCR:          outcome.UsedOCR,
		MaxCombinedBytes: cfg.Output.MaxCombinedBytes,
	})

	if outcome.Accepted {
		if err := os.Remove(path); err != nil && log != nil {
			log.Error("failed to delete processed source %s: %v", path, err)
		}
		return
	}

	quarantine(log, manifestPath, quarantineDir, path, fmt.Sprintf("pass rc=%s", outcome.PassUsed), "")
}

func dispatch(ctx context.Context, log *logging.Logger, cfg config.Config, ad Adapters, ext, path string) (cascade.Outcome, string) {
	var outcome cascade.Outcome
	switch classify(ext) {
	case classPDF:
		outcome = cascade.RunPDFCascade(ctx, log, cascade.PDFConfig{
			PassTxtCutoff:    cfg.Cascade.PassTxtCutoff,
			PassOcrACutoff:   cfg.Cascade.PassOcrACutoff,
			PassOcrBCutoff:   cfg.Cascade.PassOcrBCutoff,
			BigPDFSizeLimMB:  cfg.Cascade.BigPDFSizeLimitMB,
			BigPDFPageLimit:  cfg.Cascade.BigPDFPageLimit,
			MaxOCRPages:      cfg.Cascade.MaxOCRPages,
			MinFreeWorkBytes: resource.MinFreeBytesBeforeOCR,
			WorkDir:          cfg.Paths.WorkDir,
		}, ad.TextExtractor, ad.Rasterizer, ad.OcrEngine, path)
	case classDocx, classDoc:
		outcome = cascade.RunDocCascade(ctx, log, cascade.DocConfig{
			PassDocCutoff:   cfg.Cascade.PassDocCutoff,
			PassDocxCutoff:  cfg.Cascade.PassDocxCutoff,
			DocImgOcrCutoff: cfg.Cascade.DocImgOcrCutoff,
			WorkDir:         cfg.Paths.WorkDir,
		}, ad.LegacyConverter, ad.TextExtractor, ad.OcrEngine, ext, path)
	case classTxt:
		outcome = cascade.RunTxtPass(path)
	case classImage:
		outcome = cascade.RunImageCascade(ctx, log, ad.OcrEngine, path)
	}

	status := "ERROR"
	if outcome.Accepted {
		status = "OK"
	}
	return outcome, status
}

func toWriterPages(o cascade.Outcome) []writer.Page {
	if o.Mode == cascade.ModePerPage || len(o.Pages) > 0 {
		pages := make([]writer.Page, len(o.Pages))
		for i, p := range o.Pages {
			pages[i] = writer.Page{Number: p.Number, Text: p.Text}
		}
		return pages
	}
	if o.DocText == "" && !o.Accepted {
		return nil
	}
	return []writer.Page{{Number: 1, Text: o.DocText}}
}

// quarantine moves path into quarantineDir (preserving its relative
// structure isn't attempted -- files land flat, disambiguated by name --
// matching the original's simple "drop in Mandatory Review" behavior) and
// appends a row to the review manifest.
func quarantine(log *logging.Logger, manifestPath, quarantineDir, path, reason, note string) {
	if err := os.MkdirAll(quarantineDir, 0o2775); err != nil {
		if log != nil {
			log.Error("failed to create quarantine dir: %v", err)
		}
		return
	}
	dest := filepath.Join(quarantineDir, filepath.Base(path))
	dest = uniquify(dest)
	if err := os.Rename(path, dest); err != nil {
		if log != nil {
			log.Error("failed to move %s to quarantine: %v", path, err)
		}
		return
	}
	if err := appendReviewManifest(manifestPath, filepath.Base(path), reason, note); err != nil && log != nil {
		log.Error("failed to append review manifest: %v", err)
	}
}

func uniquify(dest string) string {
	if _, err := os.Stat(dest); err != nil {
		return dest
	}
	ext := filepath.Ext(dest)
	stem := strings.TrimSuffix(dest, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if _, err := os.Stat(candidate); err != nil {
			return candidate
		}
	}
}

func appendReviewManifest(path, filename, reason, note string) error {
	needsHeader := true
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		needsHeader = false
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664) //nolint:gosec // matches original unRAID-friendly mode
	if err != nil {
		return err
	}
	defer f.Close()

	if needsHeader {
		if _, err := f.WriteString(writer.QuoteCSVRow(reviewManifestHeader)); err != nil {
			return err
		}
	}
	_, err = f.WriteString(writer.QuoteCSVRow([]string{filename, reason, note}))
	return err
}

// pruneEmptyDirs removes every directory under root (bottom-up) left
// empty once noise-only junk files are disregarded.
func pruneEmptyDirs(root string) {
	var dirs []string
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || path == root {
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, dir := range dirs {
		removeIfEmpty(dir)
	}
}

func removeIfEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !ignoredJunkNames[e.Name()] {
			return
		}
	}
	for _, e := range entries {
		_ = os.Remove(filepath.Join(dir, e.Name()))
	}
	_ = os.Remove(dir)
}

// removeIfEmptyUnderParent removes root itself, best-effort, only when it
// sits directly under parent and is empty modulo known junk.
func removeIfEmptyUnderParent(root, parent string) {
	if filepath.Dir(root) != parent {
		return
	}
	removeIfEmpty(root)
}
