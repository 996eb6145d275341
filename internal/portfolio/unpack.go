// Copyright 2026 Phillip Cloud
// Licensed under the Apache License, Version 2.0

// Package portfolio detects and unpacks PDF portfolios -- PDFs that carry
// one or more embedded file attachments -- as a pre-pass over the run
// tree, so each attachment is picked up as a first-class input on the
// orchestrator's subsequent walk.
package portfolio

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/docextract/docextract/internal/logging"
	"github.com/docextract/docextract/internal/resource"
	"github.com/docextract/docextract/internal/tools"
)

const manifestFileName = "portfolio_manifest.csv"

// Unpacked describes one portfolio parent that was successfully detected
// and extracted.
type Unpacked struct {
	ParentPDF    string
	OutDir       string
	ManifestPath string
	ChildCount   int
}

// UnpackAll walks root for PDFs carrying embedded attachments, extracting
// each into a sibling "<stem>__portfolio" directory, writing a manifest,
// and neutralizing the parent so the orchestrator's own tree walk skips
// it on the next pass. Hidden directories are pruned during the walk.
func UnpackAll(ctx context.Context, log *logging.Logger, detacher tools.PortfolioDetacher, root, workDir string) ([]Unpacked, error) {
	var pdfs []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".pdf") {
			pdfs = append(pdfs, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	var results []Unpacked
	for _, pdfPath := range pdfs {
		count, err := detacher.ListAttachments(ctx, pdfPath)
		if err != nil || count <= 0 {
			continue
		}
		if log != nil {
			log.Info("PORTFOLIO detected (%d attachments): %s", count, pdfPath)
		}

		outDir := filepath.Join(filepath.Dir(pdfPath), strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))+"__portfolio")
		if err := os.MkdirAll(outDir, 0o2775); err != nil {
			if log != nil {
				log.Error("could not create portfolio output dir %s: %v", outDir, err)
			}
			continue
		}

		if !resource.HasHeadroom(outDir, resource.MinFreeBytesBeforeOCR) {
			if log != nil {
				free, _ := resource.FreeBytes(outDir)
				log.Warn("low disk (%s free, need %s): skipping portfolio extraction for %s", humanize.Bytes(uint64(max(free, 0))), humanize.Bytes(uint64(resource.MinFreeBytesBeforeOCR)), filepath.Base(pdfPath))
			}
			continue
		}

		if err := detacher.ExtractAll(ctx, pdfPath, outDir); err != nil {
			if log != nil {
				log.Error("pdfdetach failed for %s: %v", filepath.Base(pdfPath), err)
			}
			continue
		}

		children, err := renameChildren(outDir, filepath.Base(pdfPath))
		if err != nil {
			if log != nil {
				log.Error("failed renaming portfolio children in %s: %v", outDir, err)
			}
			continue
		}

		manifestPath, err := writeManifest(outDir, filepath.Base(pdfPath), children)
		if err != nil && log != nil {
			log.Error("failed writing portfolio manifest in %s: %v", outDir, err)
		}

		if err := NeutralizeParent(pdfPath, root, workDir); err != nil && log != nil {
			log.Warn("could not hide/move parent %s: %v", filepath.Base(pdfPath), err)
		}

		if log != nil {
			log.Info("PORTFOLIO extracted -> %s (%d children)", outDir, len(children))
		}
		results = append(results, Unpacked{ParentPDF: pdfPath, OutDir: outDir, ManifestPath: manifestPath, ChildCount: len(children)})
	}
	return results, nil
}

// renameChildren renames every extracted file to "<Parent>::<Child>" for
// catalog traceability and returns the new paths.
func renameChildren(outDir, parentName string) ([]string, error) {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, err
	}
	var children []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		oldPath := filepath.Join(outDir, e.Name())
		newName := parentName + "::" + e.Name()
		newPath := filepath.Join(outDir, newName)
		if err := os.Rename(oldPath, newPath); err != nil {
			children = append(children, oldPath)
			continue
		}
		children = append(children, newPath)
	}
	return children, nil
}

// writeManifest records parent_pdf, child_name, child_relpath, size_bytes
// for every extracted attachment.
func writeManifest(outDir, parentName string, children []string) (string, error) {
	manifestPath := filepath.Join(outDir, manifestFileName)
	f, err := os.Create(manifestPath) //nolint:gosec // path constructed internally under our own output dir
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"parent_pdf", "child_name", "child_relpath", "size_bytes"}); err != nil {
		return "", err
	}
	for _, child := range children {
		size := ""
		if info, err := os.Stat(child); err == nil {
			size = strconv.FormatInt(info.Size(), 10)
		}
		rel, err := filepath.Rel(outDir, child)
		if err != nil {
			rel = filepath.Base(child)
		}
		if err := w.Write([]string{parentName, filepath.Base(child), rel, size}); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return manifestPath, nil
}

// NeutralizeParent moves a portfolio parent out of the run tree so the
// orchestrator's tree walk never revisits it. The preferred destination
// mirrors the parent's relative path under
// workDir/portfolio_hidden/<rel>/.<name>; if that move fails for any
// reason (cross-device, permissions), it falls back to an in-place rename
// that prepends a dot, which the orchestrator's walk also skips.
func NeutralizeParent(parentPDF, inputRoot, workDir string) error {
	absParent, err := filepath.Abs(parentPDF)
	if err != nil {
		absParent = parentPDF
	}
	absRoot, err := filepath.Abs(inputRoot)
	if err != nil {
		absRoot = inputRoot
	}
	absWork, err := filepath.Abs(workDir)
	if err != nil {
		absWork = workDir
	}

	relDir, err := filepath.Rel(absRoot, filepath.Dir(absParent))
	if err == nil && !strings.HasPrefix(relDir, "..") {
		hiddenRoot := filepath.Join(absWork, "portfolio_hidden", relDir)
		if err := os.MkdirAll(hiddenRoot, 0o2775); err == nil {
			dest := filepath.Join(hiddenRoot, "."+filepath.Base(absParent))
			if err := os.Rename(absParent, dest); err == nil {
				return nil
			}
		}
	}

	fallback := filepath.Join(filepath.Dir(absParent), "."+filepath.Base(absParent))
	return os.Rename(absParent, fallback)
}
