// Copyright 2026 Phillip Cloud
// Licensed under the Apache License, Version 2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
)

// Config is the top-level application configuration, loaded from a TOML
// file with environment variables applied on top.
type Config struct {
	Cascade Cascade `toml:"cascade"`
	Output  Output  `toml:"output"`
	Paths   Paths   `toml:"paths"`
	Logging Logging `toml:"logging"`

	// Warnings collects non-fatal messages discovered during load. Not
	// serialized; the caller decides how to display them.
	Warnings []string `toml:"-"`
}

// Cascade holds the reliability cutoffs and size thresholds that drive the
// tiered extraction cascade.
type Cascade struct {
	// PassTxtCutoff is the minimum median reliability for the PDF
	// text-layer pass to be accepted outright. Default: 0.80.
	PassTxtCutoff float64 `toml:"pass_txt_cutoff"`

	// PassOcrACutoff is the minimum median reliability for the fast
	// (300 DPI) OCR pass. Default: 0.70.
	PassOcrACutoff float64 `toml:"pass_ocr_a_cutoff"`

	// PassOcrBCutoff is the minimum median reliability for the aggressive
	// (400 DPI, rotation-swept) OCR pass. Default: 0.60.
	PassOcrBCutoff float64 `toml:"pass_ocr_b_cutoff"`

	// PassDocCutoff is the minimum reliability for legacy .doc native
	// extraction. Default: 0.75.
	PassDocCutoff float64 `toml:"pass_doc_cutoff"`

	// PassDocxCutoff is the minimum reliability for .docx native
	// extraction. Default: 0.70.
	PassDocxCutoff float64 `toml:"pass_docx_cutoff"`

	// DocImgOcrCutoff is the minimum per-image reliability for OCR run
	// against images embedded in a DOCX. Default: 0.50.
	DocImgOcrCutoff float64 `toml:"doc_img_ocr_cutoff"`

	// BigPDFSizeLimitMB is the file-size threshold, in MiB, at or above
	// which a PDF is processed per-page instead of per-document. Default: 50.
	BigPDFSizeLimitMB int `toml:"bigpdf_size_limit_mb"`

	// BigPDFPageLimit is the page-count threshold at or above which a PDF
	// is processed per-page instead of per-document. Default: 500.
	BigPDFPageLimit int `toml:"bigpdf_page_limit"`

	// MaxOCRPages caps how many pages of a single PDF are OCR'd once the
	// cascade falls through to OCR-A/OCR-B. 0 means unlimited: OCR every
	// page the mode selection already committed to. Default: 0.
	MaxOCRPages int `toml:"max_ocr_pages"`
}

// Output holds settings for the catalog and combined-text writer.
type Output struct {
	// MaxCombinedBytes is the byte budget for a single combined-text chunk
	// file; a document is never split across chunks, so a chunk may exceed
	// this budget by up to one document's size. Default: 3,000,000.
	MaxCombinedBytes int64 `toml:"max_combined_bytes"`
}

// Paths holds the filesystem locations the orchestrator operates over.
type Paths struct {
	// InputDir is the root directory the orchestrator walks for work.
	InputDir string `toml:"input_dir"`

	// OutputDir is where per-document text files, the catalog, and
	// combined-text chunks are written.
	OutputDir string `toml:"output_dir"`

	// WorkDir holds temporary converted PDFs (removed after use) and the
	// portfolio_hidden tree of neutralized portfolio parents, and is the
	// filesystem checked for free space before OCR. Rasterized pages and
	// OCR scratch images are written to the system temp directory, not
	// here.
	WorkDir string `toml:"work_dir"`

	// RunLog is the path the run's log lines are appended to, in addition
	// to stdout.
	RunLog string `toml:"run_log"`

	// PUID and PGID are the uid/gid of the original container's
	// unprivileged-user convention. They are loaded and overridable but
	// not applied: nothing in this module changes ownership of the files
	// it creates.
	PUID int `toml:"puid"`
	PGID int `toml:"pgid"`
}

// Logging holds logger configuration.
type Logging struct {
	// Level is one of DEBUG, INFO, WARN, ERROR. Default: INFO.
	Level string `toml:"level"`
}

const (
	DefaultPassTxtCutoff     = 0.80
	DefaultPassOcrACutoff    = 0.70
	DefaultPassOcrBCutoff    = 0.60
	DefaultPassDocCutoff     = 0.75
	DefaultPassDocxCutoff    = 0.70
	DefaultDocImgOcrCutoff   = 0.50
	DefaultBigPDFSizeLimitMB = 50
	DefaultBigPDFPageLimit   = 500
	DefaultMaxCombinedBytes  = 3_000_000
	DefaultLogLevel          = "INFO"
	configRelPath            = "docextract/config.toml"
)

// defaults returns a Config with all default values populated.
func defaults() Config {
	return Config{
		Cascade: Cascade{
			PassTxtCutoff:     DefaultPassTxtCutoff,
			PassOcrACutoff:    DefaultPassOcrACutoff,
			PassOcrBCutoff:    DefaultPassOcrBCutoff,
			PassDocCutoff:     DefaultPassDocCutoff,
			PassDocxCutoff:    DefaultPassDocxCutoff,
			DocImgOcrCutoff:   DefaultDocImgOcrCutoff,
			BigPDFSizeLimitMB: DefaultBigPDFSizeLimitMB,
			BigPDFPageLimit:   DefaultBigPDFPageLimit,
		},
		Output: Output{
			MaxCombinedBytes: DefaultMaxCombinedBytes,
		},
		Logging: Logging{
			Level: DefaultLogLevel,
		},
	}
}

// Path returns the expected config file path
// (XDG_CONFIG_HOME/docextract/config.toml).
func Path() string {
	return filepath.Join(xdg.ConfigHome, configRelPath)
}

// Load reads the TOML config file from the default path if it exists,
// falls back to defaults for any unset fields, and applies environment
// variable overrides last.
func Load() (Config, error) {
	return LoadFromPath(Path())
}

// LoadFromPath reads the TOML config file at the given path if it exists,
// falls back to defaults for any unset fields, and applies environment
// variable overrides last.
func LoadFromPath(path string) (Config, error) {
	cfg := defaults()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if v := os.Getenv("OCR_CUTOFF"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Warnings = append(cfg.Warnings, "OCR_CUTOFF is deprecated -- use PASS_OCR_A_CUTOFF and PASS_OCR_B_CUTOFF instead")
			if os.Getenv("PASS_OCR_A_CUTOFF") == "" {
				cfg.Cascade.PassOcrACutoff = f
			}
			if os.Getenv("PASS_OCR_B_CUTOFF") == "" {
				cfg.Cascade.PassOcrBCutoff = f
			}
		}
	}

	if cfg.Cascade.PassTxtCutoff <= 0 || cfg.Cascade.PassTxtCutoff > 1 {
		return cfg, fmt.Errorf("cascade.pass_txt_cutoff must be in (0, 1], got %v", cfg.Cascade.PassTxtCutoff)
	}
	if cfg.Cascade.PassOcrACutoff <= 0 || cfg.Cascade.PassOcrACutoff > 1 {
		return cfg, fmt.Errorf("cascade.pass_ocr_a_cutoff must be in (0, 1], got %v", cfg.Cascade.PassOcrACutoff)
	}
	if cfg.Cascade.PassOcrBCutoff <= 0 || cfg.Cascade.PassOcrBCutoff > 1 {
		return cfg, fmt.Errorf("cascade.pass_ocr_b_cutoff must be in (0, 1], got %v", cfg.Cascade.PassOcrBCutoff)
	}
	if cfg.Cascade.PassDocCutoff <= 0 || cfg.Cascade.PassDocCutoff > 1 {
		return cfg, fmt.Errorf("cascade.pass_doc_cutoff must be in (0, 1], got %v", cfg.Cascade.PassDocCutoff)
	}
	if cfg.Cascade.PassDocxCutoff <= 0 || cfg.Cascade.PassDocxCutoff > 1 {
		return cfg, fmt.Errorf("cascade.pass_docx_cutoff must be in (0, 1], got %v", cfg.Cascade.PassDocxCutoff)
	}
	if cfg.Cascade.DocImgOcrCutoff <= 0 || cfg.Cascade.DocImgOcrCutoff > 1 {
		return cfg, fmt.Errorf("cascade.doc_img_ocr_cutoff must be in (0, 1], got %v", cfg.Cascade.DocImgOcrCutoff)
	}
	if cfg.Cascade.BigPDFSizeLimitMB <= 0 {
		return cfg, fmt.Errorf("cascade.bigpdf_size_limit_mb must be positive, got %d", cfg.Cascade.BigPDFSizeLimitMB)
	}
	if cfg.Cascade.BigPDFPageLimit <= 0 {
		return cfg, fmt.Errorf("cascade.bigpdf_page_limit must be positive, got %d", cfg.Cascade.BigPDFPageLimit)
	}
	if cfg.Cascade.MaxOCRPages < 0 {
		return cfg, fmt.Errorf("cascade.max_ocr_pages must be >= 0 (0 = unlimited), got %d", cfg.Cascade.MaxOCRPages)
	}
	if cfg.Output.MaxCombinedBytes <= 0 {
		return cfg, fmt.Errorf("output.max_combined_bytes must be positive, got %d", cfg.Output.MaxCombinedBytes)
	}

	switch strings.ToUpper(cfg.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
		cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	default:
		return cfg, fmt.Errorf("logging.level must be one of DEBUG, INFO, WARN, ERROR, got %q", cfg.Logging.Level)
	}

	if cfg.Paths.InputDir == "" {
		return cfg, fmt.Errorf("paths.input_dir (or INPUT_DIR) is required")
	}
	if cfg.Paths.OutputDir == "" {
		return cfg, fmt.Errorf("paths.output_dir (or OUTPUT_DIR) is required")
	}
	if cfg.Paths.WorkDir == "" {
		return cfg, fmt.Errorf("paths.work_dir (or WORK_DIR) is required")
	}

	return cfg, nil
}

// applyEnvOverrides lets environment variables override config-file values,
// mirroring the original scripts' env-first configuration convention.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PASS_TXT_CUTOFF"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Cascade.PassTxtCutoff = f
		}
	}
	if v := os.Getenv("PASS_OCR_A_CUTOFF"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Cascade.PassOcrACutoff = f
		}
	}
	if v := os.Getenv("PASS_OCR_B_CUTOFF"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Cascade.PassOcrBCutoff = f
		}
	}
	if v := os.Getenv("PASS_DOC_CUTOFF"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Cascade.PassDocCutoff = f
		}
	}
	if v := os.Getenv("PASS_DOCX_CUTOFF"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Cascade.PassDocxCutoff = f
		}
	}
	if v := os.Getenv("DOC_IMG_OCR_CUTOFF"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Cascade.DocImgOcrCutoff = f
		}
	}
	if v := os.Getenv("BIGPDF_SIZE_LIMIT_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cascade.BigPDFSizeLimitMB = n
		}
	}
	if v := os.Getenv("BIGPDF_PAGE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cascade.BigPDFPageLimit = n
		}
	}
	if v := os.Getenv("MAX_OCR_PAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cascade.MaxOCRPages = n
		}
	}
	if v := os.Getenv("MAX_COMBINED_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Output.MaxCombinedBytes = n
		}
	}
	if v := os.Getenv("PUID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Paths.PUID = n
		}
	}
	if v := os.Getenv("PGID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Paths.PGID = n
		}
	}
	if v := os.Getenv("INPUT_DIR"); v != "" {
		cfg.Paths.InputDir = v
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.Paths.OutputDir = v
	}
	if v := os.Getenv("WORK_DIR"); v != "" {
		cfg.Paths.WorkDir = v
	}
	if v := os.Getenv("RUN_LOG"); v != "" {
		cfg.Paths.RunLog = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// ExampleTOML returns a commented config file suitable for writing as a
// starter config. Not written automatically; the CLI does not print or
// write it.
func ExampleTOML() string {
	return `# docextract configuration
# Place this file at: ` + Path() + `
# Every value below may also be set, and takes lower precedence than,
# the identically-named environment variable (e.g. PASS_TXT_CUTOFF).

[cascade]
# Minimum median per-page reliability for the PDF text-layer pass to be
# accepted without falling back to OCR.
pass_txt_cutoff = 0.80

# Minimum median reliability for the fast (300 DPI) OCR pass.
pass_ocr_a_cutoff = 0.70

# Minimum median reliability for the aggressive (400 DPI, rotation-swept)
# OCR pass -- the last tier before a file is quarantined.
pass_ocr_b_cutoff = 0.60

# Minimum reliability for legacy .doc native extraction.
pass_doc_cutoff = 0.75

# Minimum reliability for .docx native extraction.
pass_docx_cutoff = 0.70

# Minimum per-image reliability for OCR run against images embedded in a
# DOCX that failed native text extraction.
doc_img_ocr_cutoff = 0.50

# File-size threshold (MiB) at or above which a PDF is processed per-page
# instead of per-document.
bigpdf_size_limit_mb = 50

# Page-count threshold at or above which a PDF is processed per-page
# instead of per-document.
bigpdf_page_limit = 500

# Caps how many pages of a single PDF are OCR'd once the cascade falls
# through to OCR-A/OCR-B. 0 means unlimited.
max_ocr_pages = 0

[output]
# Byte budget for a single combined-text chunk file. A document is never
# split across chunks, so a chunk may slightly exceed this budget.
max_combined_bytes = 3000000

[paths]
# input_dir = "/data/input"
# output_dir = "/data/output"
# work_dir = "/data/work"
# run_log = "/data/output/run.log"
# puid = 1000
# pgid = 1000

[logging]
# One of DEBUG, INFO, WARN, ERROR.
level = "INFO"
`
}
