// Copyright 2026 Phillip Cloud
// Licensed under the Apache License, Version 2.0

// Package tools probes for the external binaries the extraction cascade
// shells out to, caching each lookup for the process lifetime.
package tools

import (
	"os/exec"
	"sync"
)

type probe struct {
	once  sync.Once
	found bool
}

func (p *probe) has(name string) bool {
	p.once.Do(func() {
		_, err := exec.LookPath(name)
		p.found = err == nil
	})
	return p.found
}

var (
	pdfinfoProbe     probe
	pdftotextProbe   probe
	pdftoppmProbe    probe
	tesseractProbe   probe
	antiwordProbe    probe
	catdocProbe      probe
	libreofficeProbe probe
	unoconvProbe     probe
	pdfdetachProbe   probe
)

// HasPDFInfo reports whether pdfinfo (poppler-utils) is on PATH.
func HasPDFInfo() bool { return pdfinfoProbe.has("pdfinfo") }

// HasPDFToText reports whether pdftotext (poppler-utils) is on PATH.
func HasPDFToText() bool { return pdftotextProbe.has("pdftotext") }

// HasPDFToPPM reports whether pdftoppm (poppler-utils) is on PATH.
func HasPDFToPPM() bool { return pdftoppmProbe.has("pdftoppm") }

// HasTesseract reports whether tesseract is on PATH.
func HasTesseract() bool { return tesseractProbe.has("tesseract") }

// HasAntiword reports whether antiword (legacy .doc converter) is on PATH.
func HasAntiword() bool { return antiwordProbe.has("antiword") }

// HasCatdoc reports whether catdoc (legacy .doc converter fallback) is on PATH.
func HasCatdoc() bool { return catdocProbe.has("catdoc") }

// HasLibreOffice reports whether libreoffice is on PATH.
func HasLibreOffice() bool { return libreofficeProbe.has("libreoffice") }

// HasUnoconv reports whether unoconv is on PATH.
func HasUnoconv() bool { return unoconvProbe.has("unoconv") }

// HasPDFDetach reports whether pdfdetach (poppler-utils) is on PATH.
func HasPDFDetach() bool { return pdfdetachProbe.has("pdfdetach") }

// PDFTextAvailable reports whether the minimum tools for the text-layer
// pass are present.
func PDFTextAvailable() bool { return HasPDFInfo() && HasPDFToText() }

// OCRAvailable reports whether both tesseract and pdftoppm are available,
// the minimum needed to OCR scanned PDF pages.
func OCRAvailable() bool { return HasTesseract() && HasPDFToPPM() }

// ImageOCRAvailable reports whether tesseract is available for direct
// image OCR (no rasterization tool needed for raster image files).
func ImageOCRAvailable() bool { return HasTesseract() }

// LegacyDocConverterAvailable reports whether antiword or catdoc -- enough
// to attempt native .doc extraction -- is available.
func LegacyDocConverterAvailable() bool { return HasAntiword() || HasCatdoc() }

// OfficeConverterAvailable reports whether a headless office converter
// (libreoffice or unoconv) is available for the DOC/DOCX-to-PDF fallback.
func OfficeConverterAvailable() bool { return HasLibreOffice() || HasUnoconv() }

// PortfolioDetachAvailable reports whether pdfdetach is available for
// portfolio attachment listing/extraction.
func PortfolioDetachAvailable() bool { return HasPDFDetach() }
