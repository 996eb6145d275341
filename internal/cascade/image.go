// Copyright 2026 Phillip Cloud
// Licensed under the Apache License, Version 2.0

package cascade

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	stdimage "image"
	"image/jpeg"
	"image/png"
	"os"
	"strings"

	"golang.org/x/image/tiff"

	"github.com/docextract/docextract/internal/logging"
	"github.com/docextract/docextract/internal/reliability"
	"github.com/docextract/docextract/internal/tools"
)

const (
	imgOcrPassName  = "img_ocr"
	thresholdLevel  = 128
)

// RunImageCascade OCRs every frame of an image file (a multi-frame TIFF
// yields one frame per page; other formats are treated as single-frame),
// trying a plain grayscale variant and a hard-thresholded variant per
// frame and keeping the best-scoring result.
func RunImageCascade(ctx context.Context, log *logging.Logger, ocrEngine tools.OcrEngine, path string) Outcome {
	frames, err := decodeFrames(path)
	if err != nil {
		if log != nil {
			log.Error("IMG open failed: %s :: %v", path, err)
		}
		return Outcome{Accepted: false, PassUsed: imgOcrPassName, UsedOCR: true}
	}

	pages := make([]Page, 0, len(frames))
	bestRel := 0.0
	hasText := false

	for i, frame := range frames {
		gray := toGray(frame)
		thresholded := threshold(gray, thresholdLevel)

		text, rel := bestOCR(ctx, log, ocrEngine, i, gray, thresholded)
		pages = append(pages, Page{Number: i + 1, Text: text, Reliability: rel})
		if strings.TrimSpace(text) != "" {
			hasText = true
		}
		if rel > bestRel {
			bestRel = rel
		}
	}

	if !hasText {
		if log != nil {
			log.Warn("IMG had no usable text: %s frames=%d", path, len(frames))
		}
		return Outcome{Accepted: false, Mode: ModePerPage, Score: bestRel, PassUsed: imgOcrPassName, UsedOCR: true}
	}

	if log != nil {
		log.Info("IMG file accepted: %s frames=%d best_rel=%.2f", path, len(frames), bestRel)
	}
	return Outcome{
		Accepted: true,
		Mode:     ModePerPage,
		Pages:    pages,
		Score:    bestRel,
		PassUsed: imgOcrPassName,
		UsedOCR:  true,
	}
}

func bestOCR(ctx context.Context, log *logging.Logger, ocrEngine tools.OcrEngine, frameIdx int, variants ...tools.Image) (string, float64) {
	bestText := ""
	bestRel := 0.0
	for _, v := range variants {
		text, err := ocrEngine.OCRImage(ctx, v, tesseractPSM, tesseractOEM)
		if err != nil {
			if log != nil {
				log.Warn("IMG OCR error @%d: %v", frameIdx+1, err)
			}
			continue
		}
		rel := reliability.Score(text)
		if rel > bestRel || bestText == "" {
			bestText = text
			bestRel = rel
		}
	}
	return bestText, bestRel
}

// decodeFrames reads every frame of an image file. Multi-frame TIFFs
// produce one tools.Image per frame; all other supported formats produce
// exactly one.
func decodeFrames(path string) ([]tools.Image, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path supplied by the orchestrator's own tree walk
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".tif") || strings.HasSuffix(lower, ".tiff") {
		return decodeTIFFFrames(data)
	}

	img, err := decodeSingleImage(data)
	if err != nil {
		return nil, err
	}
	return []tools.Image{toToolsImage(img)}, nil
}

// decodeTIFFFrames decodes every page of a TIFF. x/image/tiff.Decode only
// ever reads the first IFD it's pointed at, so each additional page is
// decoded by walking the IFD chain ourselves and re-pointing a scratch
// copy of the header at each IFD offset in turn -- the image data each
// IFD's tags reference is untouched, so tiff.Decode reads it normally.
func decodeTIFFFrames(data []byte) ([]tools.Image, error) {
	offsets, bo, err := tiffIFDOffsets(data)
	if err != nil || len(offsets) == 0 {
		img, err := tiff.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return []tools.Image{toToolsImage(img)}, nil
	}

	frames := make([]tools.Image, 0, len(offsets))
	for _, off := range offsets {
		page := make([]byte, len(data))
		copy(page, data)
		bo.PutUint32(page[4:8], off)
		img, err := tiff.Decode(bytes.NewReader(page))
		if err != nil {
			continue
		}
		frames = append(frames, toToolsImage(img))
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("tiff: no decodable frames")
	}
	return frames, nil
}

// tiffIFDOffsets walks a TIFF's IFD chain from the header's first-IFD
// pointer, following each IFD's trailing next-IFD offset until it hits
// zero, and returns every offset visited along with the file's detected
// byte order. A truncated or unrecognized header yields (nil, nil, err) so
// the caller can fall back to a single-frame decode; a chain that loops or
// runs past the end of data stops there, returning the offsets visited so
// far with a nil error.
func tiffIFDOffsets(data []byte) ([]uint32, binary.ByteOrder, error) {
	if len(data) < 8 {
		return nil, nil, fmt.Errorf("tiff: truncated header")
	}
	var bo binary.ByteOrder
	switch string(data[0:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return nil, nil, fmt.Errorf("tiff: bad byte order marker")
	}
	if bo.Uint16(data[2:4]) != 42 {
		return nil, nil, fmt.Errorf("tiff: bad magic number")
	}

	var offsets []uint32
	seen := make(map[uint32]bool)
	next := bo.Uint32(data[4:8])
	for next != 0 {
		if seen[next] || int(next)+2 > len(data) {
			break
		}
		seen[next] = true
		offsets = append(offsets, next)

		numEntries := int(bo.Uint16(data[next : next+2]))
		entriesEnd := int(next) + 2 + numEntries*12
		if entriesEnd+4 > len(data) {
			break
		}
		next = bo.Uint32(data[entriesEnd : entriesEnd+4])
	}
	return offsets, bo, nil
}

func decodeSingleImage(data []byte) (stdimage.Image, error) {
	if img, err := png.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := jpeg.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	img, _, err := stdimage.Decode(bytes.NewReader(data))
	return img, err
}

func toToolsImage(src stdimage.Image) tools.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := tools.Image{Width: w, Height: h, Gray: make([]byte, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			lum := (299*r + 587*g + 114*b) / 1000
			out.Gray[y*w+x] = byte(lum >> 8)
		}
	}
	return out
}

func toGray(img tools.Image) tools.Image { return img }

// threshold returns a copy of img with every pixel forced to pure black
// or pure white at the given cutoff, the second OCR variant every frame
// is tried against.
func threshold(img tools.Image, cutoff byte) tools.Image {
	out := tools.Image{Width: img.Width, Height: img.Height, Gray: make([]byte, len(img.Gray))}
	for i, v := range img.Gray {
		if v >= cutoff {
			out.Gray[i] = 255
		} else {
			out.Gray[i] = 0
		}
	}
	return out
}
