// Copyright 2026 Phillip Cloud
// Licensed under the Apache License, Version 2.0

package tools

import (
	"bytes"
	stdimage "image"
	"image/png"
)

// Image is a raw 8-bit grayscale raster, row-major, one byte per pixel.
// It is the typed contract every Rasterizer implementation returns --
// collapsing the duck-typed renderer call shapes of the original source
// (which tried several signatures against a PyMuPDF/Pillow stack at
// runtime) into a single signature implementations must satisfy.
type Image struct {
	Width  int
	Height int
	Gray   []byte
}

// Rotate returns a copy of img rotated clockwise by degrees, which must be
// one of 0, 90, 180, or 270. Any other value returns img unchanged.
func (img Image) Rotate(degrees int) Image {
	switch degrees {
	case 0:
		return img
	case 180:
		out := Image{Width: img.Width, Height: img.Height, Gray: make([]byte, len(img.Gray))}
		n := len(img.Gray)
		for i, v := range img.Gray {
			out.Gray[n-1-i] = v
		}
		return out
	case 90:
		return img.rotate90CW()
	case 270:
		return img.rotate90CW().rotate90CW().rotate90CW()
	default:
		return img
	}
}

// rotate90CW rotates the image 90 degrees clockwise: the new width is the
// old height and vice versa.
func (img Image) rotate90CW() Image {
	out := Image{Width: img.Height, Height: img.Width, Gray: make([]byte, len(img.Gray))}
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			srcIdx := y*img.Width + x
			dstX := img.Height - 1 - y
			dstY := x
			dstIdx := dstY*out.Width + dstX
			out.Gray[dstIdx] = img.Gray[srcIdx]
		}
	}
	return out
}

// EncodePNG encodes the image as PNG bytes for handoff to an OCR engine
// that reads from a file path.
func (img Image) EncodePNG() ([]byte, error) {
	gray := &stdimage.Gray{
		Pix:    img.Gray,
		Stride: img.Width,
		Rect:   stdimage.Rect(0, 0, img.Width, img.Height),
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodePNGGray decodes PNG bytes into a grayscale Image, converting if the
// source uses a different color model.
func decodePNGGray(data []byte) (Image, error) {
	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, err
	}
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := Image{Width: w, Height: h, Gray: make([]byte, w*h)}
	if g, ok := src.(*stdimage.Gray); ok {
		for y := 0; y < h; y++ {
			copy(out.Gray[y*w:(y+1)*w], g.Pix[y*g.Stride:y*g.Stride+w])
		}
		return out, nil
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			lum := (299*r + 587*g + 114*b) / 1000
			out.Gray[y*w+x] = byte(lum >> 8)
		}
	}
	return out, nil
}
