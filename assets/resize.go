package assets

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"

	"golang.org/x/image/draw"
)

const DefaultTargetMaxDim = 1080

// Downscale shrinks an image so neither side exceeds maxDim, keeping the aspect ratio and
// the original encoding. Images already within bounds, or a non-positive maxDim, are
// returned unchanged with resized set to false.
func Downscale(data []byte, maxDim int) (out []byte, resized bool, err error) {
	if maxDim <= 0 {
		return data, false, nil
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("unable to read image config: %w", err)
	}
	if cfg.Width <= maxDim && cfg.Height <= maxDim {
		return data, false, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("unable to decode image: %w", err)
	}

	scale := min(float64(maxDim)/float64(cfg.Width), float64(maxDim)/float64(cfg.Height))
	width := max(1, int(math.Round(float64(cfg.Width)*scale)))
	height := max(1, int(math.Round(float64(cfg.Height)*scale)))

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	switch format {
	case "png":
		err = png.Encode(&buf, dst)
	case "jpeg":
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90})
	default:
		return nil, false, fmt.Errorf("unsupported image format %q", format)
	}
	if err != nil {
		return nil, false, fmt.Errorf("unable to encode %s image: %w", format, err)
	}
	return buf.Bytes(), true, nil
}
