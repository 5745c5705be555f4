package capture

import (
	"hash/fnv"
	"image"
	"image/color"
)

const (
	maxAnalyzeDim = 200

	// Luminance thresholds on the 0..255 scale: 30% and 70%
	darkThreshold   = 76
	brightThreshold = 178
)

// signaturePoints are relative positions sampled to detect an
// unchanged frame without rescanning every pixel
var signaturePoints = [7][2]float64{
	{0.1, 0.1}, {0.9, 0.1}, {0.5, 0.5}, {0.1, 0.9}, {0.9, 0.9}, {0.3, 0.5}, {0.7, 0.5},
}

// downsample shrinks the frame to at most maxDim on its longer side
// using nearest-neighbor sampling and converts it to 8-bit luminance.
// Frames already small enough are converted as-is.
func downsample(img image.Image, maxDim int) *image.Gray {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	dstW, dstH := srcW, srcH
	if srcW > maxDim || srcH > maxDim {
		if srcW >= srcH {
			dstW = maxDim
			dstH = srcH * maxDim / srcW
		} else {
			dstH = maxDim
			dstW = srcW * maxDim / srcH
		}
	}
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}

	gray := image.NewGray(image.Rect(0, 0, dstW, dstH))
	for y := 0; y < dstH; y++ {
		srcY := bounds.Min.Y + y*srcH/dstH
		for x := 0; x < dstW; x++ {
			srcX := bounds.Min.X + x*srcW/dstW
			r, g, b, _ := img.At(srcX, srcY).RGBA()
			luma := (299*r + 587*g + 114*b) / 1000
			gray.SetGray(x, y, color.Gray{Y: uint8(luma >> 8)})
		}
	}

	return gray
}

// analyze computes the luminance statistics of a downsampled frame
func analyze(gray *image.Gray) Stats {
	bounds := gray.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return Stats{}
	}

	var sum, dark, bright int
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := gray.Pix[(y-bounds.Min.Y)*gray.Stride : (y-bounds.Min.Y)*gray.Stride+bounds.Dx()]
		for _, v := range row {
			sum += int(v)
			if v < darkThreshold {
				dark++
			}
			if v > brightThreshold {
				bright++
			}
		}
	}

	return Stats{
		Mean:        float64(sum) / float64(total),
		DarkRatio:   float64(dark) / float64(total),
		BrightRatio: float64(bright) / float64(total),
	}
}

// signature hashes a handful of sample pixels; matching signatures
// mean the frame very likely did not change
func signature(gray *image.Gray) uint64 {
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return 0
	}

	hash := fnv.New64a()
	buf := make([]byte, 0, len(signaturePoints))
	for _, p := range signaturePoints {
		x := int(p[0] * float64(w-1))
		y := int(p[1] * float64(h-1))
		buf = append(buf, gray.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
	}
	_, _ = hash.Write(buf)

	return hash.Sum64()
}
