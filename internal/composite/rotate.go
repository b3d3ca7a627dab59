package composite

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// rotationThreshold is the smallest rotation, in degrees, worth resampling.
const rotationThreshold = 0.1

// RotateClockwise rotates src by deg degrees clockwise, growing the canvas to
// hold the whole result. Uncovered corners stay transparent.
func RotateClockwise(src image.Image, deg float64) image.Image {
	b := src.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	rad := deg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)

	dw := expandedSide(w*cos, h*sin)
	dh := expandedSide(w*sin, h*cos)
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))

	// Source pixel (x, y) maps to R * (p - srcCenter) + dstCenter, where R is
	// a clockwise rotation in a y-down coordinate system.
	scx := float64(b.Min.X) + w/2
	scy := float64(b.Min.Y) + h/2
	dcx, dcy := float64(dw)/2, float64(dh)/2
	s2d := f64.Aff3{
		cos, -sin, dcx - (cos*scx - sin*scy),
		sin, cos, dcy - (sin*scx + cos*scy),
	}
	draw.CatmullRom.Transform(dst, s2d, src, b, draw.Src, nil)
	return dst
}

func expandedSide(a, b float64) int {
	side := math.Abs(a) + math.Abs(b)
	side = math.Round(side*1e6) / 1e6
	n := int(math.Ceil(side))
	if n < 1 {
		n = 1
	}
	return n
}
