package pdfkit

import (
	"math"
	"strconv"
	"strings"
)

// Point is a position in PDF points measured from the top-left corner of the
// visible page box, y growing downwards.
type Point struct {
	X, Y float64
}

// Rect uses the same top-left origin as Point.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

func (r Rect) Width() float64  { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Color is RGB with components in 0..1.
type Color struct {
	R, G, B float64
}

var (
	Black = Color{}
	White = Color{R: 1, G: 1, B: 1}
)

// StrokeStyle describes a polyline. Caps and joins are always round.
type StrokeStyle struct {
	Color   Color
	Width   float64
	Opacity float64
}

// box is a page's visible area in default user space.
type box struct {
	llx, lly, urx, ury float64
}

func (b box) width() float64  { return b.urx - b.llx }
func (b box) height() float64 { return b.ury - b.lly }

// toUser maps a top-left point into PDF user space.
func (b box) toUser(p Point) (float64, float64) {
	return b.llx + p.X, b.ury - p.Y
}

// num formats v with at most four decimals and no trailing zeros so that
// identical inputs always produce identical content streams.
func num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	s := strconv.FormatFloat(v, 'f', 4, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}
