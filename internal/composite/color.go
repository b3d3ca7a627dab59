package composite

import (
	"strconv"
	"strings"

	"github.com/samuelysliu/pdf-editor/internal/pdfkit"
)

// ParseHexColor converts "#rrggbb" (the # is optional) to an RGB triple.
// Anything else yields black.
func ParseHexColor(s string) pdfkit.Color {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return pdfkit.Black
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return pdfkit.Black
	}
	return pdfkit.Color{
		R: float64((v>>16)&0xff) / 255,
		G: float64((v>>8)&0xff) / 255,
		B: float64(v&0xff) / 255,
	}
}
