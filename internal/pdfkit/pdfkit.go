// Package pdfkit wraps pdfcpu for the few document operations the editor
// needs: counting pages, concatenating documents and stamping vector and
// raster overlays onto pages.
package pdfkit

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrInvalidPDF wraps every parse failure.
var ErrInvalidPDF = errors.New("invalid pdf")

func init() {
	// Keep pdfcpu from creating a config directory in $HOME.
	model.ConfigPath = "disable"
}

func configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PageCount parses data and returns its number of pages.
func PageCount(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: empty input", ErrInvalidPDF)
	}
	n, err := api.PageCount(bytes.NewReader(data), configuration())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	return n, nil
}

// Merge concatenates docs in order.
func Merge(docs [][]byte) ([]byte, error) {
	if len(docs) == 0 {
		return nil, errors.New("nothing to merge")
	}
	rs := make([]io.ReadSeeker, 0, len(docs))
	for _, d := range docs {
		rs = append(rs, bytes.NewReader(d))
	}
	var out bytes.Buffer
	if err := api.MergeRaw(rs, &out, false, configuration()); err != nil {
		return nil, fmt.Errorf("merging %d documents: %w", len(docs), err)
	}
	return out.Bytes(), nil
}
