package pdfinfo

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

var errNotPDF = errors.New("artifact is not a pdf")

type Inspector struct{}

func New() *Inspector {
	return &Inspector{}
}

// PageCount parses data as a PDF. The parser panics on some malformed
// inputs; those are reported as errors.
func (i *Inspector) PageCount(data []byte) (pages int, err error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("%PDF-")) {
		return 0, errNotPDF
	}
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	return reader.NumPage(), nil
}
