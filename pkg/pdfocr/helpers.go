package pdfocr

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// scaler maps segment coordinates onto a page of pdfW x pdfH points
func scaler(config Config, pdfW, pdfH float64) func(x, y float64) (float64, float64) {
	srcW, srcH := config.SourceWidth, config.SourceHeight
	if srcW <= 0 {
		srcW = pdfW
	}
	if srcH <= 0 {
		srcH = pdfH
	}
	return func(x, y float64) (float64, float64) {
		return normalizeCoords(x, y, srcW, srcH, pdfW, pdfH)
	}
}

// normalizeCoords rescales source coords to the PDF coords
func normalizeCoords(x, y, srcW, srcH, pdfW, pdfH float64) (float64, float64) {
	nx := (x / srcW) * pdfW
	ny := (y / srcH) * pdfH
	return nx, ny
}

func unescapePDFString(s string) string {
	s = strings.ReplaceAll(s, "\\(", "(")
	s = strings.ReplaceAll(s, "\\)", ")")
	s = strings.ReplaceAll(s, "\\\\", "\\")
	return s
}

// decodeUTF16BE decodes a PDF text string that starts with a UTF-16 byte order mark
func decodeUTF16BE(b []byte) (string, error) {
	if len(b) < 2 || b[0] != 0xFE || b[1] != 0xFF {
		return "", fmt.Errorf("no BOM detected, cannot confirm UTF-16BE")
	}
	out, err := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode UTF-16BE: %w", err)
	}
	return string(out), nil
}

// dumpPDFStructure is a debug utility that prints out
// the first N bytes of the PDF plus any /OCG layer references.
func dumpPDFStructure(pdfData []byte, byteCount int, logger io.Writer) {
	if byteCount > len(pdfData) {
		byteCount = len(pdfData)
	}

	fmt.Fprintln(logger, "===== PDF STRUCTURE DUMP (FIRST", byteCount, "BYTES) =====")
	fmt.Fprintln(logger, string(pdfData[:byteCount]))
	fmt.Fprintln(logger, "===== END PDF STRUCTURE DUMP =====")

	ocgIndex := bytes.Index(pdfData, []byte("/OCG"))
	if ocgIndex >= 0 {
		start := max(ocgIndex-20, 0)
		end := min(ocgIndex+100, len(pdfData))
		fmt.Fprintln(logger, "===== OCG CONTEXT =====")
		fmt.Fprintln(logger, string(pdfData[start:end]))
		fmt.Fprintln(logger, "===== END OCG CONTEXT =====")
	}
}
