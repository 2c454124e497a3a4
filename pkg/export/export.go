// Package export renders line segments into downloadable files.
//
// Every renderer is a pure function of a line-segment snapshot: no renderer performs I/O,
// and calling one twice with the same snapshot and options yields identical bytes. PDF
// output is made reproducible by pinning the document creation date (Options.CreationDate).
//
// All renderers read text through lineseg.LineSegment.EffectiveText and drop segments whose
// effective text is empty or whitespace.
//
// Supported formats:
//
// - plain_txt: segments in reading order (top to bottom), separated by a blank line
// - json: pretty-printed [{text, bbox}] in index order
// - plain_pdf: flowing text with word wrap and pagination
// - pdf: every line drawn inside its original bounding box, with overlap avoidance
// - hocr: a single hOCR page with one ocr_line per segment
package export

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/forsete/atrdoc/pkg/hocr"
	"github.com/forsete/atrdoc/pkg/lineseg"
)

// Format identifies an export format
type Format string

const (
	FormatPlainText Format = "plain_txt"
	FormatJSON      Format = "json"
	FormatPlainPDF  Format = "plain_pdf"
	FormatPDF       Format = "pdf"
	FormatHOCR      Format = "hocr"
)

// Formats lists every supported format
var Formats = []Format{FormatPlainText, FormatJSON, FormatPlainPDF, FormatPDF, FormatHOCR}

// ParseFormat resolves a format name. "txt" is accepted for plain_txt.
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "txt" {
		return FormatPlainText, nil
	}
	for _, f := range Formats {
		if string(f) == name {
			return f, nil
		}
	}
	return "", &Error{Code: ErrorUnsupportedFormat, Format: Format(name)}
}

// File is the output of a renderer
type File struct {
	Data      []byte
	MimeType  string
	Extension string
}

// Download is a rendered file together with the name it should be saved under
type Download struct {
	Data     []byte
	MimeType string
	Filename string
}

// Options configures the renderers
type Options struct {
	PDF          PDFConfig        // Geometry-preserving PDF settings
	PlainPDF     PlainPDFConfig   // Flowing PDF settings
	HOCR         hocr.PageOptions // hOCR page settings
	CreationDate time.Time        // Creation and modification date written into PDFs
	LogWarnings  bool             // Whether to print warnings
	Logger       io.Writer        // Destination for warnings (nil = stdout)
}

// DefaultOptions returns options producing reproducible output
func DefaultOptions() Options {
	return Options{
		PDF:          DefaultPDFConfig(),
		PlainPDF:     DefaultPlainPDFConfig(),
		CreationDate: time.Unix(0, 0).UTC(),
		LogWarnings:  true,
	}
}

// Export renders segments in the given format
func Export(segments []lineseg.LineSegment, format Format, opts Options) (*File, error) {
	var (
		file *File
		err  error
	)
	switch format {
	case FormatPlainText:
		file = PlainText(segments)
	case FormatJSON:
		file, err = JSON(segments)
	case FormatPlainPDF:
		file, err = PlainPDF(segments, opts)
	case FormatPDF:
		file, err = GeometryPDF(segments, opts)
	case FormatHOCR:
		file, err = HOCR(segments, opts.HOCR)
	default:
		return nil, &Error{Code: ErrorUnsupportedFormat, Format: format}
	}
	if err != nil {
		return nil, &Error{Code: ErrorRenderFailed, Format: format, Cause: err}
	}
	return file, nil
}

// Handle renders segments and names the file after filename and the format:
// plain_pdf gets a "-plaintext" suffix and pdf an "-output" suffix.
func Handle(segments []lineseg.LineSegment, filename string, format Format, opts Options) (*Download, error) {
	file, err := Export(segments, format, opts)
	if err != nil {
		return nil, err
	}
	if filename == "" {
		filename = "document"
	}
	switch format {
	case FormatPlainPDF:
		filename += "-plaintext"
	case FormatPDF:
		filename += "-output"
	}
	return &Download{
		Data:     file.Data,
		MimeType: file.MimeType,
		Filename: filename + "." + file.Extension,
	}, nil
}

// visible returns the segments whose effective text is not blank, in input order
func visible(segments []lineseg.LineSegment) []lineseg.LineSegment {
	out := make([]lineseg.LineSegment, 0, len(segments))
	for _, seg := range segments {
		if seg.HasText() {
			out = append(out, seg)
		}
	}
	return out
}

// readingOrder returns the visible segments sorted top to bottom.
// Segments on the same ymin keep their input order.
func readingOrder(segments []lineseg.LineSegment) []lineseg.LineSegment {
	out := visible(segments)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].BBox.YMin < out[j].BBox.YMin
	})
	return out
}

func (o Options) warnf(format string, args ...any) {
	if !o.LogWarnings {
		return
	}
	logger := o.Logger
	if logger == nil {
		logger = os.Stdout
	}
	fmt.Fprintf(logger, "Warning: "+format+"\n", args...)
}
