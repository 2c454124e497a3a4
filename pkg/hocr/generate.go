package hocr

import (
	"bytes"
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/template"
)

//go:embed templates/hocr.tmpl
var templateFS embed.FS

var documentTemplate = template.Must(template.New("hocr.tmpl").Funcs(template.FuncMap{
	"pageTitle": pageTitle,
	"lineTitle": lineTitle,
	"wordTitle": wordTitle,
	"lines":     func(p Page) []Line { return p.AllLines() },
}).ParseFS(templateFS, "templates/hocr.tmpl"))

// Generate renders doc as an hOCR (XHTML) document
func Generate(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("hOCR document is nil")
	}
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("error rendering hOCR template: %w", err)
	}
	return buf.Bytes(), nil
}

func pageTitle(p Page) string {
	parts := make([]string, 0, 3)
	if p.ImageName != "" {
		parts = append(parts, fmt.Sprintf("image %q", p.ImageName))
	}
	parts = append(parts, formatBBox(p.BBox))
	parts = append(parts, "ppageno "+strconv.Itoa(p.Number))
	return strings.Join(parts, "; ")
}

func lineTitle(l Line) string {
	parts := []string{formatBBox(l.BBox)}
	if l.Baseline != "" {
		parts = append(parts, "baseline "+l.Baseline)
	}
	for _, k := range sortedKeys(l.Properties) {
		parts = append(parts, k+" "+l.Properties[k])
	}
	return strings.Join(parts, "; ")
}

func wordTitle(w Word) string {
	return formatBBox(w.BBox) + "; x_wconf " + strconv.Itoa(int(w.Confidence+0.5))
}

func formatBBox(b BoundingBox) string {
	return fmt.Sprintf("bbox %s %s %s %s", num(b.X1), num(b.Y1), num(b.X2), num(b.Y2))
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
