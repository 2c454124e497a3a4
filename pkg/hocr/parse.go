package hocr

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

var (
	charsetPattern = regexp.MustCompile(`(?i)charset=["']?([\w-]+)`)

	lineClasses = []string{"ocr_line", "ocr_header", "ocr_caption", "ocr_textfloat"}
)

// Parse converts raw hOCR data into a Document.
// It fails when the input contains no ocr_page element.
func Parse(data []byte) (*Document, error) {
	decoded, err := decode(data)
	if err != nil {
		return nil, err
	}

	root, err := html.Parse(bytes.NewReader(decoded))
	if err != nil {
		return nil, fmt.Errorf("failed to parse hOCR HTML: %w", err)
	}

	doc := &Document{Metadata: make(map[string]string)}
	readHead(doc, root)

	for _, n := range collect(root, "ocr_page") {
		doc.Pages = append(doc.Pages, parsePage(n))
	}
	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("no ocr_page elements found in hOCR data")
	}
	return doc, nil
}

// ParseTitle splits an hOCR title attribute into its properties.
// Example input: `bbox 100 200 300 400; x_wconf 95`
func ParseTitle(title string) map[string][]string {
	props := make(map[string][]string)
	for _, part := range strings.Split(title, ";") {
		items := strings.Fields(part)
		if len(items) == 0 {
			continue
		}
		values := items[1:]
		for i, v := range values {
			values[i] = strings.Trim(v, `"`)
		}
		props[items[0]] = values
	}
	return props
}

// ParseBoundingBox extracts the bbox property of a title attribute
func ParseBoundingBox(title string) (BoundingBox, bool) {
	return bboxOf(ParseTitle(title))
}

// decode converts single-byte encoded documents to UTF-8
func decode(data []byte) ([]byte, error) {
	m := charsetPattern.FindSubmatch(data)
	if m == nil {
		return data, nil
	}

	var enc encoding.Encoding
	switch strings.ToLower(string(m[1])) {
	case "utf-8", "utf8":
		return data, nil
	case "iso-8859-1", "latin1", "latin-1":
		enc = charmap.ISO8859_1
	case "iso-8859-15":
		enc = charmap.ISO8859_15
	case "windows-1252", "cp1252":
		enc = charmap.Windows1252
	default:
		return nil, fmt.Errorf("unsupported hOCR charset %q", m[1])
	}

	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", m[1], err)
	}
	return out, nil
}

func readHead(doc *Document, root *html.Node) {
	for _, n := range elements(root, "html") {
		if lang := attr(n, "lang"); lang != "" {
			doc.Language = lang
		} else if lang := attr(n, "xml:lang"); lang != "" {
			doc.Language = lang
		}
	}

	for _, head := range elements(root, "head") {
		for c := head.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "title":
				doc.Title = textContent(c)
			case "meta":
				name, content := attr(c, "name"), attr(c, "content")
				if name == "" || content == "" {
					continue
				}
				switch {
				case name == "ocr-system":
					doc.System = content
				case strings.HasPrefix(name, "ocr-"):
					doc.Metadata[name] = content
				case name == "description":
					doc.Description = content
				case name == "dc.language":
					doc.Language = content
				}
			}
		}
	}
}

func parsePage(n *html.Node) Page {
	page := Page{ID: attr(n, "id"), Lang: attr(n, "lang")}
	props := ParseTitle(attr(n, "title"))
	page.BBox, _ = bboxOf(props)
	if image, ok := props["image"]; ok && len(image) > 0 {
		page.ImageName = strings.Join(image, " ")
	}
	if no, ok := props["ppageno"]; ok && len(no) > 0 {
		page.Number, _ = strconv.Atoi(no[0])
	}

	var loose []Word
	for _, c := range collect(n, append([]string{"ocr_carea", "ocr_par", "ocrx_word"}, lineClasses...)...) {
		switch {
		case hasClass(c, "ocr_carea"):
			page.Areas = append(page.Areas, parseArea(c))
		case hasClass(c, "ocr_par"):
			page.Paragraphs = append(page.Paragraphs, parseParagraph(c))
		case hasClass(c, "ocrx_word"):
			loose = append(loose, parseWord(c))
		default:
			page.Lines = append(page.Lines, parseLine(c))
		}
	}
	page.Lines = appendLoose(page.Lines, page.ID, loose)
	return page
}

func parseArea(n *html.Node) Area {
	area := Area{ID: attr(n, "id"), Lang: attr(n, "lang")}
	area.BBox, _ = ParseBoundingBox(attr(n, "title"))

	var loose []Word
	for _, c := range collect(n, append([]string{"ocr_par", "ocrx_word"}, lineClasses...)...) {
		switch {
		case hasClass(c, "ocr_par"):
			area.Paragraphs = append(area.Paragraphs, parseParagraph(c))
		case hasClass(c, "ocrx_word"):
			loose = append(loose, parseWord(c))
		default:
			area.Lines = append(area.Lines, parseLine(c))
		}
	}
	area.Lines = appendLoose(area.Lines, area.ID, loose)
	return area
}

func parseParagraph(n *html.Node) Paragraph {
	par := Paragraph{ID: attr(n, "id"), Lang: attr(n, "lang")}
	par.BBox, _ = ParseBoundingBox(attr(n, "title"))

	var loose []Word
	for _, c := range collect(n, append([]string{"ocrx_word"}, lineClasses...)...) {
		if hasClass(c, "ocrx_word") {
			loose = append(loose, parseWord(c))
			continue
		}
		par.Lines = append(par.Lines, parseLine(c))
	}
	par.Lines = appendLoose(par.Lines, par.ID, loose)
	return par
}

func parseLine(n *html.Node) Line {
	line := Line{
		ID:         attr(n, "id"),
		Lang:       attr(n, "lang"),
		Properties: make(map[string]string),
	}
	for _, class := range lineClasses {
		if hasClass(n, class) {
			line.Class = class
			break
		}
	}

	props := ParseTitle(attr(n, "title"))
	line.BBox, _ = bboxOf(props)
	for k, v := range props {
		switch k {
		case "bbox":
		case "baseline":
			line.Baseline = strings.Join(v, " ")
		default:
			line.Properties[k] = strings.Join(v, " ")
		}
	}

	for _, c := range collect(n, "ocrx_word") {
		line.Words = append(line.Words, parseWord(c))
	}
	return line
}

func parseWord(n *html.Node) Word {
	word := Word{ID: attr(n, "id"), Lang: attr(n, "lang"), Text: textContent(n)}
	props := ParseTitle(attr(n, "title"))
	word.BBox, _ = bboxOf(props)
	if conf, ok := props["x_wconf"]; ok && len(conf) > 0 {
		word.Confidence, _ = strconv.ParseFloat(conf[0], 64)
	}
	if lang, ok := props["lang"]; ok && len(lang) > 0 {
		word.Lang = lang[0]
	}
	return word
}

// appendLoose groups words found outside any line into one synthetic line
func appendLoose(lines []Line, parentID string, words []Word) []Line {
	if len(words) == 0 {
		return lines
	}
	bbox := words[0].BBox
	for _, w := range words[1:] {
		bbox.X1 = min(bbox.X1, w.BBox.X1)
		bbox.Y1 = min(bbox.Y1, w.BBox.Y1)
		bbox.X2 = max(bbox.X2, w.BBox.X2)
		bbox.Y2 = max(bbox.Y2, w.BBox.Y2)
	}
	return append(lines, Line{
		ID:         parentID + "_words",
		Class:      "ocr_line",
		BBox:       bbox,
		Words:      words,
		Properties: map[string]string{},
	})
}

func bboxOf(props map[string][]string) (BoundingBox, bool) {
	v, ok := props["bbox"]
	if !ok || len(v) < 4 {
		return BoundingBox{}, false
	}
	var c [4]float64
	for i := range c {
		f, err := strconv.ParseFloat(v[i], 64)
		if err != nil {
			return BoundingBox{}, false
		}
		c[i] = f
	}
	return NewBoundingBox(c[0], c[1], c[2], c[3]), true
}

// collect returns the outermost descendants of n carrying one of the given classes.
// It does not descend into a match.
func collect(n *html.Node, classes ...string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && hasAnyClass(c, classes) {
				out = append(out, c)
				continue
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// elements returns every element with the given tag name below n
func elements(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == tag {
			out = append(out, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func hasAnyClass(n *html.Node, classes []string) bool {
	for _, class := range classes {
		if hasClass(n, class) {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// textContent concatenates and trims all text below n
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
