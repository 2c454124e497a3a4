package hocr

import (
	"strings"
	"testing"

	"github.com/forsete/atrdoc/pkg/atr"
	"github.com/forsete/atrdoc/pkg/lineseg"
)

const sampleHOCR = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xml:lang="sv" lang="sv">
 <head>
  <title>Letter</title>
  <meta http-equiv="Content-Type" content="text/html;charset=utf-8"/>
  <meta name="ocr-system" content="tesseract 5.3.0"/>
  <meta name="ocr-number-of-pages" content="1"/>
 </head>
 <body>
  <div class="ocr_page" id="page_1" title='image "scan.png"; bbox 0 0 1000 800; ppageno 0'>
   <div class="ocr_carea" id="block_1_1" title="bbox 10 10 900 200">
    <p class="ocr_par" id="par_1_1" title="bbox 10 10 900 200">
     <span class="ocr_line" id="line_1_1" title="bbox 10 10 400 50; baseline 0 -5; x_size 30">
      <span class="ocrx_word" id="word_1_1" title="bbox 10 10 100 50; x_wconf 90">Dear</span>
      <span class="ocrx_word" id="word_1_2" title="bbox 110 10 400 50; x_wconf 70">Sir &amp; Madam</span>
     </span>
    </p>
   </div>
   <span class="ocr_caption" id="line_1_2" title="bbox 10 300 300 340">
    <span class="ocrx_word" id="word_1_3" title="bbox 10 300 300 340; x_wconf 80">Caption</span>
   </span>
   <span class="ocrx_word" id="word_1_4" title="bbox 500 500 600 540; x_wconf 60">stray</span>
  </div>
 </body>
</html>`

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(sampleHOCR))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if doc.Title != "Letter" || doc.Language != "sv" || doc.System != "tesseract 5.3.0" {
		t.Fatalf("unexpected metadata: %+v", doc)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(doc.Pages))
	}

	page := doc.Pages[0]
	if page.ImageName != "scan.png" || page.BBox != NewBoundingBox(0, 0, 1000, 800) {
		t.Fatalf("unexpected page: %+v", page)
	}

	lines := page.AllLines()
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0].Text() != "Dear Sir & Madam" {
		t.Fatalf("unexpected first line %q", lines[0].Text())
	}
	if lines[0].Baseline != "0 -5" || lines[0].Properties["x_size"] != "30" {
		t.Fatalf("unexpected line properties: %+v", lines[0])
	}
	if lines[0].Confidence() != 80 {
		t.Fatalf("Confidence() = %v, want 80", lines[0].Confidence())
	}
	if lines[1].Class != "ocr_caption" || lines[1].Text() != "Caption" {
		t.Fatalf("unexpected caption line: %+v", lines[1])
	}
	if lines[2].Text() != "stray" || lines[2].BBox != NewBoundingBox(500, 500, 600, 540) {
		t.Fatalf("expected loose word to form its own line, got %+v", lines[2])
	}
}

func TestParseLatin1(t *testing.T) {
	input := []byte(`<html><head><meta http-equiv="Content-Type" content="text/html;charset=iso-8859-1"/></head>` +
		`<body><div class="ocr_page" title="bbox 0 0 10 10"><span class="ocr_line" title="bbox 0 0 10 10">` +
		`<span class="ocrx_word" title="bbox 0 0 10 10">G` + "\xf6" + `ran</span></span></div></body></html>`)
	doc, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := doc.Pages[0].AllLines()[0].Text(); got != "Göran" {
		t.Fatalf("Text() = %q, want Göran", got)
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse([]byte(`<html><body><p>no pages</p></body></html>`)); err == nil {
		t.Fatalf("expected error for document without pages")
	}
	if _, err := Parse([]byte(`<meta charset="koi8-r"><div class="ocr_page"></div>`)); err == nil {
		t.Fatalf("expected error for unsupported charset")
	}
}

func TestParseTitle(t *testing.T) {
	props := ParseTitle(`image "a b.png"; bbox 1 2 3 4;; x_wconf 95`)
	if strings.Join(props["image"], " ") != "a b.png" {
		t.Fatalf("unexpected image: %q", props["image"])
	}
	if b, ok := ParseBoundingBox("bbox 1 2 3 4"); !ok || b != NewBoundingBox(1, 2, 3, 4) {
		t.Fatalf("ParseBoundingBox() = %+v, %v", b, ok)
	}
	if _, ok := ParseBoundingBox("bbox 1 2 x 4"); ok {
		t.Fatalf("expected malformed bbox to be rejected")
	}
}

func TestToResults(t *testing.T) {
	doc, err := Parse([]byte(sampleHOCR))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	results := ToResults(doc)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.FileName != "scan.png" || r.Label != "scan" {
		t.Fatalf("unexpected result metadata: %+v", r)
	}
	if len(r.Contains) != 3 {
		t.Fatalf("expected 3 elements, got %d", len(r.Contains))
	}

	segments := lineseg.Index(r, lineseg.IndexOptions{})
	if segments[0].TextContent != "Dear Sir & Madam" || segments[0].Confidence != 80 {
		t.Fatalf("unexpected first segment: %+v", segments[0])
	}
	if segments[1].BBox != atr.NewBoundingBox(10, 300, 300, 340) {
		t.Fatalf("unexpected bbox: %+v", segments[1].BBox)
	}
}

func TestGenerateRoundTrip(t *testing.T) {
	edited := "Hello brave world"
	segments := []lineseg.LineSegment{
		{OriginalIndex: 0, TextContent: "Helo", Edited: true, EditedContent: &edited, Confidence: 88,
			BBox: atr.NewBoundingBox(0, 0, 170, 20)},
		{OriginalIndex: 1, TextContent: "   ", BBox: atr.NewBoundingBox(0, 30, 10, 40)},
		{OriginalIndex: 2, TextContent: "<b>", Confidence: 50, BBox: atr.NewBoundingBox(0, 50, 30, 70)},
	}

	doc := FromLineSegments(segments, PageOptions{Title: "Out", ImageName: "page.jpg"})
	if doc.Pages[0].BBox != NewBoundingBox(0, 0, 170, 70) {
		t.Fatalf("unexpected page bbox: %+v", doc.Pages[0].BBox)
	}

	out, err := Generate(doc)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !strings.Contains(string(out), "&lt;b&gt;") {
		t.Fatalf("expected escaped word text in %s", out)
	}

	parsed, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	lines := parsed.Pages[0].AllLines()
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].Text() != "Hello brave world" || lines[1].Text() != "<b>" {
		t.Fatalf("unexpected texts %q %q", lines[0].Text(), lines[1].Text())
	}
	words := lines[0].Words
	if len(words) != 3 || words[0].BBox.X1 != 0 || words[2].BBox.X2 != 170 {
		t.Fatalf("unexpected word boxes: %+v", words)
	}
	if words[0].Confidence != 88 {
		t.Fatalf("unexpected word confidence %v", words[0].Confidence)
	}
	if parsed.Pages[0].ImageName != "page.jpg" || parsed.System != System {
		t.Fatalf("unexpected page metadata: %+v", parsed.Pages[0])
	}
}
