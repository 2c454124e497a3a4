// atrdoc is a command-line tool for reviewing and exporting ATR transcriptions.
//
// It reads an ATR result (or an hOCR file, or a saved Document AI response), applies
// corrections from an edits file and writes the document in one or more export formats,
// a confirmed result with edit stamps, and optionally a searchable PDF.
//
// Usage:
//
//	atrdoc -input result.json [options]
//
// Input options:
//
//	-input string         Path to the ATR result JSON, hOCR or Document AI JSON file (required)
//	-input-format string  atr, hocr or gdocai (default: from the file extension)
//	-page int             Page of a multi-page hOCR or Document AI file (default 1)
//	-edits string         JSON object mapping line index to corrected text, e.g. {"3": "Stockholm"}
//
// Output options:
//
//	-format string      Comma-separated export formats: plain_txt, json, plain_pdf, pdf, hocr
//	-output-dir string  Directory for export files (default ".")
//	-confirm string     Path to save the confirmed result JSON
//	-save               Save the confirmed result in the configured store
//	-image-id string    Image id for -save (default: the document file name)
//	-output-id string   Output id for -save (default "local")
//	-searchable string  Path to save a searchable PDF, built from -image or -pdf
//	-image string       Page image for -searchable
//	-pdf string         Existing PDF for -searchable (text layer goes on -page)
//	-list               Print every line with its confidence class
//
// Other options:
//
//	-config string  Path to the config YAML file
//	-debug          Draw boxes in the geometry PDF and show the searchable text layer
//	-force          Add the text layer even if the PDF already has one
//
// Example:
//
//	atrdoc -input page.json -edits fixes.json -format plain_txt,pdf -confirm page.confirmed.json
//	atrdoc -input page.hocr -image page.png -searchable page_searchable.pdf
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/forsete/atrdoc/internal/config"
	"github.com/forsete/atrdoc/pkg/atr"
	"github.com/forsete/atrdoc/pkg/document"
	"github.com/forsete/atrdoc/pkg/editor"
	"github.com/forsete/atrdoc/pkg/export"
	"github.com/forsete/atrdoc/pkg/gdocai"
	"github.com/forsete/atrdoc/pkg/hocr"
	"github.com/forsete/atrdoc/pkg/lineseg"
	"github.com/forsete/atrdoc/pkg/pdfocr"
	"github.com/forsete/atrdoc/pkg/store"
)

func main() {
	configPath := flag.String("config", "", "Path to the config YAML file")
	inputPath := flag.String("input", "", "Path to the ATR result, hOCR or Document AI JSON file (required)")
	inputFormat := flag.String("input-format", "", "Input format: atr, hocr or gdocai (default: from the file extension)")
	page := flag.Int("page", 1, "Page of a multi-page input (1-based)")
	editsPath := flag.String("edits", "", "Path to a JSON object mapping line index to corrected text")

	formats := flag.String("format", "", "Comma-separated export formats")
	outputDir := flag.String("output-dir", ".", "Directory for export files")
	confirmPath := flag.String("confirm", "", "Path to save the confirmed result JSON")
	save := flag.Bool("save", false, "Save the confirmed result in the configured store")
	imageID := flag.String("image-id", "", "Image id for -save")
	outputID := flag.String("output-id", "local", "Output id for -save")
	searchablePath := flag.String("searchable", "", "Path to save a searchable PDF")
	imagePath := flag.String("image", "", "Page image for -searchable")
	pdfPath := flag.String("pdf", "", "Existing PDF for -searchable")
	list := flag.Bool("list", false, "Print every line with its confidence class")

	debug := flag.Bool("debug", false, "Draw boxes and show the text layer")
	force := flag.Bool("force", false, "Add the text layer even if the PDF already has one")
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -input flag is required")
		fmt.Fprintln(os.Stderr, "Usage:")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *formats == "" && *confirmPath == "" && *searchablePath == "" && !*save && !*list {
		fmt.Fprintln(os.Stderr, "Error: at least one of -format, -confirm, -save, -searchable or -list is required")
		os.Exit(1)
	}
	if *searchablePath != "" && (*imagePath == "") == (*pdfPath == "") {
		fmt.Fprintln(os.Stderr, "Error: -searchable needs either -image or -pdf (but not both)")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	ctx := context.Background()

	result, err := readInput(*inputPath, *inputFormat, *page)
	if err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}

	doc := document.New(result, document.Options{
		ImageID:  *imageID,
		OutputID: *outputID,
		Index:    lineseg.DefaultIndexOptions(),
	})
	fmt.Printf("Indexed %d lines from %s\n", doc.Len(), *inputPath)

	surface, err := editor.New(ctx, doc, editor.Options{})
	if err != nil {
		log.Fatalf("Failed to create editor: %v", err)
	}
	if *editsPath != "" {
		if err := applyEdits(ctx, surface, *editsPath); err != nil {
			log.Fatalf("Failed to apply edits: %v", err)
		}
	}

	if *list {
		for _, item := range surface.Items() {
			marker := " "
			if item.Edited {
				marker = "*"
			}
			fmt.Printf("%4d %s [%-6s %6.2f] %s\n", item.Index, marker, item.Class, item.Confidence, item.Text)
		}
	}

	if *formats != "" {
		if err := exportFormats(doc, *formats, *outputDir, cfg); err != nil {
			log.Fatalf("Export failed: %v", err)
		}
	}

	if *confirmPath != "" {
		data, err := json.MarshalIndent(doc.Confirmed(), "", "  ")
		if err != nil {
			log.Fatalf("Failed to encode confirmed result: %v", err)
		}
		if err := os.WriteFile(*confirmPath, data, 0644); err != nil {
			log.Fatalf("Failed to write confirmed result: %v", err)
		}
		fmt.Printf("Saved confirmed result to %s\n", *confirmPath)
	}

	if *save {
		key := store.Key{ImageID: doc.ImageID(), OutputID: doc.OutputID()}
		if key.ImageID == "" {
			key.ImageID = doc.FileName()
		}
		if err := saveConfirmed(ctx, cfg, key, doc.Confirmed()); err != nil {
			log.Fatalf("Failed to save confirmed result: %v", err)
		}
		fmt.Printf("Saved confirmed result as %s in the %s store\n", key, cfg.Store.Driver)
	}

	if *searchablePath != "" {
		pdfConfig := pdfocr.DefaultConfig()
		pdfConfig.Debug = *debug || cfg.PDF.Debug
		pdfConfig.Force = *force
		pdfConfig.Page = *page

		var out []byte
		if *imagePath != "" {
			image, err := os.ReadFile(*imagePath)
			if err != nil {
				log.Fatalf("Failed to read image: %v", err)
			}
			out, err = pdfocr.AssembleWithOCR(doc.LineSegments(), image, pdfConfig)
			if err != nil {
				log.Fatalf("Error creating PDF from image: %v", err)
			}
		} else {
			input, err := os.ReadFile(*pdfPath)
			if err != nil {
				log.Fatalf("Failed to read input PDF: %v", err)
			}
			out, err = pdfocr.ApplyOCR(input, doc.LineSegments(), pdfConfig)
			if err != nil {
				log.Fatalf("Error applying text layer to PDF: %v", err)
			}
		}
		if err := os.WriteFile(*searchablePath, out, 0644); err != nil {
			log.Fatalf("Failed to write searchable PDF: %v", err)
		}
		fmt.Printf("Saved searchable PDF to %s\n", *searchablePath)
	}
}

// readInput loads page (1-based) of the input file as an ATR result
func readInput(path, format string, page int) (*atr.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = detectFormat(path)
	}

	var results []*atr.Result
	switch format {
	case "atr":
		result, err := atr.Parse(data)
		if err != nil {
			return nil, err
		}
		if result.FileName == "" {
			result.FileName = filepath.Base(path)
		}
		return result, nil
	case "hocr":
		doc, err := hocr.Parse(data)
		if err != nil {
			return nil, err
		}
		results = hocr.ToResults(doc)
	case "gdocai":
		doc, err := gdocai.FromJSON(data)
		if err != nil {
			return nil, err
		}
		results = gdocai.ToResults(doc, gdocai.ResultOptions{FileName: filepath.Base(path)})
	default:
		return nil, fmt.Errorf("unknown input format %q", format)
	}

	if page < 1 || page > len(results) {
		return nil, fmt.Errorf("page %d out of range, %s has %d pages", page, path, len(results))
	}
	result := results[page-1]
	if result.FileName == "" {
		result.FileName = filepath.Base(path)
	}
	return result, nil
}

func detectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hocr", ".html", ".htm", ".xhtml":
		return "hocr"
	}
	if strings.HasSuffix(strings.ToLower(path), ".gdocai.json") {
		return "gdocai"
	}
	return "atr"
}

// applyEdits reads a {"index": "text"} file and applies it in index order
func applyEdits(ctx context.Context, surface *editor.Surface, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var edits map[string]string
	if err := json.Unmarshal(data, &edits); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	indices := make([]int, 0, len(edits))
	texts := make(map[int]string, len(edits))
	for key, text := range edits {
		i, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("invalid line index %q", key)
		}
		indices = append(indices, i)
		texts[i] = text
	}
	sort.Ints(indices)

	for _, i := range indices {
		ok, err := surface.Change(ctx, i, texts[i])
		if err != nil {
			return err
		}
		if !ok {
			fmt.Printf("Warning: no line %d; edit ignored\n", i)
		}
	}
	return nil
}

func exportFormats(doc *document.Manager, formats, dir string, cfg *config.Config) error {
	opts := export.DefaultOptions()
	opts.PlainPDF.PageSize = cfg.PDF.PageSize
	opts.PDF.Debug = cfg.PDF.Debug
	opts.HOCR.ImageName = doc.Original().ImageName

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	segments := doc.LineSegments()
	for _, name := range strings.Split(formats, ",") {
		format, err := export.ParseFormat(name)
		if err != nil {
			return err
		}
		download, err := export.Handle(segments, doc.FileName(), format, opts)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, download.Filename)
		if err := os.WriteFile(path, download.Data, 0644); err != nil {
			return err
		}
		fmt.Printf("Saved %s export to %s\n", format, path)
	}
	return nil
}

func saveConfirmed(ctx context.Context, cfg *config.Config, key store.Key, confirmed atr.Confirmed) error {
	st, err := store.Open(ctx, cfg.StoreConfig())
	if err != nil {
		return err
	}
	defer st.Close()
	return st.SaveConfirmed(ctx, key, confirmed)
}
