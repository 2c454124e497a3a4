// gdocai is a command-line tool for transcribing documents with Google Document AI.
//
// The Document AI response is converted to ATR results (one per page) so it can be edited
// and exported like the output of the ATR service. The tool can also write hOCR, plain text,
// page images and a searchable PDF of one page.
//
// Configuration:
//
// Document AI settings come from the atrdoc config file (gdocai section) or from the
// ATRDOC_GDOCAI_* environment variables:
//
//	gdocai:
//	  project_id: "your-gcp-project-id"
//	  location: "us"
//	  processor_id: "your-processor-id"
//
// Usage:
//
//	gdocai -config atrdoc.yml -input input.pdf [options]
//
// Required flags:
//
//	-input string  Path to the input PDF or image
//
// Output options (at least one required):
//
//	-atr string     Path to save the ATR results JSON (an array with one result per page)
//	-text string    Path to save the recognized text
//	-hocr string    Path to save hOCR output
//	-images string  Directory to save page images
//	-output string  Path to save a searchable PDF of -page
//
// Other options:
//
//	-page int          Page used for -output (default 1)
//	-debug             Show the text layer of the searchable PDF
//	-debug-api string  Path to save the raw API response as JSON (readable by atrdoc)
//
// Authentication:
//
// The tool uses the credentials_file setting or the GOOGLE_APPLICATION_CREDENTIALS
// environment variable for authentication with Google Cloud.
//
// Example:
//
//	export GOOGLE_APPLICATION_CREDENTIALS=/path/to/credentials.json
//	gdocai -config atrdoc.yml -input letter.pdf -atr letter.json -hocr letter.hocr -output letter_searchable.pdf
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"

	"github.com/forsete/atrdoc/internal/config"
	"github.com/forsete/atrdoc/pkg/gdocai"
	"github.com/forsete/atrdoc/pkg/hocr"
	"github.com/forsete/atrdoc/pkg/lineseg"
	"github.com/forsete/atrdoc/pkg/pdfocr"
)

func main() {
	configPath := flag.String("config", "", "Path to the config YAML file")
	inputPath := flag.String("input", "", "Path to the input PDF or image (required)")

	atrPath := flag.String("atr", "", "Path to save the ATR results JSON")
	textPath := flag.String("text", "", "Path to save the recognized text")
	hocrPath := flag.String("hocr", "", "Path to save hOCR output")
	imagesDir := flag.String("images", "", "Directory to save page images returned by Document AI")
	pdfOcrPath := flag.String("output", "", "Path to save a searchable PDF")
	debugAPIPath := flag.String("debug-api", "", "Path to save the API response as JSON for debugging purposes")

	page := flag.Int("page", 1, "Page used for -output (1-based)")
	debug := flag.Bool("debug", false, "Show the text layer of the searchable PDF")
	flag.Parse()

	// Create a map of provided flags to validate
	providedFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		providedFlags[f.Name] = true
	})

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -input flag is required")
		fmt.Fprintln(os.Stderr, "Usage:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Validate that provided output flags have values
	hasError := false
	outputFlags := map[string]string{
		"atr": *atrPath, "text": *textPath, "hocr": *hocrPath,
		"images": *imagesDir, "output": *pdfOcrPath, "debug-api": *debugAPIPath,
	}
	hasOutputFlag := false
	for name, value := range outputFlags {
		if !providedFlags[name] {
			continue
		}
		hasOutputFlag = true
		if value == "" {
			fmt.Fprintf(os.Stderr, "Error: -%s flag requires a value\n", name)
			hasError = true
		}
	}
	if !hasOutputFlag {
		fmt.Fprintln(os.Stderr, "Error: At least one output flag must be provided (-atr, -text, -hocr, -images, -output or -debug-api)")
		hasError = true
	}
	if hasError {
		fmt.Fprintln(os.Stderr, "Usage:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	docAI := cfg.DocumentAI()
	if err := docAI.Validate(); err != nil {
		log.Fatalf("Invalid Document AI config: %v", err)
	}

	input, err := os.ReadFile(*inputPath)
	if err != nil {
		log.Fatalf("Failed to read input file: %v", err)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(*inputPath))

	fmt.Println("Processing file with Document AI:", *inputPath)
	ctx := context.Background()
	doc, err := gdocai.ProcessDocument(ctx, input, mimeType, docAI)
	if err != nil {
		log.Fatalf("Error processing document: %v", err)
	}
	fileName := filepath.Base(*inputPath)
	results := gdocai.ToResults(doc, gdocai.ResultOptions{FileName: fileName, ProcessorID: docAI.ProcessorID})
	fmt.Printf("Recognized %d pages\n", len(results))

	if *debugAPIPath != "" {
		apiJSON, err := gdocai.ToJSON(doc)
		if err != nil {
			log.Fatalf("Failed to convert API response to JSON: %v", err)
		}
		if err := os.WriteFile(*debugAPIPath, apiJSON, 0644); err != nil {
			log.Fatalf("Failed to write API response JSON: %v", err)
		}
		fmt.Println("API response JSON saved to:", *debugAPIPath)
	}

	if *atrPath != "" {
		data, err := gdocai.ToJSON(results)
		if err != nil {
			log.Fatalf("Failed to encode ATR results: %v", err)
		}
		if err := os.WriteFile(*atrPath, data, 0644); err != nil {
			log.Fatalf("Failed to write ATR results: %v", err)
		}
		fmt.Println("ATR results saved to:", *atrPath)
	}

	hocrDoc := gdocai.ToHOCR(doc)
	if *textPath != "" {
		if err := os.WriteFile(*textPath, []byte(hocrDoc.Text()), 0644); err != nil {
			log.Fatalf("Failed to write text output: %v", err)
		}
		fmt.Println("Document text saved to:", *textPath)
	}

	if *hocrPath != "" {
		html, err := hocr.Generate(hocrDoc)
		if err != nil {
			log.Fatalf("Failed to render hOCR: %v", err)
		}
		if err := os.WriteFile(*hocrPath, html, 0644); err != nil {
			log.Fatalf("Failed to write hOCR output: %v", err)
		}
		fmt.Println("Rendered hOCR output saved to:", *hocrPath)
	}

	if *imagesDir != "" {
		if err := os.MkdirAll(*imagesDir, 0755); err != nil {
			log.Fatalf("Failed to create images directory: %v", err)
		}
		for i, p := range doc.GetPages() {
			imgBytes, ext, err := gdocai.PageImage(p)
			if err != nil {
				log.Printf("Skipping page %d: %v", i+1, err)
				continue
			}
			imagePath := filepath.Join(*imagesDir, fmt.Sprintf("page_%d%s", i+1, ext))
			if err := os.WriteFile(imagePath, imgBytes, 0644); err != nil {
				log.Printf("Failed to write image for page %d: %v", i+1, err)
				continue
			}
			fmt.Printf("Saved image for page %d to %s\n", i+1, imagePath)
		}
	}

	if *pdfOcrPath != "" {
		if *page < 1 || *page > len(results) {
			log.Fatalf("Page %d out of range, document has %d pages", *page, len(results))
		}
		segments := lineseg.Index(results[*page-1], lineseg.DefaultIndexOptions())
		ocrConfig := pdfocr.DefaultConfig()
		ocrConfig.Debug = *debug
		ocrConfig.Page = *page

		var ocrPdfBytes []byte
		if mimeType == "application/pdf" {
			fmt.Println("Creating searchable PDF by applying the text layer to the input PDF...")
			// Document AI coordinates are in page pixels; scale them onto the PDF page
			if dim := doc.Pages[*page-1].GetDimension(); dim != nil {
				ocrConfig.SourceWidth = float64(dim.Width)
				ocrConfig.SourceHeight = float64(dim.Height)
			}
			ocrPdfBytes, err = pdfocr.ApplyOCR(input, segments, ocrConfig)
		} else {
			fmt.Println("Creating searchable PDF from the input image...")
			ocrPdfBytes, err = pdfocr.AssembleWithOCR(segments, input, ocrConfig)
		}
		if err != nil {
			log.Fatalf("Failed to create searchable PDF: %v", err)
		}
		if err := os.WriteFile(*pdfOcrPath, ocrPdfBytes, 0644); err != nil {
			log.Fatalf("Failed to write searchable PDF: %v", err)
		}
		fmt.Println("Searchable PDF saved to:", *pdfOcrPath)
	}
}
