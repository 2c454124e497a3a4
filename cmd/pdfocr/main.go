// pdfocr is a command-line tool for adding transcribed text layers to PDFs.
//
// This tool either overlays a page of an existing PDF with the lines of a transcription or
// creates a new one-page PDF from a page image. The transcription can be an ATR result or
// an hOCR file; every line is drawn at the position of its bounding box.
//
// Usage:
//
//	pdfocr -atr result.json -output out.pdf [options]
//	pdfocr -hocr page.hocr -output out.pdf [options]
//	pdfocr -check document.pdf
//
// Transcription (one required unless -check is used):
//
//	-atr string   Path to an ATR result JSON
//	-hocr string  Path to an hOCR file
//
// Input options (one required):
//
//	-pdf string    Path to an existing PDF to add the text layer to
//	-image string  Path to a page image to build a new PDF from
//
// Processing options:
//
//	-page int     Page to overlay and hOCR page to read (default 1)
//	-debug        Show the text layer and line boxes
//	-force        Reapply the text layer even if one exists
//	-overwrite    Overwrite the output file if it exists
//	-debug-pdf    Dump PDF structure for debugging
//	-check string Report the text layers of a PDF and exit
//
// Examples:
//
//	pdfocr -hocr document.hocr -pdf document.pdf -output document_searchable.pdf
//	pdfocr -atr page.json -image page.jpg -output page_searchable.pdf
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/forsete/atrdoc/pkg/atr"
	"github.com/forsete/atrdoc/pkg/hocr"
	"github.com/forsete/atrdoc/pkg/lineseg"
	"github.com/forsete/atrdoc/pkg/pdfocr"
)

func main() {
	atrPath := flag.String("atr", "", "Path to an ATR result JSON")
	hocrPath := flag.String("hocr", "", "Path to an hOCR file")
	imagePath := flag.String("image", "", "Page image to build a new PDF from")
	pdfPath := flag.String("pdf", "", "Path to an existing PDF to add the text layer to")
	pdfOcrPath := flag.String("output", "", "Output PDF path")
	page := flag.Int("page", 1, "Page number (1-based)")
	debug := flag.Bool("debug", false, "Enable debug mode")
	force := flag.Bool("force", false, "Reapply the text layer even if one is already detected")
	overwriteOutput := flag.Bool("overwrite", false, "Overwrite the output PDF if it already exists")
	dumpPDF := flag.Bool("debug-pdf", false, "Dump PDF structure for debugging")
	checkPath := flag.String("check", "", "Report the text layers of a PDF and exit")
	flag.Parse()

	config := pdfocr.DefaultConfig()
	config.Debug = *debug
	config.Force = *force
	config.Page = *page
	config.DumpPDF = *dumpPDF

	if *checkPath != "" {
		check(*checkPath, config)
		return
	}

	if (*atrPath == "") == (*hocrPath == "") {
		fmt.Println("Error: Must provide either -atr or -hocr")
		os.Exit(1)
	}
	if (*imagePath == "") == (*pdfPath == "") {
		fmt.Println("Error: Must provide either -image or -pdf")
		os.Exit(1)
	}
	if *pdfOcrPath == "" {
		fmt.Println("Error: Must provide -output path")
		os.Exit(1)
	}

	if _, err := os.Stat(*pdfOcrPath); err == nil {
		if !*overwriteOutput {
			fmt.Printf("Output file %s already exists. Use -overwrite to overwrite.\n", *pdfOcrPath)
			os.Exit(1)
		}
		os.Remove(*pdfOcrPath)
	}

	var result *atr.Result
	if *atrPath != "" {
		data, err := os.ReadFile(*atrPath)
		if err != nil {
			fmt.Printf("Failed to read ATR result: %v\n", err)
			os.Exit(1)
		}
		result, err = atr.Parse(data)
		if err != nil {
			fmt.Printf("Failed to parse ATR result: %v\n", err)
			os.Exit(1)
		}
	} else {
		data, err := os.ReadFile(*hocrPath)
		if err != nil {
			fmt.Printf("Failed to read hOCR file: %v\n", err)
			os.Exit(1)
		}
		doc, err := hocr.Parse(data)
		if err != nil {
			fmt.Printf("Failed to parse hOCR file: %v\n", err)
			os.Exit(1)
		}
		if *page < 1 || *page > len(doc.Pages) {
			fmt.Printf("Page %d out of range, hOCR file has %d pages\n", *page, len(doc.Pages))
			os.Exit(1)
		}
		// hOCR boxes are in the pixels of the page bbox
		bbox := doc.Pages[*page-1].BBox
		config.SourceWidth = bbox.X2 - bbox.X1
		config.SourceHeight = bbox.Y2 - bbox.Y1
		result = hocr.ToResults(doc)[*page-1]
	}
	segments := lineseg.Index(result, lineseg.DefaultIndexOptions())
	fmt.Printf("Loaded %d lines\n", len(segments))

	var finalPDF []byte
	if *imagePath != "" {
		imageData, err := os.ReadFile(*imagePath)
		if err != nil {
			fmt.Printf("Failed to read image: %v\n", err)
			os.Exit(1)
		}
		finalPDF, err = pdfocr.AssembleWithOCR(segments, imageData, config)
		if err != nil {
			fmt.Printf("Error creating PDF from image: %v\n", err)
			os.Exit(1)
		}
		if *force {
			fmt.Println("Warning: -force is only applicable when -pdf is set. Ignoring -force.")
		}
	} else {
		inputData, err := os.ReadFile(*pdfPath)
		if err != nil {
			fmt.Printf("Failed to read input PDF: %v\n", err)
			os.Exit(1)
		}
		finalPDF, err = pdfocr.ApplyOCR(inputData, segments, config)
		if err != nil {
			fmt.Printf("Error applying text layer to existing PDF: %v\n", err)
			os.Exit(1)
		}
	}

	if err := os.WriteFile(*pdfOcrPath, finalPDF, 0666); err != nil {
		fmt.Printf("Failed to write output PDF: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Searchable PDF created:", *pdfOcrPath)
}

// check prints the layers found in a PDF and whether one of them is our text layer
func check(path string, config pdfocr.Config) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Failed to read PDF: %v\n", err)
		os.Exit(1)
	}
	detection, err := pdfocr.DetectOCR(data, config)
	if err != nil {
		fmt.Printf("Layer detection failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s: %d layers\n", path, len(detection.LayerInfo.Layers))
	for i, layer := range detection.LayerInfo.Layers {
		fmt.Printf("  %d. %s\n", i+1, layer)
	}
	for _, warning := range detection.Warnings {
		fmt.Println("Warning:", warning)
	}
	if detection.HasLayerOCR {
		fmt.Printf("Text layer present: %s\n", detection.LayerInfo.OCRLayerName)
	} else {
		fmt.Println("No text layer found")
	}
}
