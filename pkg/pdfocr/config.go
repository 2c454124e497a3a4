package pdfocr

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Config holds user options for building searchable PDFs
type Config struct {
	Debug        bool      // Draw the text layer in red with line boxes
	Force        bool      // Apply even if the PDF already has a text layer
	LayerName    string    // Base name of the text layer (page number will be appended)
	Page         int       // Page of an existing PDF to overlay (1-based)
	SourceWidth  float64   // Width of the coordinate space of the segments (0 = page width)
	SourceHeight float64   // Height of the coordinate space of the segments (0 = page height)
	DumpPDF      bool      // Dump PDF structure for debugging
	LogWarnings  bool      // Whether to print warnings
	Logger       io.Writer // Custom logger for warnings (nil = stdout)
	CreationDate time.Time // Written to the PDF metadata (zero = Unix epoch)
	Font         FontConfig
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() Config {
	return Config{
		LayerName:   "ATR Text", // Will be formatted as "ATR Text (Page X)" in the final PDF
		Page:        1,
		LogWarnings: true,
		Font:        DefaultFont,
	}
}

// FontConfig contains font settings for the text layer
type FontConfig struct {
	Name        string  // Font name (e.g., "Helvetica")
	Style       string  // Font style ("", "B", "I", "BI")
	Size        float64 // Default font size
	AscentRatio float64 // Vertical positioning ratio
}

// DefaultFont sets the default font to Helvetica which is tried and tested for the text layer
var DefaultFont = FontConfig{
	Name:        "Helvetica",
	Style:       "",
	Size:        10,
	AscentRatio: 0.718,
}

// getLogger returns the writer for warnings, defaulting to os.Stdout
func getLogger(config Config) io.Writer {
	if config.Logger == nil {
		return os.Stdout
	}
	return config.Logger
}

func (c Config) warnf(format string, args ...any) {
	if !c.LogWarnings {
		return
	}
	fmt.Fprintf(getLogger(c), "Warning: "+format+"\n", args...)
}
