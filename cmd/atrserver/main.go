// atrserver serves the document editing and export API.
//
// Documents are fetched from the ATR service on first use. Edits are kept as drafts in the
// configured store until the document is saved, which stores the confirmed result and
// writes it back to the ATR service.
//
// Usage:
//
//	atrserver [-config atrdoc.yml] [-listen :3000]
//
// Routes:
//
//	GET  /health          Liveness and number of open documents
//	GET  /api/models      Model catalog of the ATR service
//	POST /api/outputdata  Open a document: {"image_id": "...", "id": "..."}
//	POST /api/edit        Change a line: {"image_id", "id", "index", "text"}
//	POST /api/focus       Highlight a line: {"image_id", "id", "index"}
//	POST /api/revert      Revert a line, or every line when no index is given
//	POST /api/export      Download a document: {"image_id", "id", "format"}
//	POST /api/save        Confirm a document
//	POST /api/transcribe  Transcribe an uploaded image (multipart "file", optional engine=gdocai)
//	POST /api/searchable  Build a searchable PDF (multipart image_id, id, optional "file")
//
// Settings are read from the YAML file, a .env file and ATRDOC_* environment variables.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/forsete/atrdoc/internal/config"
	"github.com/forsete/atrdoc/internal/server"
	"github.com/forsete/atrdoc/pkg/atrclient"
	"github.com/forsete/atrdoc/pkg/export"
	"github.com/forsete/atrdoc/pkg/pdfocr"
	"github.com/forsete/atrdoc/pkg/store"
)

func main() {
	configPath := flag.String("config", "", "Path to the config YAML file")
	listen := flag.String("listen", "", "Listen address (overrides the config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.StoreConfig())
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.Store.Driver, err)
	}
	defer st.Close()

	backend, err := atrclient.New(atrclient.Config{
		BaseURL: cfg.ATR.URL,
		Token:   cfg.ATR.Token,
		Timeout: cfg.ATR.Timeout,
	})
	if err != nil {
		log.Fatalf("Failed to create ATR client: %v", err)
	}
	if err := backend.Status(ctx); err != nil {
		log.Printf("Warning: ATR service not available: %v", err)
	}

	exportOpts := export.DefaultOptions()
	exportOpts.PlainPDF.PageSize = cfg.PDF.PageSize
	exportOpts.PDF.Debug = cfg.PDF.Debug
	pdfConfig := pdfocr.DefaultConfig()
	pdfConfig.Debug = cfg.PDF.Debug

	var documentAI = cfg.DocumentAI()
	if err := documentAI.Validate(); err != nil {
		log.Printf("Document AI disabled: %v", err)
		documentAI = nil
	}

	srv := server.New(server.Options{
		Backend:    backend,
		Store:      st,
		DocumentAI: documentAI,
		Export:     exportOpts,
		PDFOCR:     pdfConfig,
	})

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("Server starting on %s (store: %s, ATR service: %s)", cfg.Listen, cfg.Store.Driver, cfg.ATR.URL)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
