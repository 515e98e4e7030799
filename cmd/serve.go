package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/docextract/internal/config"
	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/monitoring"
	"github.com/sells-group/docextract/internal/resilience"
	"github.com/sells-group/docextract/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:         "serve",
	Short:       "Start the HTTP API for document registration and job processing",
	Annotations: map[string]string{configMode: "serve"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		checker := monitoring.NewChecker(
			monitoring.NewCollector(env.Store, stuckAfter()),
			monitoring.NewAlerter(cfg.Monitoring),
			cfg.Monitoring,
		)
		go checker.Run(ctx)

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(ctx, env.Store, env.Processor, cfg.Server, env.SourceA, env.SourceB),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// jobRunner is the processor surface the HTTP layer drives.
type jobRunner interface {
	Run(ctx context.Context, jobID, path string) (*model.ExtractionResult, error)
	Process(ctx context.Context, jobID string, ocrResult *model.OcrResult) (*model.ExtractionResult, error)
}

// breakerReporter exposes an extraction source's circuit state.
type breakerReporter interface {
	Name() string
	State() resilience.CircuitState
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status  string            `json:"status"`
	Sources map[string]string `json:"sources,omitempty"`
}

// processRequest is the optional body of POST /jobs/{id}/process. With OCR
// set the job skips recognition; otherwise the document's file, resolved
// under the upload directory, is recognized first.
type processRequest struct {
	OCR *model.OcrResult `json:"ocr,omitempty"`
}

// resultDetail is the body of GET /results/{id}.
type resultDetail struct {
	Result *model.ExtractionResult `json:"result"`
	Fields []model.ExtractedField  `json:"fields"`
}

type api struct {
	// ctx outlives requests; background jobs stop with the server.
	ctx       context.Context
	store     store.Store
	runner    jobRunner
	uploadDir string
	sources   []breakerReporter
}

// buildRouter wires the HTTP routes. Jobs accepted by POST /jobs/{id}/process
// run in the background under ctx.
func buildRouter(ctx context.Context, st store.Store, runner jobRunner, srv config.ServerConfig, sources ...breakerReporter) http.Handler {
	a := &api{ctx: ctx, store: st, runner: runner, uploadDir: srv.UploadDir, sources: sources}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: srv.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", a.health)
	r.Post("/documents", a.createDocument)
	r.Get("/jobs/{id}", a.getJob)
	r.Post("/jobs/{id}/process", a.processJob)
	r.Get("/results/{id}", a.getResult)

	return r
}

// health reports the store as required and the sources as advisory: an open
// source circuit marks the service degraded but still answers 200.
func (a *api) health(w http.ResponseWriter, r *http.Request) {
	if a.store != nil {
		if err := a.store.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
	}

	resp := healthResponse{Status: "ok"}
	for _, src := range a.sources {
		if resp.Sources == nil {
			resp.Sources = make(map[string]string, len(a.sources))
		}
		state := src.State()
		resp.Sources[src.Name()] = state.String()
		if state == resilience.CircuitOpen {
			resp.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *api) createDocument(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DocumentType == "" {
		writeError(w, http.StatusBadRequest, "document_type is required")
		return
	}
	if req.FileKey == "" {
		writeError(w, http.StatusBadRequest, "file_key is required")
		return
	}
	if !filepath.IsLocal(req.FileKey) {
		writeError(w, http.StatusBadRequest, "file_key must be a relative path inside the upload directory")
		return
	}

	doc, job, err := createDocumentJob(r.Context(), a.store, req)
	if err != nil {
		zap.L().Error("create document failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not register document")
		return
	}
	writeJSON(w, http.StatusCreated, documentResponse{Document: doc, Job: job})
}

func (a *api) getJob(w http.ResponseWriter, r *http.Request) {
	detail, err := loadJobDetail(r.Context(), a.store, chi.URLParam(r, "id"))
	if err != nil {
		a.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (a *api) getResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := a.store.GetExtractionResult(r.Context(), id)
	if err != nil {
		a.storeError(w, err)
		return
	}
	fields, err := a.store.ListExtractedFields(r.Context(), id)
	if err != nil {
		a.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultDetail{Result: res, Fields: fields})
}

func (a *api) processJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req processRequest
	if r.ContentLength != 0 {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	job, err := a.store.GetJob(r.Context(), id)
	if err != nil {
		a.storeError(w, err)
		return
	}
	if job.Status.IsTerminal() {
		writeError(w, http.StatusConflict, fmt.Sprintf("job is %s", job.Status))
		return
	}

	var path string
	if req.OCR == nil {
		doc, err := a.store.GetDocument(r.Context(), job.DocumentID)
		if err != nil {
			a.storeError(w, err)
			return
		}
		path, err = a.uploadPath(doc.FileKey)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	go a.runJob(id, req.OCR, path)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"job_id": id,
	})
}

// uploadPath resolves a stored file key under the upload directory. Keys
// that are absolute or climb out of the directory are refused.
func (a *api) uploadPath(fileKey string) (string, error) {
	if a.uploadDir == "" {
		return "", eris.New("no upload directory configured")
	}
	if !filepath.IsLocal(fileKey) {
		return "", eris.Errorf("document file %q is outside the upload directory", fileKey)
	}
	return filepath.Join(a.uploadDir, fileKey), nil
}

func (a *api) runJob(id string, ocr *model.OcrResult, path string) {
	if a.runner == nil {
		return
	}
	log := zap.L().With(zap.String("job_id", id))

	var (
		result *model.ExtractionResult
		err    error
	)
	if ocr != nil {
		result, err = a.runner.Process(a.ctx, id, ocr)
	} else {
		result, err = a.runner.Run(a.ctx, id, path)
	}
	if err != nil {
		log.Error("job processing failed", zap.Error(err))
		return
	}
	log.Info("job processing complete",
		zap.String("result_id", result.ID),
		zap.String("confidence", string(result.Confidence)),
	)
}

func (a *api) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	zap.L().Error("store request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
