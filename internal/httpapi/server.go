package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ballotscan/internal/bootstrap/logging"
	"ballotscan/internal/domain/ballot"
	"ballotscan/internal/ports"
	"ballotscan/internal/usecase/scan"
)

// Server exposes the scan pipeline over HTTP for the election manager UI.
type Server struct {
	importer *scan.Importer
	store    ports.Store
	router   chi.Router
}

func NewServer(importer *scan.Importer, store ports.Store) (*Server, error) {
	if importer == nil {
		return nil, errors.New("importer is required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}

	s := &Server{importer: importer, store: store}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/config", s.handleGetConfig)
	r.Patch("/config", s.handlePatchConfig)
	r.Delete("/config", s.handleDeleteConfig)

	r.Route("/scan", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/scanBatch", s.handleScanBatch)
		r.Post("/scanContinue", s.handleScanContinue)
		r.Post("/export", s.handleExport)
		r.Post("/zero", s.handleZero)
		r.Post("/backup", s.handleBackup)

		r.Route("/hmpb", func(r chi.Router) {
			r.Post("/templates", s.handleAddTemplates)
			r.Get("/review/next-sheet", s.handleNextSheet)
			r.Patch("/review/adjudicate", s.handleAdjudicate)
		})
	})

	s.router = r
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe runs the server until the context is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	server := &http.Server{Addr: addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logCtx := logging.WithAttrs(ctx, slog.String("component", "httpapi"))
	logging.Info(logCtx, "listening", slog.String("addr", addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// --- configuration handlers ---

type configResponse struct {
	Election          *ballot.ElectionDefinition `json:"election,omitempty"`
	TestMode          bool                       `json:"testMode"`
	CurrentPrecinctID string                     `json:"currentPrecinctId,omitempty"`
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	state, err := s.store.GetElectionState(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, configResponse{
		Election:          state.Definition,
		TestMode:          state.TestMode,
		CurrentPrecinctID: state.CurrentPrecinctID,
	})
}

type patchConfigRequest struct {
	Election            *ballot.ElectionDefinition   `json:"election,omitempty"`
	TestMode            *bool                        `json:"testMode,omitempty"`
	CurrentPrecinctID   *string                      `json:"currentPrecinctId,omitempty"`
	AdjudicationReasons *[]ballot.AdjudicationReason `json:"adjudicationReasons,omitempty"`
	MarkThresholds      *ports.MarkThresholds        `json:"markThresholds,omitempty"`
}

func (s *Server) handlePatchConfig(w http.ResponseWriter, r *http.Request) {
	var req patchConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	ctx := r.Context()
	if req.Election != nil {
		if err := s.importer.Configure(ctx, req.Election); err != nil {
			writeError(w, r, http.StatusInternalServerError, err)
			return
		}
	}
	if req.TestMode != nil {
		if err := s.importer.SetTestMode(ctx, *req.TestMode); err != nil {
			writeError(w, r, statusForImporterError(err), err)
			return
		}
	}
	if req.CurrentPrecinctID != nil {
		if err := s.importer.SetCurrentPrecinct(ctx, *req.CurrentPrecinctID); err != nil {
			writeError(w, r, http.StatusInternalServerError, err)
			return
		}
	}
	if req.AdjudicationReasons != nil {
		if err := s.importer.SetAdjudicationReasons(ctx, *req.AdjudicationReasons); err != nil {
			writeError(w, r, http.StatusInternalServerError, err)
			return
		}
	}
	if req.MarkThresholds != nil {
		if err := s.importer.SetMarkThresholds(ctx, *req.MarkThresholds); err != nil {
			writeError(w, r, http.StatusInternalServerError, err)
			return
		}
	}
	writeOK(w)
}

func (s *Server) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	if err := s.importer.Unconfigure(r.Context()); err != nil {
		writeError(w, r, statusForImporterError(err), err)
		return
	}
	writeOK(w)
}

// --- scan handlers ---

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.importer.GetStatus(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleScanBatch(w http.ResponseWriter, r *http.Request) {
	batchID, err := s.importer.StartImport(r.Context())
	if err != nil {
		writeError(w, r, statusForImporterError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "batchId": batchID})
}

type scanContinueRequest struct {
	Override bool `json:"override"`
}

func (s *Server) handleScanContinue(w http.ResponseWriter, r *http.Request) {
	var req scanContinueRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, http.StatusBadRequest, err)
			return
		}
	}
	if err := s.importer.ContinueImport(r.Context(), req.Override); err != nil {
		writeError(w, r, statusForImporterError(err), err)
		return
	}
	writeOK(w)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	if err := s.store.ExportCvrs(r.Context(), w); err != nil {
		// headers are gone; all we can do is log
		logging.Error(r.Context(), "export cvrs", slog.String("error", err.Error()))
	}
}

func (s *Server) handleZero(w http.ResponseWriter, r *http.Request) {
	if err := s.importer.DoZero(r.Context()); err != nil {
		writeError(w, r, statusForImporterError(err), err)
		return
	}
	writeOK(w)
}

type backupRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	var req backupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := s.store.Backup(r.Context(), req.Path); err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeOK(w)
}

// --- review handlers ---

func (s *Server) handleAddTemplates(w http.ResponseWriter, r *http.Request) {
	var templates []ports.HmpbTemplate
	if err := json.NewDecoder(r.Body).Decode(&templates); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := s.importer.AddHmpbTemplates(r.Context(), templates); err != nil {
		writeError(w, r, statusForImporterError(err), err)
		return
	}
	writeOK(w)
}

type reviewSheetResponse struct {
	ID           string                   `json:"id"`
	BatchID      string                   `json:"batchId"`
	Front        reviewPageResponse       `json:"front"`
	Back         reviewPageResponse       `json:"back"`
	Adjudication ports.AdjudicationStatus `json:"adjudicationStatus"`
}

type reviewPageResponse struct {
	Image          string                     `json:"image"`
	Interpretation ballot.InterpretationField `json:"interpretation"`
}

func (s *Server) handleNextSheet(w http.ResponseWriter, r *http.Request) {
	sheet, err := s.store.GetNextAdjudicationSheet(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	if sheet == nil {
		writeError(w, r, http.StatusNotFound, errors.New("no sheets pending adjudication"))
		return
	}

	status, err := s.store.AdjudicationStatus(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, reviewSheetResponse{
		ID:      sheet.ID,
		BatchID: sheet.BatchID,
		Front: reviewPageResponse{
			Image:          sheet.Front.Files.Normalized,
			Interpretation: ballot.InterpretationField{PageInterpretation: sheet.Front.Interpretation},
		},
		Back: reviewPageResponse{
			Image:          sheet.Back.Files.Normalized,
			Interpretation: ballot.InterpretationField{PageInterpretation: sheet.Back.Interpretation},
		},
		Adjudication: status,
	})
}

type adjudicateRequest struct {
	SheetID string                  `json:"sheetId"`
	Side    ports.Side              `json:"side"`
	Marks   ballot.MarksByContestID `json:"marks"`
}

func (s *Server) handleAdjudicate(w http.ResponseWriter, r *http.Request) {
	var req adjudicateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if req.Side != ports.SideFront && req.Side != ports.SideBack {
		writeError(w, r, http.StatusBadRequest, errors.New("side must be front or back"))
		return
	}

	if err := s.store.AdjudicateSheet(r.Context(), req.SheetID, req.Side, req.Marks); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ports.ErrSheetNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, r, status, err)
		return
	}
	writeOK(w)
}

// --- helpers ---

func statusForImporterError(err error) int {
	switch {
	case errors.Is(err, ballot.ErrNoElection):
		return http.StatusBadRequest
	case errors.Is(err, scan.ErrBatchInProgress),
		errors.Is(err, scan.ErrNotAwaitingAdjudication):
		return http.StatusConflict
	case errors.Is(err, ports.ErrSheetNotFound),
		errors.Is(err, ports.ErrBatchNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	logging.Warn(r.Context(), "request failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
	writeJSON(w, status, map[string]string{"status": "error", "error": err.Error()})
}
