package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oncomatch/trial-screener/internal/export"
	"github.com/oncomatch/trial-screener/internal/model"
	"github.com/oncomatch/trial-screener/internal/screening"
	"github.com/oncomatch/trial-screener/internal/store"
	"github.com/oncomatch/trial-screener/internal/trials"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the screening HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		table, err := loadTable(ctx, st, "")
		if err != nil {
			return err
		}
		screener := newScreener(table, st)

		api := &apiServer{store: st, screener: screener}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.Int("trials", table.Len()),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

type apiServer struct {
	store    store.Store
	screener *screening.Screener
}

func (a *apiServer) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", a.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/trials", a.handleListTrials)
		r.Get("/trials/{nctID}", a.handleGetTrial)
		r.Get("/samples", a.handleSamples)
		r.Post("/match", a.handleMatch)
		r.Post("/match/export", a.handleMatchExport)
		r.Get("/runs", a.handleListRuns)
		r.Get("/runs/{runID}", a.handleGetRun)
	})
	return r
}

func (a *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"trials": a.screener.Table().Len(),
	})
}

func (a *apiServer) handleListTrials(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.TrialFilter{
		Condition: q.Get("condition"),
		Status:    model.RecruitmentStatus(q.Get("status")),
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	rows, err := a.store.ListTrials(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if rows == nil {
		rows = []model.Trial{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *apiServer) handleGetTrial(w http.ResponseWriter, r *http.Request) {
	nctID := chi.URLParam(r, "nctID")

	// Serve from the loaded table first so sample datasets work without
	// an import.
	if t, ok := a.screener.Table().Get(nctID); ok {
		writeJSON(w, http.StatusOK, t)
		return
	}

	t, err := a.store.GetTrial(r.Context(), nctID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *apiServer) handleSamples(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, trials.SampleCases)
}

// matchRequest is the POST /api/match body.
type matchRequest struct {
	Description string `json:"description"`
	Location    string `json:"location,omitempty"`
	TopK        int    `json:"top_k,omitempty"`
	Format      string `json:"format,omitempty"` // export only: csv or xlsx
}

func (a *apiServer) screenRequest(r *http.Request) (*model.MatchRun, *matchRequest, error) {
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, nil, eris.Wrap(err, "decode request body")
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, nil, eris.New("description is required")
	}

	run := a.screener.Screen(r.Context(), screening.Request{
		Text:     req.Description,
		Location: req.Location,
		TopK:     req.TopK,
	})
	return run, &req, nil
}

func (a *apiServer) handleMatch(w http.ResponseWriter, r *http.Request) {
	run, _, err := a.screenRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (a *apiServer) handleMatchExport(w http.ResponseWriter, r *http.Request) {
	run, req, err := a.screenRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	switch req.Format {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="matches.csv"`)
		if err := export.WriteCSV(w, run.Results); err != nil {
			zap.L().Error("export csv failed", zap.Error(err))
		}
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="matches.xlsx"`)
		if err := export.WriteXLSX(w, run.Results); err != nil {
			zap.L().Error("export xlsx failed", zap.Error(err))
		}
	default:
		writeError(w, http.StatusBadRequest, eris.Errorf("unknown format %q", req.Format))
	}
}

func (a *apiServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{}
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	filter.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	runs, err := a.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []model.MatchRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (a *apiServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := a.store.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
