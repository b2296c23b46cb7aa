package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"vela/internal/backtest"
	"vela/internal/domain"
	"vela/internal/report"
	"vela/pkg/vela"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStrategies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, vela.StrategiesResponse{Strategies: s.registry.List()})
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.source.Symbols(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing symbols failed")
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	writeJSON(w, http.StatusOK, vela.SymbolsResponse{Symbols: sortedCopy(symbols)})
}

// handleRunBacktest executes a backtest synchronously and returns the full
// result. The run is also stored for later retrieval by ID.
func (s *Server) handleRunBacktest(w http.ResponseWriter, r *http.Request) {
	var req vela.BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Strategy == "" || len(req.Symbols) == 0 {
		writeError(w, http.StatusBadRequest, "strategy and symbols are required")
		return
	}
	start, err := time.Parse("2006-01-02", req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be a 2006-01-02 date")
		return
	}
	end, err := time.Parse("2006-01-02", req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be a 2006-01-02 date")
		return
	}
	if !end.After(start) {
		writeError(w, http.StatusBadRequest, "end must be after start")
		return
	}

	strat, err := s.registry.New(req.Strategy, req.Params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data := make(map[string][]domain.Bar, len(req.Symbols))
	for _, sym := range req.Symbols {
		sym = strings.ToUpper(sym)
		bars, err := s.source.Fetch(r.Context(), sym, start, end)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("loading %s: %v", sym, err))
			return
		}
		if len(bars) == 0 {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no bars for %s in range", sym))
			return
		}
		data[sym] = bars
	}

	cfg := backtest.ConfigFromApp(s.cfg.Backtest)
	if req.InitialCash > 0 {
		cfg.InitialCash = req.InitialCash
	}

	res, err := backtest.New(cfg, strat, nil, s.log).Run(r.Context(), data)
	if err != nil {
		writeRunError(w, err)
		return
	}
	s.storeRun(res)
	s.log.Info("backtest complete",
		"id", res.ID,
		"strategy", res.Strategy,
		"symbols", res.Symbols,
		"final_equity", res.FinalEquity)

	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	runs := s.listRuns()
	summaries := make([]vela.RunSummary, 0, len(runs))
	for _, res := range runs {
		summaries = append(summaries, summarize(res))
	}
	writeJSON(w, http.StatusOK, vela.RunsResponse{Runs: summaries})
}

// summarize reduces a stored run to one listing row.
func summarize(res *domain.RunResult) vela.RunSummary {
	return vela.RunSummary{
		ID:          res.ID,
		Strategy:    res.Strategy,
		Symbols:     res.Symbols,
		Start:       res.Start,
		End:         res.End,
		FinalEquity: res.FinalEquity,
		TotalReturn: res.Metrics.TotalReturn,
		Sharpe:      res.Metrics.Sharpe,
		MaxDrawdown: res.Metrics.MaxDrawdown,
		TotalTrades: res.Metrics.TotalTrades,
	}
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	res, ok := s.getRun(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRunCurveCSV(w http.ResponseWriter, r *http.Request) {
	res, ok := s.getRun(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	if err := report.WriteCurveCSV(w, res.Curve); err != nil {
		s.log.Error("writing curve csv", "error", err)
	}
}

func (s *Server) handleRunTradesCSV(w http.ResponseWriter, r *http.Request) {
	res, ok := s.getRun(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	if err := report.WriteTradesCSV(w, res.Trades); err != nil {
		s.log.Error("writing trades csv", "error", err)
	}
}

// writeRunError maps engine error classes onto HTTP statuses.
func writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrData):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrStrategy):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrEngine):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
