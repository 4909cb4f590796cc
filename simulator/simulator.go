// Package simulator is a local stand-in for the analytics service. It
// serves the same three endpoints with deterministic synthetic data so the
// application can run end to end without the real backend.
package simulator

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/quantwise/chartsync/core"
	"github.com/quantwise/chartsync/timeline"
)

// Service implements http.Handler with the analytics service contract.
type Service struct {
	seed int64
	log  core.Logger
	mux  *http.ServeMux
}

// Option is a functional option for configuring a Service instance
type Option func(*Service)

// WithSeed fixes the price generator seed. Two services with the same seed
// produce identical series.
func WithSeed(seed int64) Option {
	return func(s *Service) {
		s.seed = seed
	}
}

// New creates a simulated analytics service.
func New(log core.Logger, options ...Option) *Service {
	service := &Service{
		seed: 1,
		log:  log,
	}

	for _, option := range options {
		option(service)
	}

	service.mux = http.NewServeMux()
	service.mux.HandleFunc("/get-price-data", service.handlePriceData)
	service.mux.HandleFunc("/get-indicator-data", service.handleIndicatorData)
	service.mux.HandleFunc("/run-backtest", service.handleRunBacktest)

	return service
}

func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Service) handlePriceData(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r.URL.Query().Get("start_date"), r.URL.Query().Get("end_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ticker := r.URL.Query().Get("ticker")
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	writeJSON(w, s.log, s.bars(ticker, start, end))
}

func (s *Service) handleIndicatorData(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	start, end, err := parseRange(query.Get("start_date"), query.Get("end_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ticker := query.Get("ticker")
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	period, err := strconv.Atoi(query.Get("period"))
	if err != nil || period <= 0 {
		writeError(w, http.StatusBadRequest, "period must be a positive integer")
		return
	}

	indicator := query.Get("indicator")
	bars := s.bars(ticker, start, end)

	values, err := computeIndicator(indicator, bars, period)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	points := make([]core.RawIndicatorPoint, 0, len(bars))
	for i, bar := range bars {
		if !valid(values[i]) {
			continue
		}
		points = append(points, core.RawIndicatorPoint{Date: bar.Date, Value: values[i]})
	}

	writeJSON(w, s.log, points)
}

func (s *Service) handleRunBacktest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req core.BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	if len(req.Params.Conditions) == 0 || len(req.Params.Exits) == 0 {
		writeError(w, http.StatusBadRequest, "at least one entry and one exit condition are required")
		return
	}

	bars := s.bars(req.Ticker, start, end)
	if len(bars) == 0 {
		writeError(w, http.StatusBadRequest, "no data in range")
		return
	}

	result, err := runBacktest(bars, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, s.log, result)
}

func parseRange(startDate, endDate string) (start, end time.Time, err error) {
	start, ok := timeline.ParseInstant(startDate)
	if !ok {
		return start, end, errInvalidDate(startDate)
	}

	end, ok = timeline.ParseInstant(endDate)
	if !ok {
		return start, end, errInvalidDate(endDate)
	}

	if end.Before(start) {
		return start, end, errRangeInverted
	}

	return start, end, nil
}

func writeJSON(w http.ResponseWriter, log core.Logger, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil && log != nil {
		log.Error("failed to encode response: ", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
