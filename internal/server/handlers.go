package server

import (
	"encoding/json"
	"math"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quantfold/structpricer/internal/bond"
	"github.com/quantfold/structpricer/internal/bond/store"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "structpricer",
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleSystemStatus handles system status requests
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := map[string]interface{}{
		"status": "running",
		"bonds":  len(s.bonds.IDs()),
		"memory": map[string]interface{}{
			"alloc_mb":       m.Alloc / 1024 / 1024,
			"total_alloc_mb": m.TotalAlloc / 1024 / 1024,
			"sys_mb":         m.Sys / 1024 / 1024,
			"num_gc":         m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleListBonds lists the loaded bond ids with their active model.
func (s *Server) handleListBonds(w http.ResponseWriter, r *http.Request) {
	ids := s.bonds.IDs()
	out := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		entry := map[string]string{"id": id}
		if p, ok := s.bonds.Get(id); ok {
			entry["model"] = p.ModelName()
		}
		out = append(out, entry)
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"bonds": out})
}

// handleCreateBond persists and activates a bond definition.
func (s *Server) handleCreateBond(w http.ResponseWriter, r *http.Request) {
	var def store.Bond
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid bond definition: "+err.Error())
		return
	}
	if def.ID == "" {
		s.writeError(w, http.StatusBadRequest, "bond id is required")
		return
	}

	if err := s.bonds.Create(&def); err != nil {
		s.log.Error().Err(err).Str("bond", def.ID).Msg("Failed to create bond")
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": def.ID})
}

// handlePriceBond prices one bond. Undefined price components are
// returned as null.
func (s *Server) handlePriceBond(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := s.bonds.Price(id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// handleFrontier solves implied FX frontier levels for a bond. With
// ?all=true the frontier is solved at every future call date, otherwise
// only at the valuation date.
func (s *Server) handleFrontier(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok := s.bonds.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown bond "+id)
		return
	}

	req := bond.FrontierRequest{Currency: r.URL.Query().Get("currency")}
	if req.Currency == "" {
		s.writeError(w, http.StatusBadRequest, "currency query parameter is required")
		return
	}
	if t := r.URL.Query().Get("target"); t != "" {
		target, err := strconv.ParseFloat(t, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid target")
			return
		}
		req.Target = target
	}

	if r.URL.Query().Get("all") == "true" {
		levels := p.FXFrontiers(req)
		out := make(map[string]*float64, len(levels))
		for d, level := range levels {
			out[d.Format("2006-01-02")] = nullableFloat(level)
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"frontiers": out})
		return
	}

	level := p.FXFrontier(req)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"frontier": nullableFloat(level)})
}

// handleSwitchModel switches the active pricing model for a bond.
func (s *Server) handleSwitchModel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Model string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Model == "" {
		s.writeError(w, http.StatusBadRequest, "model is required")
		return
	}

	if err := s.bonds.SwitchModel(id, body.Model); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"id": id, "model": body.Model})
}

// handleSetPathCount changes the Monte Carlo path count for a bond.
func (s *Server) handleSetPathCount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok := s.bonds.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown bond "+id)
		return
	}

	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Count <= 0 {
		s.writeError(w, http.StatusBadRequest, "count must be a positive integer")
		return
	}
	p.SetPathCount(body.Count)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "count": body.Count})
}

// handleUpsertFixing records a fixing observation and refreshes the
// market snapshot across the book.
func (s *Server) handleUpsertFixing(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name  string  `json:"name"`
		Date  string  `json:"date"`
		Value float64 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name, date and value are required")
		return
	}
	date, err := time.Parse("2006-01-02", body.Date)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	if err := s.fixings.Upsert(body.Name, date, body.Value); err != nil {
		s.log.Error().Err(err).Str("name", body.Name).Msg("Failed to upsert fixing")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.bonds.RefreshMarket()
	s.writeJSON(w, http.StatusOK, map[string]string{"name": body.Name})
}

func nullableFloat(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
