package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/scoreconfig"
)

// configState is the admin GET/PUT response: the effective (merged) config
// alongside the raw stored payload.
type configState struct {
	Module          string          `json:"module"`
	EffectiveConfig any             `json:"effective_config"`
	RawConfig       json.RawMessage `json:"raw_config,omitempty"`
	SchemaVersion   int             `json:"schema_version"`
	Version         int             `json:"version"`
	Hash            string          `json:"hash"`
	FallbackUsed    bool            `json:"config_fallback_used,omitempty"`
	// PenaltyStrategy is deployment config, read-only here.
	PenaltyStrategy string `json:"penalty_strategy,omitempty"`
}

func (s *Server) configState(ctx context.Context, metric scoreconfig.Metric) (*configState, error) {
	st := &configState{Module: string(metric), SchemaVersion: scoreconfig.ConfigSchemaVersion}

	switch metric {
	case scoreconfig.MetricLumpsum:
		eff, err := s.Configs.FetchLumpsum(ctx)
		if err != nil {
			return nil, err
		}
		st.EffectiveConfig, st.RawConfig = eff.Config, eff.Raw
		st.Version, st.Hash, st.FallbackUsed = eff.Version, eff.Hash, eff.FallbackUsed
		st.PenaltyStrategy = s.PenaltyStrategy
	case scoreconfig.MetricSIP:
		eff, err := s.Configs.FetchSIP(ctx)
		if err != nil {
			return nil, err
		}
		st.EffectiveConfig, st.RawConfig = eff.Config, eff.Raw
		st.Version, st.Hash, st.FallbackUsed = eff.Version, eff.Hash, eff.FallbackUsed
	case scoreconfig.MetricInsurance:
		eff, err := s.Configs.FetchInsurance(ctx)
		if err != nil {
			return nil, err
		}
		st.EffectiveConfig, st.RawConfig = eff.Config, eff.Raw
		st.Version, st.Hash, st.FallbackUsed = eff.Version, eff.Hash, eff.FallbackUsed
	case scoreconfig.MetricReferral:
		eff, err := s.Configs.FetchReferral(ctx)
		if err != nil {
			return nil, err
		}
		st.EffectiveConfig, st.RawConfig = eff.Config, eff.Raw
		st.Version, st.Hash, st.FallbackUsed = eff.Version, eff.Hash, eff.FallbackUsed
	}
	return st, nil
}

func moduleParam(w http.ResponseWriter, r *http.Request) (scoreconfig.Metric, bool) {
	metric, err := scoreconfig.ParseMetric(chi.URLParam(r, "module"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown scorer module")
		return "", false
	}
	return metric, true
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	metric, ok := moduleParam(w, r)
	if !ok {
		return
	}
	st, err := s.configState(r.Context(), metric)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handlePutConfig validates then upserts a config document. Validation
// failure returns the full error list and writes nothing.
func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	metric, ok := moduleParam(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}

	var req struct {
		Payload json.RawMessage `json:"payload"`
		Reason  string          `json:"change_reason"`
	}
	if err := json.Unmarshal(body, &req); err != nil || len(req.Payload) == 0 {
		writeError(w, http.StatusBadRequest, "body must be {payload, change_reason}")
		return
	}

	fieldErrs, err := scoreconfig.Validate(metric, req.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "payload is not valid JSON for "+string(metric))
		return
	}
	if len(fieldErrs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": fieldErrs})
		return
	}

	version, err := s.Configs.Put(r.Context(), metric, req.Payload, callerID(r), req.Reason)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	zap.L().Info("scorer config updated",
		zap.String("module", string(metric)),
		zap.Int("version", version),
		zap.String("actor", callerID(r)))

	s.scheduleReaggregation(metric, model.MonthOf(s.Now().UTC()))

	st, err := s.configState(r.Context(), metric)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleResetConfig(w http.ResponseWriter, r *http.Request) {
	metric, ok := moduleParam(w, r)
	if !ok {
		return
	}
	if err := s.Configs.Reset(r.Context(), metric, callerID(r)); err != nil {
		writeStoreError(w, err)
		return
	}
	zap.L().Info("scorer config reset",
		zap.String("module", string(metric)),
		zap.String("actor", callerID(r)))

	s.scheduleReaggregation(metric, model.MonthOf(s.Now().UTC()))

	st, err := s.configState(r.Context(), metric)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleReaggregate schedules a rebuild from the earliest requested month.
// The rebuild runs asynchronously; reads meanwhile see the prior rows
// stamped with the prior config hash.
func (s *Server) handleReaggregate(w http.ResponseWriter, r *http.Request) {
	metric, ok := moduleParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Month  string   `json:"month,omitempty"`
		Months []string `json:"months,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	raw := req.Months
	if req.Month != "" {
		raw = append(raw, req.Month)
	}
	if len(raw) == 0 {
		writeError(w, http.StatusBadRequest, "month or months required")
		return
	}

	var from model.Month
	for _, s := range raw {
		m, err := model.ParseMonth(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid month "+s)
			return
		}
		if from.IsZero() || m.Before(from) {
			from = m
		}
	}

	s.scheduleReaggregation(metric, from)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "scheduled",
		"metric": string(metric),
		"from":   from.String(),
	})
}

func (s *Server) scheduleReaggregation(metric scoreconfig.Metric, from model.Month) {
	if s.Reagg == nil {
		return
	}
	go func() {
		if err := s.Reagg.Reaggregate(context.Background(), metric, from); err != nil {
			zap.L().Error("scheduled reaggregation failed",
				zap.String("metric", string(metric)),
				zap.String("from", from.String()),
				zap.Error(err))
		}
	}()
}

func (s *Server) handleConfigAudit(w http.ResponseWriter, r *http.Request) {
	metric, ok := moduleParam(w, r)
	if !ok {
		return
	}
	history, err := s.Configs.History(r.Context(), metric, limitParam(r, 20))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"module":  string(metric),
		"entries": history,
	})
}
