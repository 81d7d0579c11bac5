package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/secmon-lab/esr/pkg/domain/model"
	"github.com/secmon-lab/esr/pkg/domain/types"
	"github.com/secmon-lab/esr/pkg/service/metabolism"
	"github.com/secmon-lab/esr/pkg/usecase"
	"github.com/secmon-lab/esr/pkg/utils/logging"
)

// envelope is the uniform response shape: a status, operation fields, and
// a timestamp. Absence of data is a normal outcome and travels as status
// "not_found" or "no_data" with HTTP 200; non-2xx is reserved for bad
// requests and transport failures.
type envelope map[string]any

func respond(w http.ResponseWriter, httpStatus int, body envelope) {
	body["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Default().Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, httpStatus int, err error) {
	respond(w, httpStatus, envelope{
		"status": "error",
		"error":  err.Error(),
	})
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, envelope{"status": "ok"})
}

func (s *Server) handleStoreThought(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content     string            `json:"content"`
		ThoughtType string            `json:"thought_type"`
		Confidence  float64           `json:"confidence"`
		CIID        string            `json:"ci_id"`
		Namespace   string            `json:"namespace"`
		Context     map[string]string `json:"context"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	thought, err := s.uc.StoreThought(r.Context(), usecase.StoreThoughtInput{
		Content:    req.Content,
		Type:       types.ParseThoughtType(req.ThoughtType),
		Confidence: req.Confidence,
		CIID:       types.CIID(req.CIID),
		Namespace:  types.Namespace(req.Namespace),
		Context:    req.Context,
	})
	if err != nil {
		if errors.Is(err, model.ErrEmptyContent) {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respond(w, http.StatusOK, envelope{
		"status":       "stored",
		"memory_id":    thought.ID,
		"thought_type": thought.Type,
		"namespace":    thought.Namespace,
		"confidence":   thought.Confidence,
	})
}

func (s *Server) handleRecallThought(w http.ResponseWriter, r *http.Request) {
	id := types.MemoryID(chi.URLParam(r, "id"))
	ci := types.CIID(r.URL.Query().Get("ci_id"))

	result, err := s.uc.RecallThought(r.Context(), id, ci)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	if result.Status != types.SynthesisSuccess {
		respond(w, http.StatusOK, envelope{
			"status":    "not_found",
			"memory_id": id,
		})
		return
	}

	respond(w, http.StatusOK, envelope{
		"status":         "success",
		"memory_id":      id,
		"thought":        json.RawMessage(result.PrimaryMemory),
		"sources":        result.Sources,
		"contradictions": len(result.Contradictions),
		"synthesis":      result.Synthesis,
	})
}

func (s *Server) handleRecallSimilar(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query         string  `json:"query"`
		Limit         int     `json:"limit"`
		Namespace     string  `json:"namespace"`
		ThoughtType   string  `json:"thought_type"`
		MinConfidence float64 `json:"min_confidence"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Query == "" {
		respondError(w, http.StatusBadRequest, errors.New("query is required"))
		return
	}

	filter := usecase.SimilarFilter{
		Namespace:     types.Namespace(req.Namespace),
		MinConfidence: req.MinConfidence,
	}
	if req.ThoughtType != "" {
		filter.Type = types.ParseThoughtType(req.ThoughtType)
	}

	thoughts, err := s.uc.RecallSimilar(r.Context(), req.Query, req.Limit, filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respond(w, http.StatusOK, envelope{
		"status":   "success",
		"query":    req.Query,
		"thoughts": thoughts,
		"count":    len(thoughts),
	})
}

func (s *Server) handleBuildContext(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic    string `json:"topic"`
		Depth    int    `json:"depth"`
		MaxItems int    `json:"max_items"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Topic == "" {
		respondError(w, http.StatusBadRequest, errors.New("topic is required"))
		return
	}

	result, err := s.uc.BuildContext(r.Context(), req.Topic, req.Depth, req.MaxItems)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	if len(result.Primary) == 0 {
		respond(w, http.StatusOK, envelope{
			"status": "no_data",
			"topic":  req.Topic,
		})
		return
	}

	respond(w, http.StatusOK, envelope{
		"status":  "success",
		"topic":   req.Topic,
		"context": result,
		"count":   len(result.Primary) + len(result.Associated),
	})
}

func (s *Server) handleCreateAssociation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From     string  `json:"from"`
		To       string  `json:"to"`
		Type     string  `json:"type"`
		Strength float64 `json:"strength"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.From == "" || req.To == "" {
		respondError(w, http.StatusBadRequest, errors.New("from and to are required"))
		return
	}

	assoc, err := s.uc.CreateAssociation(r.Context(),
		types.MemoryID(req.From),
		types.MemoryID(req.To),
		types.ParseAssociationType(req.Type),
		req.Strength,
	)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrSelfAssociation):
			respondError(w, http.StatusBadRequest, err)
		case errors.Is(err, usecase.ErrThoughtNotFound):
			respond(w, http.StatusOK, envelope{
				"status": "not_found",
				"error":  err.Error(),
			})
		default:
			respondError(w, http.StatusInternalServerError, err)
		}
		return
	}

	respond(w, http.StatusOK, envelope{
		"status":      "created",
		"association": assoc,
	})
}

func (s *Server) handleNamespaces(w http.ResponseWriter, r *http.Request) {
	namespaces := s.uc.Namespaces()
	respond(w, http.StatusOK, envelope{
		"status":     "success",
		"namespaces": namespaces,
		"count":      len(namespaces),
	})
}

func (s *Server) handleMetabolismStatus(w http.ResponseWriter, r *http.Request) {
	if s.metabolism == nil {
		respond(w, http.StatusOK, envelope{"status": "disabled"})
		return
	}

	respond(w, http.StatusOK, envelope{
		"status":     "success",
		"metabolism": s.metabolism.Status(),
	})
}

func (s *Server) handleTriggerReflection(w http.ResponseWriter, r *http.Request) {
	if s.metabolism == nil {
		respond(w, http.StatusOK, envelope{"status": "disabled"})
		return
	}

	report, err := s.metabolism.Reflect(r.Context(), metabolism.TriggerExplicit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respond(w, http.StatusOK, envelope{
		"status": "success",
		"report": report,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, envelope{
		"status":       "success",
		"encoder":      s.uc.EncoderStats(),
		"cache":        s.uc.CacheStats(),
		"usage":        s.uc.CacheUsage(),
		"associations": s.uc.AssociationCount(),
	})
}
