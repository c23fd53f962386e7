package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/freeeve/chessgraph/depthscan/internal/store"
)

// Handler serves persisted analyses.
type Handler struct {
	st  *store.Store
	log zerolog.Logger
}

// NewRouter creates the read-only analysis API.
func NewRouter(log zerolog.Logger, st *store.Store) http.Handler {
	h := &Handler{st: st, log: log}

	mux := http.NewServeMux()
	mux.Handle("/healthz", http.HandlerFunc(h.health))
	mux.Handle("/readyz", http.HandlerFunc(h.health))
	mux.Handle("/v1/analyses/", http.HandlerFunc(h.analyses))

	return CORS(RequestID(AccessLog(log, mux)))
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// analyses serves
//
//	/v1/analyses/{player}/{depth}              ids of analyzed games
//	/v1/analyses/{player}/{depth}/{id}         full record
//	/v1/analyses/{player}/{depth}/{id}?view=summary
func (h *Handler) analyses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	parts := splitPath(r.URL.Path)
	if len(parts) < 4 || len(parts) > 5 {
		http.Error(w, "expected /v1/analyses/{player}/{depth}[/{id}]", http.StatusNotFound)
		return
	}
	player := parts[2]
	depth, err := strconv.Atoi(strings.TrimPrefix(parts[3], "depth-"))
	if err != nil || depth < 1 {
		http.Error(w, "invalid depth: "+parts[3], http.StatusBadRequest)
		return
	}

	if len(parts) == 4 {
		h.list(w, r, player, depth)
		return
	}
	h.record(w, r, store.Key{Player: player, Depth: depth, GameID: parts[4]})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, player string, depth int) {
	ids, err := h.st.List(player, depth)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, ListResponse{Player: player, Depth: depth, Games: ids})
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request, key store.Key) {
	if r.URL.Query().Get("view") == "summary" {
		rec, err := h.st.Get(key)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, ToSummaryResponse(rec))
		return
	}

	raw, err := h.st.GetRaw(key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "analysis not found", http.StatusNotFound)
	case errors.Is(err, store.ErrInvalidKey):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.Error().Err(err).Str("rid", GetRequestID(r.Context())).Msg("read analysis")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// splitPath splits a URL path into parts
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
