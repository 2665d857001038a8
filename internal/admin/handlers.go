// Package admin serves the router's HTTP surface: ring inspection, item
// location, membership changes, file upload/download and metrics.
package admin

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"ringstore/internal/cluster"
	"ringstore/internal/metrics"
	"ringstore/internal/ring"
	"ringstore/internal/storage"
)

// MaxUploadSize bounds PUT /files bodies.
const MaxUploadSize = 16 << 20

// Handler handles admin API endpoints.
type Handler struct {
	router  *cluster.Router
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewHandler creates a new instance of Handler.
func NewHandler(router *cluster.Router, m *metrics.Metrics, logger *zap.Logger) *Handler {
	return &Handler{
		router:  router,
		metrics: m,
		logger:  logger,
	}
}

// Routes returns a mux with every admin route registered.
func (h *Handler) Routes() *mux.Router {
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers admin routes on r.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ring", h.handleRing).Methods(http.MethodGet)
	r.HandleFunc("/locate/{item:.+}", h.handleLocate).Methods(http.MethodGet)
	r.HandleFunc("/nodes", h.handleJoin).Methods(http.MethodPost)
	r.HandleFunc("/nodes/{nodeID}", h.handleLeave).Methods(http.MethodDelete)
	r.HandleFunc("/files/{path:.+}", h.handleUpload).Methods(http.MethodPut)
	r.HandleFunc("/files/{path:.+}", h.handleDownload).Methods(http.MethodGet)
	r.Handle("/metrics", h.metrics.Handler()).Methods(http.MethodGet)
}

type memberResponse struct {
	Position int    `json:"position"`
	ID       string `json:"id"`
	Addr     string `json:"addr"`
}

type ringResponse struct {
	SlotCount int              `json:"slot_count"`
	Members   []memberResponse `json:"members"`
}

type locateResponse struct {
	Item     string         `json:"item"`
	Slot     int            `json:"slot"`
	Position int            `json:"position"`
	Node     memberResponse `json:"node"`
}

type nodeRequest struct {
	ID   string `json:"id"`
	Addr string `json:"addr"`
}

type positionResponse struct {
	Position int    `json:"position"`
	Error    string `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleRing handles GET /ring requests
func (h *Handler) handleRing(w http.ResponseWriter, r *http.Request) {
	rg := h.router.Ring()
	members := rg.Members()

	resp := ringResponse{
		SlotCount: rg.SlotCount(),
		Members:   make([]memberResponse, 0, len(members)),
	}
	for _, m := range members {
		resp.Members = append(resp.Members, memberResponse{Position: m.Position, ID: m.Node.ID, Addr: m.Node.Addr})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleLocate handles GET /locate/{item} requests
func (h *Handler) handleLocate(w http.ResponseWriter, r *http.Request) {
	item := mux.Vars(r)["item"]

	loc, err := h.router.Locate(item)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, locateResponse{
		Item:     loc.Item,
		Slot:     loc.Slot,
		Position: loc.Position,
		Node:     memberResponse{Position: loc.Position, ID: loc.Node.ID, Addr: loc.Node.Addr},
	})
}

// handleJoin handles POST /nodes requests
func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req nodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.ID == "" || req.Addr == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "id and addr are required"})
		return
	}

	pos, err := h.router.Join(r.Context(), ring.Node{ID: req.ID, Addr: req.Addr})
	if errors.Is(err, cluster.ErrCleanup) {
		// The node joined; the previous owner still holds stale copies.
		writeJSON(w, http.StatusAccepted, positionResponse{Position: pos, Error: err.Error()})
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, positionResponse{Position: pos})
}

// handleLeave handles DELETE /nodes/{nodeID} requests
func (h *Handler) handleLeave(w http.ResponseWriter, r *http.Request) {
	nodeID := mux.Vars(r)["nodeID"]

	n, exists := h.router.NodeByID(nodeID)
	if !exists {
		h.writeError(w, ring.ErrNodeNotFound)
		return
	}

	pos, err := h.router.Leave(r.Context(), n)
	if errors.Is(err, cluster.ErrHandoff) {
		// The node is out of the ring; report the stranded data.
		writeJSON(w, http.StatusAccepted, positionResponse{Position: pos, Error: err.Error()})
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, positionResponse{Position: pos})
}

// handleUpload handles PUT /files/{path} requests
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	path := mux.Vars(r)["path"]

	content, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxUploadSize))
	if err != nil {
		code := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			code = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, code, errorResponse{Error: err.Error()})
		return
	}

	owner, err := h.router.Upload(r.Context(), path, content)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("X-Ringstore-Node", owner.ID)
	w.WriteHeader(http.StatusNoContent)
}

// handleDownload handles GET /files/{path} requests
func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	path := mux.Vars(r)["path"]

	content, owner, err := h.router.Fetch(r.Context(), path)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Ringstore-Node", owner.ID)
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("admin request failed", zap.Int("status", code), zap.Error(err))
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ring.ErrRingEmpty):
		return http.StatusServiceUnavailable
	case errors.Is(err, ring.ErrSlotCollision), errors.Is(err, cluster.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, ring.ErrCapacityExceeded):
		return http.StatusInsufficientStorage
	case errors.Is(err, ring.ErrNodeNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
