package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/HyperIoT-Labs/HyperIoT-DS/internal/hyperiot"
	"github.com/HyperIoT-Labs/HyperIoT-DS/internal/projects"
	"github.com/HyperIoT-Labs/HyperIoT-DS/internal/tools"
)

const userIDHeader = "X-User-ID"

// Handler serves the plugin endpoints the assistant host calls.
type Handler struct {
	registry    *tools.Registry
	serviceName string
}

func NewHandler(registry *tools.Registry, serviceName string) *Handler {
	return &Handler{registry: registry, serviceName: serviceName}
}

type toolCallRequest struct {
	UserID string      `json:"user_id"`
	Input  interface{} `json:"input"`
}

type hookRequest struct {
	UserID string `json:"user_id"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"error": message})
}

// decodeBody accepts an empty body as the zero value.
func decodeBody(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func userID(r *http.Request, fromBody string) string {
	if id := strings.TrimSpace(fromBody); id != "" {
		return id
	}
	return strings.TrimSpace(r.Header.Get(userIDHeader))
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var se *hyperiot.StatusError
	var ue *url.Error
	switch {
	case errors.Is(err, projects.ErrProjectNotFound), errors.Is(err, tools.ErrUnknownTool):
		return http.StatusNotFound
	case errors.Is(err, tools.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.As(err, &se), errors.As(err, &ue), errors.Is(err, hyperiot.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"service": h.serviceName,
	})
}

func (h *Handler) ListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tools": h.registry.Definitions(),
	})
}

func (h *Handler) CallTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req toolCallRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	params := map[string]interface{}{}
	if req.Input != nil {
		params["input"] = req.Input
	}

	res, err := h.registry.Execute(r.Context(), name, params, userID(r, req.UserID))
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			slog.Error("tool call failed", "tool", name, "status", status, "error", err)
		}
		writeJSONError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) AgentPromptPrefix(w http.ResponseWriter, r *http.Request) {
	var req hookRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	prefix, err := h.registry.AgentPromptPrefix(r.Context(), userID(r, req.UserID))
	if err != nil {
		status := statusFor(err)
		slog.Error("agent prompt prefix hook failed", "status", status, "error", err)
		writeJSONError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"prefix": prefix})
}
