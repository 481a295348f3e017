package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/varsilias/whait/internal/buildinfo"
	"github.com/varsilias/whait/internal/chat"
	"github.com/varsilias/whait/internal/completion"
	"github.com/varsilias/whait/internal/errs"
	"github.com/varsilias/whait/internal/giphy"
	"github.com/varsilias/whait/internal/models"
	"github.com/varsilias/whait/internal/realtime"
	"github.com/varsilias/whait/pkg/types"
	"github.com/varsilias/whait/pkg/utils"
)

type GifAnswerer interface {
	Answer(ctx context.Context, conversation []types.Message) ([]giphy.GIF, error)
}

type Handlers struct {
	log    *slog.Logger
	proxy  chat.Replier
	chat   *chat.Controller
	list   *chat.List
	models models.Manager
	hub    *realtime.Hub
	Gifs   GifAnswerer
	Admin  *Admin
	// Model is the chat model reported by Health.
	Model  string
}

func NewHandlers(log *slog.Logger, proxy chat.Replier, ctrl *chat.Controller, list *chat.List, manager models.Manager, hub *realtime.Hub) *Handlers {
	return &Handlers{
		log:    log,
		proxy:  proxy,
		chat:   ctrl,
		list:   list,
		models: manager,
		hub:    hub,
	}
}

// Health is a basic liveness endpoint.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	res := map[string]any{
		"status":    true,
		"message":   "whait",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.Model != "" {
		err := h.models.Healthy(r.Context(), h.Model)
		if err != nil {
			h.log.Warn("model check", "model", h.Model, "err", err)
		}
		res["model"] = h.Model
		res["model_available"] = err == nil
	}
	utils.JSON(w, http.StatusOK, res)
}

func (h *Handlers) Version(w http.ResponseWriter, r *http.Request) {
	res := map[string]any{
		"version":  buildinfo.Version,
		"commit":   buildinfo.Commit,
		"built_at": buildinfo.BuiltAt,
	}

	utils.JSON(w, http.StatusOK, res)
}

// ListModels GET /api/models
func (h *Handlers) ListModels(w http.ResponseWriter, r *http.Request) {
	mods, err := h.models.List(r.Context())
	if err != nil {
		h.log.Error("list models", "err", err)
		utils.Error(w, http.StatusBadGateway, "could not list models")
		return
	}
	utils.JSON(w, http.StatusOK, map[string]any{"models": mods})
}

// Chat POST /api/chat is the completion proxy.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req completion.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	text, err := h.proxy.Reply(r.Context(), req)
	switch {
	case errors.Is(err, errs.ErrValidation):
		utils.Error(w, http.StatusBadRequest, "Message and personality are required")
		return
	case err != nil:
		utils.Error(w, http.StatusInternalServerError, "Failed to generate response")
		return
	}
	utils.JSON(w, http.StatusOK, map[string]any{"response": text})
}

// ListConversations GET /api/conversations?q=
func (h *Handlers) ListConversations(w http.ResponseWriter, r *http.Request) {
	items, err := h.list.Fetch(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]any{"conversations": items})
}

// CreateConversation POST /api/conversations { title, participants }
func (h *Handlers) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title        string   `json:"title"`
		Participants []string `json:"participants"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	c, err := h.chat.Create(r.Context(), req.Title, req.Participants)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	utils.JSON(w, http.StatusCreated, map[string]any{"conversation": c})
}

// GetConversation GET /api/conversations/{id}
func (h *Handlers) GetConversation(w http.ResponseWriter, r *http.Request) {
	v, err := h.chat.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, v.State())
}

// SendMessage POST /api/conversations/{id}/messages { content }
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	v, err := h.chat.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	msg, err := v.Send(r.Context(), req.Content)
	if errors.Is(err, errs.ErrPersist) {
		utils.JSON(w, http.StatusBadGateway, map[string]any{
			"error": "could not save message",
			"input": v.State().Input,
		})
		return
	}
	if err != nil {
		h.writeErr(w, err)
		return
	}
	utils.JSON(w, http.StatusCreated, map[string]any{"message": msg})
}

// SaveInput PUT /api/conversations/{id}/input { input }
func (h *Handlers) SaveInput(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	v, err := h.chat.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	v.SetInput(req.Input)
	w.WriteHeader(http.StatusNoContent)
}

// Stream GET /ws/conversations/{id}
func (h *Handlers) Stream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.chat.Open(r.Context(), id); err != nil {
		h.writeErr(w, err)
		return
	}
	if err := h.hub.Stream(w, r, id); err != nil {
		h.log.Warn("websocket", "conversation_id", id, "err", err)
	}
}

// GifAnswer POST /api/gif-answer { conversation }
func (h *Handlers) GifAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Conversation []types.Message `json:"conversation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	gifs, err := h.Gifs.Answer(r.Context(), req.Conversation)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]any{"gifs": gifs})
}

// writeErr maps sentinel errors to status codes.
func (h *Handlers) writeErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		h.log.Error("request failed", "status", status, "err", err)
	}
	utils.Error(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrValidation), errors.Is(err, errs.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrPersist):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
