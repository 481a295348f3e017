package ui

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"github.com/varsilias/whait/internal/buildinfo"
	"github.com/varsilias/whait/internal/chat"
	"github.com/varsilias/whait/internal/errs"
	"github.com/varsilias/whait/pkg/types"
)

func RegisterRoutes(mux *chi.Mux, h *UI) {
	mux.Get("/", h.Home)
	mux.Get("/c/{id}", h.Conversation)
	mux.Post("/ui/c/{id}/send", h.Send)
	mux.Post("/ui/c/{id}/draft", h.Draft)
	mux.Get("/ui/version-pill", h.VersionPill)
}

type listVM struct {
	Query string
	Items []chat.Item
}

// Home shows the conversation list. htmx searches get only the list fragment.
func (u *UI) Home(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	items, err := u.list.Fetch(r.Context(), q)
	if err != nil {
		http.Error(w, "could not load conversations", http.StatusInternalServerError)
		return
	}
	data := listVM{Query: q, Items: items}
	if r.Header.Get("HX-Request") == "true" {
		u.render(w, "conversation-list.html", data, http.StatusOK)
		return
	}
	u.render(w, "index.html", map[string]any{
		"List":    data,
		"Version": buildinfo.Version,
		"Commit":  buildinfo.Commit,
	}, http.StatusOK)
}

type composerVM struct {
	ID    string
	Input string
	Error string
	// Oob swaps the form in next to the message fragment.
	Oob bool
}

func (u *UI) Conversation(w http.ResponseWriter, r *http.Request) {
	v, err := u.chat.Open(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, errs.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "could not load conversation", http.StatusInternalServerError)
		return
	}
	st := v.State()
	u.render(w, "conversation.html", map[string]any{
		"Conversation": st.Conversation,
		"Messages":     lo.Map(st.Conversation.Messages, func(m types.Message, _ int) MsgView { return u.message(m) }),
		"Composer":     composerVM{ID: st.Conversation.ID, Input: st.Input},
		"Typing":       st.Typing,
		"HumanID":      u.chat.HumanID(),
		"Version":      buildinfo.Version,
	}, http.StatusOK)
}

// Send appends the user's bubble and a fresh composer (out of band). On a failed save
// the composer comes back with the draft restored.
func (u *UI) Send(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	v, ok := u.openForm(w, r, id)
	if !ok {
		return
	}

	msg, err := v.Send(r.Context(), r.Form.Get("content"))
	switch {
	case errors.Is(err, errs.ErrEmptyMessage):
		w.WriteHeader(http.StatusNoContent)
		return
	case err != nil:
		w.Header().Set("HX-Retarget", "#composer")
		w.Header().Set("HX-Reswap", "outerHTML")
		u.render(w, "composer.html", composerVM{ID: id, Input: v.State().Input, Error: "Message not sent. Try again."}, http.StatusOK)
		return
	}

	u.render(w, "sent.html", map[string]any{
		"Message":  u.message(msg),
		"Composer": composerVM{ID: id, Oob: true},
	}, http.StatusOK)
}

// Draft keeps the composer text so a reload shows it again.
func (u *UI) Draft(w http.ResponseWriter, r *http.Request) {
	v, ok := u.openForm(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	v.SetInput(r.Form.Get("content"))
	w.WriteHeader(http.StatusNoContent)
}

func (u *UI) openForm(w http.ResponseWriter, r *http.Request, id string) (*chat.View, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return nil, false
	}
	v, err := u.chat.Open(r.Context(), id)
	if errors.Is(err, errs.ErrNotFound) {
		http.NotFound(w, r)
		return nil, false
	}
	if err != nil {
		u.log.Error("open conversation", "conversation_id", id, "err", err)
		http.Error(w, "could not load conversation", http.StatusInternalServerError)
		return nil, false
	}
	return v, true
}

type versionVM struct {
	Version string
	Commit  string
	BuiltAt string
}

func (u *UI) VersionPill(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	u.render(w, "version-pill.html", versionVM{
		Version: buildinfo.Version,
		Commit:  buildinfo.Commit,
		BuiltAt: buildinfo.BuiltAt,
	}, http.StatusOK)
}
