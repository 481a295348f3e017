package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/varsilias/whait/internal/analysis"
	"github.com/varsilias/whait/pkg/utils"
)

type Admin struct {
	h        *Handlers
	analyzer *analysis.Analyzer
}

func NewAdmin(h *Handlers, a *analysis.Analyzer) *Admin { return &Admin{h: h, analyzer: a} }

// Analyze POST /admin/conversations/{id}/analyze
func (a *Admin) Analyze(w http.ResponseWriter, r *http.Request) {
	out, err := a.analyzer.Analyze(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.h.writeErr(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]any{"chunks": out.Chunks})
}
