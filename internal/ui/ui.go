package ui

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/microcosm-cc/bluemonday"
	"github.com/varsilias/whait/internal/chat"
	"github.com/varsilias/whait/internal/personality"
	"github.com/varsilias/whait/pkg/types"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

//go:embed templates/*.html
var templates embed.FS

type UI struct {
	log           *slog.Logger
	tpl           *template.Template
	chat          *chat.Controller
	list          *chat.List
	personalities *personality.Registry
	md            goldmark.Markdown
	policy        *bluemonday.Policy
}

func New(log *slog.Logger, c *chat.Controller, l *chat.List, reg *personality.Registry) (*UI, error) {
	t, err := template.New("root").ParseFS(templates, "templates/*.html")
	if err != nil {
		return nil, err
	}

	md := goldmark.New(
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		goldmark.WithExtensions(
			highlighting.NewHighlighting(
				highlighting.WithStyle("dracula"),
				highlighting.WithFormatOptions(
					chromahtml.WithLineNumbers(false),
				),
			),
		),
	)

	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").OnElements("code", "pre", "span")
	p.AllowAttrs("style").OnElements("span", "pre")

	return &UI{
		log:           log,
		tpl:           t,
		chat:          c,
		list:          l,
		personalities: reg,
		md:            md,
		policy:        p,
	}, nil
}

type MsgView struct {
	ID     string
	Mine   bool
	Author string
	HTML   template.HTML
	At     string
}

func (u *UI) message(m types.Message) MsgView {
	return MsgView{
		ID:     m.ID,
		Mine:   m.UserID == u.chat.HumanID(),
		Author: u.personalities.DisplayName(m.UserID),
		HTML:   u.mdHTML(m.Content),
		At:     m.Date.Local().Format(time.Kitchen),
	}
}

func (u *UI) mdHTML(src string) template.HTML {
	var buf bytes.Buffer
	if err := u.md.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(u.policy.SanitizeBytes(buf.Bytes()))
}

func (u *UI) render(w http.ResponseWriter, name string, data any, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := u.tpl.ExecuteTemplate(w, name, data); err != nil {
		u.errTpl(w, err)
	}
}

func (u *UI) errTpl(w http.ResponseWriter, err error) {
	u.log.Error("template execute", "err", err)
	_, _ = w.Write([]byte("<pre>template error: " + template.HTMLEscapeString(err.Error()) + "</pre>"))
}
