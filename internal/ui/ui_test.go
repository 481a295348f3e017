package ui

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/varsilias/whait/internal/chat"
	"github.com/varsilias/whait/internal/completion"
	"github.com/varsilias/whait/internal/personality"
	"github.com/varsilias/whait/internal/queue"
	"github.com/varsilias/whait/internal/realtime"
	"github.com/varsilias/whait/internal/store"
	"github.com/varsilias/whait/pkg/types"
)

func newTestUI(t *testing.T) (*chi.Mux, *store.MemoryStore) {
	mux, s, _ := newTestUIWithHub(t)
	return mux, s
}

func newTestUIWithHub(t *testing.T) (*chi.Mux, *store.MemoryStore, *realtime.Hub) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg, err := personality.Load("")
	require.NoError(t, err)
	s := store.NewMemoryStore()
	sched := queue.NewTimerScheduler(log, time.Second)
	t.Cleanup(func() { _ = sched.Close() })

	svc := completion.NewService(log, completion.NewEchoEngine(0), "current-user")
	hub := realtime.NewHub(log, 4)
	ctrl := chat.NewController(log, s, hub, sched, svc, reg, chat.Options{HumanID: "current-user", ReplyDelay: time.Hour})
	u, err := New(log, ctrl, chat.NewList(log, s), reg)
	require.NoError(t, err)

	mux := chi.NewRouter()
	RegisterRoutes(mux, u)
	return mux, s, hub
}

func TestUI_Home_Lists_And_Filters(t *testing.T) {
	req := require.New(t)
	mux, s := newTestUI(t)
	_, err := s.Create(context.Background(), types.Conversation{Title: "Coffee with Maria", Participants: []string{"current-user", "sarah-wilson"}})
	req.NoError(err)
	_, err = s.Create(context.Background(), types.Conversation{Title: "Team sync"})
	req.NoError(err)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	req.Equal(http.StatusOK, w.Code)
	req.Contains(w.Body.String(), "Coffee with Maria")
	req.Contains(w.Body.String(), "Team sync")

	r := httptest.NewRequest(http.MethodGet, "/?q=maria", nil)
	r.Header.Set("HX-Request", "true")
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	req.Contains(w.Body.String(), "Coffee with Maria")
	req.NotContains(w.Body.String(), "Team sync")
	req.NotContains(w.Body.String(), "<html")
}

func TestUI_Conversation_And_Send(t *testing.T) {
	req := require.New(t)
	mux, s := newTestUI(t)
	c, err := s.Create(context.Background(), types.Conversation{
		Title:        "Chat with Mike",
		Participants: []string{"current-user", "mike-brown"},
		Messages:     []types.Message{{ID: "m0", UserID: "mike-brown", Content: "**hey**", Date: time.Now().UTC()}},
	})
	req.NoError(err)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/c/"+c.ID, nil))
	req.Equal(http.StatusOK, w.Code)
	req.Contains(w.Body.String(), "<strong>hey</strong>")
	req.Contains(w.Body.String(), "Mike")

	form := url.Values{"content": {"<script>x</script>see you"}}
	r := httptest.NewRequest(http.MethodPost, "/ui/c/"+c.ID+"/send", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	req.Equal(http.StatusOK, w.Code)
	body := w.Body.String()
	req.Contains(body, "see you")
	req.NotContains(body, "<script>x")
	req.Contains(body, `hx-swap-oob="true"`)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/c/missing", nil))
	req.Equal(http.StatusNotFound, w.Code)
}

func postForm(mux *chi.Mux, path, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

func TestUI_Send_Own_Message_Is_Rendered_Once(t *testing.T) {
	req := require.New(t)
	mux, s, hub := newTestUIWithHub(t)
	c, err := s.Create(context.Background(), types.Conversation{
		Title:        "Chat with Emma",
		Participants: []string{"current-user", "emma-davis"},
	})
	req.NoError(err)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/c/"+c.ID, nil))
	req.Contains(w.Body.String(), `data-human="current-user"`)
	req.Contains(w.Body.String(), "e.message.user_id === human")

	events, cancel := hub.Subscribe(c.ID)
	defer cancel()

	w = postForm(mux, "/ui/c/"+c.ID+"/send", url.Values{"content": {"hello"}}.Encode())
	req.Equal(http.StatusOK, w.Code)

	// the event is queued before the response is written
	var e realtime.Event
	select {
	case e = <-events:
	default:
		t.Fatal("no event published")
	}
	req.Equal(realtime.MessageAppended, e.Type)
	req.Equal("current-user", e.Message.UserID)
	req.Equal(1, strings.Count(w.Body.String(), `id="msg-`+e.Message.ID+`"`))
}

func TestUI_Send_Errors(t *testing.T) {
	req := require.New(t)
	mux, s := newTestUI(t)
	c, err := s.Create(context.Background(), types.Conversation{Title: "x", Participants: []string{"current-user", "john-doe"}})
	req.NoError(err)

	req.Equal(http.StatusBadRequest, postForm(mux, "/ui/c/"+c.ID+"/send", "content=%zz").Code)
	req.Equal(http.StatusNotFound, postForm(mux, "/ui/c/missing/send", "content=hi").Code)
	req.Equal(http.StatusNoContent, postForm(mux, "/ui/c/"+c.ID+"/send", "content=+++").Code)
}

func TestUI_Draft_Is_Kept(t *testing.T) {
	req := require.New(t)
	mux, s := newTestUI(t)
	c, err := s.Create(context.Background(), types.Conversation{Title: "Drafts", Participants: []string{"current-user", "john-doe"}})
	req.NoError(err)

	req.Equal(http.StatusNoContent, postForm(mux, "/ui/c/"+c.ID+"/draft", "content=half+written").Code)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/c/"+c.ID, nil))
	req.Contains(w.Body.String(), `value="half written"`)
	req.Equal(http.StatusNotFound, postForm(mux, "/ui/c/missing/draft", "content=x").Code)
}
