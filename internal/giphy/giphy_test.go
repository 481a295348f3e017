package giphy

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/varsilias/whait/internal/completion"
	"github.com/varsilias/whait/internal/errs"
	"github.com/varsilias/whait/internal/mocks"
	"github.com/varsilias/whait/pkg/types"
	"go.uber.org/mock/gomock"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestClient_Search(t *testing.T) {
	req := require.New(t)
	var got url.Values
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		got = r.URL.Query()
		_, _ = io.WriteString(w, `{"data":[{"url":"https://giphy.com/x","embed_url":"https://giphy.com/embed/x","images":{"original":{"url":"https://media.giphy.com/x.gif"}}}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", time.Second, discard)
	gifs, err := c.Search(context.Background(), "happy birthday")
	req.NoError(err)
	req.Equal([]GIF{{
		GIFURL:   "https://media.giphy.com/x.gif",
		GiphyURL: "https://giphy.com/x",
		EmbedURL: "https://giphy.com/embed/x",
	}}, gifs)

	req.Equal("/gifs/search", path)
	req.Equal("k", got.Get("api_key"))
	req.Equal("happy birthday", got.Get("q"))
	req.Equal("1", got.Get("limit"))
	req.Equal("g", got.Get("rating"))
	req.Equal("messaging_non_clips", got.Get("bundle"))
}

func TestClient_Search_Errors(t *testing.T) {
	req := require.New(t)
	_, err := NewClient("", "", time.Second, discard).Search(context.Background(), "x")
	req.ErrorIs(err, ErrNoAPIKey)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()
	_, err = NewClient(srv.URL, "k", time.Second, discard).Search(context.Background(), "x")
	req.ErrorContains(err, "status 403")
}

type fakeSearch struct {
	query string
}

func (f *fakeSearch) Search(_ context.Context, q string) ([]GIF, error) {
	f.query = q
	return []GIF{{GIFURL: "g"}}, nil
}

func TestAnswerer_Answer(t *testing.T) {
	req := require.New(t)
	s := &fakeSearch{}
	a := NewAnswerer(discard, completion.NewEchoEngine(0), s, "")

	conv := []types.Message{
		{UserID: "1", Content: "hey"},
		{UserID: "2", Content: "Happy birthday!"},
	}
	gifs, err := a.Answer(context.Background(), conv)
	req.NoError(err)
	req.Len(gifs, 1)
	// the echo engine returns the whole last user turn as the single keyword
	req.Contains(s.query, "Happy birthday!")

	_, err = a.Answer(context.Background(), nil)
	req.ErrorIs(err, errs.ErrValidation)
}

func TestAnswerer_Uses_Its_Own_Model_And_Budget(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockEngine(ctrl)

	var got completion.Prompt
	eng.EXPECT().Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p completion.Prompt) (string, time.Duration, error) {
			got = p
			return `{"keywords":["cake party"," "]}`, time.Millisecond, nil
		})

	s := &fakeSearch{}
	_, err := NewAnswerer(discard, eng, s, "gpt-4o").Answer(context.Background(), []types.Message{{UserID: "1", Content: "Happy birthday!"}})
	req.NoError(err)
	req.Equal("gpt-4o", got.Model)
	req.Equal(keywordsMaxTokens, got.MaxTokens)
	req.True(got.JSON)
	req.Equal("cake party", s.query)
}

func TestAnswerer_Truncated_JSON_Is_Upstream_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	eng := mocks.NewMockEngine(ctrl)
	eng.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(`{"keywords":["cake`, time.Duration(0), nil)

	_, err := NewAnswerer(discard, eng, &fakeSearch{}, "gpt-4o").Answer(context.Background(), []types.Message{{Content: "hi"}})
	require.ErrorIs(t, err, errs.ErrUpstream)
}
