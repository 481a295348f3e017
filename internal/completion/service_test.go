package completion_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/varsilias/whait/internal/completion"
	"github.com/varsilias/whait/internal/errs"
	"github.com/varsilias/whait/internal/mocks"
	"github.com/varsilias/whait/pkg/types"
	"go.uber.org/mock/gomock"
)

const human = "current-user"

func TestService_Reply(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockEngine(ctrl)
	svc := completion.NewService(slog.Default(), engine, human)
	ctx := context.Background()

	t.Run("should return trimmed model text", func(t *testing.T) {
		req := require.New(t)
		engine.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("  Sounds great!  ", 10*time.Millisecond, nil)

		text, err := svc.Reply(ctx, completion.Request{Message: "Lunch?", Personality: "Be nice."})
		req.NoError(err)
		req.Equal("Sounds great!", text)
	})

	t.Run("should fall back when the model returns nothing", func(t *testing.T) {
		req := require.New(t)
		engine.EXPECT().Generate(gomock.Any(), gomock.Any()).Return(" \n ", time.Millisecond, nil)

		text, err := svc.Reply(ctx, completion.Request{Message: "Lunch?", Personality: "Be nice."})
		req.NoError(err)
		req.Equal("Thanks for your message!", text)
	})

	t.Run("should reject a missing message without calling the model", func(t *testing.T) {
		engine.EXPECT().Generate(gomock.Any(), gomock.Any()).Times(0)
		_, err := svc.Reply(ctx, completion.Request{Message: "   ", Personality: "Be nice."})
		require.ErrorIs(t, err, errs.ErrValidation)
	})

	t.Run("should reject a missing personality without calling the model", func(t *testing.T) {
		engine.EXPECT().Generate(gomock.Any(), gomock.Any()).Times(0)
		_, err := svc.Reply(ctx, completion.Request{Message: "hi"})
		require.ErrorIs(t, err, errs.ErrValidation)
	})

	t.Run("should report upstream failures", func(t *testing.T) {
		req := require.New(t)
		boom := errors.New("rate limited")
		engine.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("", time.Duration(0), boom)

		_, err := svc.Reply(ctx, completion.Request{Message: "hi", Personality: "Be nice."})
		req.ErrorIs(err, errs.ErrUpstream)
		req.ErrorIs(err, boom)
	})
}

func TestService_Reply_Sends_Role_Tagged_History(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockEngine(ctrl)
	svc := completion.NewService(slog.Default(), engine, human)

	var got completion.Prompt
	engine.EXPECT().Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p completion.Prompt) (string, time.Duration, error) {
			got = p
			return "ok", 0, nil
		})

	history := []types.Message{
		{ID: "1", UserID: human, Content: "Hey Mike"},
		{ID: "2", UserID: "mike-brown", Content: "Hey! What's up?"},
	}
	_, err := svc.Reply(context.Background(), completion.Request{
		Message:             "Need help with my CV",
		Personality:         "Respond in a casual, supportive way.",
		ConversationHistory: history,
		CurrentUserID:       "mike-brown",
	})
	req.NoError(err)

	req.Len(got.Turns, 4)
	req.Equal(types.RoleSystem, got.Turns[0].Role)
	req.Contains(got.Turns[0].Content, "Respond in a casual, supportive way.")
	req.Contains(got.Turns[0].Content, "under 2 sentences")
	req.Equal(types.Turn{Role: types.RoleUser, Content: "Hey Mike"}, got.Turns[1])
	req.Equal(types.Turn{Role: types.RoleAssistant, Content: "Hey! What's up?"}, got.Turns[2])
	req.Equal(types.Turn{Role: types.RoleUser, Content: "Need help with my CV"}, got.Turns[3])
}

func TestEchoEngine(t *testing.T) {
	req := require.New(t)
	e := completion.NewEchoEngine(0)
	text, _, err := e.Generate(context.Background(), completion.Prompt{Turns: []types.Turn{
		{Role: types.RoleSystem, Content: "sys"},
		{Role: types.RoleUser, Content: "ping"},
	}})
	req.NoError(err)
	req.Equal("(demo) you said: ping", text)
}
