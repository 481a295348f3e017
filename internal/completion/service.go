package completion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/varsilias/whait/internal/errs"
	"github.com/varsilias/whait/pkg/types"
)

// FallbackReply is returned when the model produced no text.
const FallbackReply = "Thanks for your message!"

const systemTemplate = "You are responding to a message in a chat app. %s Keep your response conversational and under 2 sentences. Don't use quotation marks in your response. You are having an ongoing conversation, so respond appropriately to the context and history."

// Request mirrors the JSON body of POST /api/chat.
type Request struct {
	Message             string          `json:"message" validate:"required"`
	Personality         string          `json:"personality" validate:"required"`
	ConversationHistory []types.Message `json:"conversationHistory"`
	CurrentUserID       string          `json:"currentUserId"`
}

type Service struct {
	log      *slog.Logger
	eng      Engine
	validate *validator.Validate
	// humanID is the user id whose messages become "user" turns.
	humanID string
}

func NewService(log *slog.Logger, eng Engine, humanID string) *Service {
	return &Service{
		log:      log,
		eng:      eng,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		humanID:  humanID,
	}
}

// Reply generates the contact's next message. Errors wrap errs.ErrValidation or
// errs.ErrUpstream.
func (s *Service) Reply(ctx context.Context, req Request) (string, error) {
	req.Message = strings.TrimSpace(req.Message)
	req.Personality = strings.TrimSpace(req.Personality)
	if err := s.validate.Struct(req); err != nil {
		return "", fmt.Errorf("%w: message and personality are required", errs.ErrValidation)
	}

	text, latency, err := s.eng.Generate(ctx, Prompt{Turns: s.BuildTurns(req)})
	if err != nil {
		s.log.Error("completion failed", "contact", req.CurrentUserID, "err", err)
		return "", fmt.Errorf("%w: %w", errs.ErrUpstream, err)
	}
	s.log.Debug("completion", "contact", req.CurrentUserID, "history", len(req.ConversationHistory), "latency_ms", latency.Milliseconds())

	if text = strings.TrimSpace(text); text == "" {
		return FallbackReply, nil
	}
	return text, nil
}

// BuildTurns renders the system instruction, the history and the new message.
func (s *Service) BuildTurns(req Request) []types.Turn {
	turns := make([]types.Turn, 0, len(req.ConversationHistory)+2)
	turns = append(turns, types.Turn{Role: types.RoleSystem, Content: fmt.Sprintf(systemTemplate, req.Personality)})
	turns = append(turns, lo.Map(req.ConversationHistory, func(m types.Message, _ int) types.Turn {
		role := types.RoleAssistant
		if m.UserID == s.humanID {
			role = types.RoleUser
		}
		return types.Turn{Role: role, Content: m.Content}
	})...)
	return append(turns, types.Turn{Role: types.RoleUser, Content: req.Message})
}
