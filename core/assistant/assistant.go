package assistant

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/user"
)

var (
	// errors
	ErrDisabled = errors.New("assistant is not configured")
	ErrFailed   = errors.New("Failed to process message")
)

const systemPrompt = `You are the assistant of %s, a school management system.
You help a %s with questions about classes, subjects, grades, attendance, fees and announcements.
Answer briefly and politely. If a question is not about school matters, say you can only help with school matters.`

// Model answers a message given a system instruction.
type Model interface {
	Reply(ctx context.Context, instruction, message string) (string, error)
}

type Message struct {
	Message string `json:"message" validate:"required,notblank"`
}

type Service struct {
	model   Model
	appName string
	logger  core.Logger
}

// NewService returns an assistant. A nil model disables it.
func NewService(model Model, conf *core.Config, logger core.Logger) *Service {
	return &Service{model: model, appName: conf.AppName, logger: logger}
}

func (svc *Service) Enabled() bool { return svc.model != nil }

// Chat answers msg on behalf of caller. Model errors are logged and reported as ErrFailed.
func (svc *Service) Chat(ctx context.Context, caller user.User, msg Message) (Message, error) {
	if !svc.Enabled() {
		return Message{}, ErrDisabled
	}

	reply, err := svc.model.Reply(ctx, fmt.Sprintf(systemPrompt, svc.appName, caller.Role), msg.Message)
	if err != nil {
		svc.logger.Error("assistant.Service: chat", err, caller)
		return Message{}, ErrFailed
	}
	return Message{Message: reply}, nil
}
