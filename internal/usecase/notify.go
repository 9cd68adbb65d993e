package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"order-relay/internal/domain"
)

type WebpostInput struct {
	StaffEmail string
	Text       string
}

type WebpostOutput struct {
	StaffEmail string
	Message    string
}

type NotifyInput struct {
	Text string
}

type NotifyOutput struct {
	Message string
	Report  Report
}

// Notifier serves the authenticated notification endpoints.
type Notifier struct {
	directory   DirectoryStore
	sender      Sender
	broadcaster *Broadcaster
	logger      *slog.Logger
}

func NewNotifier(directory DirectoryStore, sender Sender, broadcaster *Broadcaster, logger *slog.Logger) (*Notifier, error) {
	if directory == nil {
		return nil, errors.New("usecase: directory store must not be nil")
	}
	if sender == nil {
		return nil, errors.New("usecase: sender must not be nil")
	}
	if broadcaster == nil {
		return nil, errors.New("usecase: broadcaster must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{directory: directory, sender: sender, broadcaster: broadcaster, logger: logger}, nil
}

// Webpost sends an order notification to the participant registered under
// StaffEmail.
func (n *Notifier) Webpost(ctx context.Context, in WebpostInput) (WebpostOutput, error) {
	email := strings.TrimSpace(in.StaffEmail)
	if email == "" {
		return WebpostOutput{}, newError(ErrorInvalidInput, "staffEmail is required", nil)
	}
	text := messageOrDefault(in.Text)
	out := WebpostOutput{StaffEmail: email, Message: text}

	rec, ok, err := n.directory.FindByEmail(ctx, email)
	if err != nil {
		return out, newError(ErrorInternal, "failed to read directory", err)
	}
	if !ok {
		return out, newError(ErrorNotFound, "no conversation reference for staffEmail", nil)
	}
	ref, ok := rec.Reference()
	if !ok {
		return out, newError(ErrorNotFound, "stored conversation reference is incomplete", nil)
	}
	if err := n.sender.Send(ctx, ref, domain.Reply{Text: text, WebPost: true}); err != nil {
		n.logger.Error("webpost send failed", "staff_email", email, "conversation_id", ref.Conversation.ID, "err", err)
		return out, newError(ErrorInternal, "failed to send message", err)
	}
	n.logger.Info("webpost sent", "staff_email", email, "conversation_id", ref.Conversation.ID)
	return out, nil
}

// Notify broadcasts text to every known participant.
func (n *Notifier) Notify(ctx context.Context, in NotifyInput) (NotifyOutput, error) {
	text := messageOrDefault(in.Text)
	report, err := n.broadcaster.Broadcast(ctx, domain.TextReply(text))
	if err != nil {
		return NotifyOutput{}, newError(ErrorInternal, "fan-out failed", err)
	}
	return NotifyOutput{Message: text, Report: report}, nil
}

func messageOrDefault(text string) string {
	if strings.TrimSpace(text) == "" {
		return OrderNotificationPrefix
	}
	return text
}
