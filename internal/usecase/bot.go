package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"order-relay/internal/domain"
)

const (
	msgGreeting = "Hi there! I'm the order relay bot. Send /check to look up your orders."
	msgEmailAck = "i got it"
)

// Bot routes one inbound activity by kind and sends the replies.
type Bot struct {
	dialog       *Dialog
	participants *Participants
	sender       Sender
	logger       *slog.Logger
}

func NewBot(dialog *Dialog, participants *Participants, sender Sender, logger *slog.Logger) (*Bot, error) {
	if dialog == nil {
		return nil, errors.New("usecase: dialog must not be nil")
	}
	if participants == nil {
		return nil, errors.New("usecase: participants must not be nil")
	}
	if sender == nil {
		return nil, errors.New("usecase: sender must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{dialog: dialog, participants: participants, sender: sender, logger: logger}, nil
}

func (b *Bot) HandleActivity(ctx context.Context, a domain.Activity) error {
	if err := a.Validate(); err != nil {
		return newError(ErrorInvalidInput, "invalid activity", err)
	}
	ref := a.Reference()

	switch a.Kind() {
	case domain.KindSystem:
		if !b.hasNewMembers(a) {
			return nil
		}
		b.record(ctx, a)
		return b.send(ctx, ref, []domain.Reply{domain.TextReply(msgGreeting)})
	case domain.KindEmail:
		return b.send(ctx, ref, []domain.Reply{domain.TextReply(msgEmailAck)})
	case domain.KindMessage, domain.KindWebPost:
		if !IsOrderNotification(a) {
			b.record(ctx, a)
		}
		replies, err := b.dialog.Respond(ctx, a)
		if sendErr := b.send(ctx, ref, replies); sendErr != nil && err == nil {
			err = sendErr
		}
		return err
	default:
		b.logger.Debug("ignoring activity", "type", a.Type, "conversation_id", a.Conversation.ID)
		return nil
	}
}

// hasNewMembers ignores the bot's own join event.
func (b *Bot) hasNewMembers(a domain.Activity) bool {
	for _, m := range a.MembersAdded {
		if m.ID != "" && m.ID != a.Recipient.ID {
			return true
		}
	}
	return false
}

func (b *Bot) record(ctx context.Context, a domain.Activity) {
	if a.From.ID == "" {
		return
	}
	if err := b.participants.Record(ctx, a); err != nil {
		b.logger.Warn("participant upsert failed", "conversation_id", a.Conversation.ID, "err", err)
	}
}

func (b *Bot) send(ctx context.Context, ref domain.ConversationReference, replies []domain.Reply) error {
	for _, r := range replies {
		if err := b.sender.Send(ctx, ref, r); err != nil {
			return newError(ErrorUpstream, "failed to send reply", fmt.Errorf("send: %w", err))
		}
	}
	return nil
}
