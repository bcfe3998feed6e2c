package ingest

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/gotd/td/tg"

	"tgvault/internal/domain"
	"tgvault/internal/telegram"
)

// Live handles new-message events from the update feed: it prints a
// one-line notification for the operator and persists text messages.
type Live struct {
	resolver Resolver
	store    Saver
	out      io.Writer
	logger   *zap.Logger
}

func NewLive(resolver Resolver, store Saver, out io.Writer, logger *zap.Logger) *Live {
	return &Live{
		resolver: resolver,
		store:    store,
		out:      out,
		logger:   logger,
	}
}

// OnNewMessage processes one inbound event. The returned error is logged
// by the dispatcher; it never terminates the subscription loop.
func (l *Live) OnNewMessage(ctx context.Context, msg *tg.Message, batch telegram.Batch) error {
	chatID, isPrivate, ok := l.resolver.ChatID(msg)

	// Sender label as stored: the person for private chats, the chat
	// title for groups and channels.
	sender := l.resolver.SenderLabel(ctx, msg, batch, "")

	chatTitle := sender
	author := sender
	if !isPrivate {
		if from, found := msg.FromID.(*tg.PeerUser); found {
			if u, here := batch.Users[from.UserID]; here {
				author = telegram.DisplayName(u)
			}
		}
	}

	text := msg.Message
	if text == "" {
		text = "[media]"
	}
	fmt.Fprintf(l.out, "[%s] %s: %s\n", chatTitle, author, text)

	// Only text messages are persisted.
	if msg.Message == "" {
		return nil
	}
	if !ok {
		l.logger.Warn("Could not determine chat for live message", zap.Int("message_id", msg.ID))
		return nil
	}

	inserted, err := l.store.Save(ctx, domain.Message{
		ID:     msg.ID,
		ChatID: chatID,
		Sender: sender,
		Text:   msg.Message,
		Date:   time.Unix(int64(msg.Date), 0),
	})
	if err != nil {
		return fmt.Errorf("save live message %d: %w", msg.ID, err)
	}
	if !inserted {
		l.logger.Debug("Live message already stored",
			zap.Int("message_id", msg.ID),
			zap.Int64("chat_id", chatID))
	}
	return nil
}
