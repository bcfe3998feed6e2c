// Package ingest moves messages from Telegram into the local store, both
// as bounded history pulls and as a live feed of new-message events.
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

// Fetcher is the read side of the Telegram connection the pipeline uses.
type Fetcher interface {
	Dialogs(ctx context.Context, limit int) ([]domain.Dialog, error)
	History(ctx context.Context, chatID int64, limit int) (telegram.Batch, error)
}

// Saver is the store surface the pipeline writes through.
type Saver interface {
	Save(ctx context.Context, msg domain.Message) (bool, error)
}

// Resolver derives chat identity and sender labels for raw messages.
type Resolver interface {
	ChatID(msg *tg.Message) (chatID int64, isPrivate bool, ok bool)
	SenderLabel(ctx context.Context, msg *tg.Message, batch telegram.Batch, fallbackTitle string) string
}

type Pipeline struct {
	fetcher  Fetcher
	resolver Resolver
	store    Saver
	logger   *zap.Logger
}

func NewPipeline(fetcher Fetcher, resolver Resolver, store Saver, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		fetcher:  fetcher,
		resolver: resolver,
		store:    store,
		logger:   logger,
	}
}

// ListDialogs pulls up to limit dialog summaries. Fetch errors are logged
// and yield an empty list; the caller treats that as nothing to do.
func (p *Pipeline) ListDialogs(ctx context.Context, limit int) []domain.Dialog {
	dialogs, err := p.fetcher.Dialogs(ctx, limit)
	if err != nil {
		p.logger.Error("Failed to list dialogs", zap.Error(err))
		return nil
	}
	p.logger.Info("Fetched dialogs", zap.Int("count", len(dialogs)))
	return dialogs
}

// FetchMessages pulls up to limit most-recent messages for one chat, with
// the same empty-on-error policy as ListDialogs.
func (p *Pipeline) FetchMessages(ctx context.Context, chatID int64, limit int) telegram.Batch {
	batch, err := p.fetcher.History(ctx, chatID, limit)
	if err != nil {
		p.logger.Error("Failed to fetch messages", zap.Int64("chat_id", chatID), zap.Error(err))
		return telegram.Batch{}
	}
	p.logger.Info("Fetched messages", zap.Int64("chat_id", chatID), zap.Int("count", len(batch.Messages)))
	return batch
}

// PersistBatch stores every text message in the batch. Media-only messages
// are ignored, messages whose chat cannot be resolved are skipped with a
// warning, and a duplicate row counts as skipped rather than an error.
// Returns the number of newly saved and skipped-as-duplicate messages.
func (p *Pipeline) PersistBatch(ctx context.Context, batch telegram.Batch, chatTitleHint string) (saved, duplicates int) {
	for _, msg := range batch.Messages {
		if msg.Message == "" {
			continue
		}

		chatID, _, ok := p.resolver.ChatID(msg)
		if !ok {
			p.logger.Warn("Could not determine chat for message", zap.Int("message_id", msg.ID))
			continue
		}

		sender := p.resolver.SenderLabel(ctx, msg, batch, chatTitleHint)

		inserted, err := p.store.Save(ctx, domain.Message{
			ID:     msg.ID,
			ChatID: chatID,
			Sender: sender,
			Text:   msg.Message,
			Date:   time.Unix(int64(msg.Date), 0),
		})
		if err != nil {
			p.logger.Error("Failed to save message",
				zap.Int("message_id", msg.ID),
				zap.Int64("chat_id", chatID),
				zap.Error(err))
			continue
		}

		if inserted {
			saved++
		} else {
			duplicates++
		}
	}

	p.logger.Info("Batch persisted",
		zap.String("chat", chatTitleHint),
		zap.Int("saved", saved),
		zap.Int("duplicates", duplicates))
	return saved, duplicates
}

// PrintDialogs writes the operator-facing dialog listing.
func PrintDialogs(w io.Writer, dialogs []domain.Dialog) {
	fmt.Fprintln(w, "Available dialogs:")
	for i, d := range dialogs {
		fmt.Fprintf(w, "%d. %s (ID: %d) [unread: %d]\n", i+1, d.Title, d.ID, d.UnreadCount)
	}
}
