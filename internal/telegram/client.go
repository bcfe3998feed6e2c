// Package telegram owns the connection to Telegram: session lifecycle,
// interactive authorization, dialog and history retrieval, and delivery of
// live message events to a registered handler.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	tdtelegram "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/query/dialogs"
	"github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"tgvault/internal/domain"
)

const (
	// Rate-limit waits are honored as reported by Telegram, but both the
	// attempt count and a single wait are capped so a misbehaving server
	// cannot stall authorization forever.
	maxAuthAttempts = 5
	maxFloodWait    = 10 * time.Minute

	maxRunRetries = 10
)

// ErrAuth marks authorization failures that interactive retry cannot fix.
var ErrAuth = errors.New("authorization failed")

// Handler receives one callback per inbound new-message event. Errors are
// logged by the client and never terminate the update loop.
type Handler interface {
	OnNewMessage(ctx context.Context, msg *tg.Message, batch Batch) error
}

// Client wraps the gotd client. It owns the single network connection;
// the ingestion paths read from it but never replace it.
type Client struct {
	apiID       int
	apiHash     string
	sessionPath string
	auth        *TermAuth
	handler     Handler
	logger      *zap.Logger

	mu       sync.Mutex
	api      *tg.Client
	self     *tg.User
	peers    map[int64]tg.InputPeerClass
	resolver *Resolver
}

func NewClient(apiID int, apiHash, sessionPath string, authFlow *TermAuth, logger *zap.Logger) *Client {
	c := &Client{
		apiID:       apiID,
		apiHash:     apiHash,
		sessionPath: sessionPath,
		auth:        authFlow,
		logger:      logger,
		peers:       make(map[int64]tg.InputPeerClass),
	}
	c.resolver = NewResolver(c, logger)
	return c
}

// SetHandler registers the live event handler. Must be called before Run.
func (c *Client) SetHandler(h Handler) {
	c.handler = h
}

// Resolver returns the identity resolver bound to this connection.
func (c *Client) Resolver() *Resolver {
	return c.resolver
}

// Run connects, authorizes if necessary, invokes ready once the session is
// up, then processes live updates until ctx is cancelled. Transient session
// failures are retried with exponential backoff up to a fixed retry budget;
// cancellation and unrecoverable authorization errors end the run at once.
func (c *Client) Run(ctx context.Context, ready func(ctx context.Context) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = time.Minute
	policy.MaxElapsedTime = 0

	op := func() error {
		err := c.runOnce(ctx, ready)
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		case errors.Is(err, ErrAuth):
			return backoff.Permanent(err)
		default:
			c.logger.Warn("Session ended, reconnecting", zap.Error(err))
			return err
		}
	}

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, maxRunRetries), ctx))
}

func (c *Client) runOnce(ctx context.Context, ready func(ctx context.Context) error) error {
	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, update *tg.UpdateNewMessage) error {
		c.dispatch(ctx, update.Message, e)
		return nil
	})
	dispatcher.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, update *tg.UpdateNewChannelMessage) error {
		c.dispatch(ctx, update.Message, e)
		return nil
	})

	gaps := updates.New(updates.Config{
		Handler: dispatcher,
		Logger:  c.logger.Named("gaps"),
	})

	client := tdtelegram.NewClient(c.apiID, c.apiHash, tdtelegram.Options{
		Logger:         c.logger.Named("td"),
		UpdateHandler:  gaps,
		SessionStorage: &SessionStorage{Path: c.sessionPath},
	})

	return client.Run(ctx, func(ctx context.Context) error {
		if err := c.authenticate(ctx, client.Auth()); err != nil {
			return err
		}

		self, err := client.Self(ctx)
		if err != nil {
			return fmt.Errorf("get self: %w", err)
		}

		c.mu.Lock()
		c.api = client.API()
		c.self = self
		c.mu.Unlock()

		c.logger.Info("Authorized",
			zap.String("name", DisplayName(self)),
			zap.String("username", self.Username))

		if ready != nil {
			if err := ready(ctx); err != nil {
				return err
			}
		}

		c.logger.Info("Listening for new messages")
		return gaps.Run(ctx, client.API(), self.ID, updates.AuthOptions{})
	})
}

// authorizer is the slice of the auth surface authenticate needs.
type authorizer interface {
	IfNecessary(ctx context.Context, flow auth.Flow) error
}

// authenticate walks the interactive flow: code request to the operator's
// phone, code prompt, and the two-factor password prompt when Telegram asks
// for a second factor. A flood-wait signal pauses for the reported duration
// and retries the whole sequence, bounded by maxAuthAttempts.
func (c *Client) authenticate(ctx context.Context, a authorizer) error {
	flow := auth.NewFlow(c.auth, auth.SendCodeOptions{})

	for attempt := 1; ; attempt++ {
		err := a.IfNecessary(ctx, flow)
		if err == nil {
			return nil
		}

		wait, isFlood := tgerr.AsFloodWait(err)
		if !isFlood || attempt >= maxAuthAttempts {
			return fmt.Errorf("%w: %w", ErrAuth, err)
		}
		if wait > maxFloodWait {
			return fmt.Errorf("%w: flood wait %s exceeds ceiling: %w", ErrAuth, wait, err)
		}

		c.logger.Warn("Rate limited during authorization",
			zap.Duration("wait", wait),
			zap.Int("attempt", attempt))

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// dispatch delivers one live update to the registered handler. Handler
// failures are contained here: one bad event never stops the feed.
func (c *Client) dispatch(ctx context.Context, message tg.MessageClass, e tg.Entities) {
	msg, ok := message.(*tg.Message)
	if !ok {
		return
	}
	if c.handler == nil {
		return
	}
	if err := c.handler.OnNewMessage(ctx, msg, BatchFromEntities(e)); err != nil {
		c.logger.Error("New message handler failed",
			zap.Int("message_id", msg.ID),
			zap.Error(err))
	}
}

// Dialogs retrieves up to limit dialog summaries and caches their input
// peers for later history pulls.
func (c *Client) Dialogs(ctx context.Context, limit int) ([]domain.Dialog, error) {
	api := c.currentAPI()
	if api == nil {
		return nil, errors.New("not connected")
	}

	iter := dialogs.NewQueryBuilder(api).GetDialogs().BatchSize(100).Iter()

	var result []domain.Dialog
	for len(result) < limit && iter.Next(ctx) {
		elem := iter.Value()

		peerID := inputPeerID(elem.Peer)
		if peerID == 0 {
			continue
		}
		c.cachePeer(peerID, elem.Peer)

		var unread int
		if dlg, ok := elem.Dialog.(*tg.Dialog); ok {
			unread = dlg.UnreadCount
		}

		result = append(result, domain.Dialog{
			ID:          peerID,
			Title:       dialogTitle(elem),
			UnreadCount: unread,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("iterate dialogs: %w", err)
	}

	return result, nil
}

// History retrieves up to limit most-recent messages for one chat together
// with the entity metadata needed to resolve senders.
func (c *Client) History(ctx context.Context, chatID int64, limit int) (Batch, error) {
	api := c.currentAPI()
	if api == nil {
		return Batch{}, errors.New("not connected")
	}

	peer := c.findPeer(chatID)
	if peer == nil {
		return Batch{}, fmt.Errorf("unknown peer: %d", chatID)
	}

	result, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:  peer,
		Limit: limit,
	})
	if err != nil {
		return Batch{}, fmt.Errorf("get history for chat %d: %w", chatID, err)
	}

	return batchFromHistory(result)
}

// UsersGetUsers exposes the user lookup RPC for the resolver's fallback
// entity fetches.
func (c *Client) UsersGetUsers(ctx context.Context, ids []tg.InputUserClass) ([]tg.UserClass, error) {
	api := c.currentAPI()
	if api == nil {
		return nil, errors.New("not connected")
	}
	return api.UsersGetUsers(ctx, ids)
}

func (c *Client) currentAPI() *tg.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.api
}

func (c *Client) cachePeer(chatID int64, peer tg.InputPeerClass) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peers[chatID] = peer
}

func (c *Client) findPeer(chatID int64) tg.InputPeerClass {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peers[chatID]
}

// batchFromHistory extracts messages and entities from a getHistory result.
// Messages arrive newest-first from the API and are reversed to
// chronological order.
func batchFromHistory(result tg.MessagesMessagesClass) (Batch, error) {
	var (
		messages []tg.MessageClass
		users    []tg.UserClass
		chats    []tg.ChatClass
	)

	switch r := result.(type) {
	case *tg.MessagesMessages:
		messages, users, chats = r.Messages, r.Users, r.Chats
	case *tg.MessagesMessagesSlice:
		messages, users, chats = r.Messages, r.Users, r.Chats
	case *tg.MessagesChannelMessages:
		messages, users, chats = r.Messages, r.Users, r.Chats
	default:
		return Batch{}, fmt.Errorf("unexpected messages type: %T", result)
	}

	batch := Batch{
		Users:  make(map[int64]*tg.User, len(users)),
		Titles: make(map[int64]string, len(chats)),
	}
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			batch.Users[user.ID] = user
		}
	}
	for _, ch := range chats {
		switch v := ch.(type) {
		case *tg.Chat:
			batch.Titles[v.ID] = v.Title
		case *tg.Channel:
			batch.Titles[v.ID] = v.Title
		}
	}

	for i := len(messages) - 1; i >= 0; i-- {
		if msg, ok := messages[i].(*tg.Message); ok {
			batch.Messages = append(batch.Messages, msg)
		}
	}

	return batch, nil
}

func inputPeerID(peer tg.InputPeerClass) int64 {
	switch p := peer.(type) {
	case *tg.InputPeerUser:
		return p.UserID
	case *tg.InputPeerChat:
		return p.ChatID
	case *tg.InputPeerChannel:
		return p.ChannelID
	default:
		return 0
	}
}

func dialogTitle(elem dialogs.Elem) string {
	entities := elem.Entities

	switch p := elem.Dialog.GetPeer().(type) {
	case *tg.PeerUser:
		if u, ok := entities.User(p.UserID); ok {
			return DisplayName(u)
		}
	case *tg.PeerChat:
		if ch, ok := entities.Chat(p.ChatID); ok {
			return ch.Title
		}
	case *tg.PeerChannel:
		if ch, ok := entities.Channel(p.ChannelID); ok {
			return ch.Title
		}
	}

	return "Unknown"
}
