package telegram

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/gotd/td/tg"
)

// Batch bundles raw messages with the entity metadata Telegram delivered
// alongside them. Users are keyed by user ID, Titles hold group and channel
// titles keyed by peer ID. Either map may be incomplete; the resolver falls
// back to live lookups when an entity is missing.
type Batch struct {
	Messages []*tg.Message
	Users    map[int64]*tg.User
	Titles   map[int64]string
}

// BatchFromEntities builds a Batch entity view from the update entities
// gotd hands to live event handlers.
func BatchFromEntities(e tg.Entities) Batch {
	b := Batch{
		Users:  e.Users,
		Titles: make(map[int64]string, len(e.Chats)+len(e.Channels)),
	}
	for id, ch := range e.Chats {
		b.Titles[id] = ch.Title
	}
	for id, ch := range e.Channels {
		b.Titles[id] = ch.Title
	}
	return b
}

// entityAPI is the slice of the Telegram RPC surface the resolver needs for
// fallback sender lookups.
type entityAPI interface {
	UsersGetUsers(ctx context.Context, id []tg.InputUserClass) ([]tg.UserClass, error)
}

// Resolver derives a canonical chat ID and a display label for the sender
// of a message. It never touches the store; the only side effect is a
// network read when entity metadata was not preloaded.
type Resolver struct {
	api    entityAPI
	logger *zap.Logger
}

func NewResolver(api entityAPI, logger *zap.Logger) *Resolver {
	return &Resolver{api: api, logger: logger}
}

// ChatID extracts the canonical chat identifier from a message, dispatching
// over the tagged peer variants: channels and groups yield their own IDs,
// private chats yield the user ID. The primary peer reference is consulted
// first, then the alternate from-reference. A message resolving through
// neither is unresolvable and must be skipped by the caller.
func (r *Resolver) ChatID(msg *tg.Message) (chatID int64, isPrivate bool, ok bool) {
	if msg == nil {
		return 0, false, false
	}
	if id, user, found := peerID(msg.PeerID); found {
		return id, user, true
	}
	if id, user, found := peerID(msg.FromID); found {
		return id, user, true
	}
	return 0, false, false
}

func peerID(peer tg.PeerClass) (id int64, isUser bool, ok bool) {
	switch p := peer.(type) {
	case *tg.PeerChannel:
		return p.ChannelID, false, true
	case *tg.PeerChat:
		return p.ChatID, false, true
	case *tg.PeerUser:
		return p.UserID, true, true
	default:
		return 0, false, false
	}
}

// SenderLabel resolves the display string stored with a message: the
// sender's name for private chats, the chat title for groups and channels.
// Every lookup failure degrades to the next fallback rather than failing
// the message.
func (r *Resolver) SenderLabel(ctx context.Context, msg *tg.Message, batch Batch, fallbackTitle string) string {
	chatID, isPrivate, ok := r.ChatID(msg)
	if !ok {
		return "Unknown"
	}

	if !isPrivate {
		if title, found := batch.Titles[chatID]; found && title != "" {
			return title
		}
		if fallbackTitle != "" {
			return fallbackTitle
		}
		return "Unknown chat"
	}

	// Private chat: prefer the sender already attached to the message.
	if from, found := peerUserID(msg.FromID); found {
		if u, here := batch.Users[from]; here {
			return DisplayName(u)
		}
		if u := r.fetchUser(ctx, from); u != nil {
			return DisplayName(u)
		}
	}
	if u, here := batch.Users[chatID]; here {
		return DisplayName(u)
	}
	// For private chats the chat ID is the user ID, so a direct entity
	// fetch by chat ID is the last resort.
	if u := r.fetchUser(ctx, chatID); u != nil {
		return DisplayName(u)
	}
	return "Unknown"
}

func peerUserID(peer tg.PeerClass) (int64, bool) {
	if p, ok := peer.(*tg.PeerUser); ok {
		return p.UserID, true
	}
	return 0, false
}

func (r *Resolver) fetchUser(ctx context.Context, userID int64) *tg.User {
	if r.api == nil {
		return nil
	}
	users, err := r.api.UsersGetUsers(ctx, []tg.InputUserClass{&tg.InputUser{UserID: userID}})
	if err != nil {
		r.logger.Debug("Sender lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil
	}
	for _, u := range users {
		if user, ok := u.(*tg.User); ok && user.ID == userID {
			return user
		}
	}
	return nil
}

// DisplayName returns a display name for a user.
func DisplayName(u *tg.User) string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name != "" {
		return name
	}
	if u.Username != "" {
		return u.Username
	}
	return "Unknown"
}
