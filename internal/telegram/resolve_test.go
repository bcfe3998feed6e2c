package telegram

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/gotd/td/tg"
)

type fakeEntityAPI struct {
	users map[int64]*tg.User
	err   error
	calls int
}

func (f *fakeEntityAPI) UsersGetUsers(_ context.Context, ids []tg.InputUserClass) ([]tg.UserClass, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []tg.UserClass
	for _, id := range ids {
		in, ok := id.(*tg.InputUser)
		if !ok {
			continue
		}
		if u, found := f.users[in.UserID]; found {
			out = append(out, u)
		}
	}
	return out, nil
}

func TestChatID_ChannelPeer(t *testing.T) {
	r := NewResolver(nil, zap.NewNop())

	msg := &tg.Message{PeerID: &tg.PeerChannel{ChannelID: 555}}

	chatID, isPrivate, ok := r.ChatID(msg)
	if !ok {
		t.Fatal("ChatID() not ok")
	}
	if chatID != 555 {
		t.Errorf("chatID = %d, want 555", chatID)
	}
	if isPrivate {
		t.Error("isPrivate = true, want false")
	}
}

func TestChatID_PeerKinds(t *testing.T) {
	r := NewResolver(nil, zap.NewNop())

	tests := []struct {
		name      string
		peer      tg.PeerClass
		wantID    int64
		isPrivate bool
	}{
		{"user", &tg.PeerUser{UserID: 42}, 42, true},
		{"group", &tg.PeerChat{ChatID: 77}, 77, false},
		{"channel", &tg.PeerChannel{ChannelID: 91}, 91, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chatID, isPrivate, ok := r.ChatID(&tg.Message{PeerID: tt.peer})
			if !ok {
				t.Fatal("ChatID() not ok")
			}
			if chatID != tt.wantID {
				t.Errorf("chatID = %d, want %d", chatID, tt.wantID)
			}
			if isPrivate != tt.isPrivate {
				t.Errorf("isPrivate = %v, want %v", isPrivate, tt.isPrivate)
			}
		})
	}
}

func TestChatID_AlternateReference(t *testing.T) {
	r := NewResolver(nil, zap.NewNop())

	// No primary peer: the from-reference is the fallback.
	msg := &tg.Message{FromID: &tg.PeerUser{UserID: 13}}

	chatID, isPrivate, ok := r.ChatID(msg)
	if !ok {
		t.Fatal("ChatID() not ok")
	}
	if chatID != 13 || !isPrivate {
		t.Errorf("got (%d, %v), want (13, true)", chatID, isPrivate)
	}
}

func TestChatID_Unresolvable(t *testing.T) {
	r := NewResolver(nil, zap.NewNop())

	if _, _, ok := r.ChatID(&tg.Message{}); ok {
		t.Error("expected unresolvable message")
	}
	if _, _, ok := r.ChatID(nil); ok {
		t.Error("expected unresolvable nil message")
	}
}

func TestChatID_Deterministic(t *testing.T) {
	r := NewResolver(nil, zap.NewNop())
	msg := &tg.Message{PeerID: &tg.PeerChat{ChatID: 400}}

	first, firstPriv, _ := r.ChatID(msg)
	for i := 0; i < 10; i++ {
		id, priv, _ := r.ChatID(msg)
		if id != first || priv != firstPriv {
			t.Fatalf("resolution changed on call %d: (%d, %v)", i, id, priv)
		}
	}
}

func TestSenderLabel_AttachedUser(t *testing.T) {
	api := &fakeEntityAPI{}
	r := NewResolver(api, zap.NewNop())

	msg := &tg.Message{
		PeerID: &tg.PeerUser{UserID: 42},
		FromID: &tg.PeerUser{UserID: 42},
	}
	batch := Batch{Users: map[int64]*tg.User{42: {ID: 42, FirstName: "Ann", LastName: "Lee"}}}

	if got := r.SenderLabel(context.Background(), msg, batch, ""); got != "Ann Lee" {
		t.Errorf("SenderLabel() = %q, want %q", got, "Ann Lee")
	}
	if api.calls != 0 {
		t.Errorf("attached user must not trigger a fetch, got %d calls", api.calls)
	}
}

func TestSenderLabel_EntityLookup(t *testing.T) {
	// No attached sender: the resolver fetches by user ID. A user with an
	// empty last name formats as just the first name.
	api := &fakeEntityAPI{users: map[int64]*tg.User{42: {ID: 42, FirstName: "Ann", LastName: ""}}}
	r := NewResolver(api, zap.NewNop())

	msg := &tg.Message{PeerID: &tg.PeerUser{UserID: 42}}

	if got := r.SenderLabel(context.Background(), msg, Batch{}, ""); got != "Ann" {
		t.Errorf("SenderLabel() = %q, want %q", got, "Ann")
	}
	if api.calls == 0 {
		t.Error("expected an entity fetch")
	}
}

func TestSenderLabel_LookupFailureDegrades(t *testing.T) {
	api := &fakeEntityAPI{err: errors.New("timeout")}
	r := NewResolver(api, zap.NewNop())

	msg := &tg.Message{PeerID: &tg.PeerUser{UserID: 42}}

	if got := r.SenderLabel(context.Background(), msg, Batch{}, ""); got != "Unknown" {
		t.Errorf("SenderLabel() = %q, want %q", got, "Unknown")
	}
}

func TestSenderLabel_UsernameFallback(t *testing.T) {
	r := NewResolver(nil, zap.NewNop())

	msg := &tg.Message{PeerID: &tg.PeerUser{UserID: 42}}
	batch := Batch{Users: map[int64]*tg.User{42: {ID: 42, Username: "ann_dev"}}}

	if got := r.SenderLabel(context.Background(), msg, batch, ""); got != "ann_dev" {
		t.Errorf("SenderLabel() = %q, want %q", got, "ann_dev")
	}
}

func TestSenderLabel_GroupTitle(t *testing.T) {
	r := NewResolver(nil, zap.NewNop())

	msg := &tg.Message{PeerID: &tg.PeerChannel{ChannelID: 555}}
	batch := Batch{Titles: map[int64]string{555: "Dev News"}}

	if got := r.SenderLabel(context.Background(), msg, batch, ""); got != "Dev News" {
		t.Errorf("SenderLabel() = %q, want %q", got, "Dev News")
	}
}

func TestSenderLabel_GroupFallbacks(t *testing.T) {
	r := NewResolver(nil, zap.NewNop())
	msg := &tg.Message{PeerID: &tg.PeerChat{ChatID: 77}}

	if got := r.SenderLabel(context.Background(), msg, Batch{}, "Weekend plans"); got != "Weekend plans" {
		t.Errorf("SenderLabel() with hint = %q, want %q", got, "Weekend plans")
	}
	if got := r.SenderLabel(context.Background(), msg, Batch{}, ""); got != "Unknown chat" {
		t.Errorf("SenderLabel() without hint = %q, want %q", got, "Unknown chat")
	}
}

func TestBatchFromEntities(t *testing.T) {
	e := tg.Entities{
		Users:    map[int64]*tg.User{1: {ID: 1, FirstName: "Ann"}},
		Chats:    map[int64]*tg.Chat{2: {ID: 2, Title: "Group"}},
		Channels: map[int64]*tg.Channel{3: {ID: 3, Title: "Channel"}},
	}

	b := BatchFromEntities(e)

	if b.Users[1] == nil {
		t.Error("user 1 missing")
	}
	if b.Titles[2] != "Group" {
		t.Errorf("Titles[2] = %q, want Group", b.Titles[2])
	}
	if b.Titles[3] != "Channel" {
		t.Errorf("Titles[3] = %q, want Channel", b.Titles[3])
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		user tg.User
		want string
	}{
		{tg.User{FirstName: "Ann", LastName: "Lee"}, "Ann Lee"},
		{tg.User{FirstName: "Ann"}, "Ann"},
		{tg.User{LastName: "Lee"}, "Lee"},
		{tg.User{Username: "ann_dev"}, "ann_dev"},
		{tg.User{}, "Unknown"},
	}

	for _, tt := range tests {
		if got := DisplayName(&tt.user); got != tt.want {
			t.Errorf("DisplayName(%+v) = %q, want %q", tt.user, got, tt.want)
		}
	}
}
