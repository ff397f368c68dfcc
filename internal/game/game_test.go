package game_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/crossing/internal/game"
)

func TestChatMessage_Validate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		msg     game.ChatMessage
		wantErr bool
	}{
		{name: "general ok", msg: game.ChatMessage{Sender: "Aria", Text: "hi", Category: game.CategoryGeneral}},
		{name: "empty sender", msg: game.ChatMessage{Text: "hi"}, wantErr: true},
		{name: "blank text", msg: game.ChatMessage{Sender: "Aria", Text: "   "}, wantErr: true},
		{name: "direct without recipient", msg: game.ChatMessage{Sender: "Crossing", Text: "x", Category: game.CategoryDirect}, wantErr: true},
		{name: "direct ok", msg: game.ChatMessage{Sender: "Crossing", Text: "x", Category: game.CategoryDirect, Recipient: "7"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, game.ErrMalformed) {
				t.Errorf("error %v does not wrap ErrMalformed", err)
			}
		})
	}
}

func TestNewChatMessage(t *testing.T) {
	t.Parallel()
	at := time.Unix(1700000000, 0)
	u := game.User{StableID: "9", Name: "Bo"}
	msg := game.NewChatMessage(u, "<ref>", "hello", at)
	if msg.Sender != "Bo" || msg.SenderLink != "<ref>" || msg.Text != "hello" {
		t.Errorf("unexpected message %+v", msg)
	}
	if msg.Category != game.CategoryGeneral {
		t.Errorf("Category = %q, want general", msg.Category)
	}
	if msg.Timestamp != 1700000000 {
		t.Errorf("Timestamp = %d, want 1700000000", msg.Timestamp)
	}
}

func TestDefaultReference(t *testing.T) {
	t.Parallel()
	tests := []struct {
		user game.User
		want string
	}{
		{game.User{StableID: "7", Name: "Aria"}, `<link="User:7">Aria</link>`},
		{game.User{StableID: "7", Name: "Aria", Link: "custom"}, "custom"},
		{game.User{Name: "Aria"}, "Aria"},
	}
	for _, tt := range tests {
		if got := game.DefaultReference(tt.user); got != tt.want {
			t.Errorf("DefaultReference(%+v) = %q, want %q", tt.user, got, tt.want)
		}
	}
}

func TestMemDirectory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := game.NewMemDirectory(game.User{StableID: "1", Name: "Aria"})
	d.PutUser(game.User{StableID: "2", Name: "Bo"})

	if u, err := d.FindUserByStableID(ctx, "2"); err != nil || u.Name != "Bo" {
		t.Errorf("FindUserByStableID(2) = %+v, %v", u, err)
	}
	if u, err := d.FindUserByName(ctx, "aria"); err != nil || u.StableID != "1" {
		t.Errorf("FindUserByName(aria) = %+v, %v", u, err)
	}
	if _, err := d.FindUserByStableID(ctx, "3"); !errors.Is(err, game.ErrUserNotFound) {
		t.Errorf("FindUserByStableID(3) err = %v, want ErrUserNotFound", err)
	}

	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	d.PutContract(game.Listing{ID: "b", ClientID: "1", Description: "new", CreatedAt: newer})
	d.PutContract(game.Listing{ID: "a", ClientID: "1", Description: "old", CreatedAt: older})
	l, err := d.LatestContract(ctx, "1")
	if err != nil || l.ID != "b" {
		t.Errorf("LatestContract(1) = %+v, %v; want listing b", l, err)
	}
	if _, err := d.LatestWorkParty(ctx, "1"); !errors.Is(err, game.ErrNoListing) {
		t.Errorf("LatestWorkParty(1) err = %v, want ErrNoListing", err)
	}
}

func TestMemDirectory_RecordUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := game.NewMemDirectory(game.User{StableID: "p1", Name: "Aria", Link: "<b>Aria</b>"})

	if err := d.RecordUser(ctx, game.User{StableID: "p1", Name: "Aria the Bold"}); err != nil {
		t.Fatalf("RecordUser: %v", err)
	}
	u, err := d.FindUserByStableID(ctx, "p1")
	if err != nil {
		t.Fatalf("FindUserByStableID: %v", err)
	}
	if u.Name != "Aria the Bold" || u.Link != "<b>Aria</b>" {
		t.Errorf("user = %+v, want renamed with link kept", u)
	}

	if err := d.RecordUser(ctx, game.User{StableID: "p2"}); !errors.Is(err, game.ErrMalformed) {
		t.Errorf("RecordUser without name err = %v, want ErrMalformed", err)
	}
	if _, err := d.FindUserByStableID(ctx, "p2"); !errors.Is(err, game.ErrUserNotFound) {
		t.Errorf("p2 recorded despite error")
	}
}

func TestMemDirectory_SetKnown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := game.NewMemDirectory()
	d.SetKnown(func(id string) bool { return id == "p1" })

	u, err := d.FindUserByStableID(ctx, "p1")
	if err != nil {
		t.Fatalf("FindUserByStableID(p1): %v", err)
	}
	if u.StableID != "p1" || u.Name != "p1" {
		t.Errorf("placeholder user = %+v, want id as name", u)
	}
	if _, err := d.FindUserByStableID(ctx, "p2"); !errors.Is(err, game.ErrUserNotFound) {
		t.Errorf("FindUserByStableID(p2) err = %v, want ErrUserNotFound", err)
	}

	// A recorded account replaces the placeholder.
	if err := d.RecordUser(ctx, game.User{StableID: "p1", Name: "Aria"}); err != nil {
		t.Fatal(err)
	}
	if u, _ := d.FindUserByStableID(ctx, "p1"); u.Name != "Aria" {
		t.Errorf("Name after RecordUser = %q, want Aria", u.Name)
	}
}
