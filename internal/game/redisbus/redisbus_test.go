package redisbus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrWong99/crossing/internal/config"
	"github.com/MrWong99/crossing/internal/game"
	"github.com/MrWong99/crossing/pkg/world"
)

var testChannels = config.RedisConfig{
	EventsChannel:     "t:events",
	LinkChannel:       "t:link",
	ChatChannel:       "t:chat",
	ReputationChannel: "t:reputation",
}

func newTestBus(t *testing.T) (*Bus, *redis.Client) {
	t.Helper()
	m := miniredis.RunT(t)
	cfg := testChannels
	cfg.Addr = m.Addr()
	bus := New(cfg)
	t.Cleanup(func() { _ = bus.Close() })

	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return bus, rc
}

func TestEvents_DecodesAndDropsBadPayloads(t *testing.T) {
	t.Parallel()

	bus, rc := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := bus.Events(ctx)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}

	for _, payload := range []string{
		`not json`,
		`{"kind":"meteor-strike","payload":{}}`,
		`{"kind":"land-claimed","payload":{"citizen":{"stable_id":"p1","name":"Alicia"},"location":"12, 40"}}`,
	} {
		if err := rc.Publish(ctx, "t:events", payload).Err(); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	select {
	case ev := <-events:
		lc, ok := ev.(world.LandClaimed)
		if !ok {
			t.Fatalf("event = %T, want world.LandClaimed", ev)
		}
		if lc.Location != "12, 40" || lc.Citizen == nil || lc.Citizen.Name != "Alicia" {
			t.Errorf("event = %+v", lc)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	select {
	case _, ok := <-events:
		if ok {
			t.Error("unexpected extra event")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed after cancel")
	}
}

func TestLinkRequests(t *testing.T) {
	t.Parallel()

	bus, rc := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reqs, err := bus.LinkRequests(ctx)
	if err != nil {
		t.Fatalf("LinkRequests: %v", err)
	}
	_ = rc.Publish(ctx, "t:link", `{"player_id":"p1"}`).Err()
	_ = rc.Publish(ctx, "t:link", `{"player_id":"p1","discord_name":"alice"}`).Err()

	select {
	case lr := <-reqs:
		if lr != (game.LinkRequest{PlayerID: "p1", DiscordName: "alice"}) {
			t.Errorf("request = %+v", lr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no link request received")
	}
}

func TestSubmit_PublishesChat(t *testing.T) {
	t.Parallel()

	bus, rc := newTestBus(t)
	ctx := context.Background()

	sub := rc.Subscribe(ctx, "t:chat")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("Receive: %v", err)
	}

	msg := game.NewChatMessage(game.User{StableID: "p1", Name: "Alicia"}, "Alicia", "hello", time.Unix(1700000000, 0))
	if err := bus.Submit(ctx, msg); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case m := <-sub.Channel():
		var got game.ChatMessage
		if err := json.Unmarshal([]byte(m.Payload), &got); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if got != msg {
			t.Errorf("published %+v, want %+v", got, msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("nothing published")
	}
}

func TestSubmit_RejectsMalformed(t *testing.T) {
	t.Parallel()

	bus, _ := newTestBus(t)
	err := bus.Submit(context.Background(), game.ChatMessage{Sender: "Alicia", Text: "  "})
	if !errors.Is(err, game.ErrMalformed) {
		t.Errorf("Submit err = %v, want ErrMalformed", err)
	}
}

func TestGrantReputation(t *testing.T) {
	t.Parallel()

	bus, rc := newTestBus(t)
	ctx := context.Background()

	sub := rc.Subscribe(ctx, "t:reputation")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("Receive: %v", err)
	}

	if err := bus.GrantReputation(ctx, game.ReputationGrant{Giver: "p1"}); !errors.Is(err, game.ErrMalformed) {
		t.Errorf("grant without receiver err = %v, want ErrMalformed", err)
	}

	g := game.ReputationGrant{Giver: "p1", Receiver: "p2", Amount: 1, Reason: "thanks"}
	if err := bus.GrantReputation(ctx, g); err != nil {
		t.Fatalf("GrantReputation: %v", err)
	}
	select {
	case m := <-sub.Channel():
		var got game.ReputationGrant
		if err := json.Unmarshal([]byte(m.Payload), &got); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if got != g {
			t.Errorf("published %+v, want %+v", got, g)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("nothing published")
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	m := miniredis.RunT(t)
	cfg := testChannels
	cfg.Addr = m.Addr()
	bus := New(cfg)
	defer bus.Close()

	if err := bus.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	m.Close()
	if err := bus.Ping(context.Background()); err == nil {
		t.Error("Ping succeeded after the server closed")
	}
}
