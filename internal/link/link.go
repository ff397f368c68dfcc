// Package link serializes identity link requests from both sides of the
// bridge. Players ask from the game by typing a Discord name; admins use the
// /link slash command. Every request runs on one goroutine so the identity
// tables are never written concurrently.
package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/crossing/internal/game"
	"github.com/MrWong99/crossing/internal/observe"
)

// Source identifies where a request came from.
type Source string

const (
	SourceGame    Source = "game"
	SourceDiscord Source = "discord"
)

// Replies sent back to the requester.
const (
	ReplyNotReady     = "The bridge is not connected to Discord yet."
	ReplyNoSuchUser   = "No such Discord user found: %s"
	ReplyNoSuchPlayer = "No such player found: %s"
	ReplyLinked       = "Linked to Discord user %s."
	ReplyFailed       = "Linking failed."
	ReplyBusy         = "Too many link requests, try again shortly."
)

// Link statuses recorded in metrics.
const (
	statusLinked   = "linked"
	statusNotReady = "not_ready"
	statusNotFound = "not_found"
	statusFailed   = "failed"
)

// queueSize is the capacity of the request queue fed by [Service.Enqueue].
const queueSize = 64

// Request asks to link a Discord account to a game account.
type Request struct {
	Source Source

	// Game requests carry the player's stable id and the Discord name they
	// typed.
	PlayerID    string
	DiscordName string

	// Discord requests carry the chosen member id and the game account
	// name.
	DiscordID  string
	PlayerName string

	// Reply delivers the outcome to the requester. It may be nil.
	Reply func(ctx context.Context, text string)
}

// Members looks up guild members.
type Members interface {
	Ready() bool
	Member(ctx context.Context, userID string) (*discordgo.Member, error)
	FindMember(ctx context.Context, name string) (*discordgo.Member, error)
	DirectMessage(ctx context.Context, userID, content string) error
}

// Store persists links.
type Store interface {
	Link(ctx context.Context, discordID, gameID string) error
}

// Users resolves game accounts. When it also implements
// [game.UserRecorder], every linked account is recorded so the relay can
// resolve it before the game reports it.
type Users interface {
	FindUserByStableID(ctx context.Context, id string) (game.User, error)
	FindUserByName(ctx context.Context, name string) (game.User, error)
}

// Service runs link requests one at a time.
type Service struct {
	members Members
	store   Store
	users   Users
	chat    game.ChatSink
	sender  string
	metrics *observe.Metrics
	reqs    chan Request
}

// New returns a Service. Game-side replies are direct chat messages sent
// through chat with sender as the author.
func New(members Members, store Store, users Users, chat game.ChatSink, sender string, metrics *observe.Metrics) *Service {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Service{
		members: members,
		store:   store,
		users:   users,
		chat:    chat,
		sender:  sender,
		metrics: metrics,
		reqs:    make(chan Request, queueSize),
	}
}

// Enqueue queues req without blocking. It reports false when the queue is
// full.
func (s *Service) Enqueue(req Request) bool {
	select {
	case s.reqs <- req:
		return true
	default:
		return false
	}
}

// Run handles queued requests and game link requests until ctx is
// cancelled. A nil or closed game channel leaves only the queue.
func (s *Service) Run(ctx context.Context, fromGame <-chan game.LinkRequest) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-s.reqs:
			s.Handle(ctx, req)
		case lr, ok := <-fromGame:
			if !ok {
				fromGame = nil
				continue
			}
			s.Handle(ctx, s.fromGame(lr))
		}
	}
}

// fromGame wraps a game request so replies go back as a direct chat line.
func (s *Service) fromGame(lr game.LinkRequest) Request {
	return Request{
		Source:      SourceGame,
		PlayerID:    lr.PlayerID,
		DiscordName: lr.DiscordName,
		Reply: func(ctx context.Context, text string) {
			msg := game.ChatMessage{
				Sender:    s.sender,
				Text:      text,
				Category:  game.CategoryDirect,
				Timestamp: time.Now().Unix(),
				Recipient: lr.PlayerID,
			}
			if err := s.chat.Submit(ctx, msg); err != nil {
				slog.Warn("link: reply to player failed", "player", lr.PlayerID, "err", err)
			}
		},
	}
}

// Handle runs one request to completion.
func (s *Service) Handle(ctx context.Context, req Request) {
	log := slog.With("source", req.Source)
	reply := func(text string) {
		if req.Reply != nil {
			req.Reply(ctx, text)
		}
	}

	if !s.members.Ready() {
		s.metrics.RecordLink(ctx, string(req.Source), statusNotReady)
		reply(ReplyNotReady)
		return
	}

	member, player, err := s.resolve(ctx, req)
	if err != nil {
		var nf *notFoundError
		if errors.As(err, &nf) {
			s.metrics.RecordLink(ctx, string(req.Source), statusNotFound)
			reply(nf.reply)
			return
		}
		log.Error("link: resolve accounts", "err", err)
		s.metrics.RecordLink(ctx, string(req.Source), statusFailed)
		reply(ReplyFailed)
		return
	}

	if err := s.store.Link(ctx, member.User.ID, player.StableID); err != nil {
		log.Error("link: persist", "discord_id", member.User.ID, "player", player.StableID, "err", err)
		s.metrics.RecordLink(ctx, string(req.Source), statusFailed)
		reply(ReplyFailed)
		return
	}
	if rec, ok := s.users.(game.UserRecorder); ok {
		if err := rec.RecordUser(ctx, player); err != nil {
			log.Warn("link: record player", "player", player.StableID, "err", err)
		}
	}
	s.metrics.RecordLink(ctx, string(req.Source), statusLinked)
	log.Info("link: linked", "discord_id", member.User.ID, "player", player.StableID)

	dm := fmt.Sprintf("Your Discord account is now linked to the game account %s.", player.Name)
	if err := s.members.DirectMessage(ctx, member.User.ID, dm); err != nil {
		log.Debug("link: confirmation dm failed", "discord_id", member.User.ID, "err", err)
	}
	reply(fmt.Sprintf(ReplyLinked, member.User.Username))
}

type notFoundError struct{ reply string }

func (e *notFoundError) Error() string { return e.reply }

func (s *Service) resolve(ctx context.Context, req Request) (*discordgo.Member, game.User, error) {
	switch req.Source {
	case SourceGame:
		member, err := s.members.FindMember(ctx, req.DiscordName)
		if err != nil || member.User == nil {
			return nil, game.User{}, &notFoundError{fmt.Sprintf(ReplyNoSuchUser, req.DiscordName)}
		}
		player, err := s.users.FindUserByStableID(ctx, req.PlayerID)
		if errors.Is(err, game.ErrUserNotFound) {
			// The player exists in the game even if the directory lags.
			player = game.User{StableID: req.PlayerID, Name: req.PlayerID}
		} else if err != nil {
			return nil, game.User{}, err
		}
		if player.StableID == "" {
			return nil, game.User{}, errors.New("empty player id")
		}
		return member, player, nil

	case SourceDiscord:
		member, err := s.members.Member(ctx, req.DiscordID)
		if err != nil || member.User == nil {
			return nil, game.User{}, &notFoundError{fmt.Sprintf(ReplyNoSuchUser, req.DiscordID)}
		}
		player, err := s.users.FindUserByName(ctx, req.PlayerName)
		if errors.Is(err, game.ErrUserNotFound) {
			return nil, game.User{}, &notFoundError{fmt.Sprintf(ReplyNoSuchPlayer, req.PlayerName)}
		} else if err != nil {
			return nil, game.User{}, err
		}
		return member, player, nil
	}
	return nil, game.User{}, fmt.Errorf("unknown source %q", req.Source)
}
