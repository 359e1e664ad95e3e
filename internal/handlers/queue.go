package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumaqueue/internal/player"
	"github.com/sonroyaalmerol/kumaqueue/internal/ui"
	"github.com/sonroyaalmerol/kumaqueue/internal/utils"
)

// VoiceStates reports which voice channel a member is connected to.
type VoiceStates interface {
	UserVoiceChannel(guildID, userID string) (string, bool)
}

// Request identifies who issued a command and where notices should go.
type Request struct {
	GuildID string
	UserID  string
	Sink    player.Sink
}

// Reply is a router-agnostic command response.
type Reply struct {
	Content   string
	Embed     *discordgo.MessageEmbed
	Ephemeral bool
}

// QueueCommands validates command preconditions and calls into the engine.
type QueueCommands struct {
	engine   *player.Engine
	resolver player.Resolver
	voice    VoiceStates
	preview  int
}

func NewQueueCommands(engine *player.Engine, resolver player.Resolver, voice VoiceStates, preview int) *QueueCommands {
	if preview <= 0 {
		preview = 10
	}
	return &QueueCommands{engine: engine, resolver: resolver, voice: voice, preview: preview}
}

// Enqueue resolves query before touching the session, so a lookup failure leaves the backlog as it was.
func (q *QueueCommands) Enqueue(ctx context.Context, req Request, query string) Reply {
	channelID, ok := q.voice.UserVoiceChannel(req.GuildID, req.UserID)
	if !ok {
		slog.Debug("user not in voice", "guildID", req.GuildID, "userID", req.UserID)
		return errorReply(player.ErrNotInVoice)
	}
	if strings.TrimSpace(query) == "" {
		return errorReply(player.ErrEmptyQuery)
	}

	t, err := q.resolver.Resolve(ctx, query, req.UserID)
	if err != nil {
		slog.Info("resolve failed", "guildID", req.GuildID, "query", query, "err", err)
		return errorReply(err)
	}

	res, err := q.engine.Enqueue(ctx, req.GuildID, channelID, req.Sink, t)
	if err != nil {
		return errorReply(err)
	}
	slog.Info("cmd play", "guildID", req.GuildID, "userID", req.UserID, "title", t.Title, "position", res.Position)
	if res.Started {
		return Reply{Content: fmt.Sprintf("👍 let's go: **%s**", utils.EscapeMd(t.Title))}
	}
	return Reply{Embed: ui.QueuedEmbed(res)}
}

func (q *QueueCommands) Skip(req Request) Reply {
	t, err := q.engine.Skip(req.GuildID)
	if err != nil {
		return errorReply(err)
	}
	slog.Info("cmd skip", "guildID", req.GuildID, "userID", req.UserID, "title", t.Title)
	return Reply{Content: fmt.Sprintf("⏭️ skipped **%s**", utils.EscapeMd(t.Title))}
}

func (q *QueueCommands) Stop(req Request) Reply {
	q.engine.Stop(req.GuildID)
	slog.Info("cmd stop", "guildID", req.GuildID, "userID", req.UserID)
	return Reply{Content: "⏹️ stopped and cleared the queue"}
}

func (q *QueueCommands) Leave(req Request) Reply {
	if err := q.engine.Leave(req.GuildID); err != nil {
		return errorReply(err)
	}
	slog.Info("cmd leave", "guildID", req.GuildID, "userID", req.UserID)
	return Reply{Content: "👋 see you later"}
}

func (q *QueueCommands) Pause(req Request) Reply {
	if err := q.engine.Pause(req.GuildID); err != nil {
		return errorReply(err)
	}
	slog.Info("cmd pause", "guildID", req.GuildID, "userID", req.UserID)
	return Reply{Content: "⏸️ paused"}
}

func (q *QueueCommands) Resume(req Request) Reply {
	if err := q.engine.Resume(req.GuildID); err != nil {
		return errorReply(err)
	}
	slog.Info("cmd resume", "guildID", req.GuildID, "userID", req.UserID)
	return Reply{Content: "▶️ the stop-and-go light is now green"}
}

func (q *QueueCommands) List(req Request) Reply {
	snap := q.engine.Snapshot(req.GuildID)
	return Reply{Embed: ui.QueueEmbed(q.engine.List(req.GuildID, q.preview), snap.IsPlaying)}
}

func (q *QueueCommands) NowPlaying(req Request) Reply {
	return Reply{Embed: ui.PlayingEmbed(q.engine.Snapshot(req.GuildID))}
}

func (q *QueueCommands) Join(ctx context.Context, req Request) Reply {
	channelID, ok := q.voice.UserVoiceChannel(req.GuildID, req.UserID)
	if !ok {
		return errorReply(player.ErrNotInVoice)
	}
	joined, err := q.engine.Join(ctx, req.GuildID, channelID, req.Sink)
	if err != nil {
		return errorReply(err)
	}
	if !joined {
		return Reply{Content: "already in a voice channel", Ephemeral: true}
	}
	slog.Info("cmd join", "guildID", req.GuildID, "userID", req.UserID, "channelID", channelID)
	return Reply{Content: fmt.Sprintf("👋 joined <#%s>", channelID)}
}

// errorReply maps an error to a user-facing message. Validation errors are shown
// only to the caller.
func errorReply(err error) Reply {
	var pe *player.Error
	if !errors.As(err, &pe) {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return Reply{Embed: ui.ErrorEmbed("that took too long, try again"), Ephemeral: true}
		}
		return Reply{Embed: ui.ErrorEmbed("something went wrong: " + err.Error()), Ephemeral: true}
	}

	switch pe.Kind {
	case player.KindValidation:
		return Reply{Embed: ui.ErrorEmbed(pe.Msg), Ephemeral: true}
	case player.KindResolution:
		return Reply{Embed: ui.ErrorEmbed("couldn't find that: " + pe.Error())}
	case player.KindTransport:
		return Reply{Embed: ui.ErrorEmbed(pe.Error())}
	}
	return Reply{Embed: ui.ErrorEmbed(pe.Error())}
}
