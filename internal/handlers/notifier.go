package handlers

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumaqueue/internal/player"
	"github.com/sonroyaalmerol/kumaqueue/internal/ui"
)

const noticeBacklog = 64

type messageSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type outgoing struct {
	channelID string
	notice    player.Notice
}

// Notifier posts engine notices to text channels from a single goroutine, so
// a slow Discord API never holds up playback.
type Notifier struct {
	send     messageSender
	settings *Settings
	queue    chan outgoing
}

func NewNotifier(send messageSender, settings *Settings) *Notifier {
	return &Notifier{send: send, settings: settings, queue: make(chan outgoing, noticeBacklog)}
}

// For returns a sink that posts into channelID.
func (n *Notifier) For(channelID string) player.Sink {
	return channelSink{n: n, channelID: channelID}
}

func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-n.queue:
			n.deliver(ctx, o)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, o outgoing) {
	embed := n.render(ctx, o.notice)
	if embed == nil {
		return
	}
	if _, err := n.send.ChannelMessageSendEmbed(o.channelID, embed); err != nil {
		slog.Warn("notice send failed", "guildID", o.notice.GuildID, "channelID", o.channelID, "err", err)
	}
}

func (n *Notifier) render(ctx context.Context, notice player.Notice) *discordgo.MessageEmbed {
	switch notice.Kind {
	case player.NoticeNowPlaying:
		if n.settings != nil && !n.settings.Get(ctx, notice.GuildID).AnnounceNowPlaying {
			return nil
		}
		return ui.NowPlayingEmbed(notice.Track)
	case player.NoticeTrackFailed:
		return ui.TrackFailedEmbed(notice.Track, notice.Err)
	case player.NoticeQueueEnded:
		return ui.QueueEndedEmbed()
	}
	return nil
}

type channelSink struct {
	n         *Notifier
	channelID string
}

func (s channelSink) Notify(notice player.Notice) {
	select {
	case s.n.queue <- outgoing{channelID: s.channelID, notice: notice}:
	default:
		slog.Warn("notice dropped", "guildID", notice.GuildID, "kind", notice.Kind)
	}
}
