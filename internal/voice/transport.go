package voice

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumaqueue/internal/player"
)

// Transport joins Discord voice channels through a discordgo session.
type Transport struct {
	session   *discordgo.Session
	pollEvery time.Duration

	mu    sync.Mutex
	conns map[string]*Connection
}

func NewTransport(s *discordgo.Session) *Transport {
	return &Transport{session: s, pollEvery: readyPollInterval, conns: make(map[string]*Connection)}
}

func (t *Transport) Join(ctx context.Context, guildID, channelID string) (player.Connection, error) {
	type result struct {
		vc  *discordgo.VoiceConnection
		err error
	}
	ch := make(chan result, 1)
	go func() {
		vc, err := t.session.ChannelVoiceJoin(guildID, channelID, false, true)
		ch <- result{vc, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		go func() {
			if late := <-ch; late.vc != nil {
				_ = safeDisconnect(guildID, discordLink{late.vc})
			}
		}()
		return nil, ctx.Err()
	case r = <-ch:
	}
	if r.err != nil {
		if r.vc != nil {
			_ = safeDisconnect(guildID, discordLink{r.vc})
		}
		return nil, r.err
	}

	conn := newConnection(guildID, channelID, discordLink{r.vc}, t.pollEvery, t.forget)
	t.mu.Lock()
	t.conns[guildID] = conn
	t.mu.Unlock()
	return conn, nil
}

func (t *Transport) forget(c *Connection) {
	t.mu.Lock()
	if t.conns[c.guildID] == c {
		delete(t.conns, c.guildID)
	}
	t.mu.Unlock()
}

// HandleVoiceState forwards the bot's own voice state updates to the guild's connection.
func (t *Transport) HandleVoiceState(vs *discordgo.VoiceStateUpdate) {
	if vs == nil || vs.VoiceState == nil || t.session.State == nil || t.session.State.User == nil {
		return
	}
	if vs.UserID != t.session.State.User.ID {
		return
	}
	t.mu.Lock()
	c := t.conns[vs.GuildID]
	t.mu.Unlock()
	if c == nil {
		return
	}
	slog.Debug("bot voice state", "guildID", vs.GuildID, "channelID", vs.ChannelID)
	c.voiceStateChanged(vs.ChannelID)
}
