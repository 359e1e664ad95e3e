package voice

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumaqueue/internal/player"
)

const (
	readyPollInterval = 250 * time.Millisecond
	readyWaitTimeout  = 5 * time.Second
)

var errNotReady = errors.New("voice connection not ready")

// link is the slice of a discordgo voice connection a Connection uses.
type link interface {
	Ready() bool
	OpusSend() chan []byte
	Speaking(on bool) error
	Disconnect() error
}

type discordLink struct {
	vc *discordgo.VoiceConnection
}

func (l discordLink) Ready() bool {
	l.vc.RLock()
	defer l.vc.RUnlock()
	return l.vc.Ready
}

func (l discordLink) OpusSend() chan []byte { return l.vc.OpusSend }

func (l discordLink) Speaking(on bool) error { return l.vc.Speaking(on) }

func (l discordLink) Disconnect() error {
	// Kill closes these; a half-initialised connection would panic on nil
	if l.vc.OpusSend == nil {
		l.vc.OpusSend = make(chan []byte, 2)
	}
	if l.vc.OpusRecv == nil {
		l.vc.OpusRecv = make(chan *discordgo.Packet, 2)
	}
	return l.vc.Disconnect()
}

// Connection is one guild's voice link. It reports readiness changes and
// voice state moves as player.ConnEvents.
type Connection struct {
	guildID string
	link    link
	events  chan player.ConnEvent
	onClose func(*Connection)

	mu        sync.Mutex
	channelID string
	closed    bool
	done      chan struct{}
}

func newConnection(guildID, channelID string, l link, pollEvery time.Duration, onClose func(*Connection)) *Connection {
	c := &Connection{
		guildID:   guildID,
		channelID: channelID,
		link:      l,
		events:    make(chan player.ConnEvent, 16),
		onClose:   onClose,
		done:      make(chan struct{}),
	}
	go c.monitor(pollEvery, l.Ready())
	return c
}

func (c *Connection) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

func (c *Connection) Events() <-chan player.ConnEvent { return c.events }

func (c *Connection) CreatePlayer() player.AudioPlayer {
	return newPlayer(c.guildID, c)
}

func (c *Connection) emit(s player.ConnState) {
	select {
	case c.events <- player.ConnEvent{State: s, At: time.Now()}:
	default:
		slog.Warn("voice event dropped", "guildID", c.guildID, "state", s)
	}
}

func (c *Connection) monitor(every time.Duration, ready bool) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-t.C:
		}
		now := c.link.Ready()
		switch {
		case ready && !now:
			slog.Debug("voice connection not ready", "guildID", c.guildID)
			c.emit(player.ConnDisconnected)
		case !ready && now:
			c.emit(player.ConnReady)
		}
		ready = now
	}
}

// voiceStateChanged handles a voice state update for the bot user in this guild.
func (c *Connection) voiceStateChanged(channelID string) {
	c.mu.Lock()
	prev := c.channelID
	if channelID != "" {
		c.channelID = channelID
	}
	c.mu.Unlock()

	switch {
	case channelID == "":
		slog.Info("removed from voice channel", "guildID", c.guildID, "channelID", prev)
		c.emit(player.ConnDisconnected)
	case channelID != prev:
		slog.Info("moved to another voice channel", "guildID", c.guildID, "from", prev, "to", channelID)
		c.emit(player.ConnConnecting)
	}
}

func (c *Connection) WaitReady(ctx context.Context) error {
	deadline := time.NewTimer(readyWaitTimeout)
	defer deadline.Stop()
	for !c.link.Ready() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return errNotReady
		case <-time.After(100 * time.Millisecond):
		}
	}
	return nil
}

func (c *Connection) SendOpus(ctx context.Context, frame []byte, timeout time.Duration) error {
	ch := c.link.OpusSend()
	if ch == nil {
		return errNotReady
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case ch <- frame:
		return nil
	case <-t.C:
		return errSendTimeout
	}
}

func (c *Connection) SetSpeaking(on bool) {
	if err := c.link.Speaking(on); err != nil {
		slog.Debug("speaking update failed", "guildID", c.guildID, "on", on, "err", err)
	}
}

// Close disconnects from voice. Repeated calls are no-ops.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	if c.onClose != nil {
		c.onClose(c)
	}
	return safeDisconnect(c.guildID, c.link)
}

func safeDisconnect(guildID string, l link) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("voice disconnect panic recovered", "panic", r, "guildID", guildID)
		}
	}()
	_ = l.Speaking(false)
	return l.Disconnect()
}
