package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sonroyaalmerol/kumaqueue/internal/player"
)

const (
	frameDuration  = 20 * time.Millisecond
	sendTimeout    = 200 * time.Millisecond
	bufferFrames   = 250 // 5s of audio
	maxDroppedSend = 25
)

var (
	errPlayerBusy  = errors.New("player already has a stream")
	errSendTimeout = errors.New("voice send timed out")
)

// opusOutput is where a Player delivers paced frames.
type opusOutput interface {
	WaitReady(ctx context.Context) error
	SendOpus(ctx context.Context, frame []byte, timeout time.Duration) error
	SetSpeaking(on bool)
}

// Player paces one stream at a time into a voice connection, one frame per
// frameDuration. Every Play ends with exactly one event on Events.
type Player struct {
	guildID string
	out     opusOutput
	events  chan player.PlayerEvent

	frameDur    time.Duration
	sendTimeout time.Duration

	mu     sync.Mutex
	cur    *playback
	paused atomic.Bool
	frames atomic.Int64
}

type playback struct {
	stream  player.AudioStream
	buf     *frameBuffer
	ctx     context.Context
	cancel  context.CancelFunc
	stopped atomic.Bool

	errMu   sync.Mutex
	readErr error
}

func (pb *playback) setReadErr(err error) {
	pb.errMu.Lock()
	pb.readErr = err
	pb.errMu.Unlock()
}

func (pb *playback) getReadErr() error {
	pb.errMu.Lock()
	defer pb.errMu.Unlock()
	return pb.readErr
}

func newPlayer(guildID string, out opusOutput) *Player {
	return &Player{
		guildID:     guildID,
		out:         out,
		events:      make(chan player.PlayerEvent, 8),
		frameDur:    frameDuration,
		sendTimeout: sendTimeout,
	}
}

func (p *Player) Events() <-chan player.PlayerEvent { return p.events }

func (p *Player) Play(s player.AudioStream) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur != nil {
		return errPlayerBusy
	}

	ctx, cancel := context.WithCancel(context.Background())
	pb := &playback{stream: s, buf: newFrameBuffer(bufferFrames), ctx: ctx, cancel: cancel}
	p.cur = pb
	p.paused.Store(false)
	p.frames.Store(0)

	go p.produce(pb)
	go p.send(pb)
	return nil
}

func (p *Player) Pause()   { p.paused.Store(true) }
func (p *Player) Unpause() { p.paused.Store(false) }

// Stop ends the current stream early. Its terminal event is still delivered.
func (p *Player) Stop() {
	p.mu.Lock()
	pb := p.cur
	p.mu.Unlock()
	if pb == nil {
		return
	}
	pb.stopped.Store(true)
	pb.cancel()
	pb.buf.Close()
}

func (p *Player) Elapsed() time.Duration {
	return time.Duration(p.frames.Load()) * p.frameDur
}

func (p *Player) produce(pb *playback) {
	for {
		frame, err := pb.stream.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) && !pb.stopped.Load() {
				pb.setReadErr(err)
			}
			pb.buf.MarkEOS()
			return
		}
		if len(frame) == 0 {
			continue
		}
		if !pb.buf.Push(frame) {
			return
		}
	}
}

func (p *Player) send(pb *playback) {
	err := p.sendLoop(pb)
	pb.cancel()
	pb.buf.Close()
	if rerr := pb.getReadErr(); rerr != nil {
		err = rerr
	}

	p.mu.Lock()
	if p.cur == pb {
		p.cur = nil
	}
	p.mu.Unlock()

	ev := player.PlayerEvent{Kind: player.PlayerIdle, Stream: pb.stream}
	if err != nil && !pb.stopped.Load() {
		ev.Kind = player.PlayerError
		ev.Err = err
	}
	select {
	case p.events <- ev:
	default:
		slog.Warn("player event dropped", "guildID", p.guildID)
	}
}

func (p *Player) sendLoop(pb *playback) error {
	if err := p.out.WaitReady(pb.ctx); err != nil {
		if pb.ctx.Err() != nil {
			return nil
		}
		return err
	}

	p.out.SetSpeaking(true)
	defer p.out.SetSpeaking(false)

	ticker := time.NewTicker(p.frameDur)
	defer ticker.Stop()

	dropped := 0
	for {
		select {
		case <-pb.ctx.Done():
			return nil
		case <-ticker.C:
		}
		if p.paused.Load() {
			continue
		}

		frame, ok := pb.buf.Pop()
		if !ok {
			return nil
		}

		if err := p.out.SendOpus(pb.ctx, frame, p.sendTimeout); err != nil {
			if pb.ctx.Err() != nil {
				return nil
			}
			dropped++
			slog.Debug("dropped frame", "guildID", p.guildID, "consecutive", dropped)
			if dropped >= maxDroppedSend {
				return fmt.Errorf("voice connection stalled: %w", err)
			}
			continue
		}
		dropped = 0
		p.frames.Add(1)
	}
}
