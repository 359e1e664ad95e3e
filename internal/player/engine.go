package player

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	DefaultDrainDelay       = 60 * time.Second
	DefaultReconnectTimeout = 5 * time.Second
)

type Options struct {
	// DrainDelay is how long an emptied session keeps its transport.
	DrainDelay time.Duration
	// DrainDelayFor overrides DrainDelay per guild when it returns a positive value.
	// It is called with the session locked and must not block.
	DrainDelayFor func(guildID string) time.Duration
	// ReconnectTimeout bounds the wait for a dropped transport to start recovering.
	ReconnectTimeout time.Duration
}

// Engine owns every session state transition. Operations on one guild are
// serialized by that guild's session lock; distinct guilds never contend.
type Engine struct {
	registry  *Registry
	transport Transport
	provider  StreamProvider
	opts      Options
}

func NewEngine(reg *Registry, t Transport, p StreamProvider, opts Options) *Engine {
	if reg == nil {
		reg = NewRegistry()
	}
	if opts.DrainDelay <= 0 {
		opts.DrainDelay = DefaultDrainDelay
	}
	if opts.ReconnectTimeout <= 0 {
		opts.ReconnectTimeout = DefaultReconnectTimeout
	}
	return &Engine{registry: reg, transport: t, provider: p, opts: opts}
}

func (e *Engine) Registry() *Registry { return e.registry }

func (e *Engine) Snapshot(guildID string) Snapshot {
	sess := e.registry.Peek(guildID)
	if sess == nil {
		return Snapshot{GuildID: guildID, State: StateIdle}
	}
	return sess.Snapshot()
}

// Enqueue appends t to the guild's backlog, joining channelID first when the
// session holds no transport. Playback starts if nothing is playing.
func (e *Engine) Enqueue(ctx context.Context, guildID, channelID string, sink Sink, t Track) (EnqueueResult, error) {
	sess := e.registry.Get(guildID)

	sess.mu.Lock()
	if sink != nil {
		sess.sink = sink
	}
	sess.backlog = append(sess.backlog, t)
	res := EnqueueResult{Track: t, Position: len(sess.backlog)}

	if sess.conn != nil {
		sess.cancelDrainLocked()
		idle := !sess.isPlaying && !sess.opening
		// only the call that found the backlog empty reports a start
		res.Started = idle && res.Position == 1
		sess.mu.Unlock()
		if idle {
			e.playHead(sess, false)
		}
		return res, nil
	}
	if sess.state == StateJoining {
		sess.mu.Unlock()
		return res, nil
	}

	sess.state = StateJoining
	gen := sess.gen
	sess.mu.Unlock()

	if err := e.connect(ctx, sess, channelID, gen); err != nil {
		return EnqueueResult{}, err
	}
	res.Started = true
	e.playHead(sess, false)
	return res, nil
}

// Join connects the session to channelID without queueing anything. It reports
// false when the session already holds or is acquiring a transport.
func (e *Engine) Join(ctx context.Context, guildID, channelID string, sink Sink) (bool, error) {
	sess := e.registry.Get(guildID)

	sess.mu.Lock()
	if sink != nil {
		sess.sink = sink
	}
	if sess.conn != nil || sess.state == StateJoining {
		sess.mu.Unlock()
		return false, nil
	}
	sess.state = StateJoining
	gen := sess.gen
	sess.mu.Unlock()

	if err := e.connect(ctx, sess, channelID, gen); err != nil {
		return false, err
	}
	// tracks queued while joining
	e.playHead(sess, false)

	sess.mu.Lock()
	if sess.conn != nil && !sess.isPlaying && !sess.opening && len(sess.backlog) == 0 && sess.drain == nil {
		e.enterDrainingLocked(sess)
	}
	sess.mu.Unlock()
	return true, nil
}

func (e *Engine) connect(ctx context.Context, sess *Session, channelID string, gen uint64) error {
	slog.Debug("joining voice", "guildID", sess.guildID, "channelID", channelID)
	conn, err := e.transport.Join(ctx, sess.guildID, channelID)

	sess.mu.Lock()
	if sess.gen != gen {
		sess.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		slog.Debug("session reset during join", "guildID", sess.guildID)
		return ErrJoinCancelled
	}
	if err != nil {
		release := sess.resetLocked()
		sess.mu.Unlock()
		release()
		slog.Warn("voice join failed", "guildID", sess.guildID, "channelID", channelID, "err", err)
		return NewTransportError("couldn't join the voice channel", err)
	}

	p := conn.CreatePlayer()
	done := make(chan struct{})
	sess.conn = conn
	sess.player = p
	sess.channelID = channelID
	sess.state = StateDraining
	sess.watchDone = done
	sess.mu.Unlock()

	slog.Info("joined voice", "guildID", sess.guildID, "channelID", channelID)
	go e.watch(sess, conn, p, done)
	return nil
}

// playHead opens and attaches the backlog head. Heads whose stream cannot be
// opened are dropped and the next one is tried. Only one call per session runs
// the loop; concurrent callers return immediately and their tracks are picked
// up by the running loop. When the backlog runs dry after a finished or failed
// track the session enters Draining.
func (e *Engine) playHead(sess *Session, advanced bool) {
	sess.mu.Lock()
	if sess.opening || sess.isPlaying || sess.player == nil {
		sess.mu.Unlock()
		return
	}
	sess.opening = true
	drainIfEmpty := advanced

	for {
		if sess.player == nil {
			sess.opening = false
			sess.mu.Unlock()
			return
		}
		if len(sess.backlog) == 0 {
			break
		}

		head := sess.backlog[0]
		gen := sess.gen
		p := sess.player
		ctx, cancel := context.WithCancel(context.Background())
		sess.openCancel = cancel
		sess.cancelDrainLocked()
		sess.state = StatePlaying
		sess.mu.Unlock()

		stream, err := e.provider.Open(ctx, head)
		cancel()

		sess.mu.Lock()
		sess.openCancel = nil
		if sess.gen != gen || sess.player != p {
			// reset while opening; serve whatever the session holds now
			sess.mu.Unlock()
			if stream != nil {
				_ = stream.Close()
			}
			sess.mu.Lock()
			drainIfEmpty = false
			continue
		}
		if err == nil {
			if err = p.Play(stream); err != nil {
				sess.mu.Unlock()
				_ = stream.Close()
				sess.mu.Lock()
				if sess.gen != gen {
					drainIfEmpty = false
					continue
				}
			}
		}
		if err != nil {
			sess.backlog = sess.backlog[1:]
			sink := sess.sink
			drainIfEmpty = true
			sess.mu.Unlock()

			slog.Warn("stream failed, skipping", "guildID", sess.guildID, "title", head.Title, "err", err)
			notify(sink, Notice{
				Kind:    NoticeTrackFailed,
				GuildID: sess.guildID,
				Track:   head,
				Err:     NewStreamError("couldn't stream "+head.Title, err),
			})

			sess.mu.Lock()
			continue
		}

		sess.stream = stream
		sess.isPlaying = true
		sess.paused = false
		sess.opening = false
		sink := sess.sink
		sess.mu.Unlock()

		slog.Info("now playing", "guildID", sess.guildID, "title", head.Title, "duration", head.DurationLabel)
		notify(sink, Notice{Kind: NoticeNowPlaying, GuildID: sess.guildID, Track: head})
		return
	}

	sess.opening = false
	if !drainIfEmpty {
		sess.mu.Unlock()
		return
	}
	sink := sess.sink
	e.enterDrainingLocked(sess)
	sess.mu.Unlock()

	notify(sink, Notice{Kind: NoticeQueueEnded, GuildID: sess.guildID})
}

func (e *Engine) drainDelay(guildID string) time.Duration {
	if e.opts.DrainDelayFor != nil {
		if d := e.opts.DrainDelayFor(guildID); d > 0 {
			return d
		}
	}
	return e.opts.DrainDelay
}

// enterDrainingLocked keeps the transport and arms the release timer. A later
// enqueue cancels the timer by dropping the task; a stale timer finds its token
// no longer current and does nothing.
func (e *Engine) enterDrainingLocked(sess *Session) {
	sess.cancelDrainLocked()
	sess.state = StateDraining
	sess.isPlaying = false
	sess.paused = false

	sess.drainSeq++
	token := sess.drainSeq
	delay := e.drainDelay(sess.guildID)
	sess.drain = &drainTask{
		token: token,
		timer: time.AfterFunc(delay, func() { e.releaseDrained(sess, token) }),
	}
	slog.Debug("session draining", "guildID", sess.guildID, "delay", delay)
}

func (e *Engine) releaseDrained(sess *Session, token uint64) {
	sess.mu.Lock()
	if sess.drain == nil || sess.drain.token != token || sess.state != StateDraining {
		sess.mu.Unlock()
		return
	}
	sess.drain = nil
	release := sess.resetLocked()
	sess.mu.Unlock()

	release()
	slog.Info("left voice after idling", "guildID", sess.guildID)
}

// Skip ends the current track; the player's terminal event advances the backlog.
func (e *Engine) Skip(guildID string) (Track, error) {
	sess := e.registry.Peek(guildID)
	if sess == nil {
		return Track{}, ErrNothingPlaying
	}

	sess.mu.Lock()
	if !sess.isPlaying || sess.player == nil || len(sess.backlog) == 0 {
		sess.mu.Unlock()
		return Track{}, ErrNothingPlaying
	}
	cur := sess.backlog[0]
	p := sess.player
	sess.mu.Unlock()

	slog.Debug("skipping", "guildID", guildID, "title", cur.Title)
	p.Stop()
	return cur, nil
}

// Stop clears the backlog and releases the transport. Stopping an idle session is a no-op.
func (e *Engine) Stop(guildID string) {
	sess := e.registry.Peek(guildID)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	wasIdle := sess.state == StateIdle
	release := sess.resetLocked()
	sess.mu.Unlock()

	release()
	if !wasIdle {
		slog.Info("session stopped", "guildID", guildID)
	}
}

// Leave is Stop for a session that holds or is acquiring a transport.
func (e *Engine) Leave(guildID string) error {
	sess := e.registry.Peek(guildID)
	if sess == nil {
		return ErrNotConnected
	}

	sess.mu.Lock()
	if sess.conn == nil && sess.state != StateJoining {
		sess.mu.Unlock()
		return ErrNotConnected
	}
	release := sess.resetLocked()
	sess.mu.Unlock()

	release()
	slog.Info("left voice", "guildID", guildID)
	return nil
}

func (e *Engine) Pause(guildID string) error {
	sess := e.registry.Peek(guildID)
	if sess == nil {
		return ErrNothingPlaying
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !sess.isPlaying || sess.player == nil {
		return ErrNothingPlaying
	}
	sess.player.Pause()
	sess.paused = true
	return nil
}

func (e *Engine) Resume(guildID string) error {
	sess := e.registry.Peek(guildID)
	if sess == nil {
		return ErrNoPlayer
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.player == nil {
		return ErrNoPlayer
	}
	if !sess.isPlaying {
		return ErrNothingPlaying
	}
	sess.player.Unpause()
	sess.paused = false
	return nil
}

// List returns up to n tracks from the head of the backlog.
func (e *Engine) List(guildID string, n int) Listing {
	sess := e.registry.Peek(guildID)
	if sess == nil {
		return Listing{}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	total := len(sess.backlog)
	k := min(max(n, 0), total)
	return Listing{
		Tracks:    append([]Track(nil), sess.backlog[:k]...),
		Remaining: total - k,
		Total:     total,
	}
}

func (e *Engine) watch(sess *Session, conn Connection, p AudioPlayer, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-p.Events():
			if !ok {
				return
			}
			e.onPlayerEvent(sess, p, ev)
		case ev, ok := <-conn.Events():
			if !ok {
				return
			}
			switch ev.State {
			case ConnDisconnected:
				e.onTransportDrop(sess, conn, done)
			case ConnConnecting, ConnReady:
				e.syncChannel(sess, conn)
			}
		}
	}
}

func (e *Engine) onPlayerEvent(sess *Session, p AudioPlayer, ev PlayerEvent) {
	sess.mu.Lock()
	if sess.player != p || sess.stream == nil || sess.stream != ev.Stream {
		sess.mu.Unlock()
		return
	}
	stream := sess.stream
	sess.stream = nil
	sess.isPlaying = false
	sess.paused = false
	var ended Track
	if len(sess.backlog) > 0 {
		ended = sess.backlog[0]
		sess.backlog = sess.backlog[1:]
	}
	sink := sess.sink
	sess.mu.Unlock()

	_ = stream.Close()
	if ev.Kind == PlayerError {
		slog.Warn("playback failed, skipping", "guildID", sess.guildID, "title", ended.Title, "err", ev.Err)
		notify(sink, Notice{
			Kind:    NoticeTrackFailed,
			GuildID: sess.guildID,
			Track:   ended,
			Err:     NewStreamError("couldn't stream "+ended.Title, ev.Err),
		})
	} else {
		slog.Debug("track ended", "guildID", sess.guildID, "title", ended.Title)
	}
	e.playHead(sess, true)
}

// onTransportDrop waits for the connection to start recovering. If it does not
// within the reconnect timeout the session is reset and its backlog discarded.
func (e *Engine) onTransportDrop(sess *Session, conn Connection, done <-chan struct{}) {
	slog.Warn("voice connection dropped", "guildID", sess.guildID, "timeout", e.opts.ReconnectTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), e.opts.ReconnectTimeout)
	defer cancel()
	state, err := awaitRecovery(ctx, conn.Events(), done)
	if err == nil {
		slog.Info("voice connection recovering", "guildID", sess.guildID, "state", state)
		e.syncChannel(sess, conn)
		return
	}
	if errors.Is(err, errWatchStopped) {
		return
	}

	sess.mu.Lock()
	if sess.conn != conn {
		sess.mu.Unlock()
		return
	}
	release := sess.resetLocked()
	sess.mu.Unlock()

	release()
	slog.Warn("voice connection lost, session reset", "guildID", sess.guildID, "err", err)
}

// syncChannel follows the connection when the bot is moved to another room.
func (e *Engine) syncChannel(sess *Session, conn Connection) {
	ch := conn.ChannelID()
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.conn != conn || ch == "" || ch == sess.channelID {
		return
	}
	slog.Info("voice channel changed", "guildID", sess.guildID, "from", sess.channelID, "to", ch)
	sess.channelID = ch
}

var errWatchStopped = errors.New("watch stopped")

// awaitRecovery returns the first recovering state seen on events: signalling
// and connecting race, whichever arrives first wins.
func awaitRecovery(ctx context.Context, events <-chan ConnEvent, done <-chan struct{}) (ConnState, error) {
	for {
		select {
		case <-ctx.Done():
			return ConnDisconnected, ctx.Err()
		case <-done:
			return ConnDisconnected, errWatchStopped
		case ev, ok := <-events:
			if !ok {
				return ConnDisconnected, errors.New("connection events closed")
			}
			switch ev.State {
			case ConnSignalling, ConnConnecting, ConnReady:
				return ev.State, nil
			}
		}
	}
}

func notify(sink Sink, n Notice) {
	if sink != nil {
		sink.Notify(n)
	}
}
