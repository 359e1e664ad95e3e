package player

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type mockTransport struct {
	mu      sync.Mutex
	joinErr error
	conns   []*mockConn
	// gate holds Join until closed
	gate    chan struct{}
	joining chan struct{}
}

func (t *mockTransport) Join(ctx context.Context, guildID, channelID string) (Connection, error) {
	t.mu.Lock()
	gate, joining := t.gate, t.joining
	t.mu.Unlock()
	if joining != nil {
		close(joining)
	}
	if gate != nil {
		<-gate
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.joinErr != nil {
		return nil, t.joinErr
	}
	c := &mockConn{
		channelID: channelID,
		events:    make(chan ConnEvent, 8),
		player:    &mockPlayer{events: make(chan PlayerEvent, 8)},
	}
	t.conns = append(t.conns, c)
	return c, nil
}

func (t *mockTransport) joins() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

func (t *mockTransport) conn(i int) *mockConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conns[i]
}

type mockConn struct {
	mu        sync.Mutex
	channelID string
	events    chan ConnEvent
	player    *mockPlayer
	closed    atomic.Bool
}

func (c *mockConn) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

// move simulates the bot being dragged into another room.
func (c *mockConn) move(channelID string) {
	c.mu.Lock()
	c.channelID = channelID
	c.mu.Unlock()
	c.emit(ConnConnecting)
}

func (c *mockConn) CreatePlayer() AudioPlayer { return c.player }
func (c *mockConn) Events() <-chan ConnEvent { return c.events }
func (c *mockConn) Close() error { c.closed.Store(true); return nil }
func (c *mockConn) emit(s ConnState) { c.events <- ConnEvent{State: s, At: time.Now()} }

type mockPlayer struct {
	mu      sync.Mutex
	events  chan PlayerEvent
	current AudioStream
	plays   []*mockStream
	paused  bool
	playErr error
}

func (p *mockPlayer) Play(s AudioStream) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playErr != nil {
		return p.playErr
	}
	p.current = s
	p.paused = false
	p.plays = append(p.plays, s.(*mockStream))
	return nil
}

func (p *mockPlayer) Pause() { p.mu.Lock(); p.paused = true; p.mu.Unlock() }
func (p *mockPlayer) Unpause() { p.mu.Lock(); p.paused = false; p.mu.Unlock() }

func (p *mockPlayer) Stop() { p.end(PlayerIdle, nil) }

func (p *mockPlayer) Elapsed() time.Duration { return 0 }

func (p *mockPlayer) Events() <-chan PlayerEvent { return p.events }

// end emits the terminal event of the current stream, as if it ran out or failed.
func (p *mockPlayer) end(kind PlayerEventKind, err error) {
	p.mu.Lock()
	cur := p.current
	p.current = nil
	p.mu.Unlock()
	if cur != nil {
		p.events <- PlayerEvent{Kind: kind, Stream: cur, Err: err}
	}
}

func (p *mockPlayer) titles() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.plays))
	for i, s := range p.plays {
		out[i] = s.track.Title
	}
	return out
}

func (p *mockPlayer) isPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

type mockStream struct {
	track  Track
	closed atomic.Bool
}

func (s *mockStream) ReadFrame() ([]byte, error) { return nil, io.EOF }
func (s *mockStream) Close() error { s.closed.Store(true); return nil }

var errBroken = errors.New("broken upstream")

type mockProvider struct {
	mu      sync.Mutex
	fail    map[string]bool
	gates   map[string]chan struct{}
	opened  []*mockStream
	active  int
	maxSeen int
	delay   time.Duration
}

func (m *mockProvider) Open(ctx context.Context, t Track) (AudioStream, error) {
	m.mu.Lock()
	m.active++
	if m.active > m.maxSeen {
		m.maxSeen = m.active
	}
	gate := m.gates[t.Title]
	fail := m.fail[t.Title]
	delay := m.delay
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.active--
		m.mu.Unlock()
	}()

	if gate != nil {
		<-gate
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		return nil, errBroken
	}
	s := &mockStream{track: t}
	m.mu.Lock()
	m.opened = append(m.opened, s)
	m.mu.Unlock()
	return s, nil
}

func (m *mockProvider) isOpening() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active > 0
}

func (m *mockProvider) maxConcurrent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxSeen
}

type recordingSink struct {
	mu      sync.Mutex
	notices []Notice
}

func (s *recordingSink) Notify(n Notice) {
	s.mu.Lock()
	s.notices = append(s.notices, n)
	s.mu.Unlock()
}

func (s *recordingSink) count(kind NoticeKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, x := range s.notices {
		if x.Kind == kind {
			n++
		}
	}
	return n
}

func track(title string) Track {
	return Track{Title: title, Locator: "https://example.com/" + title, DurationLabel: "3:00", Length: 180}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
