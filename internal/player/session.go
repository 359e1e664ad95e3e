package player

import (
	"context"
	"sync"
	"time"
)

// Session is the playback state of one guild. All fields are guarded by mu and only
// the Engine mutates them.
type Session struct {
	guildID string

	mu        sync.Mutex
	state     State
	backlog   []Track
	conn      Connection
	player    AudioPlayer
	channelID string
	isPlaying bool
	paused    bool
	sink      Sink

	// stream attached to player, owned by the engine until its terminal event
	stream AudioStream

	// single-flight guard for stream resolution of the head
	opening    bool
	openCancel context.CancelFunc

	drain    *drainTask
	drainSeq uint64

	// gen changes whenever the session is reset; in-flight work compares it
	// to detect that it was cancelled
	gen uint64

	watchDone chan struct{}
}

type drainTask struct {
	token uint64
	timer *time.Timer
}

func newSession(guildID string) *Session {
	return &Session{guildID: guildID, state: StateIdle}
}

func (s *Session) GuildID() string { return s.guildID }

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		GuildID:   s.guildID,
		State:     s.state,
		Backlog:   append([]Track(nil), s.backlog...),
		IsPlaying: s.isPlaying,
		Paused:    s.paused,
		Conn:      s.conn,
		ChannelID: s.channelID,
	}
	if s.conn != nil {
		if ch := s.conn.ChannelID(); ch != "" {
			snap.ChannelID = ch
		}
	}
	if s.isPlaying && s.player != nil {
		snap.Elapsed = s.player.Elapsed()
	}
	return snap
}

func (s *Session) cancelDrainLocked() {
	if s.drain != nil {
		s.drain.timer.Stop()
		s.drain = nil
	}
}

// resetLocked returns the session to Idle and hands back a function that releases the
// detached resources. The caller runs it after unlocking.
func (s *Session) resetLocked() (release func()) {
	s.gen++
	s.backlog = nil
	s.isPlaying = false
	s.paused = false
	if s.openCancel != nil {
		s.openCancel()
		s.openCancel = nil
	}
	s.cancelDrainLocked()
	if s.watchDone != nil {
		close(s.watchDone)
		s.watchDone = nil
	}

	p, st, conn := s.player, s.stream, s.conn
	s.player, s.stream, s.conn = nil, nil, nil
	s.channelID = ""
	s.state = StateIdle

	return func() {
		if p != nil {
			p.Stop()
		}
		if st != nil {
			_ = st.Close()
		}
		if conn != nil {
			_ = conn.Close()
		}
	}
}
