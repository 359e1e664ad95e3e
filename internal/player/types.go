package player

import "time"

// LiveLabel is the duration label of tracks without a known length.
const LiveLabel = "LIVE"

type MediaSource int

const (
	SourceYouTube MediaSource = iota
	SourceSpotify
	SourceDirect
)

func (s MediaSource) String() string {
	switch s {
	case SourceYouTube:
		return "YouTube"
	case SourceSpotify:
		return "Spotify"
	default:
		return "Direct"
	}
}

// Track is a resolved, playable descriptor. It is never mutated after resolution.
type Track struct {
	Title         string
	Locator       string // page URL or playable identifier handed to the stream provider
	DurationLabel string // "m:ss", "h:mm:ss" or LiveLabel
	Length        int    // seconds, 0 when live
	Thumbnail     string
	RequestedBy   string
	Artist        string
	Source        MediaSource
}

func (t Track) IsLive() bool { return t.DurationLabel == LiveLabel }

type State int

const (
	StateIdle State = iota
	StateJoining
	StatePlaying
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateJoining:
		return "joining"
	case StatePlaying:
		return "playing"
	case StateDraining:
		return "draining"
	}
	return "unknown"
}

type ConnState int

const (
	ConnReady ConnState = iota
	ConnDisconnected
	ConnSignalling
	ConnConnecting
)

func (s ConnState) String() string {
	switch s {
	case ConnReady:
		return "ready"
	case ConnDisconnected:
		return "disconnected"
	case ConnSignalling:
		return "signalling"
	case ConnConnecting:
		return "connecting"
	}
	return "unknown"
}

type ConnEvent struct {
	State ConnState
	At    time.Time
}

type PlayerEventKind int

const (
	PlayerIdle PlayerEventKind = iota
	PlayerError
)

// PlayerEvent reports the end of one stream. Stream identifies which attach it belongs to.
type PlayerEvent struct {
	Kind   PlayerEventKind
	Stream AudioStream
	Err    error
}

type NoticeKind int

const (
	NoticeNowPlaying NoticeKind = iota
	NoticeTrackFailed
	NoticeQueueEnded
)

// Notice is a status message for a session's output sink.
type Notice struct {
	Kind    NoticeKind
	GuildID string
	Track   Track
	Err     error
}

// EnqueueResult is the outcome of a successful enqueue.
// Position is 1-based in the backlog; Started means this call began playback of the head.
type EnqueueResult struct {
	Track    Track
	Position int
	Started  bool
}

// Listing is a read-only projection of a backlog.
type Listing struct {
	Tracks    []Track
	Remaining int
	Total     int
}

// Snapshot is a copy of session state for callers outside the engine.
type Snapshot struct {
	GuildID   string
	State     State
	Backlog   []Track
	IsPlaying bool
	Paused    bool
	Conn      Connection
	ChannelID string
	Elapsed   time.Duration
}

func (s Snapshot) Current() (Track, bool) {
	if !s.IsPlaying || len(s.Backlog) == 0 {
		return Track{}, false
	}
	return s.Backlog[0], true
}
