package player

import (
	"context"
	"time"
)

// Transport joins voice rooms.
type Transport interface {
	Join(ctx context.Context, guildID, channelID string) (Connection, error)
}

// Connection is a live voice room link. Events must be buffered and never block the sender.
type Connection interface {
	ChannelID() string
	CreatePlayer() AudioPlayer
	Events() <-chan ConnEvent
	Close() error
}

// AudioPlayer drives one AudioStream at a time into its connection.
// Every Play is answered by exactly one PlayerEvent for that stream, including after Stop.
type AudioPlayer interface {
	Play(stream AudioStream) error
	Pause()
	Unpause()
	Stop()
	Elapsed() time.Duration
	Events() <-chan PlayerEvent
}

// AudioStream yields encoded audio frames; ReadFrame returns io.EOF at the end.
type AudioStream interface {
	ReadFrame() ([]byte, error)
	Close() error
}

type StreamProvider interface {
	Open(ctx context.Context, t Track) (AudioStream, error)
}

type Resolver interface {
	Resolve(ctx context.Context, query, requestedBy string) (Track, error)
}

// Sink receives status notices for a session. Implementations must not call back into the engine.
type Sink interface {
	Notify(n Notice)
}
