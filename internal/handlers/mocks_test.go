package handlers

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumaqueue/internal/autocomplete"
	"github.com/sonroyaalmerol/kumaqueue/internal/player"
	"github.com/sonroyaalmerol/kumaqueue/internal/repository"
)

type fakeVoice map[string]string

func (v fakeVoice) UserVoiceChannel(_, userID string) (string, bool) {
	ch, ok := v[userID]
	return ch, ok
}

type fakeResolver struct {
	mu      sync.Mutex
	calls   int
	failFor map[string]error
}

func (r *fakeResolver) Resolve(_ context.Context, query, requestedBy string) (player.Track, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if err := r.failFor[query]; err != nil {
		return player.Track{}, err
	}
	return player.Track{Title: query, Locator: "https://youtu.be/" + query, DurationLabel: "3:00", Length: 180, RequestedBy: requestedBy}, nil
}

func (r *fakeResolver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakeTransport struct {
	mu    sync.Mutex
	joins int
	err   error
}

func (t *fakeTransport) Join(_ context.Context, _, channelID string) (player.Connection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.joins++
	if t.err != nil {
		return nil, t.err
	}
	return &fakeConn{channelID: channelID, events: make(chan player.ConnEvent, 1)}, nil
}

func (t *fakeTransport) joinCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.joins
}

type fakeConn struct {
	channelID string
	events    chan player.ConnEvent
}

func (c *fakeConn) ChannelID() string                { return c.channelID }
func (c *fakeConn) CreatePlayer() player.AudioPlayer { return &fakePlayer{events: make(chan player.PlayerEvent, 4)} }
func (c *fakeConn) Events() <-chan player.ConnEvent  { return c.events }
func (c *fakeConn) Close() error                     { return nil }

// fakePlayer plays until stopped.
type fakePlayer struct {
	mu     sync.Mutex
	cur    player.AudioStream
	events chan player.PlayerEvent
}

func (p *fakePlayer) Play(s player.AudioStream) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cur = s
	return nil
}

func (p *fakePlayer) Pause()   {}
func (p *fakePlayer) Unpause() {}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	cur := p.cur
	p.cur = nil
	p.mu.Unlock()
	if cur != nil {
		p.events <- player.PlayerEvent{Kind: player.PlayerIdle, Stream: cur}
	}
}

func (p *fakePlayer) Elapsed() time.Duration             { return 0 }
func (p *fakePlayer) Events() <-chan player.PlayerEvent { return p.events }

type fakeStream struct {
	title string
}

func (*fakeStream) ReadFrame() ([]byte, error) { return nil, io.EOF }
func (*fakeStream) Close() error               { return nil }

type fakeProvider struct{}

func (fakeProvider) Open(_ context.Context, t player.Track) (player.AudioStream, error) {
	return &fakeStream{title: t.Title}, nil
}

type fakeStore struct {
	mu    sync.Mutex
	rows  map[string]repository.Settings
	reads int
	err   error
}

func newFakeStore() *fakeStore { return &fakeStore{rows: map[string]repository.Settings{}} }

func (s *fakeStore) GetSettings(_ context.Context, guild string) (repository.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.err != nil {
		return repository.Settings{}, s.err
	}
	if v, ok := s.rows[guild]; ok {
		return v, nil
	}
	return repository.Defaults(guild), nil
}

func (s *fakeStore) Set(_ context.Context, guild, key string, value any) (repository.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.rows[guild]
	if !ok {
		v = repository.Defaults(guild)
	}
	switch key {
	case "seconds_wait_after_empty":
		v.SecondsWaitAfterEmpty = value.(int)
	case "leave_if_no_listeners":
		v.LeaveIfNoListeners = value.(bool)
	case "announce_now_playing":
		v.AnnounceNowPlaying = value.(bool)
	default:
		return repository.Settings{}, repository.ErrUnknownSetting
	}
	s.rows[guild] = v
	return v, nil
}

type sentEmbed struct {
	channelID string
	embed     *discordgo.MessageEmbed
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentEmbed
}

func (f *fakeSender) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEmbed{channelID, embed})
	return &discordgo.Message{}, nil
}

func (f *fakeSender) titles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		out = append(out, s.embed.Title)
	}
	return out
}

type fakeSuggester struct{}

func (fakeSuggester) Suggest(context.Context, string, int) []autocomplete.Suggestion { return nil }

type nopSinks struct{}

func (nopSinks) For(string) player.Sink { return nil }

var errLookup = errors.New("lookup down")
