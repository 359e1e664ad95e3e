package stream

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	ytdlp "github.com/lrstanley/go-ytdlp"
	"github.com/sonroyaalmerol/kumaqueue/internal/cache"
	"github.com/sonroyaalmerol/kumaqueue/internal/player"
	"github.com/sonroyaalmerol/kumaqueue/internal/utils"
	"golang.org/x/time/rate"
)

type ProviderOptions struct {
	FFmpegPath       string
	Volume           float64
	ReconnectRetries int
	MediaURLTTL      time.Duration
	CookiesPath      string
	Rate             float64
	Burst            int
}

// Provider opens Tracks as Opus frame streams: yt-dlp finds the media URL,
// ffmpeg decodes it to 48kHz stereo PCM and libopus encodes 20ms frames.
type Provider struct {
	opts    ProviderOptions
	extract extractFunc
	limiter *rate.Limiter
	urls    *cache.Cache[string]
	// start launches the transcoder; replaced in tests
	start func(ctx context.Context, name string, args ...string) (io.ReadCloser, *exec.Cmd, error)
}

func NewProvider(opts ProviderOptions) *Provider {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	return &Provider{
		opts:    opts,
		extract: ytdlpExtractor(opts.CookiesPath),
		limiter: rate.NewLimiter(rate.Limit(opts.Rate), max(opts.Burst, 1)),
		urls:    cache.New[string](opts.MediaURLTTL),
		start:   startProcess,
	}
}

func (p *Provider) Open(ctx context.Context, t player.Track) (player.AudioStream, error) {
	mediaURL, err := p.mediaURL(ctx, t)
	if err != nil {
		return nil, err
	}

	args := p.ffmpegArgs(mediaURL, t.Source)
	// the stream outlives ctx, which only bounds the open
	procCtx, cancel := context.WithCancel(context.Background())
	stdout, cmd, err := p.start(procCtx, p.opts.FFmpegPath, args...)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	st := &pcmStream{
		cmd:    cmd,
		stdout: stdout,
		r:      bufio.NewReaderSize(stdout, 64*1024),
		cancel: cancel,
		pcm:    make([]byte, FrameBytes),
	}
	if cmd != nil {
		if buf, ok := cmd.Stderr.(*tailBuffer); ok {
			st.stderr = buf
		}
	}

	// wait for the first PCM bytes so a dead link fails here rather than mid-play
	peeked := make(chan error, 1)
	go func() {
		_, err := st.r.Peek(1)
		peeked <- err
	}()
	select {
	case <-ctx.Done():
		_ = st.Close()
		return nil, ctx.Err()
	case err := <-peeked:
		if err != nil {
			p.urls.Delete(t.Locator)
			werr := st.wait()
			_ = st.Close()
			if werr != nil {
				return nil, werr
			}
			return nil, fmt.Errorf("ffmpeg produced no audio: %w", err)
		}
	}

	enc, err := NewEncoder()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	st.enc = enc
	slog.Debug("stream opened", "title", t.Title, "locator", t.Locator)
	return st, nil
}

func (p *Provider) mediaURL(ctx context.Context, t player.Track) (string, error) {
	if u, ok := p.urls.Get(t.Locator); ok {
		return u, nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	infos, err := p.extract(ctx, t.Locator)
	if err != nil {
		return "", fmt.Errorf("yt-dlp: %w", err)
	}
	info := firstEntry(infos)
	if info == nil {
		return "", errors.New("yt-dlp returned no media")
	}
	u := pickMediaURL(info)
	if u == "" {
		return "", errNoLocator
	}
	// live manifests expire quickly
	if !b(info.IsLive) {
		p.urls.Set(t.Locator, u)
	}
	return u, nil
}

// pickMediaURL prefers the requested audio format, then the top-level URL, then any format.
func pickMediaURL(info *ytdlp.ExtractedInfo) string {
	for _, rf := range info.RequestedFormats {
		if rf != nil && strings.HasPrefix(rf.URL, "http") {
			return rf.URL
		}
	}
	if u := s(info.URL); strings.HasPrefix(u, "http") {
		return u
	}
	for i := len(info.Formats) - 1; i >= 0; i-- {
		if fm := info.Formats[i]; fm != nil && strings.HasPrefix(fm.URL, "http") {
			return fm.URL
		}
	}
	return ""
}

func (p *Provider) ffmpegArgs(mediaURL string, src player.MediaSource) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_on_network_error", "1",
		"-reconnect_delay_max", "5",
	}
	if p.opts.ReconnectRetries > 0 {
		args = append(args, "-reconnect_max_retries", strconv.Itoa(p.opts.ReconnectRetries))
	}
	if src != player.SourceDirect {
		args = append(args, "-headers", utils.BuildFFmpegHeaders(nil))
	}
	args = append(args,
		"-i", mediaURL,
		"-vn",
		"-af", "volume="+strconv.FormatFloat(p.opts.Volume, 'f', -1, 64),
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(sampleRate),
		"-f", "s16le",
		"pipe:1",
	)
	return args
}

func startProcess(ctx context.Context, name string, args ...string) (io.ReadCloser, *exec.Cmd, error) {
	cmd := utils.ExecWith(ctx, name, args...)
	cmd.Stderr = &tailBuffer{max: 2048}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}
	return stdout, cmd, nil
}

// pcmStream reads ffmpeg's PCM and hands out Opus frames.
type pcmStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	r      *bufio.Reader
	cancel context.CancelFunc
	stderr *tailBuffer
	pcm    []byte

	mu      sync.Mutex
	enc     *Encoder
	pending [][]byte
	eof     bool
	closed  bool

	waitOnce sync.Once
	waitErr  error
}

func (st *pcmStream) ReadFrame() ([]byte, error) {
	for {
		st.mu.Lock()
		if st.closed {
			st.mu.Unlock()
			return nil, io.ErrClosedPipe
		}
		if len(st.pending) > 0 {
			f := st.pending[0]
			st.pending = st.pending[1:]
			st.mu.Unlock()
			return f, nil
		}
		if st.eof {
			st.mu.Unlock()
			if err := st.wait(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		st.mu.Unlock()

		// read outside the lock so Close can kill ffmpeg to unblock it
		n, err := io.ReadFull(st.r, st.pcm)

		st.mu.Lock()
		if st.closed {
			st.mu.Unlock()
			return nil, io.ErrClosedPipe
		}
		switch {
		case err == nil:
			pkts, eerr := st.enc.Encode(st.pcm)
			if eerr != nil {
				st.mu.Unlock()
				return nil, eerr
			}
			st.pending = append(st.pending, pkts...)
		case errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF):
			if n > 0 {
				clear(st.pcm[n:])
				if pkts, eerr := st.enc.Encode(st.pcm); eerr == nil {
					st.pending = append(st.pending, pkts...)
				}
			}
			if pkts, ferr := st.enc.Flush(); ferr == nil {
				st.pending = append(st.pending, pkts...)
			}
			st.eof = true
		default:
			st.mu.Unlock()
			return nil, fmt.Errorf("read pcm: %w", err)
		}
		st.mu.Unlock()
	}
}

// wait reaps ffmpeg and reports a non-zero exit with its stderr tail.
func (st *pcmStream) wait() error {
	st.waitOnce.Do(func() {
		if st.cmd == nil {
			return
		}
		if err := st.cmd.Wait(); err != nil {
			msg := ""
			if st.stderr != nil {
				msg = strings.TrimSpace(st.stderr.String())
			}
			if msg != "" {
				st.waitErr = fmt.Errorf("ffmpeg: %w: %s", err, msg)
			} else {
				st.waitErr = fmt.Errorf("ffmpeg: %w", err)
			}
		}
	})
	return st.waitErr
}

func (st *pcmStream) Close() error {
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return nil
	}
	st.closed = true
	enc := st.enc
	st.enc = nil
	st.pending = nil
	st.mu.Unlock()

	st.cancel()
	_ = st.stdout.Close()
	_ = st.wait()
	if enc != nil {
		enc.Close()
	}
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - t.max; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}
