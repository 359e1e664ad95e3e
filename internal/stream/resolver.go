package stream

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	ytdlp "github.com/lrstanley/go-ytdlp"
	"github.com/sonroyaalmerol/kumaqueue/internal/player"
	"github.com/sonroyaalmerol/kumaqueue/internal/spotify"
	"github.com/sonroyaalmerol/kumaqueue/internal/utils"
	"golang.org/x/time/rate"
)

const audioFormat = "ba[acodec^=opus]/ba[ext=m4a]/bestaudio/best"

var installOnce sync.Once

// ensureInstalled downloads a yt-dlp binary on first use when none is on PATH.
func ensureInstalled(ctx context.Context) {
	installOnce.Do(func() {
		if _, err := ytdlp.Install(ctx, nil); err != nil {
			slog.Warn("yt-dlp install failed, relying on PATH", "err", err)
		}
	})
}

// extractFunc runs one yt-dlp metadata lookup.
type extractFunc func(ctx context.Context, target string) ([]*ytdlp.ExtractedInfo, error)

func ytdlpExtractor(cookies string) extractFunc {
	return func(ctx context.Context, target string) ([]*ytdlp.ExtractedInfo, error) {
		ensureInstalled(ctx)
		cmd := ytdlp.New().
			Format(audioFormat).
			NoPlaylist().
			NoCheckCertificates().
			DumpJSON()
		if cookies != "" {
			cmd = cmd.Cookies(cookies)
		}
		res, err := cmd.Run(ctx, target)
		if err != nil {
			return nil, err
		}
		return res.GetExtractedInfo()
	}
}

// SpotifyTracks looks up Spotify tracks by ID.
type SpotifyTracks interface {
	GetTrack(ctx context.Context, id string) (spotify.Track, error)
}

// Resolver turns a query or link into one Track. It never retries.
type Resolver struct {
	extract extractFunc
	limiter *rate.Limiter
	spotify SpotifyTracks
}

type ResolverOptions struct {
	CookiesPath string
	Rate        float64
	Burst       int
	// Spotify is optional; without it Spotify links are rejected.
	Spotify *spotify.Client
}

func NewResolver(opts ResolverOptions) *Resolver {
	r := &Resolver{
		extract: ytdlpExtractor(opts.CookiesPath),
		limiter: rate.NewLimiter(rate.Limit(opts.Rate), max(opts.Burst, 1)),
	}
	if opts.Spotify != nil {
		r.spotify = opts.Spotify
	}
	return r
}

func (r *Resolver) Resolve(ctx context.Context, query, requestedBy string) (player.Track, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return player.Track{}, player.ErrEmptyQuery
	}

	source := player.SourceYouTube
	artist := ""
	if spotify.IsLink(q) {
		st, err := r.spotifyTrack(ctx, q)
		if err != nil {
			return player.Track{}, err
		}
		q = st.SearchQuery()
		artist = st.Artist
		source = player.SourceSpotify
	}

	target := q
	if !isLink(q) {
		target = "ytsearch1:" + q
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return player.Track{}, player.NewResolutionError("lookup cancelled", err)
	}
	slog.Debug("resolving", "query", q, "target", target)
	infos, err := r.extract(ctx, target)
	if err != nil {
		return player.Track{}, player.NewResolutionError("lookup failed", err)
	}
	info := firstEntry(infos)
	if info == nil {
		return player.Track{}, player.ErrNoResults
	}

	t, err := trackFromInfo(info, requestedBy)
	if err != nil {
		return player.Track{}, err
	}
	if source == player.SourceSpotify {
		t.Source = source
		t.Artist = artist
	}
	return t, nil
}

func (r *Resolver) spotifyTrack(ctx context.Context, link string) (spotify.Track, error) {
	typ, id, err := spotify.ParseID(link)
	if err != nil {
		return spotify.Track{}, player.NewResolutionError("unrecognised Spotify link", err)
	}
	if typ != "track" {
		return spotify.Track{}, player.NewResolutionError("only Spotify track links are supported, got "+typ, nil)
	}
	if r.spotify == nil {
		return spotify.Track{}, player.NewResolutionError("Spotify is not configured", nil)
	}
	st, err := r.spotify.GetTrack(ctx, string(id))
	if err != nil {
		return spotify.Track{}, player.NewResolutionError("Spotify lookup failed", err)
	}
	return st, nil
}

// firstEntry unwraps search and playlist containers to their first item.
func firstEntry(infos []*ytdlp.ExtractedInfo) *ytdlp.ExtractedInfo {
	for _, info := range infos {
		if info == nil {
			continue
		}
		if info.Entries == nil {
			return info
		}
		for _, e := range info.Entries {
			if e != nil {
				return e
			}
		}
	}
	return nil
}

var errNoLocator = errors.New("no playable URL in metadata")

func trackFromInfo(info *ytdlp.ExtractedInfo, requestedBy string) (player.Track, error) {
	locator := s(info.WebpageURL)
	if locator == "" {
		locator = s(info.URL)
	}
	if locator == "" && info.ID != "" {
		locator = "https://www.youtube.com/watch?v=" + info.ID
	}
	if locator == "" {
		return player.Track{}, player.NewResolutionError("malformed metadata", errNoLocator)
	}

	title := s(info.Title)
	if title == "" {
		title = locator
	}

	length := int(f(info.Duration))
	label := player.LiveLabel
	if length > 0 && !b(info.IsLive) {
		label = utils.PrettyTime(length)
	} else {
		length = 0
	}

	thumb := ""
	for i := len(info.Thumbnails) - 1; i >= 0; i-- {
		if th := info.Thumbnails[i]; th != nil && th.URL != "" {
			thumb = th.URL
			break
		}
	}

	return player.Track{
		Title:         title,
		Locator:       locator,
		DurationLabel: label,
		Length:        length,
		Thumbnail:     thumb,
		RequestedBy:   requestedBy,
		Artist:        s(info.Uploader),
		Source:        sourceOf(locator),
	}, nil
}

func isLink(q string) bool {
	u, err := url.Parse(q)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func sourceOf(locator string) player.MediaSource {
	u, err := url.Parse(locator)
	if err != nil {
		return player.SourceDirect
	}
	host := strings.TrimPrefix(u.Host, "www.")
	switch host {
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtu.be":
		return player.SourceYouTube
	}
	return player.SourceDirect
}

func s(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func f(ptr *float64) float64 {
	if ptr == nil {
		return 0
	}
	return *ptr
}

func b(ptr *bool) bool {
	if ptr == nil {
		return false
	}
	return *ptr
}
