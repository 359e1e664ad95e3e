package spotify

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

var (
	ErrNotSpotify  = errors.New("not a spotify link")
	ErrUnsupported = errors.New("unsupported spotify link")
)

// Track is the part of a Spotify track needed to find it on YouTube.
type Track struct {
	ID     string
	Name   string
	Artist string
}

// SearchQuery is the free-text query used to find a playable copy of t.
func (t Track) SearchQuery() string {
	return strings.TrimSpace(t.Name + " " + t.Artist)
}

type Client struct {
	raw *spotify.Client
}

func NewClientCredentials(clientID, clientSecret string) *Client {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	httpClient := cfg.Client(context.Background())
	return &Client{raw: spotify.New(httpClient, spotify.WithRetry(true))}
}

// IsLink reports whether raw looks like a Spotify URI or open.spotify.com URL.
func IsLink(raw string) bool {
	if strings.HasPrefix(raw, "spotify:") {
		return true
	}
	u, err := url.Parse(raw)
	return err == nil && (u.Host == "open.spotify.com" || u.Host == "www.open.spotify.com")
}

// ParseID splits a Spotify URI or URL into its kind (track, album, playlist, artist) and ID.
func ParseID(raw string) (typ string, id spotify.ID, err error) {
	if strings.HasPrefix(raw, "spotify:") {
		parts := strings.Split(raw, ":")
		if len(parts) == 3 && parts[2] != "" {
			return parts[1], spotify.ID(parts[2]), nil
		}
		return "", "", ErrUnsupported
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Host != "open.spotify.com" && u.Host != "www.open.spotify.com" {
		return "", "", ErrNotSpotify
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	// localized links look like /intl-de/track/<id>
	if len(parts) > 0 && strings.HasPrefix(parts[0], "intl-") {
		parts = parts[1:]
	}
	if len(parts) < 2 || parts[1] == "" {
		return "", "", ErrUnsupported
	}
	switch parts[0] {
	case "album", "playlist", "track", "artist":
		return parts[0], spotify.ID(parts[1]), nil
	}
	return "", "", ErrUnsupported
}

func (c *Client) GetTrack(ctx context.Context, id string) (Track, error) {
	t, err := c.raw.GetTrack(ctx, spotify.ID(id))
	if err != nil {
		return Track{}, err
	}
	return fromFull(t), nil
}

func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]Track, error) {
	if limit <= 0 {
		limit = 5
	}
	res, err := c.raw.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		return nil, err
	}
	if res.Tracks == nil {
		return nil, nil
	}
	out := make([]Track, 0, len(res.Tracks.Tracks))
	for i := range res.Tracks.Tracks {
		if len(out) >= limit {
			break
		}
		out = append(out, fromFull(&res.Tracks.Tracks[i]))
	}
	return out, nil
}

func fromFull(t *spotify.FullTrack) Track {
	artist := ""
	if len(t.Artists) > 0 {
		artist = t.Artists[0].Name
	}
	return Track{ID: t.ID.String(), Name: t.Name, Artist: artist}
}
