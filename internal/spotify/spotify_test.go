package spotify

import (
	"errors"
	"testing"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		in      string
		typ     string
		id      string
		wantErr error
	}{
		{"spotify:track:abc123", "track", "abc123", nil},
		{"https://open.spotify.com/track/abc123?si=x", "track", "abc123", nil},
		{"https://open.spotify.com/intl-de/album/xyz", "album", "xyz", nil},
		{"https://open.spotify.com/playlist/p1", "playlist", "p1", nil},
		{"https://open.spotify.com/show/s1", "", "", ErrUnsupported},
		{"https://www.youtube.com/watch?v=1", "", "", ErrNotSpotify},
		{"spotify:track", "", "", ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			typ, id, err := ParseID(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if typ != tt.typ || string(id) != tt.id {
				t.Errorf("expected %s/%s, got %s/%s", tt.typ, tt.id, typ, id)
			}
		})
	}
}

func TestIsLink(t *testing.T) {
	if !IsLink("spotify:track:1") || !IsLink("https://open.spotify.com/track/1") {
		t.Error("expected spotify links to be recognised")
	}
	if IsLink("never gonna give you up") {
		t.Error("expected plain query not to be a link")
	}
}

func TestSearchQuery(t *testing.T) {
	tr := Track{Name: "Song", Artist: "Band"}
	if got := tr.SearchQuery(); got != "Song Band" {
		t.Errorf("expected %q, got %q", "Song Band", got)
	}
}
