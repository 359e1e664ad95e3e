package ui

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sonroyaalmerol/kumaqueue/internal/player"
)

func tr(title string) player.Track {
	return player.Track{Title: title, Locator: "https://youtu.be/" + title, DurationLabel: "3:00", Length: 180, RequestedBy: "42"}
}

func TestQueueText(t *testing.T) {
	l := player.Listing{Tracks: []player.Track{tr("a"), tr("b"), tr("c")}, Remaining: 4, Total: 7}

	got := QueueText(l, true)
	lines := strings.Split(got, "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), got)
	}
	if !strings.HasPrefix(lines[0], "🎵 [a]") {
		t.Errorf("expected playing marker on head, got %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "`#2` [b]") {
		t.Errorf("expected #2 on second line, got %q", lines[1])
	}
	if lines[3] != "...and 4 more" {
		t.Errorf("expected remainder line, got %q", lines[3])
	}

	if idle := QueueText(l, false); !strings.HasPrefix(idle, "`#1` [a]") {
		t.Errorf("expected numbered head when not playing, got %q", idle)
	}
}

func TestQueueTextFitsEmbed(t *testing.T) {
	var tracks []player.Track
	for i := range 200 {
		tracks = append(tracks, tr(fmt.Sprintf("%s-%d", strings.Repeat("x", 60), i)))
	}
	got := QueueText(player.Listing{Tracks: tracks, Total: 200}, true)
	if len(got) > maxDesc {
		t.Errorf("expected description within %d bytes, got %d", maxDesc, len(got))
	}
	if !strings.Contains(got, "more") {
		t.Error("expected a remainder line when tracks are cut")
	}
}

func TestQueueEmbed(t *testing.T) {
	e := QueueEmbed(player.Listing{Tracks: []player.Track{tr("a")}, Total: 1}, true)
	if e.Footer == nil || e.Footer.Text != "Total: 1 song" {
		t.Errorf("unexpected footer %+v", e.Footer)
	}
	empty := QueueEmbed(player.Listing{}, false)
	if empty.Description != "The queue is empty." {
		t.Errorf("unexpected empty description %q", empty.Description)
	}
}

func TestPlayingEmbed(t *testing.T) {
	snap := player.Snapshot{IsPlaying: true, Backlog: []player.Track{tr("a")}, Elapsed: 90 * time.Second}
	e := PlayingEmbed(snap)
	if e.Title != "Now Playing" {
		t.Errorf("expected now playing, got %q", e.Title)
	}
	if !strings.Contains(e.Description, "`[ 1:30/3:00 ]`") {
		t.Errorf("expected elapsed/length, got %q", e.Description)
	}

	snap.Paused = true
	if e := PlayingEmbed(snap); e.Title != "Paused" {
		t.Errorf("expected paused title, got %q", e.Title)
	}

	live := tr("radio")
	live.DurationLabel, live.Length = player.LiveLabel, 0
	snap = player.Snapshot{IsPlaying: true, Backlog: []player.Track{live}}
	if e := PlayingEmbed(snap); !strings.Contains(e.Description, "`[ LIVE ]`") {
		t.Errorf("expected live label, got %q", e.Description)
	}

	if e := PlayingEmbed(player.Snapshot{}); e.Title != "Nothing Playing" {
		t.Errorf("expected nothing playing, got %q", e.Title)
	}
}

func TestQueuedEmbed(t *testing.T) {
	e := QueuedEmbed(player.EnqueueResult{Track: tr("b"), Position: 3})
	if !strings.Contains(e.Description, "Position: #3") {
		t.Errorf("expected position, got %q", e.Description)
	}
}

func TestTrackFailedEmbed(t *testing.T) {
	e := TrackFailedEmbed(tr("a"), errors.New(strings.Repeat("e", 500)))
	if !strings.Contains(e.Description, "…") {
		t.Error("expected long error to be truncated")
	}
}

func TestTrackLinkEscapes(t *testing.T) {
	if got := trackLink(tr("a_b*c")); got != `[a\_b\*c](https://youtu.be/a_b*c)` {
		t.Errorf("unexpected link %q", got)
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		progress float64
		dot      int
	}{
		{0, 0},
		{0.5, 5},
		{1, 9},
		{-1, 0},
		{2, 9},
	}
	for _, tt := range tests {
		bar := []rune(ProgressBar(10, tt.progress))
		if len(bar) != 10 || bar[tt.dot] != '🔘' {
			t.Errorf("progress %v: expected dot at %d, got %q", tt.progress, tt.dot, string(bar))
		}
	}
	if ProgressBar(0, 0.5) != "" {
		t.Error("expected empty bar for zero width")
	}
}
