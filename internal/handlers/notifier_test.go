package handlers

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/sonroyaalmerol/kumaqueue/internal/player"
)

func waitForSent(t *testing.T, f *fakeSender, n int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		titles := f.titles()
		if len(titles) >= n {
			return titles
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d notices, got %v", n, titles)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNotifierDelivers(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, NewSettings(newFakeStore()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	sink := n.For("text")
	tr := player.Track{Title: "a", Locator: "https://youtu.be/a"}
	sink.Notify(player.Notice{Kind: player.NoticeNowPlaying, GuildID: guild, Track: tr})
	sink.Notify(player.Notice{Kind: player.NoticeTrackFailed, GuildID: guild, Track: tr, Err: errors.New("boom")})
	sink.Notify(player.Notice{Kind: player.NoticeQueueEnded, GuildID: guild})

	got := waitForSent(t, sender, 3)
	want := []string{"Now Playing", "Track failed", "Queue finished"}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if sender.sent[0].channelID != "text" {
		t.Errorf("expected channel text, got %s", sender.sent[0].channelID)
	}
}

func TestNotifierHonoursAnnounceSetting(t *testing.T) {
	store := newFakeStore()
	settings := NewSettings(store)
	if _, err := settings.Set(context.Background(), guild, "announce_now_playing", false); err != nil {
		t.Fatalf("set: %v", err)
	}

	sender := &fakeSender{}
	n := NewNotifier(sender, settings)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	sink := n.For("text")
	sink.Notify(player.Notice{Kind: player.NoticeNowPlaying, GuildID: guild})
	sink.Notify(player.Notice{Kind: player.NoticeQueueEnded, GuildID: guild})

	got := waitForSent(t, sender, 1)
	if len(got) != 1 || got[0] != "Queue finished" {
		t.Errorf("expected only the queue finished notice, got %v", got)
	}
}

func TestSinkDropsWhenFull(t *testing.T) {
	n := NewNotifier(&fakeSender{}, nil)
	sink := n.For("text")
	for range noticeBacklog + 5 {
		sink.Notify(player.Notice{Kind: player.NoticeQueueEnded})
	}
	if len(n.queue) != noticeBacklog {
		t.Errorf("expected queue capped at %d, got %d", noticeBacklog, len(n.queue))
	}
}
