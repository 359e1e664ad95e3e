package handlers

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSettingsCachesReads(t *testing.T) {
	store := newFakeStore()
	s := NewSettings(store)

	if d := s.DrainDelay(guild); d != 0 {
		t.Errorf("expected no delay before first read, got %v", d)
	}
	s.Get(context.Background(), guild)
	s.Get(context.Background(), guild)
	if store.reads != 1 {
		t.Errorf("expected one store read, got %d", store.reads)
	}
	if d := s.DrainDelay(guild); d != time.Minute {
		t.Errorf("expected 1m, got %v", d)
	}
}

func TestSettingsSetUpdatesCache(t *testing.T) {
	s := NewSettings(newFakeStore())
	if _, err := s.Set(context.Background(), guild, "seconds_wait_after_empty", 5); err != nil {
		t.Fatalf("set: %v", err)
	}
	if d := s.DrainDelay(guild); d != 5*time.Second {
		t.Errorf("expected 5s, got %v", d)
	}
	if _, err := s.Set(context.Background(), guild, "volume", 1); err == nil {
		t.Error("expected unknown setting error")
	}
}

func TestSettingsFallBackToDefaults(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("disk gone")
	s := NewSettings(store)
	got := s.Get(context.Background(), guild)
	if !got.AnnounceNowPlaying || got.SecondsWaitAfterEmpty != 60 {
		t.Errorf("expected defaults, got %+v", got)
	}
}

func TestDrainDelaySurvivesCacheExpiry(t *testing.T) {
	s := NewSettings(newFakeStore())
	if _, err := s.Set(context.Background(), guild, "seconds_wait_after_empty", 5); err != nil {
		t.Fatalf("set: %v", err)
	}
	s.cache.Delete(guild)

	if d := s.DrainDelay(guild); d != 5*time.Second {
		t.Errorf("expected 5s after expiry, got %v", d)
	}
	s.Get(context.Background(), guild)
	if d := s.DrainDelay(guild); d != 5*time.Second {
		t.Errorf("expected 5s after reload, got %v", d)
	}
}
