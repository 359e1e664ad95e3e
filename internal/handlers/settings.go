package handlers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sonroyaalmerol/kumaqueue/internal/cache"
	"github.com/sonroyaalmerol/kumaqueue/internal/repository"
)

const settingsTTL = 24 * time.Hour

type settingsStore interface {
	GetSettings(ctx context.Context, guild string) (repository.Settings, error)
	Set(ctx context.Context, guild, key string, value any) (repository.Settings, error)
}

// Settings fronts the settings table with an in-memory copy per guild.
type Settings struct {
	store settingsStore
	cache *cache.Cache[repository.Settings]

	// delays outlives cache entries so a guild override survives expiry
	mu     sync.Mutex
	delays map[string]time.Duration
}

func NewSettings(store settingsStore) *Settings {
	return &Settings{
		store:  store,
		cache:  cache.New[repository.Settings](settingsTTL),
		delays: map[string]time.Duration{},
	}
}

func (s *Settings) remember(guild string, v repository.Settings) {
	s.cache.Set(guild, v)
	s.mu.Lock()
	s.delays[guild] = v.DrainDelay()
	s.mu.Unlock()
}

// Get never fails: a read error falls back to the defaults.
func (s *Settings) Get(ctx context.Context, guild string) repository.Settings {
	if v, ok := s.cache.Get(guild); ok {
		return v
	}
	v, err := s.store.GetSettings(ctx, guild)
	if err != nil {
		slog.Warn("get settings failed", "guildID", guild, "err", err)
		return repository.Defaults(guild)
	}
	s.remember(guild, v)
	return v
}

func (s *Settings) Set(ctx context.Context, guild, key string, value any) (repository.Settings, error) {
	v, err := s.store.Set(ctx, guild, key, value)
	if err != nil {
		return repository.Settings{}, err
	}
	s.remember(guild, v)
	slog.Info("config updated", "guildID", guild, "key", key, "value", value)
	return v, nil
}

// DrainDelay only reads memory; the engine calls it with a session locked.
// Zero means the guild was never loaded and the engine default applies.
func (s *Settings) DrainDelay(guild string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delays[guild]
}
