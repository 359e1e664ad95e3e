package repository

import (
	"database/sql"
	"time"
)

type Repo struct {
	db *sql.DB
}

// Settings are the per-guild knobs editable through /config.
type Settings struct {
	GuildID               string
	SecondsWaitAfterEmpty int
	LeaveIfNoListeners    bool
	AnnounceNowPlaying    bool
}

// DrainDelay is how long an idle voice connection is held. Zero means the process default.
func (s Settings) DrainDelay() time.Duration {
	if s.SecondsWaitAfterEmpty <= 0 {
		return 0
	}
	return time.Duration(s.SecondsWaitAfterEmpty) * time.Second
}

// Defaults mirrors the column defaults for guilds without a row.
func Defaults(guild string) Settings {
	return Settings{
		GuildID:               guild,
		SecondsWaitAfterEmpty: 60,
		LeaveIfNoListeners:    true,
		AnnounceNowPlaying:    true,
	}
}
