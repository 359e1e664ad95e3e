package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownSetting = errors.New("unknown setting")

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

// GetSettings returns the stored settings, or the defaults when the guild has none.
func (r *Repo) GetSettings(ctx context.Context, guild string) (Settings, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT guild_id, seconds_wait_after_empty, leave_if_no_listeners, announce_now_playing
	FROM settings WHERE guild_id = ?`, guild)

	var s Settings
	var leave, announce int
	if err := row.Scan(&s.GuildID, &s.SecondsWaitAfterEmpty, &leave, &announce); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Defaults(guild), nil
		}
		return Settings{}, err
	}
	s.LeaveIfNoListeners = leave != 0
	s.AnnounceNowPlaying = announce != 0
	return s, nil
}

func (r *Repo) UpsertSettings(ctx context.Context, s Settings) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings(guild_id, seconds_wait_after_empty, leave_if_no_listeners, announce_now_playing)
		VALUES (?,?,?,?)
		ON CONFLICT(guild_id) DO UPDATE SET
		  seconds_wait_after_empty=excluded.seconds_wait_after_empty,
		  leave_if_no_listeners=excluded.leave_if_no_listeners,
		  announce_now_playing=excluded.announce_now_playing,
		  updated_at=strftime('%s','now')`,
		s.GuildID, s.SecondsWaitAfterEmpty, boolToInt(s.LeaveIfNoListeners), boolToInt(s.AnnounceNowPlaying),
	)
	return err
}

// Set updates one setting by its column name and returns the result.
func (r *Repo) Set(ctx context.Context, guild, key string, value any) (Settings, error) {
	s, err := r.GetSettings(ctx, guild)
	if err != nil {
		return Settings{}, err
	}
	switch strings.ToLower(key) {
	case "seconds_wait_after_empty":
		v, ok := value.(int)
		if !ok || v < 0 {
			return Settings{}, fmt.Errorf("%s must be a non-negative integer", key)
		}
		s.SecondsWaitAfterEmpty = v
	case "leave_if_no_listeners":
		v, ok := value.(bool)
		if !ok {
			return Settings{}, fmt.Errorf("%s must be true or false", key)
		}
		s.LeaveIfNoListeners = v
	case "announce_now_playing":
		v, ok := value.(bool)
		if !ok {
			return Settings{}, fmt.Errorf("%s must be true or false", key)
		}
		s.AnnounceNowPlaying = v
	default:
		return Settings{}, fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	if err := r.UpsertSettings(ctx, s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
