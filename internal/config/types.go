package config

import "time"

type Config struct {
	DiscordToken          string  `env:"DISCORD_TOKEN"`
	Prefix                string  `env:"PREFIX" envDefault:"!"`
	SpotifyClientID       string  `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret   string  `env:"SPOTIFY_CLIENT_SECRET"`
	DataDir               string  `env:"DATA_DIR" envDefault:"./data"`
	BotStatus             string  `env:"BOT_STATUS" envDefault:"online"` // online/dnd/idle
	BotActivity           string  `env:"BOT_ACTIVITY" envDefault:"music"`
	RegisterCommandsOnBot bool    `env:"REGISTER_COMMANDS_ON_BOT" envDefault:"false"`
	YouTubeCookiesPath    string  `env:"YOUTUBE_COOKIES"`
	QueuePreview          int     `env:"QUEUE_PREVIEW" envDefault:"10"`
	StreamVolume          float64 `env:"STREAM_VOLUME" envDefault:"0.5"`

	DrainTimeout            time.Duration `env:"DRAIN_TIMEOUT" envDefault:"60s"`
	VoiceReconnectTimeout   time.Duration `env:"VOICE_RECONNECT_TIMEOUT" envDefault:"5s"`
	FFmpegPath              string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	FFmpegReconnectRetries  int           `env:"FFMPEG_RECONNECT_RETRIES" envDefault:"5"`
	ResolveRate             float64       `env:"RESOLVE_RATE" envDefault:"2"`
	ResolveBurst            int           `env:"RESOLVE_BURST" envDefault:"4"`
	MediaURLTTL             time.Duration `env:"MEDIA_URL_TTL" envDefault:"5h"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogColor bool   `env:"LOG_COLOR" envDefault:"true"`
}

// SpotifyEnabled reports whether Spotify credentials were supplied.
func (c *Config) SpotifyEnabled() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}
