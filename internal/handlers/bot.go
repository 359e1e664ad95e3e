package handlers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumaqueue/internal/autocomplete"
	"github.com/sonroyaalmerol/kumaqueue/internal/config"
	"github.com/sonroyaalmerol/kumaqueue/internal/player"
	"github.com/sonroyaalmerol/kumaqueue/internal/repository"
	"github.com/sonroyaalmerol/kumaqueue/internal/spotify"
	"github.com/sonroyaalmerol/kumaqueue/internal/stream"
	"github.com/sonroyaalmerol/kumaqueue/internal/voice"
)

type Bot struct {
	cfg     *config.Config
	repo    *repository.Repo
	version string
}

func NewBot(cfg *config.Config, repo *repository.Repo, version string) *Bot {
	return &Bot{cfg: cfg, repo: repo, version: version}
}

func (b *Bot) Run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.cfg.DiscordToken)
	if err != nil {
		return err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	var sp *spotify.Client
	if b.cfg.SpotifyEnabled() {
		sp = spotify.NewClientCredentials(b.cfg.SpotifyClientID, b.cfg.SpotifyClientSecret)
	}

	settings := NewSettings(b.repo)
	transport := voice.NewTransport(dg)
	resolver := stream.NewResolver(stream.ResolverOptions{
		CookiesPath: b.cfg.YouTubeCookiesPath,
		Rate:        b.cfg.ResolveRate,
		Burst:       b.cfg.ResolveBurst,
		Spotify:     sp,
	})
	provider := stream.NewProvider(stream.ProviderOptions{
		FFmpegPath:       b.cfg.FFmpegPath,
		Volume:           b.cfg.StreamVolume,
		ReconnectRetries: b.cfg.FFmpegReconnectRetries,
		MediaURLTTL:      b.cfg.MediaURLTTL,
		CookiesPath:      b.cfg.YouTubeCookiesPath,
		Rate:             b.cfg.ResolveRate,
		Burst:            b.cfg.ResolveBurst,
	})
	engine := player.NewEngine(player.NewRegistry(), transport, provider, player.Options{
		DrainDelay:       b.cfg.DrainTimeout,
		DrainDelayFor:    settings.DrainDelay,
		ReconnectTimeout: b.cfg.VoiceReconnectTimeout,
	})
	notifier := NewNotifier(dg, settings)
	queue := NewQueueCommands(engine, resolver, stateVoice{dg}, b.cfg.QueuePreview)
	cmd := NewCommandHandler(b.cfg, queue, settings, autocomplete.NewSuggester(sp), notifier, b.version)

	// On ready: register commands depending on configuration
	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("connected", "user", s.State.User.Username)
		b.updatePresence(s)
		appID := s.State.User.ID

		if b.cfg.RegisterCommandsOnBot {
			if err := cmd.RegisterCommands(s, appID, ""); err != nil {
				slog.Error("register global commands", "err", err)
			} else {
				slog.Info("registered global application commands")
			}
			return
		}

		var wg sync.WaitGroup
		for _, g := range s.State.Guilds {
			wg.Add(1)
			go func(guildID string) {
				defer wg.Done()
				if err := cmd.RegisterCommands(s, appID, guildID); err != nil {
					slog.Error("register guild commands", "guild", guildID, "err", err)
				}
			}(g.ID)
		}
		wg.Wait()

		if _, err := s.ApplicationCommandBulkOverwrite(appID, "", []*discordgo.ApplicationCommand{}); err != nil {
			slog.Error("clear global commands", "err", err)
		} else {
			slog.Info("cleared global application commands")
		}
		slog.Info("registered commands on all guilds")
	})

	// If registering per-guild, register on new guilds too
	dg.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		if b.cfg.RegisterCommandsOnBot {
			return
		}
		if err := cmd.RegisterCommands(s, s.State.User.ID, g.ID); err != nil {
			slog.Error("register guild commands on join", "guild", g.ID, "err", err)
		}
	})

	dg.AddHandler(cmd.HandleInteraction)
	dg.AddHandler(cmd.HandleMessage)

	dg.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		transport.HandleVoiceState(vs)
		b.leaveIfAlone(s, engine, settings, vs)
	})

	go notifier.Run(ctx)

	if err := dg.Open(); err != nil {
		return err
	}
	defer dg.Close()

	<-ctx.Done()
	slog.Info("shutting down")
	return nil
}

func (b *Bot) updatePresence(s *discordgo.Session) {
	err := s.UpdateStatusComplex(discordgo.UpdateStatusData{
		Status: b.cfg.BotStatus,
		Activities: []*discordgo.Activity{
			{Name: b.cfg.BotActivity, Type: discordgo.ActivityTypeListening},
		},
	})
	if err != nil {
		slog.Warn("presence update failed", "err", err)
	}
}

// leaveIfAlone stops a guild's session once its voice room has no human listeners.
func (b *Bot) leaveIfAlone(s *discordgo.Session, engine *player.Engine, settings *Settings, vs *discordgo.VoiceStateUpdate) {
	if vs == nil || vs.VoiceState == nil || s.State.User == nil || vs.UserID == s.State.User.ID {
		return
	}
	snap := engine.Snapshot(vs.GuildID)
	if snap.Conn == nil || snap.ChannelID == "" {
		return
	}
	if !settings.Get(context.Background(), vs.GuildID).LeaveIfNoListeners {
		return
	}
	g, _ := s.State.Guild(vs.GuildID)
	if g == nil {
		return
	}
	isBot := func(userID string) bool {
		m, _ := s.State.Member(vs.GuildID, userID)
		return m != nil && m.User != nil && m.User.Bot
	}
	if countListeners(g.VoiceStates, snap.ChannelID, isBot) == 0 {
		slog.Info("no listeners left, leaving", "guildID", vs.GuildID, "channelID", snap.ChannelID)
		engine.Stop(vs.GuildID)
	}
}

func countListeners(states []*discordgo.VoiceState, channelID string, isBot func(userID string) bool) int {
	n := 0
	for _, vs := range states {
		if vs != nil && vs.ChannelID == channelID && !isBot(vs.UserID) {
			n++
		}
	}
	return n
}

// stateVoice answers voice presence from the gateway state cache.
type stateVoice struct {
	s *discordgo.Session
}

func (v stateVoice) UserVoiceChannel(guildID, userID string) (string, bool) {
	g, _ := v.s.State.Guild(guildID)
	if g == nil {
		return "", false
	}
	for _, vs := range g.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return vs.ChannelID, true
		}
	}
	return "", false
}
