package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumaqueue/internal/autocomplete"
	"github.com/sonroyaalmerol/kumaqueue/internal/config"
	"github.com/sonroyaalmerol/kumaqueue/internal/player"
	"github.com/sonroyaalmerol/kumaqueue/internal/repository"
	"github.com/sonroyaalmerol/kumaqueue/internal/ui"
)

const (
	// resolution plus a voice join
	playTimeout       = 45 * time.Second
	autocompleteLimit = 10
)

var manageGuild = int64(discordgo.PermissionManageGuild)

var commands = []*discordgo.ApplicationCommand{
	{
		Name:        "play",
		Description: "Play a song (YouTube or Spotify link, or search)",
		Options: []*discordgo.ApplicationCommandOption{
			{Name: "query", Description: "query or URL", Type: discordgo.ApplicationCommandOptionString, Required: true, Autocomplete: true},
		},
	},
	{Name: "skip", Description: "skip the current song"},
	{Name: "stop", Description: "stop playback and clear the queue"},
	{Name: "pause", Description: "pause the current song"},
	{Name: "resume", Description: "resume playback"},
	{Name: "queue", Description: "show the current queue"},
	{Name: "join", Description: "join your voice channel"},
	{Name: "leave", Description: "leave the voice channel"},
	{Name: "nowplaying", Description: "show the current song"},
	{Name: "ping", Description: "check the bot's latency"},
	{Name: "help", Description: "list commands"},
	{Name: "info", Description: "show bot info"},
	{
		Name:                     "config",
		Description:              "Configure bot settings",
		DefaultMemberPermissions: &manageGuild,
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "get", Description: "show settings"},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set-wait-after-queue-empties", Description: "time to wait before leaving VC", Options: []*discordgo.ApplicationCommandOption{
				{Name: "delay", Description: "seconds (0 uses the default)", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
			}},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set-leave-if-no-listeners", Description: "leave when no listeners", Options: []*discordgo.ApplicationCommandOption{
				{Name: "value", Description: "true/false", Type: discordgo.ApplicationCommandOptionBoolean, Required: true},
			}},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set-announce-now-playing", Description: "announce each song as it starts", Options: []*discordgo.ApplicationCommandOption{
				{Name: "value", Description: "true/false", Type: discordgo.ApplicationCommandOptionBoolean, Required: true},
			}},
		},
	},
}

var helpEntries = []ui.HelpEntry{
	{Usage: "play <query>", Aliases: []string{"p"}, Summary: "play a link or the first search result"},
	{Usage: "skip", Aliases: []string{"s"}, Summary: "skip the current song"},
	{Usage: "stop", Summary: "stop and clear the queue"},
	{Usage: "pause", Summary: "pause playback"},
	{Usage: "resume", Summary: "resume playback"},
	{Usage: "queue", Aliases: []string{"q"}, Summary: "show the queue"},
	{Usage: "join", Summary: "join your voice channel"},
	{Usage: "leave", Summary: "leave the voice channel"},
	{Usage: "nowplaying", Aliases: []string{"np"}, Summary: "show the current song"},
	{Usage: "ping", Summary: "gateway latency"},
	{Usage: "info", Summary: "version and active sessions"},
}

// suggester is the autocomplete backend.
type suggester interface {
	Suggest(ctx context.Context, query string, limit int) []autocomplete.Suggestion
}

// sinkFactory hands out per-channel notice sinks.
type sinkFactory interface {
	For(channelID string) player.Sink
}

type CommandHandler struct {
	cfg      *config.Config
	queue    *QueueCommands
	settings *Settings
	suggest  suggester
	sinks    sinkFactory
	version  string
	started  time.Time
}

func NewCommandHandler(cfg *config.Config, queue *QueueCommands, settings *Settings, suggest suggester, sinks sinkFactory, version string) *CommandHandler {
	return &CommandHandler{
		cfg:      cfg,
		queue:    queue,
		settings: settings,
		suggest:  suggest,
		sinks:    sinks,
		version:  version,
		started:  time.Now(),
	}
}

func (h *CommandHandler) RegisterCommands(s *discordgo.Session, appID string, guildID string) error {
	start := time.Now()
	slog.Info("registering application commands", "appID", appID, "guildID", guildID)
	if _, err := s.ApplicationCommandBulkOverwrite(appID, guildID, commands); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	slog.Info("finished registering commands", "guildID", guildID, "count", len(commands), "took", time.Since(start))
	return nil
}

// dispatch runs a named command shared by the slash and prefix routers. It
// reports false for names it does not know.
func (h *CommandHandler) dispatch(ctx context.Context, name, args string, req Request, latency time.Duration) (Reply, bool) {
	switch name {
	case "play":
		// warm the settings copy the engine reads when the queue drains
		h.settings.Get(ctx, req.GuildID)
		return h.queue.Enqueue(ctx, req, args), true
	case "join":
		h.settings.Get(ctx, req.GuildID)
		return h.queue.Join(ctx, req), true
	case "skip":
		return h.queue.Skip(req), true
	case "stop":
		return h.queue.Stop(req), true
	case "pause":
		return h.queue.Pause(req), true
	case "resume":
		return h.queue.Resume(req), true
	case "queue":
		return h.queue.List(req), true
	case "leave":
		return h.queue.Leave(req), true
	case "nowplaying":
		return h.queue.NowPlaying(req), true
	case "ping":
		return Reply{Content: fmt.Sprintf("🏓 pong! `%dms`", latency.Milliseconds())}, true
	case "help":
		return Reply{Embed: ui.HelpEmbed(h.cfg.Prefix, helpEntries)}, true
	case "info":
		return Reply{Embed: ui.BotInfoEmbed(h.version, h.queue.engine.Registry().Active(), time.Since(h.started))}, true
	}
	return Reply{}, false
}

func (h *CommandHandler) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		slog.Debug("interaction: application command", "guildID", i.GuildID, "userID", userIDOf(i), "command", i.ApplicationCommandData().Name)
		h.handleChatCommand(s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		slog.Debug("interaction: autocomplete", "guildID", i.GuildID, "userID", userIDOf(i))
		h.handleAutocomplete(s, i)
	default:
		slog.Debug("interaction: ignored type", "type", i.Type, "guildID", i.GuildID)
	}
}

func (h *CommandHandler) handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if data.Name != "play" {
		return
	}

	var query string
	for _, opt := range data.Options {
		if opt.Focused || opt.Name == "query" {
			query = opt.StringValue()
			if opt.Focused {
				break
			}
		}
	}

	choices := []*discordgo.ApplicationCommandOptionChoice{}
	if q := strings.TrimSpace(query); q != "" {
		slog.Debug("autocomplete: fetching suggestions", "guildID", i.GuildID, "query", q)
		choices = autocomplete.Choices(h.suggest.Suggest(context.Background(), q, autocompleteLimit))
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	}); err != nil {
		slog.Debug("autocomplete respond failed", "guildID", i.GuildID, "err", err)
	}
}

func (h *CommandHandler) handleChatCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" {
		h.reply(s, i, Reply{Content: "I only work in servers", Ephemeral: true})
		return
	}
	data := i.ApplicationCommandData()
	if data.Name == "config" {
		h.reply(s, i, h.cmdConfig(context.Background(), i.GuildID, data))
		return
	}

	req := Request{GuildID: i.GuildID, UserID: userIDOf(i), Sink: h.sinks.For(i.ChannelID)}

	switch data.Name {
	case "play", "join":
		// resolving and joining can outlast the 3s interaction deadline
		h.deferReply(s, i)
		ctx, cancel := context.WithTimeout(context.Background(), playTimeout)
		defer cancel()
		var query string
		for _, opt := range data.Options {
			if opt.Name == "query" {
				query = opt.StringValue()
			}
		}
		r, _ := h.dispatch(ctx, data.Name, query, req, s.HeartbeatLatency())
		h.editReply(s, i, r)
	default:
		r, ok := h.dispatch(context.Background(), data.Name, "", req, s.HeartbeatLatency())
		if !ok {
			slog.Debug("unknown command", "name", data.Name, "guildID", i.GuildID, "userID", userIDOf(i))
			return
		}
		h.reply(s, i, r)
	}
}

func (h *CommandHandler) cmdConfig(ctx context.Context, guildID string, data discordgo.ApplicationCommandInteractionData) Reply {
	if len(data.Options) == 0 {
		return Reply{Content: "pick a subcommand", Ephemeral: true}
	}
	sub := data.Options[0]
	if sub.Name == "get" {
		return Reply{Content: formatSettings(h.settings.Get(ctx, guildID))}
	}
	if len(sub.Options) == 0 {
		return Reply{Content: "missing value", Ephemeral: true}
	}

	var (
		key   string
		value any
	)
	switch sub.Name {
	case "set-wait-after-queue-empties":
		key, value = "seconds_wait_after_empty", int(sub.Options[0].IntValue())
	case "set-leave-if-no-listeners":
		key, value = "leave_if_no_listeners", sub.Options[0].BoolValue()
	case "set-announce-now-playing":
		key, value = "announce_now_playing", sub.Options[0].BoolValue()
	default:
		return Reply{Content: "unknown setting", Ephemeral: true}
	}
	if _, err := h.settings.Set(ctx, guildID, key, value); err != nil {
		slog.Warn("config update failed", "guildID", guildID, "key", key, "err", err)
		return Reply{Embed: ui.ErrorEmbed(err.Error()), Ephemeral: true}
	}
	return Reply{Content: "👍 setting updated"}
}

func formatSettings(set repository.Settings) string {
	wait := "default"
	if d := set.DrainDelay(); d > 0 {
		wait = d.String()
	}
	return fmt.Sprintf(
		"Config\n- Wait before leaving after queue empty: %s\n- Leave if no listeners: %t\n- Announce now playing: %t",
		wait, set.LeaveIfNoListeners, set.AnnounceNowPlaying,
	)
}

func interactionData(r Reply) *discordgo.InteractionResponseData {
	d := &discordgo.InteractionResponseData{Content: r.Content}
	if r.Embed != nil {
		d.Embeds = []*discordgo.MessageEmbed{r.Embed}
	}
	if r.Ephemeral {
		d.Flags = discordgo.MessageFlagsEphemeral
	}
	return d
}

func (h *CommandHandler) reply(s *discordgo.Session, i *discordgo.InteractionCreate, r Reply) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: interactionData(r),
	}); err != nil {
		slog.Warn("reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) deferReply(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		slog.Warn("defer reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) editReply(s *discordgo.Session, i *discordgo.InteractionCreate, r Reply) {
	edit := &discordgo.WebhookEdit{Content: &r.Content}
	if r.Embed != nil {
		edit.Embeds = &[]*discordgo.MessageEmbed{r.Embed}
	}
	if _, err := s.InteractionResponseEdit(i.Interaction, edit); err != nil {
		slog.Warn("edit reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func userIDOf(i *discordgo.InteractionCreate) string {
	if i == nil {
		return ""
	}
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
