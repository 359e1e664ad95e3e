package handlers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
)

var aliases = map[string]string{
	"p":  "play",
	"s":  "skip",
	"q":  "queue",
	"np": "nowplaying",
}

// parseCommand splits "<prefix><name> <args>" and resolves aliases.
func parseCommand(prefix, content string) (name, args string, ok bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", "", false
	}
	rest := strings.TrimSpace(content[len(prefix):])
	if rest == "" {
		return "", "", false
	}
	name, args, _ = strings.Cut(rest, " ")
	name = strings.ToLower(name)
	if full, ok := aliases[name]; ok {
		name = full
	}
	return name, strings.TrimSpace(args), true
}

func (h *CommandHandler) HandleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	name, args, ok := parseCommand(h.cfg.Prefix, m.Content)
	if !ok {
		return
	}

	req := Request{GuildID: m.GuildID, UserID: m.Author.ID, Sink: h.sinks.For(m.ChannelID)}
	ctx, cancel := context.WithTimeout(context.Background(), playTimeout)
	defer cancel()

	slog.Debug("prefix command", "guildID", m.GuildID, "userID", m.Author.ID, "command", name)
	r, ok := h.dispatch(ctx, name, args, req, s.HeartbeatLatency())
	if !ok {
		return
	}

	msg := &discordgo.MessageSend{Content: r.Content, Reference: m.Reference()}
	if r.Embed != nil {
		msg.Embeds = []*discordgo.MessageEmbed{r.Embed}
	}
	if _, err := s.ChannelMessageSendComplex(m.ChannelID, msg); err != nil {
		slog.Warn("prefix reply failed", "guildID", m.GuildID, "channelID", m.ChannelID, "err", err)
	}
}
