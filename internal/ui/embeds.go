package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumaqueue/internal/player"
	"github.com/sonroyaalmerol/kumaqueue/internal/utils"
)

const (
	colorPlaying = 0x006400
	colorPaused  = 0x8B0000
	colorInfo    = 0x2F3136
	colorError   = 0x992222

	// Discord's embed description limit
	maxDesc = 4096
)

func trackLink(t player.Track) string {
	return fmt.Sprintf("[%s](%s)", utils.EscapeMd(t.Title), t.Locator)
}

func requester(t player.Track) string {
	if t.RequestedBy == "" {
		return "unknown"
	}
	return "<@" + t.RequestedBy + ">"
}

func withThumb(e *discordgo.MessageEmbed, t player.Track) *discordgo.MessageEmbed {
	if t.Thumbnail != "" {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: t.Thumbnail}
	}
	return e
}

func sourceFooter(t player.Track) *discordgo.MessageEmbedFooter {
	text := "Source: " + t.Source.String()
	if t.Artist != "" {
		text += " • " + t.Artist
	}
	return &discordgo.MessageEmbedFooter{Text: text}
}

// NowPlayingEmbed is the notice posted when a track starts.
func NowPlayingEmbed(t player.Track) *discordgo.MessageEmbed {
	return withThumb(&discordgo.MessageEmbed{
		Title:       "Now Playing",
		Description: fmt.Sprintf("**%s**\n`[ %s ]` • Requested by: %s", trackLink(t), t.DurationLabel, requester(t)),
		Color:       colorPlaying,
		Footer:      sourceFooter(t),
	}, t)
}

// PlayingEmbed shows the current track with a progress bar.
func PlayingEmbed(snap player.Snapshot) *discordgo.MessageEmbed {
	cur, ok := snap.Current()
	if !ok {
		return &discordgo.MessageEmbed{
			Title:       "Nothing Playing",
			Description: "No playing song found",
			Color:       colorError,
		}
	}

	pos := int(snap.Elapsed / time.Second)
	button := "⏹️"
	title := "Now Playing"
	color := colorPlaying
	if snap.Paused {
		button = "▶️"
		title = "Paused"
		color = colorPaused
	}

	progress := 0.0
	if cur.Length > 0 {
		progress = float64(pos) / float64(cur.Length)
	}
	elapsed := player.LiveLabel
	if !cur.IsLive() {
		elapsed = fmt.Sprintf("%s/%s", utils.PrettyTime(pos), cur.DurationLabel)
	}

	return withThumb(&discordgo.MessageEmbed{
		Title: title,
		Description: fmt.Sprintf("**%s**\nRequested by: %s\n\n%s %s `[ %s ]`",
			trackLink(cur), requester(cur), button, ProgressBar(10, progress), elapsed),
		Color:  color,
		Footer: sourceFooter(cur),
	}, cur)
}

// QueuedEmbed acknowledges an enqueue that did not start playback.
func QueuedEmbed(res player.EnqueueResult) *discordgo.MessageEmbed {
	return withThumb(&discordgo.MessageEmbed{
		Title:       "Added to queue",
		Description: fmt.Sprintf("**%s**\n`[ %s ]` • Position: #%d", trackLink(res.Track), res.Track.DurationLabel, res.Position),
		Color:       colorInfo,
	}, res.Track)
}

// QueueEmbed renders a backlog listing: the head is marked when it is playing,
// the rest are numbered by backlog position.
func QueueEmbed(l player.Listing, playing bool) *discordgo.MessageEmbed {
	if l.Total == 0 {
		return &discordgo.MessageEmbed{
			Title:       "Queue",
			Description: "The queue is empty.",
			Color:       colorInfo,
		}
	}
	return &discordgo.MessageEmbed{
		Title:       "Queue",
		Description: QueueText(l, playing),
		Color:       colorPlaying,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Total: %s", songs(l.Total))},
	}
}

func QueueText(l player.Listing, playing bool) string {
	var b strings.Builder
	hidden := l.Remaining
	for i, t := range l.Tracks {
		marker := fmt.Sprintf("`#%d`", i+1)
		if i == 0 && playing {
			marker = "🎵"
		}
		line := fmt.Sprintf("%s %s `[ %s ]`\n", marker, trackLink(t), t.DurationLabel)
		// reserve room for the "more" line
		if b.Len()+len(line) > maxDesc-32 {
			hidden += len(l.Tracks) - i
			break
		}
		b.WriteString(line)
	}
	if hidden > 0 {
		fmt.Fprintf(&b, "...and %d more", hidden)
	}
	return strings.TrimRight(b.String(), "\n")
}

func songs(n int) string {
	if n == 1 {
		return "1 song"
	}
	return fmt.Sprintf("%d songs", n)
}

func QueueEndedEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Queue finished",
		Description: "Add more songs to keep the party going.",
		Color:       colorInfo,
	}
}

func TrackFailedEmbed(t player.Track, err error) *discordgo.MessageEmbed {
	desc := fmt.Sprintf("Couldn't play **%s**, skipping.", trackLink(t))
	if err != nil {
		desc += fmt.Sprintf("\n`%s`", truncate(err.Error(), 300))
	}
	return &discordgo.MessageEmbed{Title: "Track failed", Description: desc, Color: colorError}
}

func ErrorEmbed(msg string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Description: "❌ " + msg, Color: colorError}
}

func InfoEmbed(msg string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Description: msg, Color: colorInfo}
}

type HelpEntry struct {
	Usage   string
	Aliases []string
	Summary string
}

func HelpEmbed(prefix string, entries []HelpEntry) *discordgo.MessageEmbed {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "`%s%s`", prefix, e.Usage)
		if len(e.Aliases) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(e.Aliases, ", "))
		}
		fmt.Fprintf(&b, " - %s\n", e.Summary)
	}
	return &discordgo.MessageEmbed{
		Title:       "Commands",
		Description: strings.TrimRight(b.String(), "\n"),
		Color:       colorInfo,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Slash commands work too."},
	}
}

func BotInfoEmbed(version string, sessions int, uptime time.Duration) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "kumaqueue",
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Version", Value: version, Inline: true},
			{Name: "Servers", Value: fmt.Sprint(sessions), Inline: true},
			{Name: "Uptime", Value: utils.PrettyTime(int(uptime / time.Second)), Inline: true},
		},
		Color: colorInfo,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
