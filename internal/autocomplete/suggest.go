package autocomplete

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/ppalone/ytsearch"
	"github.com/sonroyaalmerol/kumaqueue/internal/cache"
	"github.com/sonroyaalmerol/kumaqueue/internal/spotify"
)

// Discord rejects choice names and values longer than this.
const maxChoiceLen = 100

type Suggestion struct {
	Name  string
	Value string
}

type Suggester struct {
	yt      *ytsearch.Client
	sp      *spotify.Client
	cache   *cache.Cache[[]Suggestion]
	timeout time.Duration
}

// NewSuggester builds a suggester; sp may be nil when Spotify is not configured.
func NewSuggester(sp *spotify.Client) *Suggester {
	return &Suggester{
		yt:      ytsearch.NewClient(nil),
		sp:      sp,
		cache:   cache.New[[]Suggestion](10 * time.Minute),
		timeout: 2500 * time.Millisecond,
	}
}

// Suggest returns up to limit candidates for query, YouTube first. Lookups that
// do not answer within the suggester's timeout are left out.
func (s *Suggester) Suggest(ctx context.Context, query string, limit int) []Suggestion {
	if limit <= 0 {
		limit = 10
	}
	if query == "" {
		return nil
	}
	if v, ok := s.cache.Get(query); ok {
		return truncate(v, limit)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		wg     sync.WaitGroup
		yt, sp []Suggestion
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		res, err := s.yt.Search(ctx, query)
		if err != nil {
			slog.Debug("youtube suggestions failed", "query", query, "err", err)
			return
		}
		for _, v := range res.Results {
			yt = append(yt, Suggestion{
				Name:  clip("YouTube: " + v.Title),
				Value: "https://www.youtube.com/watch?v=" + v.VideoID,
			})
		}
	}()
	if s.sp != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracks, err := s.sp.SearchTracks(ctx, query, limit/2)
			if err != nil {
				slog.Debug("spotify suggestions failed", "query", query, "err", err)
				return
			}
			for _, t := range tracks {
				name := fmt.Sprintf("Spotify: %s", t.Name)
				if t.Artist != "" {
					name += " - " + t.Artist
				}
				sp = append(sp, Suggestion{Name: clip(name), Value: "spotify:track:" + t.ID})
			}
		}()
	}
	wg.Wait()

	out := merge(yt, sp, limit)
	if len(out) > 0 {
		s.cache.Set(query, out)
	}
	return out
}

// merge keeps room for the Spotify half when both sources answered.
func merge(yt, sp []Suggestion, limit int) []Suggestion {
	ytRoom := limit - min(len(sp), limit/2)
	out := make([]Suggestion, 0, limit)
	out = append(out, truncate(yt, ytRoom)...)
	out = append(out, sp...)
	return truncate(out, limit)
}

func truncate(s []Suggestion, n int) []Suggestion {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func clip(s string) string {
	r := []rune(s)
	if len(r) <= maxChoiceLen {
		return s
	}
	return string(r[:maxChoiceLen-1]) + "…"
}

// Choices converts suggestions into slash-command autocomplete choices.
func Choices(s []Suggestion) []*discordgo.ApplicationCommandOptionChoice {
	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(s))
	for _, v := range s {
		if len(v.Value) > maxChoiceLen {
			continue
		}
		out = append(out, &discordgo.ApplicationCommandOptionChoice{Name: v.Name, Value: v.Value})
	}
	return out
}
