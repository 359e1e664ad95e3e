package handlers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sonroyaalmerol/kumaqueue/internal/player"
)

const guild = "g1"

func newTestQueue(voice fakeVoice) (*QueueCommands, *fakeTransport, *fakeResolver) {
	tr := &fakeTransport{}
	res := &fakeResolver{failFor: map[string]error{}}
	engine := player.NewEngine(player.NewRegistry(), tr, fakeProvider{}, player.Options{DrainDelay: time.Hour})
	return NewQueueCommands(engine, res, voice, 10), tr, res
}

func req(user string) Request { return Request{GuildID: guild, UserID: user} }

func TestEnqueueValidation(t *testing.T) {
	tests := []struct {
		name  string
		user  string
		query string
		want  string
	}{
		{"not in voice", "nobody", "song", player.ErrNotInVoice.Msg},
		{"empty query", "u1", "   ", player.ErrEmptyQuery.Msg},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, tr, res := newTestQueue(fakeVoice{"u1": "vc"})
			r := q.Enqueue(context.Background(), req(tt.user), tt.query)
			if r.Embed == nil || !strings.Contains(r.Embed.Description, tt.want) {
				t.Errorf("expected %q, got %+v", tt.want, r)
			}
			if !r.Ephemeral {
				t.Error("expected validation reply to be ephemeral")
			}
			if res.count() != 0 {
				t.Errorf("expected no lookup, got %d", res.count())
			}
			if tr.joinCount() != 0 {
				t.Errorf("expected no join, got %d", tr.joinCount())
			}
		})
	}
}

func TestEnqueueResolutionFailureLeavesBacklog(t *testing.T) {
	q, tr, res := newTestQueue(fakeVoice{"u1": "vc"})
	res.failFor["bad"] = player.NewResolutionError("lookup failed", errLookup)

	r := q.Enqueue(context.Background(), req("u1"), "bad")
	if r.Embed == nil || !strings.Contains(r.Embed.Description, "lookup down") {
		t.Errorf("expected underlying error in reply, got %+v", r)
	}
	if snap := q.engine.Snapshot(guild); len(snap.Backlog) != 0 || snap.State != player.StateIdle {
		t.Errorf("expected untouched idle session, got %+v", snap)
	}
	if tr.joinCount() != 0 {
		t.Errorf("expected no join, got %d", tr.joinCount())
	}
}

func TestEnqueueStartsThenQueues(t *testing.T) {
	q, tr, _ := newTestQueue(fakeVoice{"u1": "vc"})
	ctx := context.Background()
	defer q.engine.Stop(guild)

	first := q.Enqueue(ctx, req("u1"), "one")
	if !strings.Contains(first.Content, "one") {
		t.Errorf("expected start reply, got %+v", first)
	}
	second := q.Enqueue(ctx, req("u1"), "two")
	if second.Embed == nil || !strings.Contains(second.Embed.Description, "Position: #2") {
		t.Errorf("expected queued embed at #2, got %+v", second)
	}
	if tr.joinCount() != 1 {
		t.Errorf("expected one join, got %d", tr.joinCount())
	}

	list := q.List(req("u1"))
	if !strings.Contains(list.Embed.Description, "🎵 [one]") || !strings.Contains(list.Embed.Description, "`#2` [two]") {
		t.Errorf("unexpected listing %q", list.Embed.Description)
	}

	skip := q.Skip(req("u1"))
	if !strings.Contains(skip.Content, "one") {
		t.Errorf("expected skip of one, got %+v", skip)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap := q.engine.Snapshot(guild)
		if cur, ok := snap.Current(); ok && cur.Title == "two" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected two to play, got %+v", snap)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCommandsOnIdleSession(t *testing.T) {
	q, _, _ := newTestQueue(fakeVoice{})
	tests := []struct {
		name string
		run  func(Request) Reply
		want string
	}{
		{"skip", q.Skip, player.ErrNothingPlaying.Msg},
		{"pause", q.Pause, player.ErrNothingPlaying.Msg},
		{"resume", q.Resume, player.ErrNoPlayer.Msg},
		{"leave", q.Leave, player.ErrNotConnected.Msg},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.run(req("u1"))
			if r.Embed == nil || !strings.Contains(r.Embed.Description, tt.want) {
				t.Errorf("expected %q, got %+v", tt.want, r)
			}
		})
	}

	if r := q.Stop(req("u1")); r.Embed != nil {
		t.Errorf("expected stop to always succeed, got %+v", r)
	}
	if r := q.NowPlaying(req("u1")); r.Embed.Title != "Nothing Playing" {
		t.Errorf("expected nothing playing, got %q", r.Embed.Title)
	}
}

func TestJoin(t *testing.T) {
	q, tr, _ := newTestQueue(fakeVoice{"u1": "vc"})
	defer q.engine.Stop(guild)

	if r := q.Join(context.Background(), req("nobody")); !r.Ephemeral {
		t.Errorf("expected validation error, got %+v", r)
	}
	if r := q.Join(context.Background(), req("u1")); !strings.Contains(r.Content, "<#vc>") {
		t.Errorf("expected joined reply, got %+v", r)
	}
	if r := q.Join(context.Background(), req("u1")); !strings.Contains(r.Content, "already") {
		t.Errorf("expected already joined reply, got %+v", r)
	}
	if tr.joinCount() != 1 {
		t.Errorf("expected one join, got %d", tr.joinCount())
	}
	if r := q.Leave(req("u1")); r.Embed != nil {
		t.Errorf("expected leave to succeed, got %+v", r)
	}
}

func TestJoinFailure(t *testing.T) {
	q, tr, _ := newTestQueue(fakeVoice{"u1": "vc"})
	tr.err = errors.New("missing permissions")

	r := q.Enqueue(context.Background(), req("u1"), "one")
	if r.Embed == nil || !strings.Contains(r.Embed.Description, "missing permissions") {
		t.Errorf("expected transport error, got %+v", r)
	}
	if snap := q.engine.Snapshot(guild); len(snap.Backlog) != 0 {
		t.Errorf("expected empty backlog, got %d", len(snap.Backlog))
	}
}

func TestErrorReply(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      string
		ephemeral bool
	}{
		{"validation", player.ErrNothingPlaying, "nothing is playing", true},
		{"resolution", player.ErrNoResults, "couldn't find that: no results", false},
		{"transport", player.NewTransportError("couldn't join", errLookup), "couldn't join: lookup down", false},
		{"timeout", context.DeadlineExceeded, "took too long", true},
		{"other", errLookup, "something went wrong: lookup down", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := errorReply(tt.err)
			if !strings.Contains(r.Embed.Description, tt.want) {
				t.Errorf("expected %q, got %q", tt.want, r.Embed.Description)
			}
			if r.Ephemeral != tt.ephemeral {
				t.Errorf("expected ephemeral=%t, got %t", tt.ephemeral, r.Ephemeral)
			}
		})
	}
}
