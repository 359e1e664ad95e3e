package utils

import (
	"strings"
	"testing"
)

func TestPrettyTime(t *testing.T) {
	tests := []struct {
		sec  int
		want string
	}{
		{0, "0:00"},
		{59, "0:59"},
		{61, "1:01"},
		{3599, "59:59"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
		{-5, "0:00"},
	}
	for _, tt := range tests {
		if got := PrettyTime(tt.sec); got != tt.want {
			t.Errorf("PrettyTime(%d): expected %q, got %q", tt.sec, tt.want, got)
		}
	}
}

func TestEscapeMd(t *testing.T) {
	if got := EscapeMd("*a_b`c~"); got != "\\*a\\_b\\`c\\~" {
		t.Errorf("unexpected escape %q", got)
	}
}

func TestBuildFFmpegHeaders(t *testing.T) {
	got := BuildFFmpegHeaders(map[string]string{"referer": "https://example.com/", "x-custom": " v "})

	lines := strings.Split(strings.TrimSuffix(got, "\r\n"), "\r\n")
	if len(lines) != 7 {
		t.Fatalf("expected 7 headers, got %d: %q", len(lines), got)
	}
	if !strings.Contains(got, "Referer: https://example.com/\r\n") {
		t.Errorf("expected caller referer to win, got %q", got)
	}
	if !strings.Contains(got, "X-custom: v\r\n") {
		t.Errorf("expected trimmed custom header, got %q", got)
	}
	if !strings.Contains(got, "User-Agent: Mozilla/5.0") {
		t.Errorf("expected default user agent, got %q", got)
	}
	for i := 1; i < len(lines); i++ {
		prev, _, _ := strings.Cut(lines[i-1], ":")
		cur, _, _ := strings.Cut(lines[i], ":")
		if prev > cur {
			t.Errorf("expected sorted headers, got %q before %q", prev, cur)
		}
	}
}

func TestBuildFFmpegHeadersNil(t *testing.T) {
	if got := BuildFFmpegHeaders(nil); !strings.Contains(got, "Origin: https://www.youtube.com\r\n") {
		t.Errorf("expected defaults for nil map, got %q", got)
	}
}
