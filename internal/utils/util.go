package utils

import (
	"fmt"
	"strings"
)

var mdEscaper = strings.NewReplacer("*", "\\*", "_", "\\_", "`", "\\`", "~", "\\~")

func EscapeMd(s string) string {
	return mdEscaper.Replace(s)
}

// PrettyTime formats seconds as m:ss, or h:mm:ss from an hour up.
func PrettyTime(sec int) string {
	if sec < 0 {
		sec = 0
	}
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
