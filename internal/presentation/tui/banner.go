package tui

import (
	"fmt"
	"strings"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the formflow banner followed by the version.
func PrintBanner(version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"   __                      __ _               ", "#34d399"},
		{"  / _| ___  _ __ _ __ ___ / _| | _____      __", "#2dd4bf"},
		{" | |_ / _ \\| '__| '_ ` _ \\ |_| |/ _ \\ \\ /\\ / /", "#22d3ee"},
		{" |  _| (_) | |  | | | | | |  _| | (_) \\ V  V / ", "#38bdf8"},
		{" |_|  \\___/|_|  |_| |_| |_|_| |_|\\___/ \\_/\\_/  ", "#60a5fa"},
	}

	fmt.Println()
	for _, l := range lines {
		fmt.Println(termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	if v := strings.TrimSpace(version); v != "" {
		fmt.Println(termenv.String("  v" + v).Faint())
	}
	fmt.Println()
}
