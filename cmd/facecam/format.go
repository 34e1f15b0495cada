package main

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"facecam/internal/ipc"
)

var (
	printer = message.NewPrinter(language.English)
	titler  = cases.Title(language.English)
)

func formatBytes(n int64) string {
	return humanize.IBytes(uint64(max(n, 0)))
}

func formatCount(n int) string {
	return printer.Sprintf("%d", n)
}

// statusLabel turns "detection_degraded" into "Detection Degraded".
func statusLabel(status string) string {
	status = strings.TrimSpace(strings.ReplaceAll(status, "_", " "))
	if status == "" {
		return "Unknown"
	}
	return titler.String(status)
}

func formatRecorded(v ipc.Video, now time.Time) string {
	at, err := v.Time()
	if err != nil {
		return v.Timestamp
	}
	return at.Local().Format("2006-01-02 15:04:05") + " (" + humanize.RelTime(at, now, "ago", "from now") + ")"
}

func videoRows(videos []ipc.Video, now time.Time) [][]string {
	rows := make([][]string, 0, len(videos))
	for _, v := range videos {
		rows = append(rows, []string{v.ID, formatRecorded(v, now), formatBytes(v.SizeBytes), v.MediaType})
	}
	return rows
}
