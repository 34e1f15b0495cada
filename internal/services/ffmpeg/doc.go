// Package ffmpeg drives the ffmpeg binary as a video4linux frame source and
// as a WebM/Matroska recording encoder. Raw RGBA frames are exchanged over
// pipes; no ffmpeg libraries are linked.
package ffmpeg
