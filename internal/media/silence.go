package media

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"dubber/internal/jobs"
)

// silencedetect parameters: anything quieter than -30dB for at least
// 0.4s counts as a silence.
const (
	silenceNoiseFloor = "-30dB"
	silenceMinLen     = "0.4"
)

// Silence is one detected quiet interval in the source audio.
type Silence struct {
	StartSec float64
	EndSec   float64
}

// MidSec returns the midpoint of the silence.
func (s Silence) MidSec() float64 {
	return (s.StartSec + s.EndSec) / 2
}

// detectSilence runs ffmpeg silencedetect over the source and parses the
// detected intervals from its log output.
func (s *Splitter) detectSilence(ctx context.Context, sourcePath string) ([]Silence, error) {
	args := []string{
		"-hide_banner",
		"-nostats",
		"-i", sourcePath,
		"-af", fmt.Sprintf("silencedetect=noise=%s:d=%s", silenceNoiseFloor, silenceMinLen),
		"-f", "null",
		"-",
	}
	cmd := exec.CommandContext(ctx, s.ffmpeg, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg silencedetect: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return parseSilences(string(output)), nil
}

// parseSilences extracts intervals from silencedetect log lines:
//
//	[silencedetect @ 0x...] silence_start: 58.92
//	[silencedetect @ 0x...] silence_end: 60.11 | silence_duration: 1.19
func parseSilences(output string) []Silence {
	var (
		silences []Silence
		current  *Silence
	)

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if value, ok := silenceValue(line, "silence_start:"); ok {
			current = &Silence{StartSec: value}
			continue
		}
		if value, ok := silenceValue(line, "silence_end:"); ok && current != nil {
			current.EndSec = value
			silences = append(silences, *current)
			current = nil
		}
	}
	return silences
}

func silenceValue(line, marker string) (float64, bool) {
	idx := strings.Index(line, marker)
	if idx < 0 {
		return 0, false
	}
	rest := strings.TrimSpace(line[idx+len(marker):])
	if cut := strings.IndexByte(rest, '|'); cut >= 0 {
		rest = strings.TrimSpace(rest[:cut])
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0, false
	}
	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// PlanSilenceAware partitions the timeline like the fixed strategy, then
// snaps every interior cut to the nearest silence midpoint within a
// quarter chunk. The partition invariants hold: spans stay contiguous,
// indices stay sequential, and the ends of the timeline never move.
func PlanSilenceAware(durationSec float64, chunkDuration int, silences []Silence) []jobs.Span {
	fixed := jobs.PlanChunks(durationSec, chunkDuration)
	if len(fixed) < 2 || len(silences) == 0 {
		return fixed
	}

	tolerance := float64(chunkDuration) / 4
	cuts := make([]float64, 0, len(fixed)-1)
	prev := 0.0
	for i := 0; i < len(fixed)-1; i++ {
		target := fixed[i].EndSec
		snapped := snapToSilence(target, silences, tolerance)
		// A snap may never cross its neighbors, or a span would invert.
		if snapped <= prev || snapped >= durationSec {
			snapped = target
		}
		cuts = append(cuts, snapped)
		prev = snapped
	}

	spans := make([]jobs.Span, 0, len(fixed))
	start := 0.0
	for i, cut := range cuts {
		spans = append(spans, jobs.Span{Index: i, StartSec: start, EndSec: cut})
		start = cut
	}
	spans = append(spans, jobs.Span{Index: len(cuts), StartSec: start, EndSec: durationSec})
	return spans
}

func snapToSilence(target float64, silences []Silence, tolerance float64) float64 {
	best := target
	bestDistance := tolerance
	for _, silence := range silences {
		mid := silence.MidSec()
		distance := mid - target
		if distance < 0 {
			distance = -distance
		}
		if distance <= bestDistance {
			best = mid
			bestDistance = distance
		}
	}
	return best
}
