package media

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"dubber/internal/services"
)

// ProbeDuration reads the container duration of a media file in seconds.
func ProbeDuration(ctx context.Context, ffprobeBinary, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
	cmd := exec.CommandContext(ctx, ffprobeBinary, args...) //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "", "probe", path, err)
	}

	raw := strings.TrimSpace(string(output))
	duration, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "", "probe",
			fmt.Sprintf("unparseable duration %q for %s", raw, path), err)
	}
	return duration, nil
}
