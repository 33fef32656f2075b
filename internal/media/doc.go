// Package media wraps the ffmpeg and ffprobe invocations the pipeline
// needs: probing duration, cutting chunk files, detecting silences for
// boundary placement, and concatenating dubbed chunks into the output.
package media
