package media

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sdsc-ordes/debates-analytics/pkg/log"
)

// Transcoder wraps the external ffmpeg binary. The functional contract is
// fixed: whatever comes in, 16kHz mono PCM WAV comes out, which is what the
// ASR service wants.
type Transcoder struct {
	ffmpegCmd string
}

func NewTranscoder() Transcoder {
	return Transcoder{ffmpegCmd: "ffmpeg"}
}

// ExtractAudio converts the input media file to a 16kHz mono WAV at
// outputPath. A nonzero ffmpeg exit is reported with its captured stderr.
func (t Transcoder) ExtractAudio(ctx context.Context, inputPath, outputPath string) error {
	cmdPath, err := exec.LookPath(t.ffmpegCmd)
	if err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}

	args := t.extractAudioArgs(inputPath, outputPath)
	log.Info("Running %s %s", t.ffmpegCmd, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, cmdPath, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (Transcoder) extractAudioArgs(inputPath, outputPath string) []string {
	return []string{
		"-i", inputPath,
		"-vn", // drop the video stream
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		outputPath,
	}
}
