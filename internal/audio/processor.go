package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/himanishpuri/TapAlign/pkg/utils"
)

type ConvertWAVConfig struct {
	SampleRate int // 0 keeps the source rate
	FFmpegBin  string
}

// IsWav reports whether path looks like a WAV file.
func IsWav(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".wav")
}

// ConvertToStereoWAV converts a recording to 16-bit PCM WAV keeping two
// channels, and saves it to outputDir under the same base name.
func ConvertToStereoWAV(
	ctx context.Context,
	inputPath string,
	outputDir string,
	cfg ConvertWAVConfig,
) (string, error) {

	if cfg.FFmpegBin == "" {
		cfg.FFmpegBin = "ffmpeg"
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	if err := utils.MakeDir(outputDir); err != nil {
		return "", err
	}

	baseName := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath)) + ".wav"
	outputPath := filepath.Join(outputDir, baseName)

	tmpPath := outputPath + ".tmp.wav"
	defer os.Remove(tmpPath)

	args := []string{"-y", "-v", "quiet", "-i", inputPath, "-ac", "2"}
	if cfg.SampleRate > 0 {
		args = append(args, "-ar", fmt.Sprintf("%d", cfg.SampleRate))
	}
	args = append(args, "-c:a", "pcm_s16le", tmpPath)

	cmd := exec.CommandContext(ctx, cfg.FFmpegBin, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg failed: %v (%s)", err, out)
	}

	if err := utils.MoveFile(tmpPath, outputPath); err != nil {
		return "", err
	}

	return outputPath, nil
}
