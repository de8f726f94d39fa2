package playback

import (
	"context"
	"fmt"
	"os/exec"
)

// Player renders one stored audio chunk to completion.
type Player interface {
	// Play blocks until the chunk has finished playing, the context
	// is cancelled, or playback fails.
	Play(ctx context.Context, path string) error
}

// GstPlayer plays raw PCM16 chunks through a local GStreamer pipeline.
type GstPlayer struct {
	// SampleRate is the PCM sample rate of stored chunks.
	// Zero means 24000, the service's output rate.
	SampleRate int
}

// Play implements Player. The process is killed when ctx is cancelled,
// which is how barge-in cuts off the chunk mid-play.
func (p *GstPlayer) Play(ctx context.Context, path string) error {
	rate := p.SampleRate
	if rate == 0 {
		rate = 24000
	}

	pipeline := fmt.Sprintf(
		"gst-launch-1.0 -q filesrc location=%q ! "+
			"rawaudioparse format=pcm pcm-format=s16le sample-rate=%d num-channels=1 ! "+
			"audioconvert ! audioresample ! autoaudiosink",
		path, rate)

	cmd := exec.CommandContext(ctx, "bash", "-c", pipeline)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("playback: gstreamer: %w", err)
	}
	return nil
}
