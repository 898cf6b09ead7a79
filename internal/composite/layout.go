// Package composite re-renders a generated avatar video onto a fixed
// 1920x1080 canvas with a background fill, camera framing and two overlay
// bands, then exports it as VP9/Opus WebM.
package composite

import (
	"fmt"
	"math"

	"github.com/avatarstudio/avatar-studio/internal/avatar"
)

const (
	CanvasWidth  = 1920
	CanvasHeight = 1080
	FrameRate    = 30
	VideoBitrate = "9M"
	BandHeight   = 8

	baseWidthFraction = 0.6
)

var backgroundColors = map[avatar.Background]string{
	avatar.BackgroundStudio:   "0x0a0a0a",
	avatar.BackgroundGradient: "0x1a1024",
	avatar.BackgroundNight:    "0x0b1020",
}

// BackgroundColor returns the flat fill for a background, defaulting to studio.
func BackgroundColor(bg avatar.Background) string {
	if c, ok := backgroundColors[bg]; ok {
		return c
	}
	return backgroundColors[avatar.BackgroundStudio]
}

// CameraScale is the placement scale for a camera angle.
func CameraScale(angle avatar.CameraAngle) float64 {
	switch angle {
	case avatar.AngleClose:
		return 1.2
	case avatar.AngleWide:
		return 0.9
	default:
		return 1.0
	}
}

// Layout is the resolved geometry of one export.
type Layout struct {
	CanvasWidth  int
	CanvasHeight int
	VideoWidth   int
	VideoHeight  int
	X            int
	Y            int
	Background   string
	BandAlpha    float64
}

// ComputeLayout places the video at 60% of the canvas width times the camera
// scale, 16:9, centered. Dimensions are rounded to even numbers for the
// encoder. The canvas is always 1920x1080.
func ComputeLayout(spec avatar.CompositeSpec) Layout {
	w := even(CanvasWidth * baseWidthFraction * CameraScale(spec.CameraAngle))
	h := even(float64(w) * 9 / 16)
	return Layout{
		CanvasWidth:  CanvasWidth,
		CanvasHeight: CanvasHeight,
		VideoWidth:   w,
		VideoHeight:  h,
		X:            (CanvasWidth - w) / 2,
		Y:            (CanvasHeight - h) / 2,
		Background:   BackgroundColor(spec.Background),
		BandAlpha:    BandAlpha(spec.Movement.Head),
	}
}

// BandAlpha is 0.08 + 0.12 * head/100, with head clamped to 0-100.
func BandAlpha(head int) float64 {
	head = max(0, min(100, head))
	return 0.08 + 0.12*float64(head)/100
}

// FilterGraph renders the layout as an ffmpeg filter_complex. The color
// source is unbounded; overlay's shortest=1 ends the render with the input.
func (l Layout) FilterGraph(outLabel string) string {
	band := fmt.Sprintf("color=white@%.3f:t=fill", l.BandAlpha)
	return fmt.Sprintf(
		"color=c=%s:s=%dx%d:r=%d[bg];"+
			"[0:v]scale=%d:%d,setsar=1[fg];"+
			"[bg][fg]overlay=x=%d:y=%d:shortest=1,"+
			"drawbox=x=0:y=0:w=iw:h=%d:%s,"+
			"drawbox=x=0:y=ih-%d:w=iw:h=%d:%s,"+
			"format=yuv420p[%s]",
		l.Background, l.CanvasWidth, l.CanvasHeight, FrameRate,
		l.VideoWidth, l.VideoHeight,
		l.X, l.Y,
		BandHeight, band,
		BandHeight, BandHeight, band,
		outLabel,
	)
}

func even(v float64) int {
	return int(math.Round(v/2)) * 2
}
