package media

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ffprobe -print_format json -show_streams -show_format output, reduced to
// the fields we read.
type probeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func probeArgs(source string) []string {
	return []string{
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		source,
	}
}

// parseProbe converts ffprobe JSON into SourceInfo.
func parseProbe(data []byte) (SourceInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return SourceInfo{}, fmt.Errorf("cannot parse ffprobe JSON: %w", err)
	}

	var info SourceInfo
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			info.VideoTracks++
			if info.VideoTracks == 1 {
				info.VideoCodec = s.CodecName
				info.Width = s.Width
				info.Height = s.Height
				info.FrameRate = parseFrameRate(s.RFrameRate)
			}
		case "audio":
			info.AudioTracks++
			if info.AudioTracks == 1 {
				info.AudioCodec = s.CodecName
			}
		}
	}
	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		info.Duration = d
	}
	return info, nil
}

// parseFrameRate handles ffprobe's "30000/1001" rational form.
func parseFrameRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

// parseVersion returns the version token of `ffmpeg -version` style output.
func parseVersion(out []byte) string {
	line, _, _ := strings.Cut(string(out), "\n")
	fields := strings.Fields(line)
	for i, f := range fields {
		if f == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return strings.TrimSpace(line)
}
