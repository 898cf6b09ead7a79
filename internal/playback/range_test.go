package playback

import (
	"errors"
	"net/http"
	"testing"
)

// A 1080p export of a few seconds is a few megabytes.
const exportSize = 4 << 20

func TestParseRange(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		size    int64
		want    Span
		partial bool
		wantErr error
	}{
		{"no header plays from the start", "", exportSize, Span{}, false, nil},
		{"initial player probe", "bytes=0-", exportSize, Span{0, exportSize - 1}, true, nil},
		{"seek to the middle", "bytes=2097152-", exportSize, Span{2097152, exportSize - 1}, true, nil},
		{"bounded chunk", "bytes=1024-2047", exportSize, Span{1024, 2047}, true, nil},
		{"cues at the tail", "bytes=-4096", exportSize, Span{exportSize - 4096, exportSize - 1}, true, nil},
		{"tail longer than clip", "bytes=-9000", 512, Span{0, 511}, true, nil},
		{"end past the clip is clamped", "bytes=100-99999999", exportSize, Span{100, exportSize - 1}, true, nil},
		{"first window of several", "bytes=0-63, 128-255", exportSize, Span{0, 63}, true, nil},
		{"padded header", " bytes=10-19 ", exportSize, Span{10, 19}, true, nil},
		{"single byte", "bytes=0-0", 1, Span{0, 0}, true, nil},

		{"seek past the end", "bytes=4194304-", exportSize, Span{}, false, ErrUnsatisfiable},
		{"empty blob", "bytes=0-", 0, Span{}, false, ErrUnsatisfiable},
		{"tail of empty blob", "bytes=-10", 0, Span{}, false, ErrUnsatisfiable},

		{"other unit ignored", "frames=0-24", exportSize, Span{}, false, nil},
		{"missing dash ignored", "bytes=100", exportSize, Span{}, false, nil},
		{"non-numeric ignored", "bytes=a-b", exportSize, Span{}, false, nil},
		{"zero tail ignored", "bytes=-0", exportSize, Span{}, false, nil},
		{"reversed window ignored", "bytes=200-100", exportSize, Span{}, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, partial, err := ParseRange(tt.header, tt.size)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseRange() error = %v, want %v", err, tt.wantErr)
			}
			if partial != tt.partial {
				t.Fatalf("ParseRange() partial = %v, want %v", partial, tt.partial)
			}
			if got != tt.want {
				t.Errorf("ParseRange() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSpan_SetHeaders(t *testing.T) {
	h := http.Header{}
	Span{First: 2097152, Last: exportSize - 1}.setHeaders(h, exportSize)

	if got := h.Get("Content-Length"); got != "2097152" {
		t.Errorf("Content-Length = %q", got)
	}
	if got := h.Get("Content-Range"); got != "bytes 2097152-4194303/4194304" {
		t.Errorf("Content-Range = %q", got)
	}

	h = http.Header{}
	setUnsatisfiedHeaders(h, exportSize)
	if got := h.Get("Content-Range"); got != "bytes */4194304" {
		t.Errorf("Content-Range = %q", got)
	}
}
