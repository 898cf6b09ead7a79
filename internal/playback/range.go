package playback

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// ErrUnsatisfiable means the requested window lies outside the blob.
var ErrUnsatisfiable = errors.New("range not satisfiable")

// Span is an inclusive byte window into a blob.
type Span struct {
	First int64
	Last  int64
}

func (s Span) Len() int64 { return s.Last - s.First + 1 }

// setHeaders writes the 206 headers for s within a blob of size bytes.
func (s Span) setHeaders(h http.Header, size int64) {
	h.Set("Content-Length", strconv.FormatInt(s.Len(), 10))
	h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", s.First, s.Last, size))
}

func setUnsatisfiedHeaders(h http.Header, size int64) {
	h.Set("Content-Range", "bytes */"+strconv.FormatInt(size, 10))
}

// ParseRange resolves a Range header against a blob of size bytes.
// partial is false when the header is absent or malformed; callers then send
// the whole blob. Players that ask for several windows get the first one.
func ParseRange(header string, size int64) (span Span, partial bool, err error) {
	spec, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok {
		return Span{}, false, nil
	}
	spec, _, _ = strings.Cut(spec, ",")
	first, last, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok {
		return Span{}, false, nil
	}

	if first == "" {
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 {
			return Span{}, false, nil
		}
		if size <= 0 {
			return Span{}, false, ErrUnsatisfiable
		}
		return Span{First: max(size-n, 0), Last: size - 1}, true, nil
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 {
		return Span{}, false, nil
	}
	end := size - 1
	if last != "" {
		if end, err = strconv.ParseInt(last, 10, 64); err != nil || end < start {
			return Span{}, false, nil
		}
	}
	if start >= size {
		return Span{}, false, ErrUnsatisfiable
	}
	return Span{First: start, Last: min(end, size-1)}, true, nil
}
