package lipsync

import (
	"fmt"
	"strings"
)

type outputKind int

const (
	outputEmpty outputKind = iota
	outputSingle
	outputSequence
)

// Output is what a model run produced: either one URL or an ordered list of
// candidate URLs where the final entry is authoritative.
type Output struct {
	kind outputKind
	urls []string
}

func Single(url string) Output {
	return Output{kind: outputSingle, urls: []string{url}}
}

func Sequence(urls []string) Output {
	return Output{kind: outputSequence, urls: append([]string(nil), urls...)}
}

func (o Output) IsSequence() bool { return o.kind == outputSequence }

// LastOf returns the authoritative URL of o. ok is false when o carries no
// usable URL.
func LastOf(o Output) (url string, ok bool) {
	if len(o.urls) == 0 {
		return "", false
	}
	url = strings.TrimSpace(o.urls[len(o.urls)-1])
	return url, url != ""
}

// Normalize converts a decoded provider response into an Output. Replicate
// returns either a JSON string or an array of strings; anything else is an
// error.
func Normalize(raw any) (Output, error) {
	switch v := raw.(type) {
	case nil:
		return Output{}, nil
	case string:
		return Single(v), nil
	case []string:
		return Sequence(v), nil
	case []any:
		urls := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return Output{}, fmt.Errorf("unexpected output element %d of type %T", i, item)
			}
			urls = append(urls, s)
		}
		return Sequence(urls), nil
	case fmt.Stringer:
		// file outputs render as their URL
		return Single(v.String()), nil
	default:
		return Output{}, fmt.Errorf("unexpected output type %T", raw)
	}
}
