package tts

import "strings"

const (
	DefaultElevenLabsVoiceID = "21m00Tcm4TlvDq8ikWAM" // Rachel
	DefaultOpenAIVoice       = "alloy"
)

// ElevenLabs premade voices addressable by name.
var elevenLabsVoices = map[string]string{
	"rachel": "21m00Tcm4TlvDq8ikWAM",
	"domi":   "AZnzlk1XvdvUeBnXmlld",
	"bella":  "EXAVITQu4vr4xnSDxMaL",
	"antoni": "ErXwobaYiN019PkySvjV",
	"josh":   "TxGEqnHWrfWFTfGW9XjX",
	"arnold": "VR6AewLTigWG4xSOukaG",
	"adam":   "pNInz6obpgDQGcFmaJgB",
	"sam":    "yoZ06aMxZJJ28mfd3POQ",
}

// splitSelector splits "provider/voice" into its parts. A selector without a
// slash has an empty provider.
func splitSelector(selector string) (provider, voice string) {
	selector = strings.TrimSpace(selector)
	if i := strings.IndexByte(selector, '/'); i >= 0 {
		return strings.ToLower(selector[:i]), strings.TrimSpace(selector[i+1:])
	}
	return "", selector
}

// ElevenLabsVoiceID resolves a selector to an ElevenLabs voice id. Only
// "elevenlabs/<voice>" selects a voice; everything else gets the default.
func ElevenLabsVoiceID(selector string) string {
	provider, voice := splitSelector(selector)
	if provider != "elevenlabs" || voice == "" {
		return DefaultElevenLabsVoiceID
	}
	if id, ok := elevenLabsVoices[strings.ToLower(voice)]; ok {
		return id
	}
	return voice
}

// OpenAIVoice resolves a selector to an OpenAI voice name. "openai/<voice>"
// and bare names are used as given; selectors aimed at another provider fall
// back to alloy.
func OpenAIVoice(selector string) string {
	provider, voice := splitSelector(selector)
	switch {
	case voice == "":
		return DefaultOpenAIVoice
	case provider == "" || provider == "openai":
		return strings.ToLower(voice)
	default:
		return DefaultOpenAIVoice
	}
}
