package speech

// BackendInfo describes one selectable TTS backend for settings surfaces.
type BackendInfo struct {
	Key         string   `json:"key"`
	DisplayName string   `json:"display_name"`
	NeedsKey    bool     `json:"needs_key"`
	Voices      []string `json:"voices"`
}

// Catalog lists the selectable backends and their commonly used voices.
func Catalog() []BackendInfo {
	return []BackendInfo{
		{
			Key:         "edge",
			DisplayName: "Microsoft Edge TTS",
			Voices: []string{
				"en-US-JennyNeural",
				"en-US-AriaNeural",
				"en-US-GuyNeural",
				"en-GB-SoniaNeural",
				"en-AU-NatashaNeural",
				"it-IT-ElsaNeural",
				"fr-FR-DeniseNeural",
				"de-DE-KatjaNeural",
				"es-ES-ElviraNeural",
				"ja-JP-NanamiNeural",
			},
		},
		{
			Key:         "pollinations",
			DisplayName: "Pollinations Audio",
			Voices: []string{
				"alloy", "echo", "fable", "onyx", "nova", "shimmer",
				"coral", "verse", "ballad", "ash", "sage", "amuch", "dan",
			},
		},
		{
			Key:         "elevenlabs",
			DisplayName: "ElevenLabs",
			NeedsKey:    true,
			Voices: []string{
				"21m00Tcm4TlvDq8ikWAM", // Rachel
				"AZnzlk1XvdvUeBnXmlld", // Domi
				"EXAVITQu4vr4xnSDxMaL", // Bella
				"ErXwobaYiN019PkySvjV", // Antoni
				"MF3mGyEYCl7XYWbV9V6O", // Elli
				"TxGEqnHWrfWFTfGW9XjX", // Josh
			},
		},
	}
}

// CatalogInfo returns the catalog entry for one backend key.
func CatalogInfo(key string) (BackendInfo, bool) {
	for _, b := range Catalog() {
		if b.Key == key {
			return b, true
		}
	}
	return BackendInfo{}, false
}
