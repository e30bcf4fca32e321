package provider

// ModelInfo describes one selectable model.
type ModelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Info describes one backend for settings validation and the status surface.
type Info struct {
	Key         string      `json:"key"`
	Name        string      `json:"name"`
	RequiresKey bool        `json:"requires_key"`
	Models      []ModelInfo `json:"models"`
}

// Catalog lists the supported AI backends and their models.
func Catalog() []Info {
	return []Info{
		{
			Key:         "groq",
			Name:        "Groq",
			RequiresKey: true,
			Models: []ModelInfo{
				{ID: "llama-3.3-70b-versatile", Name: "Llama 3.3 70B"},
				{ID: "llama-3.1-8b-instant", Name: "Llama 3.1 8B Instant"},
				{ID: "qwen/qwen3-32b", Name: "Qwen3 32B"},
				{ID: "gemma2-9b-it", Name: "Gemma2 9B"},
				{ID: "mixtral-8x7b-32768", Name: "Mixtral 8x7B"},
			},
		},
		{
			Key:         "pollinations",
			Name:        "Pollinations",
			RequiresKey: false,
			Models: []ModelInfo{
				{ID: "openai", Name: "OpenAI GPT"},
				{ID: "claude", Name: "Claude"},
				{ID: "gemini", Name: "Gemini"},
				{ID: "deepseek", Name: "DeepSeek"},
				{ID: "mistral", Name: "Mistral"},
				{ID: "llama", Name: "Llama"},
			},
		},
		{
			Key:         "openrouter",
			Name:        "OpenRouter",
			RequiresKey: true,
			Models: []ModelInfo{
				{ID: "qwen/qwen3-14b:free", Name: "Qwen3 14B"},
				{ID: "deepseek/deepseek-r1t-chimera:free", Name: "DeepSeek R1T Chimera"},
				{ID: "google/gemma-3-27b:free", Name: "Gemma 3 27B"},
				{ID: "mistralai/mistral-small-3.1-24b:free", Name: "Mistral Small 3.1 24B"},
			},
		},
		{
			Key:         "huggingface",
			Name:        "HuggingFace",
			RequiresKey: true,
			Models: []ModelInfo{
				{ID: "meta-llama/Llama-3.1-8B-Instruct", Name: "Llama 3.1 8B"},
				{ID: "mistralai/Mistral-7B-Instruct-v0.3", Name: "Mistral 7B"},
				{ID: "microsoft/Phi-3-mini-4k-instruct", Name: "Phi-3 Mini"},
			},
		},
	}
}

// CatalogInfo returns the catalog entry for a backend key.
func CatalogInfo(key string) (Info, bool) {
	for _, info := range Catalog() {
		if info.Key == key {
			return info, true
		}
	}
	return Info{}, false
}
