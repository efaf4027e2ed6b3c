package llm

import "google.golang.org/genai"

// Default generation parameters for the assistant
const (
	defaultModel          = "gemini-2.0-flash"
	defaultTemperature    = 0.7
	defaultTopP           = 0.95
	defaultTopK           = 40
	defaultMaxTokens      = 256
	defaultTimeoutSeconds = 30
)

// GeminiConfig holds the tunable parameters for a chat session
type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int
	TimeoutSeconds  int
}

// geminiHardcoded groups the parts of the configuration that are fixed
// at build time rather than tuned per deployment.
type geminiHardcoded struct {
	SafetySettings []*genai.SafetySetting
	SystemPrompt   string
	Fallbacks      []string
}

// GeminiHardcodedConfig is the fixed persona and safety configuration.
// Responses are spoken aloud through the glasses, so the prompt pushes
// for short conversational answers.
var GeminiHardcodedConfig = geminiHardcoded{
	SafetySettings: []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	},
	SystemPrompt: `You are Lumina, a voice assistant that lives in a pair of camera glasses.
The wearer talks to you hands-free while going about their day. When photo
descriptions are provided in the conversation, treat them as what the wearer
is currently seeing and answer questions about the scene from them.

Keep answers short and conversational, one to three sentences, because they
are read aloud through a small speaker. Never mention that you work from
photo descriptions; speak as if you can see. If you genuinely cannot tell
from what you have, say so plainly and suggest the wearer take another look.`,
	Fallbacks: []string{
		"Sorry, I didn't catch that. Could you say it again?",
		"I'm having trouble thinking right now. Give me a moment and try again.",
		"Hmm, I lost my train of thought. What was that?",
	},
}
