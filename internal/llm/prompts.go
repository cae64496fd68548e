package llm

// Default prompts used when a request or session supplies none.
const (
	DefaultAudioPrompt      = "Please transcribe this audio recording and provide any additional insights about what you hear."
	DefaultImagePrompt      = "Please analyze this image and describe what you see."
	DefaultVideoPrompt      = "Please analyze this video and describe what you see, including any actions, scenes, or notable details."
	DefaultMultimodalPrompt = "Please analyze this content and provide insights."
	DefaultFramePrompt      = "Describe what you see in this video frame."
)

// Conversation-mode prompts keep replies to one short sentence.
const (
	ConversationAudioPrompt      = "In one brief sentence (under 15 words), transcribe the main content."
	ConversationImagePrompt      = "In one brief sentence (under 15 words), describe what you see."
	ConversationVideoPrompt      = "In one brief sentence (under 15 words), describe the main action."
	ConversationMultimodalPrompt = "In one brief sentence (under 15 words), summarize the content."
	ConversationTextSuffix       = "\n\nIMPORTANT: Respond in ONE brief sentence only (maximum 15 words)."
)
