package domain

// ChatRequest is the validated input to the answer synthesizer.
type ChatRequest struct {
	Message     string       `json:"message,omitempty"`
	Mode        ChatMode     `json:"mode"`
	Provider    Provider     `json:"provider"`
	ResourceIDs []string     `json:"resource_ids,omitempty"`
	SessionID   string       `json:"session_id,omitempty"`
	Model       string       `json:"model,omitempty"`
	// Temperature nil means "use the synthesizer default". A pointer keeps
	// an explicit 0 distinguishable from an absent field.
	Temperature *float32     `json:"temperature,omitempty"`
	Style       SummaryStyle `json:"summary_style,omitempty"`
}

// ValidateChatRequest checks a ChatRequest at the entry boundary and fills
// in defaults. Mode/message mismatches fail before any backend is touched.
func ValidateChatRequest(req *ChatRequest) error {
	if req.Mode == "" {
		req.Mode = ModeQA
	}
	if req.Provider == "" {
		req.Provider = ProviderVector
	}
	if req.Style == "" {
		req.Style = StyleDetailed
	}

	switch req.Mode {
	case ModeChat, ModeQA:
		if req.Message == "" {
			return NewValidationError("message", "required for chat/qa modes")
		}
	case ModeSummarize:
		if len(req.ResourceIDs) == 0 {
			return NewValidationError("resource_ids", "required for summarize mode")
		}
	default:
		return NewValidationError("mode", "must be chat, qa, or summarize")
	}

	switch req.Provider {
	case ProviderVector, ProviderGemini:
	default:
		return NewValidationError("provider", "must be vector or gemini")
	}

	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		return NewValidationError("temperature", "must be in [0, 2]")
	}

	switch req.Style {
	case StyleBrief, StyleDetailed, StyleBullet:
	default:
		return NewValidationError("summary_style", "must be brief, detailed, or bullet")
	}
	return nil
}

// ValidateResource checks the minimum shape of a resource before it enters
// the library.
func ValidateResource(r Resource) error {
	if r.Title == "" {
		return NewValidationError("title", "is required")
	}
	if r.URL == "" && r.FilePath == "" {
		return NewValidationError("url", "either url or file_path is required")
	}
	return nil
}
