package model

// AnswerKind distinguishes the payload variants the conversation layer renders.
// NoMatches and UpstreamUnavailable are deliberately separate: an empty catalog
// answer and a failed search must never look the same to the user.
type AnswerKind string

const (
	AnswerResults             AnswerKind = "results"
	AnswerClarification       AnswerKind = "clarification"
	AnswerNoMatches           AnswerKind = "no_matches"
	AnswerUpstreamUnavailable AnswerKind = "upstream_unavailable"
)

// ProductLine is one rendered result row, channel-neutral.
type ProductLine struct {
	Name         string   `json:"name"`
	DisplayPrice string   `json:"display_price"`
	URL          string   `json:"url,omitempty"`
	MatchReasons []string `json:"match_reasons,omitempty"`
}

// AnswerPayload is the outcome of one conversation turn.
type AnswerPayload struct {
	Kind         AnswerKind    `json:"kind"`
	Question     string        `json:"question,omitempty"`
	Lines        []ProductLine `json:"lines,omitempty"`
	TotalMatches int           `json:"total_matches"`
}

// ChatRequest is the direct REST chat request body.
type ChatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message" binding:"required"`
}

// ChatResponse wraps the payload for the REST chat endpoint.
type ChatResponse struct {
	ConversationID string        `json:"conversation_id"`
	Answer         AnswerPayload `json:"answer"`
	Took           int64         `json:"took_ms"`
}
