package analysis

import (
	"errors"
	"fmt"

	"github.com/raaihank/chatpsy/internal/chatstats"
)

// DefaultRateLimitDetail is shown when the service rejects a request with
// 429 and gives no reason.
const DefaultRateLimitDetail = "Тестовый лимит анализов исчерпан. Оставьте отзыв — и мы начислим ещё несколько запусков."

var (
	// ErrTimeout is returned when the service does not answer in time.
	ErrTimeout = errors.New("analysis service timed out")
	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("invalid analysis request")
)

// RateLimitError reports an exhausted analysis quota (HTTP 429).
type RateLimitError struct {
	Detail string
}

func (e *RateLimitError) Error() string {
	return "analysis rate limited: " + e.Detail
}

// StatusError is any other non-2xx answer from the service.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("analysis service returned %d", e.StatusCode)
	}
	return fmt.Sprintf("analysis service returned %d: %s", e.StatusCode, e.Detail)
}

// AnalyzeRequest is the body of POST /analyze_chat. ChatText must already
// be anonymized.
type AnalyzeRequest struct {
	ChatText  string `json:"chat_text" validate:"required"`
	RangeFrom string `json:"range_from,omitempty" validate:"omitempty,datetime=2006-01-02"`
	RangeTo   string `json:"range_to,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type metaRequest struct {
	ChatText string `json:"chat_text" validate:"required"`
}

// ParticipantProfile describes one participant.
type ParticipantProfile struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name"`
	Traits      map[string]string `json:"traits"`
	Summary     string            `json:"summary"`
}

// RelationshipSummary describes the dynamics between participants.
type RelationshipSummary struct {
	Description string   `json:"description"`
	RedFlags    []string `json:"red_flags"`
	GreenFlags  []string `json:"green_flags"`
}

// Recommendation is one piece of advice.
type Recommendation struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// AnalyzeResponse is the result of POST /analyze_chat.
type AnalyzeResponse struct {
	Participants    []ParticipantProfile `json:"participants"`
	Relationship    RelationshipSummary  `json:"relationship"`
	Recommendations []Recommendation     `json:"recommendations"`
	Stats           chatstats.ChatStats  `json:"stats"`

	AnalysisID      *string `json:"analysis_id,omitempty"`
	IsPreview       bool    `json:"is_preview,omitempty"`
	PaymentRequired bool    `json:"payment_required,omitempty"`
	IsFallback      bool    `json:"is_fallback,omitempty"`
	ErrorMessage    *string `json:"error_message,omitempty"`
}
