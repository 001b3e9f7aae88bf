package chatstats

// ParticipantStats is the per-sender message tally.
type ParticipantStats struct {
	ID               string  `json:"id"`
	MessagesCount    int     `json:"messages_count"`
	AvgMessageLength float64 `json:"avg_message_length"`
}

// ChatStats summarizes a conversation.
type ChatStats struct {
	TotalMessages  int                `json:"total_messages"`
	Participants   []ParticipantStats `json:"participants"`
	FirstMessageAt *string            `json:"first_message_at"`
	LastMessageAt  *string            `json:"last_message_at"`
}

// ChatMeta is the response of the chat_meta endpoint.
type ChatMeta struct {
	Stats            ChatStats `json:"stats"`
	UploadBytes      int64     `json:"upload_bytes"`
	RecommendedBytes int64     `json:"recommended_bytes"`
}
