package domain

import "time"

type MessageType string

const (
	MessageSent     MessageType = "sent"
	MessageReceived MessageType = "received"
)

func (m MessageType) IsValid() bool {
	return m == MessageSent || m == MessageReceived
}

type ThreadMessage struct {
	Message   string      `json:"message"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

type HistoryEntry struct {
	ID              int64           `json:"id"`
	Username        string          `json:"username"`
	FullName        string          `json:"full_name"`
	ProfilePic      string          `json:"profile_pic"`
	Date            time.Time       `json:"date"`
	Data            AnalysisResult  `json:"data"`
	Conversation    []ThreadMessage `json:"conversation,omitempty"`
	LastInteraction *time.Time      `json:"lastInteraction,omitempty"`
}

func NewHistoryEntry(id int64, result AnalysisResult, now time.Time) HistoryEntry {
	return HistoryEntry{
		ID:         id,
		Username:   result.Profile.Username,
		FullName:   result.Profile.FullName,
		ProfilePic: result.Profile.ProfilePic,
		Date:       now,
		Data:       result,
	}
}
