package model

import "time"

type Channel string

const (
	ChannelEmail     Channel = "email"
	ChannelSocial    Channel = "social_media"
	ChannelChat      Channel = "chat"
	ChannelCommunity Channel = "community"
	ChannelPhone     Channel = "phone"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSocial, ChannelChat, ChannelCommunity, ChannelPhone:
		return true
	}
	return false
}

type Status string

const (
	StatusNew        Status = "new"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
	StatusEscalated  Status = "escalated"
)

// IsTerminal reports whether no further lifecycle transitions apply.
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusClosed
}

type PriorityLevel string

const (
	PriorityLow    PriorityLevel = "low"
	PriorityMedium PriorityLevel = "medium"
	PriorityHigh   PriorityLevel = "high"
	PriorityUrgent PriorityLevel = "urgent"
)

// PriorityLevelForScore maps a clamped [0,100] priority score to its level.
// The level is always a pure function of the score.
func PriorityLevelForScore(score float64) PriorityLevel {
	switch {
	case score >= 80:
		return PriorityUrgent
	case score >= 60:
		return PriorityHigh
	case score >= 30:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// SentimentLabelForScore derives the label from the sign of the score.
func SentimentLabelForScore(score float64) SentimentLabel {
	switch {
	case score > 0:
		return SentimentPositive
	case score < 0:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

type SentimentResult struct {
	Score float64        `json:"score"`
	Label SentimentLabel `json:"label"`
}

type SpamResult struct {
	Score      int     `json:"score"`
	Confidence float64 `json:"confidence"`
	IsSpam     bool    `json:"is_spam"`
}

// Query is a single inbound support item tracked through classification,
// routing, and resolution.
type Query struct {
	ID         int64             `json:"id"`
	Channel    Channel           `json:"channel"`
	ReceivedAt time.Time         `json:"received_at"`
	CreatedAt  time.Time         `json:"created_at"`

	Subject     string            `json:"subject"`
	Content     string            `json:"content"`
	SenderName  string            `json:"sender_name"`
	SenderEmail string            `json:"sender_email"`
	SenderID    *string           `json:"sender_id,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`

	Tags          []string         `json:"tags"`
	PrimaryTag    string           `json:"primary_tag"`
	Sentiment     *SentimentResult `json:"sentiment,omitempty"`
	Spam          *SpamResult      `json:"spam,omitempty"`
	PriorityLevel PriorityLevel    `json:"priority_level"`
	PriorityScore float64          `json:"priority_score"`

	AssignedTeamID  *int64  `json:"assigned_team_id,omitempty"`
	AssignedAgentID *int64  `json:"assigned_agent_id,omitempty"`
	Status          Status  `json:"status"`
	Escalated       bool    `json:"escalated"`
	EscalatedAt     *time.Time `json:"escalated_at,omitempty"`
	EscalationReason *string   `json:"escalation_reason,omitempty"`

	FirstResponseAt       *time.Time `json:"first_response_at,omitempty"`
	ResponseTimeMinutes   *int       `json:"response_time_minutes,omitempty"`
	ResolutionTimeMinutes *int       `json:"resolution_time_minutes,omitempty"`
}

// Escalatable reports whether the escalation sweep may promote this query.
// Terminal and already-escalated queries are never touched.
func (q *Query) Escalatable() bool {
	if q.Escalated {
		return false
	}
	switch q.Status {
	case StatusNew, StatusAssigned, StatusInProgress:
		return true
	default:
		return false
	}
}
