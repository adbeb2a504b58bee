package dto

import "time"

type CreateQueryRequest struct {
	Channel     string            `json:"channel" binding:"required" jsonschema:"enum=email,enum=social_media,enum=chat,enum=community,enum=phone" jsonschema_description:"Inbound channel the message arrived on"`
	Subject     string            `json:"subject" jsonschema_description:"Message subject line"`
	Content     string            `json:"content" binding:"required" jsonschema_description:"Message body, must be non-empty"`
	SenderName  string            `json:"sender_name" jsonschema_description:"Display name of the sender"`
	SenderEmail string            `json:"sender_email" jsonschema_description:"Email address of the sender"`
	SenderID    *string           `json:"sender_id,omitempty" jsonschema_description:"Channel-specific sender identifier"`
	Metadata    map[string]string `json:"metadata,omitempty" jsonschema_description:"Free-form channel metadata"`
	ReceivedAt  *time.Time        `json:"received_at,omitempty" jsonschema_description:"When the message arrived, defaults to now"`
}

type CreateQueryResponse struct {
	QueryID  int64 `json:"query_id"`
	Enqueued bool  `json:"enqueued"`
}

type AssignResponse struct {
	TeamID   *int64 `json:"team_id"`
	AgentID  *int64 `json:"agent_id"`
	Assigned bool   `json:"assigned"`
}

type ManualAssignRequest struct {
	TeamID  int64  `json:"team_id" binding:"required"`
	AgentID int64  `json:"agent_id" binding:"required"`
	Actor   string `json:"actor" binding:"required"`
}

type UpdateStatusRequest struct {
	Status string  `json:"status" binding:"required"`
	Actor  *string `json:"actor,omitempty"`
	Note   string  `json:"note,omitempty"`
}

type SweepResponse struct {
	EscalatedQueryIDs []int64 `json:"escalated_query_ids"`
}
