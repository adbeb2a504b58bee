package model

import "time"

// Team is a capability descriptor. The pipeline only reads its capability and
// workload fields and increments counters on assignment; administrative
// mutation happens elsewhere.
type Team struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	IsActive bool     `json:"is_active"`

	HandlesTags       []string        `json:"handles_tags"`
	HandlesChannels   []Channel       `json:"handles_channels"`
	HandlesPriorities []PriorityLevel `json:"handles_priorities"`

	TotalQueries       int     `json:"total_queries"`
	AvgResponseMinutes float64 `json:"avg_response_minutes"`

	CreatedAt time.Time `json:"created_at"`
}

// HandlesTag reports whether the team declares the given tag.
func (t *Team) HandlesTag(tag string) bool {
	for _, v := range t.HandlesTags {
		if v == tag {
			return true
		}
	}
	return false
}

// HandlesChannel reports whether the team declares the given channel.
func (t *Team) HandlesChannel(ch Channel) bool {
	for _, v := range t.HandlesChannels {
		if v == ch {
			return true
		}
	}
	return false
}

// HandlesPriority reports whether the team declares the given priority level.
func (t *Team) HandlesPriority(p PriorityLevel) bool {
	for _, v := range t.HandlesPriorities {
		if v == p {
			return true
		}
	}
	return false
}

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleAgent      Role = "agent"
	RoleSpecialist Role = "specialist"
	RoleLead       Role = "lead"
)

// Agent is a support user belonging to at most one team.
type Agent struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	TeamID   *int64 `json:"team_id,omitempty"`
	Role     Role   `json:"role"`
	IsActive bool   `json:"is_active"`

	TotalAssigned      int     `json:"total_assigned"`
	TotalResolved      int     `json:"total_resolved"`
	AvgResponseMinutes float64 `json:"avg_response_minutes"`

	CreatedAt time.Time `json:"created_at"`
}
