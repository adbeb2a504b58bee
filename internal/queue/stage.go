package queue

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"triagehq.app/triage/internal/model"
)

// Stage is one named processing queue. Each stage maps to its own Redis
// stream; the intake stage fans out into the four classification stages.
type Stage string

const (
	StageIntake    Stage = "intake"
	StageTagging   Stage = "tagging"
	StageSentiment Stage = "sentiment"
	StagePriority  Stage = "priority"
	StageSpam      Stage = "spam"
	StageNotify    Stage = "notify"
)

// ClassificationStages are the fan-out targets of an intake job.
var ClassificationStages = []Stage{StageTagging, StageSentiment, StagePriority, StageSpam}

func (s Stage) Valid() bool {
	switch s {
	case StageIntake, StageTagging, StageSentiment, StagePriority, StageSpam, StageNotify:
		return true
	}
	return false
}

// StreamName returns the Redis stream backing a stage.
func StreamName(prefix string, stage Stage) string {
	return fmt.Sprintf("%s:%s", prefix, stage)
}

// PriorityValue maps a query priority level to the numeric job priority used
// for dequeue ordering on brokers that support priority scheduling. Unknown or
// missing levels default to medium.
func PriorityValue(level model.PriorityLevel) int {
	switch level {
	case model.PriorityUrgent:
		return 10
	case model.PriorityHigh:
		return 7
	case model.PriorityMedium:
		return 4
	case model.PriorityLow:
		return 1
	default:
		return 4
	}
}

// Job is the ephemeral queue payload: a stage target, a query reference, the
// minimal content a classification worker needs, and retry bookkeeping.
type Job struct {
	ID       string // stream message ID, set on read
	Stage    Stage
	QueryID  int64
	Channel  string
	Subject  string
	Content  string
	Sender   string
	Reason   string // notify jobs: why the notification was emitted
	Priority int
	Attempt  int
	Raw      redis.XMessage
}
