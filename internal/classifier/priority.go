package classifier

import (
	"strings"

	"triagehq.app/triage/internal/model"
)

const priorityBaseScore = 50.0

type priorityTier struct {
	weight   float64
	keywords []string
}

// priorityTiers are matched as substrings of the lowercased subject+body.
// Each matched keyword adds its tier weight; matches are cumulative and not
// capped per tier.
var priorityTiers = []priorityTier{
	{10, []string{"urgent", "asap", "emergency", "immediately", "critical", "right now", "can't work", "cannot work"}},
	{7, []string{"important", "soon", "quickly", "priority", "escalate", "blocked"}},
	{4, []string{"problem", "issue", "error", "broken", "fail", "not working"}},
	{2, []string{"question", "wondering", "when possible", "no rush"}},
}

// Primary-tag adjustment buckets.
var (
	urgentMappedTags = map[string]float64{"technical_issue": 20}
	highMappedTags   = map[string]float64{"complaint": 10, "billing": 10}
	lowMappedTags    = map[string]float64{"compliment": -10, "feedback": -10}
)

// channelCoefficients weight the score by how synchronous the channel is.
var channelCoefficients = map[model.Channel]float64{
	model.ChannelPhone:     1.5,
	model.ChannelChat:      1.3,
	model.ChannelSocial:    1.2,
	model.ChannelEmail:     1.0,
	model.ChannelCommunity: 0.8,
}

const complaintTagBonus = 15.0

// PriorityResult is the clamped numeric score and its derived level.
type PriorityResult struct {
	Score float64
	Level model.PriorityLevel
}

// ScorePriority computes the deterministic priority score:
// base 50, plus each matched keyword's tier weight, adjusted by the
// primary-tag bucket, multiplied by the channel coefficient, plus a flat
// bonus when "complaint" appears anywhere in the tag set, clamped to [0,100].
// The level is the pure threshold function of the final score.
func ScorePriority(subject, body string, channel model.Channel, primaryTag string, tags []string) PriorityResult {
	text := strings.ToLower(subject + " " + body)

	score := priorityBaseScore
	for _, tier := range priorityTiers {
		for _, keyword := range tier.keywords {
			if strings.Contains(text, keyword) {
				score += tier.weight
			}
		}
	}

	if w, ok := urgentMappedTags[primaryTag]; ok {
		score += w
	} else if w, ok := highMappedTags[primaryTag]; ok {
		score += w
	} else if w, ok := lowMappedTags[primaryTag]; ok {
		score += w
	}

	coeff, ok := channelCoefficients[channel]
	if !ok {
		coeff = 1.0
	}
	score *= coeff

	for _, tag := range tags {
		if tag == "complaint" {
			score += complaintTagBonus
			break
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return PriorityResult{
		Score: score,
		Level: model.PriorityLevelForScore(score),
	}
}
