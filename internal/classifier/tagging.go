package classifier

// TagOther is assigned when no category keyword matches at all.
const TagOther = "other"

type tagCategory struct {
	name     string
	keywords []string
}

// tagCategories is the fixed keyword table. Declaration order is the
// tie-break: on equal scores the first-seen category wins.
var tagCategories = []tagCategory{
	{"question", []string{"how", "what", "when", "where", "why", "question", "wondering", "help", "explain", "clarify"}},
	{"request", []string{"request", "please", "could", "would", "need", "want", "feature", "add", "enable", "access"}},
	{"complaint", []string{"complaint", "unhappy", "disappointed", "terrible", "awful", "unacceptable", "frustrated", "angry", "worst", "refund"}},
	{"compliment", []string{"thank", "great", "excellent", "awesome", "amazing", "love", "fantastic", "wonderful", "appreciate"}},
	{"feedback", []string{"feedback", "suggest", "suggestion", "improve", "improvement", "idea", "recommend", "opinion"}},
	{"technical_issue", []string{"error", "bug", "crash", "broken", "fail", "failure", "issue", "problem", "down", "timeout", "exception"}},
	{"billing", []string{"bill", "billing", "invoice", "charge", "charged", "payment", "refund", "subscription", "price", "cost", "overcharged"}},
}

const (
	exactMatchWeight     = 2
	substringMatchWeight = 1
)

// TagResult holds the deduplicated tag set and the single highest-scoring
// primary tag. PrimaryTag is always a member of Tags.
type TagResult struct {
	Tags       []string
	PrimaryTag string
	Scores     map[string]int
}

// ClassifyTags scores each category by summing per-keyword weights over the
// stemmed tokens of subject+body: token-exact match counts 2, substring match
// counts 1. Zero matches across all categories yields the singleton "other".
// Pure: identical input always produces identical output.
func ClassifyTags(subject, body string) TagResult {
	tokens := stemAll(Tokenize(subject + " " + body))

	scores := make(map[string]int, len(tagCategories))
	var tags []string
	best := 0
	primary := ""

	for _, cat := range tagCategories {
		score := 0
		for _, keyword := range cat.keywords {
			stemmed := Stem(keyword)
			for _, token := range tokens {
				if token == stemmed {
					score += exactMatchWeight
				} else if len(stemmed) >= 3 && contains(token, stemmed) {
					score += substringMatchWeight
				}
			}
		}
		if score > 0 {
			scores[cat.name] = score
			tags = append(tags, cat.name)
			// Strictly greater: ties keep the first-seen category in
			// table-declaration order.
			if score > best {
				best = score
				primary = cat.name
			}
		}
	}

	if len(tags) == 0 {
		return TagResult{
			Tags:       []string{TagOther},
			PrimaryTag: TagOther,
			Scores:     scores,
		}
	}

	return TagResult{
		Tags:       tags,
		PrimaryTag: primary,
		Scores:     scores,
	}
}

func contains(token, keyword string) bool {
	if len(keyword) > len(token) {
		return false
	}
	for i := 0; i+len(keyword) <= len(token); i++ {
		if token[i:i+len(keyword)] == keyword {
			return true
		}
	}
	return false
}
