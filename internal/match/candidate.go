package match

// Confidence tiers for candidate groups. Deterministic groups come from
// normalization-key clustering; high and medium come from the classifier.
const (
	ConfidenceDeterministic = "deterministic"
	ConfidenceHigh          = "high"
	ConfidenceMedium        = "medium"
)

// CandidateGroup proposes that a set of person records describe the same
// individual. MemberIDs are person record identifiers, sorted ascending.
type CandidateGroup struct {
	MemberIDs  []int64 `json:"member_ids"`
	Confidence string  `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Stats summarizes one analysis run.
type Stats struct {
	ScopeSize           int `json:"scope_size"`
	DeterministicGroups int `json:"deterministic_groups"`
	EntityHits          int `json:"entity_hits"`
	AIHighGroups        int `json:"ai_high_groups"`
	AIMediumGroups      int `json:"ai_medium_groups"`
	Unmatched           int `json:"unmatched"`
}

// Report is the result of analyzing a partner's unresolved records.
type Report struct {
	PartnerID     int64            `json:"partner_id"`
	Deterministic []CandidateGroup `json:"deterministic"`
	AI            []CandidateGroup `json:"ai"`
	Stats         Stats            `json:"stats"`
}

// Groups returns all candidate groups, deterministic first.
func (r *Report) Groups() []CandidateGroup {
	groups := make([]CandidateGroup, 0, len(r.Deterministic)+len(r.AI))
	groups = append(groups, r.Deterministic...)
	groups = append(groups, r.AI...)
	return groups
}
