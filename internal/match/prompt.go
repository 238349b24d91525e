package match

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"dossier/internal/archive"
	"dossier/internal/services/llm"
)

const classifySystemPrompt = `You deduplicate Hungarian person records from school yearbooks.

You receive a JSON array of records: {"record_id": number, "name": string, "school_id": number}.
Group records that refer to the same real person. Consider nicknames,
diminutives (e.g. "Kati" for "Katalin"), maiden/married name changes,
transliteration differences, and typos. Records from different schools are
rarely the same person unless the names are distinctive and identical.

Respond with JSON only, in this exact shape:
{"groups":[{"member_ids":[1,2],"confidence":"high","reason":"short explanation"}]}

Rules:
- Every group needs at least two member_ids taken from the input.
- "confidence" is "high" when you are nearly certain, "medium" when plausible.
- Omit records you cannot group; never invent record ids.
- Keep each reason under twenty words.`

type classifyRecord struct {
	RecordID int64  `json:"record_id"`
	Name     string `json:"name"`
	SchoolID int64  `json:"school_id"`
}

type classifyResponse struct {
	Groups []struct {
		MemberIDs  []int64 `json:"member_ids"`
		Confidence string  `json:"confidence"`
		Reason     string  `json:"reason"`
	} `json:"groups"`
}

func buildClassifyPrompt(records []*archive.PersonRecord) (string, error) {
	payload := make([]classifyRecord, 0, len(records))
	for _, rec := range records {
		payload = append(payload, classifyRecord{
			RecordID: rec.ID,
			Name:     rec.Name,
			SchoolID: rec.SchoolID,
		})
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode classify prompt: %w", err)
	}
	return string(encoded), nil
}

// parseClassifyResponse validates the model output against the batch scope:
// unknown record ids are dropped, groups shrinking below two members are
// discarded, and confidences outside the contract are rejected.
func parseClassifyResponse(content string, scope map[int64]struct{}) ([]CandidateGroup, []string, error) {
	var parsed classifyResponse
	if err := llm.DecodeJSON(content, &parsed); err != nil {
		return nil, nil, fmt.Errorf("decode classify response: %w", err)
	}

	var (
		groups   []CandidateGroup
		rejected []string
	)
	for _, raw := range parsed.Groups {
		confidence := strings.ToLower(strings.TrimSpace(raw.Confidence))
		if confidence != ConfidenceHigh && confidence != ConfidenceMedium {
			rejected = append(rejected, fmt.Sprintf("confidence %q", raw.Confidence))
			continue
		}
		seen := make(map[int64]struct{}, len(raw.MemberIDs))
		var members []int64
		for _, id := range raw.MemberIDs {
			if _, inScope := scope[id]; !inScope {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			members = append(members, id)
		}
		if len(members) < 2 {
			rejected = append(rejected, fmt.Sprintf("group of %d usable members", len(members)))
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		groups = append(groups, CandidateGroup{
			MemberIDs:  members,
			Confidence: confidence,
			Reason:     strings.TrimSpace(raw.Reason),
		})
	}
	return groups, rejected, nil
}
