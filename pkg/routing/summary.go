package routing

import (
	"sort"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/codeready-toolchain/maestro/pkg/models"
)

const (
	topTagsLimit = 12

	// Result summarization bounds: strings are cut to stringSummaryLimit
	// runes including the ellipsis, objects expose at most
	// objectKeysLimit key names.
	stringSummaryLimit = 200
	objectKeysLimit    = 20
)

// BuildAgentSummary projects an agent into the bounded form injected into
// model context. Explicit metadata wins; tag and naming inference fill the
// gaps.
func BuildAgentSummary(agent *models.Agent) models.AgentSummary {
	meta := agent.Metadata

	role := meta.Role
	if role == "" {
		role = InferRoleFromTags(meta.Tags)
	}
	if role == "" {
		role = InferRoleFromLabel(agent.Name, agent.Slug)
	}

	domains := NormalizeStrings(meta.Domains)
	if len(domains) == 0 {
		domains = ExtractDomainsFromTags(meta.Tags)
	}
	if len(domains) == 0 {
		if domain := InferDomainFromLabel(agent.Name, agent.Slug); domain != "" {
			domains = []string{domain}
		}
	}

	return models.AgentSummary{
		Slug:         agent.Slug,
		Name:         agent.Name,
		Description:  agent.Description,
		Tags:         NormalizeStrings(meta.Tags),
		Domains:      domains,
		Capabilities: NormalizeStrings(meta.Capabilities),
		Role:         role,
		System:       meta.System,
		Hidden:       meta.Hidden,
	}
}

// BuildRouterIndex returns the first limit visible routers, projected for
// model context.
func BuildRouterIndex(agents []models.Agent, limit int) []models.AgentIndexEntry {
	var out []models.AgentIndexEntry
	for i := range agents {
		summary := BuildAgentSummary(&agents[i])
		if summary.Role != "router" || summary.Hidden {
			continue
		}
		out = append(out, indexEntry(summary))
		if len(out) >= limit {
			break
		}
	}
	return out
}

// BuildSpecialistIndex returns visible specialists, optionally restricted
// to those whose domains intersect the given set.
func BuildSpecialistIndex(agents []models.Agent, limit int, domains []string) []models.AgentIndexEntry {
	filter := make(map[string]bool, len(domains))
	for _, d := range domains {
		filter[d] = true
	}
	var out []models.AgentIndexEntry
	for i := range agents {
		summary := BuildAgentSummary(&agents[i])
		if summary.Role != "specialist" || summary.Hidden {
			continue
		}
		if len(filter) > 0 && !intersects(summary.Domains, filter) {
			continue
		}
		out = append(out, indexEntry(summary))
		if len(out) >= limit {
			break
		}
	}
	return out
}

// SummarizeAgents aggregates roster counts for model context.
func SummarizeAgents(agents []models.Agent) map[string]any {
	byDomain := make(map[string]int)
	byRole := make(map[string]int)
	tagCounts := make(map[string]int)
	for i := range agents {
		summary := BuildAgentSummary(&agents[i])
		for _, domain := range summary.Domains {
			byDomain[domain]++
		}
		if summary.Role != "" {
			byRole[summary.Role]++
		}
		for _, tag := range summary.Tags {
			tagCounts[tag]++
		}
	}
	return map[string]any{
		"total":    len(agents),
		"byDomain": byDomain,
		"byRole":   byRole,
		"topTags":  topTags(tagCounts, topTagsLimit),
	}
}

// SummarizeResult bounds an arbitrary result value for inclusion in a
// child context: long strings are truncated with an ellipsis, arrays and
// objects are replaced by shape descriptors. Already-summarized values
// pass through unchanged, so the operation is idempotent. Results re-read
// from the store decode with bson types (primitive.A/M/D); those summarize
// the same as their JSON counterparts.
func SummarizeResult(value any) any {
	switch v := value.(type) {
	case string:
		if utf8.RuneCountInString(v) <= stringSummaryLimit {
			return v
		}
		runes := []rune(v)
		return string(runes[:stringSummaryLimit-1]) + "…"
	case []any:
		return map[string]any{"type": "array", "length": len(v)}
	case primitive.A:
		return map[string]any{"type": "array", "length": len(v)}
	case map[string]any:
		if isSummaryShape(v) {
			return v
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return objectDescriptor(keys)
	case primitive.M:
		return SummarizeResult(map[string]any(v))
	case primitive.D:
		m := make(map[string]any, len(v))
		for _, elem := range v {
			m[elem.Key] = elem.Value
		}
		return SummarizeResult(m)
	default:
		return value
	}
}

func objectDescriptor(sortedKeys []string) map[string]any {
	truncated := len(sortedKeys) > objectKeysLimit
	if truncated {
		sortedKeys = sortedKeys[:objectKeysLimit]
	}
	return map[string]any{"type": "object", "keys": sortedKeys, "truncated": truncated}
}

// isSummaryShape recognizes the descriptors SummarizeResult produces.
func isSummaryShape(v map[string]any) bool {
	switch v["type"] {
	case "array":
		_, ok := v["length"]
		return ok && len(v) == 2
	case "object":
		_, hasKeys := v["keys"]
		_, hasTruncated := v["truncated"]
		return hasKeys && hasTruncated && len(v) == 3
	}
	return false
}

func indexEntry(summary models.AgentSummary) models.AgentIndexEntry {
	return models.AgentIndexEntry{
		Slug:        summary.Slug,
		Name:        summary.Name,
		Description: summary.Description,
		Domains:     summary.Domains,
		Tags:        summary.Tags,
	}
}

func intersects(domains []string, filter map[string]bool) bool {
	for _, d := range domains {
		if filter[d] {
			return true
		}
	}
	return false
}

// topTags returns the most frequent tags, count descending with name as
// the tie breaker for stable output.
func topTags(counts map[string]int, limit int) []map[string]any {
	type tagCount struct {
		tag   string
		count int
	}
	sorted := make([]tagCount, 0, len(counts))
	for tag, count := range counts {
		sorted = append(sorted, tagCount{tag, count})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		return sorted[i].tag < sorted[j].tag
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	out := make([]map[string]any, 0, len(sorted))
	for _, tc := range sorted {
		out = append(out, map[string]any{"tag": tc.tag, "count": tc.count})
	}
	return out
}
