// Package routing holds the pure helpers behind agent routing: tag and
// role inference, context indexes and routing-state parsing. Nothing in
// this package performs I/O.
package routing

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RoutingState is the per-run delegation state threaded through run
// contexts. VisitedSlugs lists every agent already executed on the path
// from the root; RoutingDepth counts delegation hops.
type RoutingState struct {
	VisitedSlugs []string `json:"visitedSlugs"`
	RoutingDepth int      `json:"routingDepth"`
}

// NormalizeStrings converts an arbitrary decoded value into a string
// slice, trimming whitespace and dropping empty or non-string items.
// Accepts both JSON decode shapes ([]any) and bson decode shapes
// (primitive.A), so values survive a store round-trip.
func NormalizeStrings(v any) []string {
	var out []string
	appendItem := func(item any) {
		s, ok := item.(string)
		if !ok {
			return
		}
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	switch t := v.(type) {
	case []string:
		for _, s := range t {
			appendItem(s)
		}
	case []any:
		for _, item := range t {
			appendItem(item)
		}
	case primitive.A:
		for _, item := range t {
			appendItem(item)
		}
	case string:
		appendItem(t)
	}
	return out
}

// MergeUnique returns the stable-order deduplicated union of a and b.
func MergeUnique(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// InferRoleFromTags derives a role from routing tags. Router precedence
// beats specialist when both are present. Returns "" when neither applies.
func InferRoleFromTags(tags []string) string {
	hasSpecialist := false
	for _, tag := range tags {
		switch tag {
		case "router", "domain-router":
			return "router"
		case "specialist":
			hasSpecialist = true
		}
	}
	if hasSpecialist {
		return "specialist"
	}
	return ""
}

// InferRoleFromLabel derives a role from naming conventions: slugs ending
// in -router/_router or -specialist/_specialist, or names ending in
// " router"/" specialist". Returns "" when the naming carries no signal.
func InferRoleFromLabel(name, slug string) string {
	lowerSlug := strings.ToLower(slug)
	lowerName := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lowerSlug, "_router"), strings.HasSuffix(lowerSlug, "-router"),
		strings.HasSuffix(lowerName, " router"):
		return "router"
	case strings.HasSuffix(lowerSlug, "_specialist"), strings.HasSuffix(lowerSlug, "-specialist"),
		strings.HasSuffix(lowerName, " specialist"):
		return "specialist"
	}
	return ""
}

// ExtractDomainsFromTags collects the normalized suffixes of all
// "domain:" tags.
func ExtractDomainsFromTags(tags []string) []string {
	var out []string
	for _, tag := range tags {
		if !strings.HasPrefix(tag, "domain:") {
			continue
		}
		domain := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(tag, "domain:")))
		if domain != "" {
			out = append(out, domain)
		}
	}
	return out
}

// InferDomainFromLabel strips the router/specialist suffix from a slug or
// name and returns the remainder, lowercased. The slug wins when both
// carry a suffix.
func InferDomainFromLabel(name, slug string) string {
	slugSuffixes := []string{"_router", "-router", "_specialist", "-specialist"}
	lowerSlug := strings.ToLower(slug)
	for _, suffix := range slugSuffixes {
		if strings.HasSuffix(lowerSlug, suffix) {
			return strings.TrimSpace(strings.TrimSuffix(lowerSlug, suffix))
		}
	}
	nameSuffixes := []string{" router", " specialist"}
	lowerName := strings.ToLower(name)
	for _, suffix := range nameSuffixes {
		if strings.HasSuffix(lowerName, suffix) {
			return strings.TrimSpace(strings.TrimSuffix(lowerName, suffix))
		}
	}
	return ""
}

// ReadRoutingState extracts the routing state from a run context. A
// missing or malformed state yields empty visited slugs and depth 0;
// negative depths are clamped to 0. Mongo decodes the stored context with
// bson types (primitive.M documents, int32/int64 numbers), JSON decoding
// yields map[string]any and float64; both shapes are accepted.
func ReadRoutingState(context map[string]any) RoutingState {
	state := RoutingState{}
	raw, ok := asStringMap(context["routingState"])
	if !ok {
		return state
	}
	state.VisitedSlugs = NormalizeStrings(raw["visitedSlugs"])
	switch depth := raw["routingDepth"].(type) {
	case float64:
		state.RoutingDepth = int(depth)
	case int:
		state.RoutingDepth = depth
	case int32:
		state.RoutingDepth = int(depth)
	case int64:
		state.RoutingDepth = int(depth)
	}
	if state.RoutingDepth < 0 {
		state.RoutingDepth = 0
	}
	return state
}

// asStringMap unwraps the two document shapes a decoded context value can
// carry.
func asStringMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case primitive.M:
		return t, true
	}
	return nil, false
}
