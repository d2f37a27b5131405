package routing

import (
	"reflect"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/codeready-toolchain/maestro/pkg/models"
)

func TestNormalizeStrings(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  []string
	}{
		{name: "nil", input: nil, want: nil},
		{name: "string slice", input: []string{" a ", "", "b"}, want: []string{"a", "b"}},
		{name: "any slice with mixed types", input: []any{"x", 3.0, " y", nil}, want: []string{"x", "y"}},
		{name: "bson array", input: primitive.A{"a", " b ", 3}, want: []string{"a", "b"}},
		{name: "single string", input: "solo", want: []string{"solo"}},
		{name: "number", input: 42.0, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeStrings(tt.input); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeStrings(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestMergeUnique(t *testing.T) {
	got := MergeUnique([]string{"a", "b", "a"}, []string{"b", "c"})
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MergeUnique = %v, want %v", got, want)
	}
}

func TestMergeUniqueAssociative(t *testing.T) {
	a := []string{"a", "b"}
	b := []string{"b", "c"}
	c := []string{"c", "d", "a"}

	left := MergeUnique(MergeUnique(a, b), c)
	right := MergeUnique(a, MergeUnique(b, c))
	if !reflect.DeepEqual(left, right) {
		t.Errorf("associativity violated: %v != %v", left, right)
	}
}

func TestInferRoleFromTags(t *testing.T) {
	tests := []struct {
		name string
		tags []string
		want string
	}{
		{name: "router tag", tags: []string{"router"}, want: "router"},
		{name: "domain-router tag", tags: []string{"domain-router"}, want: "router"},
		{name: "specialist tag", tags: []string{"specialist"}, want: "specialist"},
		{name: "router beats specialist", tags: []string{"specialist", "router"}, want: "router"},
		{name: "no role tags", tags: []string{"billing"}, want: ""},
		{name: "empty", tags: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferRoleFromTags(tt.tags); got != tt.want {
				t.Errorf("InferRoleFromTags(%v) = %q, want %q", tt.tags, got, tt.want)
			}
		})
	}
}

func TestExtractDomainsFromTags(t *testing.T) {
	got := ExtractDomainsFromTags([]string{"domain: Billing ", "domain:ops", "specialist", "domain:"})
	want := []string{"billing", "ops"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractDomainsFromTags = %v, want %v", got, want)
	}
}

func TestInferDomainFromLabel(t *testing.T) {
	tests := []struct {
		name      string
		agentName string
		slug      string
		want      string
	}{
		{name: "slug underscore router", slug: "billing_router", want: "billing"},
		{name: "slug dash specialist", slug: "ops-specialist", want: "ops"},
		{name: "name suffix", agentName: "Billing Router", slug: "billing", want: "billing"},
		{name: "slug wins over name", agentName: "Ops Specialist", slug: "billing-router", want: "billing"},
		{name: "no suffix", agentName: "Helper", slug: "helper", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferDomainFromLabel(tt.agentName, tt.slug); got != tt.want {
				t.Errorf("InferDomainFromLabel(%q, %q) = %q, want %q", tt.agentName, tt.slug, got, tt.want)
			}
		})
	}
}

func TestReadRoutingState(t *testing.T) {
	tests := []struct {
		name        string
		context     map[string]any
		wantVisited []string
		wantDepth   int
	}{
		{name: "missing state", context: map[string]any{}, wantVisited: nil, wantDepth: 0},
		{
			name: "valid state",
			context: map[string]any{"routingState": map[string]any{
				"visitedSlugs": []any{"a", "b"},
				"routingDepth": 2.0,
			}},
			wantVisited: []string{"a", "b"},
			wantDepth:   2,
		},
		{
			name: "non-numeric depth becomes zero",
			context: map[string]any{"routingState": map[string]any{
				"routingDepth": "deep",
			}},
			wantDepth: 0,
		},
		{
			name: "negative depth clamped",
			context: map[string]any{"routingState": map[string]any{
				"routingDepth": -3.0,
			}},
			wantDepth: 0,
		},
		{
			name: "bson decoded state",
			context: map[string]any{"routingState": primitive.M{
				"visitedSlugs": primitive.A{"a", "b"},
				"routingDepth": int32(1),
			}},
			wantVisited: []string{"a", "b"},
			wantDepth:   1,
		},
		{
			name: "int64 depth",
			context: map[string]any{"routingState": map[string]any{
				"routingDepth": int64(2),
			}},
			wantDepth: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := ReadRoutingState(tt.context)
			if !reflect.DeepEqual(state.VisitedSlugs, tt.wantVisited) {
				t.Errorf("VisitedSlugs = %v, want %v", state.VisitedSlugs, tt.wantVisited)
			}
			if state.RoutingDepth != tt.wantDepth {
				t.Errorf("RoutingDepth = %d, want %d", state.RoutingDepth, tt.wantDepth)
			}
		})
	}
}

// Routing state must survive the store round-trip: the driver decodes the
// stored context's arrays as primitive.A and its ints as int32.
func TestReadRoutingStateStoreRoundTrip(t *testing.T) {
	run := models.Run{
		ID:        "run-1",
		SessionID: "session-1",
		RootRunID: "run-1",
		Status:    models.RunStatusRunning,
		Input: models.RunInput{
			UserMessage: "hi",
			Context: map[string]any{
				"routingState": map[string]any{
					"visitedSlugs": []string{"bootstrap", "mock-echo"},
					"routingDepth": 1,
				},
			},
		},
	}
	data, err := bson.Marshal(run)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded models.Run
	if err := bson.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	state := ReadRoutingState(decoded.Input.Context)
	if !reflect.DeepEqual(state.VisitedSlugs, []string{"bootstrap", "mock-echo"}) {
		t.Errorf("VisitedSlugs = %v, want [bootstrap mock-echo]", state.VisitedSlugs)
	}
	if state.RoutingDepth != 1 {
		t.Errorf("RoutingDepth = %d, want 1", state.RoutingDepth)
	}
}

func TestSummarizeResultStrings(t *testing.T) {
	short := strings.Repeat("a", 200)
	if got := SummarizeResult(short); got != short {
		t.Errorf("short string should pass through unchanged")
	}

	long := strings.Repeat("b", 300)
	got, ok := SummarizeResult(long).(string)
	if !ok {
		t.Fatalf("expected string")
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("truncated string must end with ellipsis")
	}
	if n := len([]rune(got)); n != 200 {
		t.Errorf("truncated length = %d runes, want 200", n)
	}
}

func TestSummarizeResultShapes(t *testing.T) {
	arr := SummarizeResult([]any{1, 2, 3})
	want := map[string]any{"type": "array", "length": 3}
	if !reflect.DeepEqual(arr, want) {
		t.Errorf("array summary = %v, want %v", arr, want)
	}

	obj := SummarizeResult(map[string]any{"b": 1, "a": 2}).(map[string]any)
	if obj["type"] != "object" {
		t.Fatalf("object summary type = %v", obj["type"])
	}
	if !reflect.DeepEqual(obj["keys"], []string{"a", "b"}) {
		t.Errorf("keys = %v, want [a b]", obj["keys"])
	}
	if obj["truncated"] != false {
		t.Errorf("truncated = %v, want false", obj["truncated"])
	}

	wide := make(map[string]any)
	for i := 0; i < 30; i++ {
		wide[strings.Repeat("k", i+1)] = i
	}
	summary := SummarizeResult(wide).(map[string]any)
	if summary["truncated"] != true {
		t.Errorf("expected truncated object summary")
	}
	if n := len(summary["keys"].([]string)); n != 20 {
		t.Errorf("keys length = %d, want 20", n)
	}
}

// Results re-read from the store decode with bson types; they must
// summarize exactly like their JSON counterparts.
func TestSummarizeResultBSONShapes(t *testing.T) {
	arr := SummarizeResult(primitive.A{1, 2, 3})
	if !reflect.DeepEqual(arr, map[string]any{"type": "array", "length": 3}) {
		t.Errorf("bson array summary = %v", arr)
	}

	doc := SummarizeResult(primitive.D{{Key: "b", Value: 1}, {Key: "a", Value: 2}}).(map[string]any)
	if doc["type"] != "object" || !reflect.DeepEqual(doc["keys"], []string{"a", "b"}) {
		t.Errorf("bson document summary = %v", doc)
	}

	m := SummarizeResult(primitive.M{"k": 1}).(map[string]any)
	if m["type"] != "object" {
		t.Errorf("bson map summary = %v", m)
	}

	// A descriptor that round-tripped through the store stays a descriptor.
	descriptor := primitive.D{{Key: "type", Value: "array"}, {Key: "length", Value: int32(3)}}
	again := SummarizeResult(descriptor).(map[string]any)
	if again["type"] != "array" {
		t.Errorf("round-tripped descriptor re-summarized: %v", again)
	}
}

func TestSummarizeResultIdempotent(t *testing.T) {
	values := []any{
		strings.Repeat("x", 500),
		[]any{"a", "b"},
		map[string]any{"k1": 1, "k2": 2},
	}
	for _, v := range values {
		once := SummarizeResult(v)
		twice := SummarizeResult(once)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("SummarizeResult not idempotent: %v != %v", once, twice)
		}
	}
}
