package candidates

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func sampleMatches(ids ...string) *Matches {
	m := &Matches{}
	for i, id := range ids {
		m.Items = append(m.Items, &Match{Record: &Record{ID: id, Name: "Candidate " + id}, Distance: float64(i) / 10})
	}
	return m
}

func TestNormalizeTrimsFields(t *testing.T) {
	r := &Record{ID: " 7 ", Name: "\tAna Pérez ", Skills: " Go, SQL\n", Phone: "   "}
	r.Normalize()

	if r.ID != "7" || r.Name != "Ana Pérez" || r.Skills != "Go, SQL" || r.Phone != "" {
		t.Fatalf("unexpected normalized record: %+v", r)
	}
}

func TestOrMissing(t *testing.T) {
	if got := OrMissing("  "); got != Missing {
		t.Fatalf("expected placeholder, got %q", got)
	}
	if got := OrMissing("English"); got != "English" {
		t.Fatalf("expected value to pass through, got %q", got)
	}
}

func TestRenderAndDescription(t *testing.T) {
	r := &Record{
		ID:        "1",
		Summary:   "Backend engineer with ten years building distributed systems in Python and Go for fintech companies",
		Languages: "English, Spanish",
		Skills:    "Python, Django",
	}

	text := Render(r)
	for _, label := range []string{"SUMMARY:", "LANGUAGES:", "SKILLS:", "EXPERIENCE:", "LOCATION:", "EDUCATION:"} {
		if !strings.Contains(text, label) {
			t.Fatalf("rendered text misses %s: %q", label, text)
		}
	}

	desc := Description(r)
	if !strings.HasSuffix(desc, "...") {
		t.Fatalf("expected truncated description, got %q", desc)
	}
	if n := len([]rune(strings.TrimSuffix(desc, "..."))); n != descriptionLength {
		t.Fatalf("expected %d runes, got %d", descriptionLength, n)
	}

	short := Description(&Record{ID: "2"})
	if strings.HasSuffix(short, "...") {
		t.Fatalf("short description must not be truncated: %q", short)
	}
}

func TestMatchesExcludePreservesOrder(t *testing.T) {
	m := sampleMatches("1", "2", "3", "4")

	removed := m.Exclude([]string{"3", "1", "42"})
	if !reflect.DeepEqual(removed, []string{"1", "3"}) {
		t.Fatalf("unexpected removed ids: %v", removed)
	}
	if !reflect.DeepEqual(m.IDs(), []string{"2", "4"}) {
		t.Fatalf("unexpected remaining ids: %v", m.IDs())
	}
}

func TestMatchesLimit(t *testing.T) {
	m := sampleMatches("1", "2", "3")

	if removed := m.Limit(5); removed != nil {
		t.Fatalf("expected nothing removed, got %v", removed)
	}
	removed := m.Limit(1)
	if !reflect.DeepEqual(removed, []string{"2", "3"}) {
		t.Fatalf("unexpected removed ids: %v", removed)
	}
	if m.Len() != 1 || m.FindByID("1") == nil {
		t.Fatalf("expected only first match to remain, got %v", m.IDs())
	}
}

func TestFromMatchesAssignsPositions(t *testing.T) {
	ranked := FromMatches(sampleMatches("b", "a"))
	if len(ranked) != 2 {
		t.Fatalf("expected 2 ranked, got %d", len(ranked))
	}
	if ranked[0].Position != 1 || ranked[0].Record.ID != "b" || ranked[1].Position != 2 {
		t.Fatalf("unexpected ranking: %+v", ranked)
	}
}

func TestToMatchesKeepsRankingOrder(t *testing.T) {
	ranked := []Ranked{
		{Position: 1, Record: &Record{ID: "7"}, Distance: 0.4},
		{Position: 2, Record: &Record{ID: "3"}, Distance: 0.1},
	}

	m := ToMatches(ranked)
	if got := m.IDs(); len(got) != 2 || got[0] != "7" || got[1] != "3" {
		t.Fatalf("unexpected order: %v", got)
	}
	if m.FindByID("3").Distance != 0.1 {
		t.Fatalf("distance must be carried over")
	}
}

func TestExcludedRoundTripThroughFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exclude.json")

	loaded, err := LoadExcluded(path)
	if err != nil {
		t.Fatalf("missing file should load empty list: %v", err)
	}
	if len(loaded.Items) != 0 {
		t.Fatalf("expected empty list, got %d", len(loaded.Items))
	}

	loaded.Append(sampleMatches("5", "6").ToExcluded())
	if err := loaded.ToFile(path); err != nil {
		t.Fatalf("write exclude file: %v", err)
	}

	again, err := LoadExcluded(path)
	if err != nil {
		t.Fatalf("reload exclude file: %v", err)
	}
	if !reflect.DeepEqual(again.IDs(), []string{"5", "6"}) {
		t.Fatalf("unexpected ids: %v", again.IDs())
	}
}

func TestDumpToTmpFile(t *testing.T) {
	m := sampleMatches("1")
	path, err := m.DumpToTmpFile()
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	t.Cleanup(func() { os.Remove(path) })

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read dump: %v", err)
	}

	var decoded Matches
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode dump: %v", err)
	}
	if decoded.Len() != 1 || decoded.Items[0].Record.ID != "1" {
		t.Fatalf("unexpected dump contents: %s", data)
	}
}
