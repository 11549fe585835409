package handoff

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/DarthPollos/CV-Compare-Project/internal/candidates"
)

func ranked(ids ...string) []candidates.Ranked {
	out := make([]candidates.Ranked, 0, len(ids))
	for i, id := range ids {
		out = append(out, candidates.Ranked{
			Position:      i + 1,
			Record:        &candidates.Record{ID: id, Name: "Name " + id, Email: id + "@example.com"},
			Justification: "fits",
		})
	}
	return out
}

func TestPublishAndResolve(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	s := New(path)

	if err := s.Publish("q-1", ranked("10", "20")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	e, err := s.Get("20")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if e.Position != 2 || e.Record.Email != "20@example.com" {
		t.Fatalf("unexpected entry: %+v", e)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if reopened.QueryID() != "q-1" || len(reopened.List()) != 2 {
		t.Fatalf("unexpected reopened store: %s %d", reopened.QueryID(), len(reopened.List()))
	}
	if _, err := reopened.Get("10"); err != nil {
		t.Fatalf("get from reopened store: %v", err)
	}
}

func TestPublishReplacesPreviousShortlist(t *testing.T) {
	s := New("")

	if err := s.Publish("q-1", ranked("10")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := s.Publish("q-2", ranked("30")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if _, err := s.Get("10"); !errors.Is(err, ErrUnknownCandidate) {
		t.Fatalf("expected ErrUnknownCandidate for stale id, got %v", err)
	}
	if _, err := s.Get("30"); err != nil {
		t.Fatalf("get: %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(s.List()) != 0 {
		t.Fatalf("expected empty store")
	}
}
