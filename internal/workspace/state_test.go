package workspace

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestBootstrap(t *testing.T) {
	s := Bootstrap(t0)

	if err := s.Validate(); err != nil {
		t.Fatalf("bootstrap state invalid: %v", err)
	}
	if s.CurrentBranchID != MainBranchID {
		t.Errorf("current = %q, want main", s.CurrentBranchID)
	}
	if len(s.Commits) != 1 {
		t.Fatalf("got %d commits, want 1", len(s.Commits))
	}
	head := s.Head(MainBranchID)
	if head == nil {
		t.Fatal("main has no head commit")
	}
	if head.Message != "Initial" || head.ParentID != "" {
		t.Errorf("root commit = %+v", head)
	}
	if len(head.Snapshot.Decisions) != 0 || len(head.Snapshot.Evaluations) != 0 {
		t.Errorf("root snapshot not empty: %+v", head.Snapshot)
	}
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{{{`},
		{"wrong version", `{"version":2,"currentBranchId":"main","branches":{"main":{"id":"main"}},"commits":{}}`},
		{"missing branches", `{"version":1,"currentBranchId":"main","commits":{}}`},
		{"missing commits", `{"version":1,"currentBranchId":"main","branches":{"main":{"id":"main"}}}`},
		{"no main", `{"version":1,"currentBranchId":"x","branches":{"x":{"id":"x"}},"commits":{}}`},
	}
	for _, tt := range tests {
		if _, err := Decode([]byte(tt.doc)); err == nil {
			t.Errorf("%s: Decode accepted %s", tt.name, tt.doc)
		}
	}
}

func TestDecode_ValidationErrorsAreMalformed(t *testing.T) {
	_, err := Decode([]byte(`{"version":7,"branches":{},"commits":{}}`))
	if !errors.Is(err, errMalformed) {
		t.Fatalf("got %v, want errMalformed", err)
	}
}

func TestDecode_RepairsUnknownCurrentBranch(t *testing.T) {
	s := Bootstrap(t0)
	s.CurrentBranchID = "deleted-elsewhere"
	data, err := s.Encode()
	if err != nil {
		t.Fatal(err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.CurrentBranchID != MainBranchID {
		t.Errorf("current = %q, want main", got.CurrentBranchID)
	}
}

func TestDecode_FillsMissingIDs(t *testing.T) {
	doc := `{"version":1,"currentBranchId":"main",
		"branches":{"main":{"name":"main","headCommitId":"c1"}},
		"commits":{"c1":{"message":"Initial","snapshot":{"decisions":{},"evaluations":{}}},"c2":null}}`

	s, err := Decode([]byte(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if s.Branches[MainBranchID].ID != MainBranchID {
		t.Errorf("branch id = %q, want main", s.Branches[MainBranchID].ID)
	}
	if s.Commits["c1"].ID != "c1" {
		t.Errorf("commit id = %q, want c1", s.Commits["c1"].ID)
	}
	if _, ok := s.Commits["c2"]; ok {
		t.Error("null commit entry kept")
	}
}

func TestEncode_FieldNames(t *testing.T) {
	s := Bootstrap(t0)
	s.AddBranch("feat", s.Branches[MainBranchID].HeadCommitID, ForkOrigin{CommitID: "c", BranchID: MainBranchID}, at(1))
	data, err := s.Encode()
	if err != nil {
		t.Fatal(err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"version", "currentBranchId", "branches", "commits"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("encoded document lacks %q: %s", field, data)
		}
	}
	var branches map[string]map[string]any
	if err := json.Unmarshal(raw["branches"], &branches); err != nil {
		t.Fatal(err)
	}
	if _, ok := branches[MainBranchID]["forkOriginCommitId"]; ok {
		t.Error("main should omit forkOriginCommitId")
	}
	for id, b := range branches {
		if id != MainBranchID && b["forkOriginBranchId"] != MainBranchID {
			t.Errorf("branch %s forkOriginBranchId = %v", id, b["forkOriginBranchId"])
		}
	}
}

func TestClone_Independent(t *testing.T) {
	s := Bootstrap(t0)
	c := s.Clone()
	c.AddCommit("", "x", EmptySnapshot(), at(1))
	c.AddBranch("x", "", ForkOrigin{}, at(1))
	c.CurrentBranchID = "other"

	if len(s.Commits) != 1 || len(s.Branches) != 1 || s.CurrentBranchID != MainBranchID {
		t.Errorf("clone mutation leaked into original: %+v", s)
	}
}

func TestAddBranch_NeverMain(t *testing.T) {
	s := Bootstrap(t0)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id := s.AddBranch("main", "", ForkOrigin{}, at(i))
		if id == MainBranchID || seen[id] {
			t.Fatalf("AddBranch returned reused id %q", id)
		}
		seen[id] = true
	}
	if s.Branches[MainBranchID].Name != MainBranchID {
		t.Error("main overwritten")
	}
}

func TestFindBranch(t *testing.T) {
	s := Bootstrap(t0)
	older := s.AddBranch("dup", "", ForkOrigin{}, at(1))
	s.AddBranch("dup", "", ForkOrigin{}, at(2))
	solo := s.AddBranch("solo", "", ForkOrigin{}, at(3))

	tests := []struct {
		ref    string
		want   string
		wantOK bool
	}{
		{MainBranchID, MainBranchID, true},
		{solo, solo, true},
		{"solo", solo, true},
		{" solo ", solo, true},
		{"dup", older, true},
		{"nope", "", false},
	}
	for _, tt := range tests {
		b, ok := s.FindBranch(tt.ref)
		if ok != tt.wantOK || b.ID != tt.want {
			t.Errorf("FindBranch(%q) = (%q, %v), want (%q, %v)", tt.ref, b.ID, ok, tt.want, tt.wantOK)
		}
	}
}

func TestSortedBranches(t *testing.T) {
	s := Bootstrap(at(100))
	late := s.AddBranch("late", "", ForkOrigin{}, at(5))
	early := s.AddBranch("early", "", ForkOrigin{}, at(1))

	got := s.SortedBranches()
	if len(got) != 3 {
		t.Fatalf("got %d branches, want 3", len(got))
	}
	want := []string{MainBranchID, early, late}
	for i, b := range got {
		if b.ID != want[i] {
			t.Errorf("position %d: got %s, want %s", i, b.ID, want[i])
		}
	}
}

func TestLog(t *testing.T) {
	s := Bootstrap(t0)
	root := s.Branches[MainBranchID].HeadCommitID
	ids := chain(s, root, 3, 1)

	got := Log(s, ids[2], 10)
	if len(got) != 4 {
		t.Fatalf("got %d commits, want 4", len(got))
	}
	if got[0].ID != ids[2] || got[3].ID != root {
		t.Errorf("log order wrong: first %s last %s", got[0].ID, got[3].ID)
	}
	if n := len(Log(s, ids[2], 2)); n != 2 {
		t.Errorf("limited log returned %d commits, want 2", n)
	}
	if n := len(Log(s, "missing", 5)); n != 0 {
		t.Errorf("log of unknown commit returned %d commits", n)
	}
}
