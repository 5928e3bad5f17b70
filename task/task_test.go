package task

import (
	"reflect"
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]State]bool{
		{StatePending, StateActive}:     true,
		{StateActive, StateCompleted}:   true,
		{StateCompleted, StateArchived}: true,
		{StateCompleted, StatePending}:  true,
	}

	states := []State{StatePending, StateActive, StateCompleted, StateArchived}
	for _, from := range states {
		for _, to := range states {
			want := allowed[[2]State{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestStateValid(t *testing.T) {
	for _, s := range []State{StatePending, StateActive, StateCompleted, StateArchived} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	for _, s := range []State{"", "done", "Pending"} {
		if State(s).Valid() {
			t.Errorf("%q should not be valid", s)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if !StateArchived.IsTerminal() {
		t.Error("archived should be terminal")
	}
	for _, s := range []State{StatePending, StateActive, StateCompleted} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestNormalizeTags(t *testing.T) {
	cases := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, nil},
		{"empty", []string{}, nil},
		{"case and whitespace collapse", []string{"Bug", " bug ", "BUG"}, []string{"bug"}},
		{"drops empties", []string{"", "  ", "auth"}, []string{"auth"}},
		{"sorts", []string{"zeta", "auth", "mid"}, []string{"auth", "mid", "zeta"}},
		{"mixed", []string{"Auth", " BUG ", "bug", "", "auth"}, []string{"auth", "bug"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeTags(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("NormalizeTags(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeTagsIdempotent(t *testing.T) {
	inputs := [][]string{
		{"Bug", " bug ", "BUG"},
		{"zeta", "auth", "mid", " AUTH "},
		{"", "one"},
		nil,
	}

	for _, in := range inputs {
		once := NormalizeTags(in)
		twice := NormalizeTags(once)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("NormalizeTags(%v) not idempotent: %v then %v", in, once, twice)
		}
	}
}

func TestNormalizeContent(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Fix Login Bug", "fix login bug"},
		{"  fix   login\tbug  ", "fix login bug"},
		{"", ""},
		{"   ", ""},
	}

	for _, tc := range cases {
		if got := NormalizeContent(tc.in); got != tc.want {
			t.Errorf("NormalizeContent(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestClone(t *testing.T) {
	stamp := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	completed := stamp.Add(time.Hour)
	orig := &Task{
		ID:          "t1",
		Content:     "write docs",
		State:       StateCompleted,
		Order:       2,
		Tags:        []string{"docs", "work"},
		Metadata:    map[string]any{"note": "draft"},
		CreatedAt:   stamp,
		UpdatedAt:   stamp,
		CompletedAt: &completed,
	}

	clone := orig.Clone()
	if !reflect.DeepEqual(orig, clone) {
		t.Fatalf("Clone differs: %+v vs %+v", orig, clone)
	}

	clone.Tags[0] = "changed"
	clone.Metadata["note"] = "edited"
	*clone.CompletedAt = clone.CompletedAt.Add(time.Hour)

	if orig.Tags[0] != "docs" {
		t.Error("clone shares the tags slice")
	}
	if orig.Metadata["note"] != "draft" {
		t.Error("clone shares the metadata map")
	}
	if !orig.CompletedAt.Equal(completed) {
		t.Error("clone shares the completion stamp")
	}
}

func TestHasTag(t *testing.T) {
	tk := &Task{Tags: []string{"auth", "bug"}}
	if !tk.HasTag("auth") {
		t.Error("expected tag auth")
	}
	if tk.HasTag("docs") {
		t.Error("unexpected tag docs")
	}
}
