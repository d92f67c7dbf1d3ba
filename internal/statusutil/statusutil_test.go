package statusutil

import (
	"testing"

	"taskboard/internal/model"
)

func intPtr(v int) *int { return &v }

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"In Progress", "in_progress"},
		{"  in   progress ", "in_progress"},
		{"in-review", "in_review"},
		{"COMPLETED", "completed"},
		{"on__hold", "on_hold"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestRules_SortIsIndependentOfInputOrder(t *testing.T) {
	r := DefaultRules()
	in := []model.Status{
		{ID: "30", Name: "Zeta"},
		{ID: "3", Name: "Completed"},
		{ID: "1", Name: "In Progress"},
		{ID: "4", Name: "Archive"},
		{ID: "2", Name: "Pending"},
	}
	r.Sort(in)

	want := []model.ID{"2", "1", "3", "4", "30"}
	for i, s := range in {
		if s.ID != want[i] {
			t.Fatalf("position %d: expected %s, got %s (%+v)", i, want[i], s.ID, in)
		}
	}
}

func TestRules_ExplicitRankWins(t *testing.T) {
	r := DefaultRules()
	done := model.Status{ID: "a", Name: "Done", Rank: intPtr(-1)}
	todo := model.Status{ID: "b", Name: "Todo"}
	if r.Compare(done, todo) >= 0 {
		t.Fatalf("expected explicit rank -1 to sort first")
	}
}

func TestRules_IsFinal(t *testing.T) {
	r := DefaultRules()
	if !r.IsFinal(model.Status{Name: "Completed"}) {
		t.Fatalf("expected completed final")
	}
	if !r.IsFinal(model.Status{Name: "Shipped", IsFinal: true}) {
		t.Fatalf("expected explicit isFinal to win")
	}
	if r.IsFinal(model.Status{Name: "In Review"}) {
		t.Fatalf("expected in review not final")
	}
}

func TestNewRules_Overrides(t *testing.T) {
	r := NewRules(map[string]int{"Ready": 1, "Shipped": 2}, []string{"Shipped"}, "Blocked")
	if _, ok := r.RankOf(model.Status{Name: "pending"}); ok {
		t.Fatalf("expected custom table to replace defaults")
	}
	if !r.IsFinalName("shipped") {
		t.Fatalf("expected shipped final")
	}
	if !r.IsWaitingName("BLOCKED") {
		t.Fatalf("expected blocked to be the waiting status")
	}
}

func TestCompareIDs(t *testing.T) {
	if CompareIDs("9", "10") >= 0 {
		t.Fatalf("expected numeric compare 9 < 10")
	}
	if CompareIDs("b", "a") <= 0 {
		t.Fatalf("expected lexical compare b > a")
	}
	if CompareIDs("7", "7") != 0 {
		t.Fatalf("expected equal")
	}
}
