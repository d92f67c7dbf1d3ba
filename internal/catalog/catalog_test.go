package catalog

import (
	"context"
	"errors"
	"testing"

	"taskboard/internal/model"
	"taskboard/internal/statusutil"
)

type fakeSource struct {
	statuses []model.Status
	err      error
}

func (f fakeSource) ListStatuses(context.Context) ([]model.Status, error) {
	return f.statuses, f.err
}

func TestLoad_OrdersCanonically(t *testing.T) {
	src := fakeSource{statuses: []model.Status{
		{ID: "3", Name: "Completed"},
		{ID: "1", Name: "Pending"},
		{ID: "2", Name: "In Progress"},
	}}
	cat, err := Load(context.Background(), src, statusutil.DefaultRules())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := cat.Statuses()
	want := []string{"Pending", "In Progress", "Completed"}
	if len(got) != len(want) {
		t.Fatalf("expected %d statuses; got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Name != want[i] {
			t.Fatalf("position %d: expected %s; got %s", i, want[i], got[i].Name)
		}
	}
	if !cat.IsFinal("3") {
		t.Fatalf("expected completed to be final")
	}
}

func TestLoad_FailureDegradesToEmptyCatalog(t *testing.T) {
	boom := errors.New("boom")
	cat, err := Load(context.Background(), fakeSource{err: boom}, statusutil.DefaultRules())
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError; got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped cause")
	}
	if cat == nil || cat.Len() != 0 {
		t.Fatalf("expected empty catalog")
	}
	if _, ok := cat.First(); ok {
		t.Fatalf("expected no first status")
	}
}

func TestCatalog_ResolveLegacySlug(t *testing.T) {
	cat := New(statusutil.DefaultRules(), []model.Status{
		{ID: "1", Name: "Pending", Slug: "pending"},
		{ID: "2", Name: "In Progress", Slug: "in-progress"},
	})
	s, ok := cat.Resolve(model.Task{ID: "9", Status: model.LegacyStatus{Slug: "In Progress"}})
	if !ok || s.ID != "2" {
		t.Fatalf("expected legacy slug to resolve to 2; got %+v ok=%v", s, ok)
	}
	sid := model.ID("1")
	s, ok = cat.Resolve(model.Task{ID: "9", StatusID: &sid})
	if !ok || s.ID != "1" {
		t.Fatalf("expected status id to resolve to 1; got %+v", s)
	}
	unknown := model.ID("404")
	if _, ok := cat.Resolve(model.Task{ID: "9", StatusID: &unknown}); ok {
		t.Fatalf("expected unknown status id to miss")
	}
}
