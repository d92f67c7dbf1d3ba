package publish

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"taskboard/internal/board"
	"taskboard/internal/catalog"
	"taskboard/internal/deps"
	"taskboard/internal/model"
	"taskboard/internal/statusutil"
)

func idPtr(s string) *model.ID {
	id := model.ID(s)
	return &id
}

func testSnapshot() Snapshot {
	cat := catalog.New(statusutil.DefaultRules(), []model.Status{
		{ID: "1", Name: "Pending"},
		{ID: "2", Name: "In Progress"},
		{ID: "4", Name: "Completed", IsFinal: true},
	})
	tasks := []model.Task{
		{ID: "101", Title: "Collect requirements", StatusID: idPtr("4")},
		{ID: "102", Title: "Draft design", StatusID: idPtr("2"), Priority: "high",
			Description: "Some **markdown**.",
			Assignees:   []model.Assignee{{ID: "7", Name: "Robin"}},
			Dependencies: []model.Dependency{
				{DependsOnTaskID: "101"},
				{DependsOnTaskID: "999"},
			}},
		{ID: "103", Title: "", StatusID: idPtr("1")},
	}
	return Snapshot{Board: board.Partition(tasks, cat), Catalog: cat, Graph: deps.New(cat, tasks)}
}

func TestRenderTaskMarkdown(t *testing.T) {
	t.Parallel()

	md, err := RenderTaskMarkdown(testSnapshot(), "102")
	if err != nil {
		t.Fatalf("RenderTaskMarkdown: %v", err)
	}
	for _, want := range []string{
		"# Draft design",
		"- Status: In Progress",
		"- Priority: high",
		"- Assignees: Robin",
		"## Description\n\nSome **markdown**.",
		"- [x] [Collect requirements](tasks/101.md) (Completed)",
		"- [ ] #999",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("expected markdown to contain %q; got:\n%s", want, md)
		}
	}

	if _, err := RenderTaskMarkdown(testSnapshot(), "nope"); err == nil {
		t.Fatalf("expected error for unknown task")
	}
}

func TestRenderBoardIndexMarkdown(t *testing.T) {
	t.Parallel()

	md, err := RenderBoardIndexMarkdown(testSnapshot())
	if err != nil {
		t.Fatalf("RenderBoardIndexMarkdown: %v", err)
	}
	if !strings.HasPrefix(md, "# Kanban board\n") {
		t.Fatalf("unexpected title:\n%s", md)
	}
	for _, want := range []string{
		"## Pending (1)\n\n- [#103](tasks/103.md)",
		"- [Draft design](tasks/102.md) (blocked)",
		"## Completed (1)",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("expected index to contain %q; got:\n%s", want, md)
		}
	}
}

func TestWriteBoard(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	res, err := WriteBoard(testSnapshot(), dir, WriteOptions{})
	if err != nil {
		t.Fatalf("WriteBoard: %v", err)
	}
	if len(res.Written) != 4 {
		t.Fatalf("expected index plus 3 task pages; got %v", res.Written)
	}
	b, err := os.ReadFile(filepath.Join(dir, "kanban", "tasks", "102.md"))
	if err != nil {
		t.Fatalf("read task page: %v", err)
	}
	if !strings.Contains(string(b), "# Draft design") {
		t.Fatalf("unexpected task page:\n%s", string(b))
	}

	if _, err := WriteBoard(testSnapshot(), dir, WriteOptions{}); err == nil || !strings.Contains(err.Error(), "file exists") {
		t.Fatalf("expected file exists error; got %v", err)
	}
	if _, err := WriteBoard(testSnapshot(), dir, WriteOptions{Overwrite: true}); err != nil {
		t.Fatalf("WriteBoard overwrite: %v", err)
	}
}

func TestTaskFile_SanitizesSeparators(t *testing.T) {
	t.Parallel()

	if got := taskFile("a/b:c"); got != "tasks/a_b_c.md" {
		t.Fatalf("taskFile: got %q", got)
	}
}
