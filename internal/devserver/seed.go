package devserver

import (
	"time"

	"taskboard/internal/model"
)

// Seed is the initial backend state.
type Seed struct {
	Statuses []model.Status `json:"statuses"`
	Tasks    []model.Task   `json:"tasks"`
}

// DefaultSeed is a small project with a dependency chain and one focus task for user.
func DefaultSeed(user model.ID, today time.Time) Seed {
	id := func(s string) *model.ID { v := model.ID(s); return &v }
	day := model.DateOf(today)
	me := []model.Assignee{{ID: user, Name: "me"}}
	return Seed{
		Statuses: []model.Status{
			{ID: "1", Name: "Pending"},
			{ID: "2", Name: "In Progress"},
			{ID: "3", Name: "Waiting"},
			{ID: "4", Name: "Completed", IsFinal: true},
		},
		Tasks: []model.Task{
			{ID: "101", Title: "Collect requirements", ProjectID: "1", StatusID: id("4"), Assignees: me},
			{ID: "102", Title: "Draft design", ProjectID: "1", StatusID: id("2"), Assignees: me, BoardDate: &day,
				Description: "Sketch the board layout.",
				Dependencies: []model.Dependency{{DependsOnTaskID: "101"}}},
			{ID: "103", Title: "Review design", ProjectID: "1", StatusID: id("1"), Assignees: me,
				Dependencies: []model.Dependency{{DependsOnTaskID: "102"}}},
			{ID: "104", Title: "Order hardware", ProjectID: "1", StatusID: id("3")},
			{ID: "105", Title: "Write release notes", ProjectID: "1", Status: model.LegacyStatus{Slug: "pending"}, Assignees: me},
		},
	}
}
