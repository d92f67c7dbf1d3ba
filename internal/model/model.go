package model

import (
	"strings"
)

type Status struct {
	ID      ID     `json:"id"`
	Name    string `json:"name"`
	Slug    string `json:"slug,omitempty"`
	IsFinal bool   `json:"isFinal,omitempty"`
	// Rank is an explicit column position. When absent the canonical rank table applies.
	Rank *int `json:"rank,omitempty"`
}

type Assignee struct {
	ID   ID     `json:"id"`
	Name string `json:"name,omitempty"`
}

// TaskRef is the embedded predecessor record the backend hydrates on each dependency.
type TaskRef struct {
	ID       ID           `json:"id"`
	Title    string       `json:"title"`
	StatusID *ID          `json:"statusId,omitempty"`
	Status   LegacyStatus `json:"status,omitempty"`
}

type Dependency struct {
	DependsOnTaskID ID       `json:"dependsOnTaskId"`
	DependsOnTask   *TaskRef `json:"dependsOnTask,omitempty"`
}

type Task struct {
	ID          ID     `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ProjectID   ID     `json:"projectId,omitempty"`

	StatusID *ID `json:"statusId,omitempty"`
	// Legacy: older payloads carry the status as a slug string (or an embedded object).
	Status LegacyStatus `json:"status,omitempty"`

	DueDate *Date `json:"dueDate,omitempty"`
	// BoardDate marks membership of the daily focus board.
	BoardDate *Date    `json:"boardDate,omitempty"`
	Priority  Priority `json:"priority,omitempty"`

	Assignees    []Assignee   `json:"assignees,omitempty"`
	Dependencies []Dependency `json:"dependencies,omitempty"`
}

// Clone returns a deep copy so board snapshots never share mutable state.
func (t Task) Clone() Task {
	out := t
	if t.StatusID != nil {
		v := *t.StatusID
		out.StatusID = &v
	}
	if t.DueDate != nil {
		v := *t.DueDate
		out.DueDate = &v
	}
	if t.BoardDate != nil {
		v := *t.BoardDate
		out.BoardDate = &v
	}
	if t.Assignees != nil {
		out.Assignees = make([]Assignee, len(t.Assignees))
		copy(out.Assignees, t.Assignees)
	}
	if t.Dependencies != nil {
		out.Dependencies = make([]Dependency, len(t.Dependencies))
		for i, d := range t.Dependencies {
			out.Dependencies[i] = d
			if d.DependsOnTask != nil {
				ref := *d.DependsOnTask
				if ref.StatusID != nil {
					v := *ref.StatusID
					ref.StatusID = &v
				}
				out.Dependencies[i].DependsOnTask = &ref
			}
		}
	}
	return out
}

func (t Task) IsAssignedTo(userID ID) bool {
	if userID == "" {
		return false
	}
	for _, a := range t.Assignees {
		if a.ID == userID {
			return true
		}
	}
	return false
}

// StatusKey returns the best available status reference: the status id when set,
// otherwise the legacy slug (or embedded id).
func (t Task) StatusKey() (id ID, slug string) {
	if t.StatusID != nil && strings.TrimSpace(string(*t.StatusID)) != "" {
		return *t.StatusID, ""
	}
	if t.Status.ID != "" {
		return t.Status.ID, ""
	}
	return "", strings.TrimSpace(t.Status.Slug)
}

// TaskPatch is a partial task update. Exactly one of the fields is expected to be set.
type TaskPatch struct {
	StatusID       *ID
	BoardDate      *Date
	ClearBoardDate bool
}

func (p TaskPatch) IsEmpty() bool {
	return p.StatusID == nil && p.BoardDate == nil && !p.ClearBoardDate
}

// Fields renders the patch as a JSON object body. A cleared board date is sent as null.
func (p TaskPatch) Fields() map[string]any {
	out := map[string]any{}
	if p.StatusID != nil {
		out["statusId"] = p.StatusID.Wire()
	}
	switch {
	case p.ClearBoardDate:
		out["boardDate"] = nil
	case p.BoardDate != nil:
		out["boardDate"] = *p.BoardDate
	}
	return out
}

// Apply applies the patch to a task record locally.
func (p TaskPatch) Apply(t Task) Task {
	out := t.Clone()
	if p.StatusID != nil {
		v := *p.StatusID
		out.StatusID = &v
		out.Status = LegacyStatus{}
	}
	switch {
	case p.ClearBoardDate:
		out.BoardDate = nil
	case p.BoardDate != nil:
		v := *p.BoardDate
		out.BoardDate = &v
	}
	return out
}

func (p TaskPatch) String() string {
	switch {
	case p.StatusID != nil:
		return "statusId=" + string(*p.StatusID)
	case p.ClearBoardDate:
		return "boardDate=null"
	case p.BoardDate != nil:
		return "boardDate=" + string(*p.BoardDate)
	default:
		return "(empty)"
	}
}
