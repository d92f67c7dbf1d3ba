package catalog

import (
	"context"
	"fmt"

	"taskboard/internal/model"
	"taskboard/internal/statusutil"
)

// StatusSource is the backend collaborator that lists task statuses.
type StatusSource interface {
	ListStatuses(ctx context.Context) ([]model.Status, error)
}

// FetchError reports a failed catalog load. The catalog returned alongside it is empty.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("load task statuses: %v", e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// Catalog is the ordered, read-only set of task statuses.
type Catalog struct {
	rules    statusutil.Rules
	statuses []model.Status
	byID     map[model.ID]int
	bySlug   map[string]int
}

// New builds a catalog in canonical order. Duplicate ids keep their first occurrence.
func New(rules statusutil.Rules, statuses []model.Status) *Catalog {
	out := make([]model.Status, 0, len(statuses))
	seen := map[model.ID]bool{}
	for _, s := range statuses {
		if s.ID == "" || seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	rules.Sort(out)

	c := &Catalog{
		rules:    rules,
		statuses: out,
		byID:     make(map[model.ID]int, len(out)),
		bySlug:   make(map[string]int, len(out)*2),
	}
	for i, s := range out {
		c.byID[s.ID] = i
		if k := statusutil.Normalize(s.Slug); k != "" {
			if _, dup := c.bySlug[k]; !dup {
				c.bySlug[k] = i
			}
		}
		if k := statusutil.Normalize(s.Name); k != "" {
			if _, dup := c.bySlug[k]; !dup {
				c.bySlug[k] = i
			}
		}
	}
	return c
}

// Empty returns a catalog with no statuses (degraded state after a failed load).
func Empty(rules statusutil.Rules) *Catalog { return New(rules, nil) }

// Load fetches statuses from src. On failure it returns an empty catalog and a *FetchError.
func Load(ctx context.Context, src StatusSource, rules statusutil.Rules) (*Catalog, error) {
	statuses, err := src.ListStatuses(ctx)
	if err != nil {
		return Empty(rules), &FetchError{Err: err}
	}
	return New(rules, statuses), nil
}

func (c *Catalog) Rules() statusutil.Rules { return c.rules }

func (c *Catalog) Len() int { return len(c.statuses) }

// Statuses returns a copy of the statuses in column order.
func (c *Catalog) Statuses() []model.Status {
	return append([]model.Status(nil), c.statuses...)
}

func (c *Catalog) First() (model.Status, bool) {
	if len(c.statuses) == 0 {
		return model.Status{}, false
	}
	return c.statuses[0], true
}

func (c *Catalog) ByID(id model.ID) (model.Status, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.Status{}, false
	}
	return c.statuses[i], true
}

// BySlug resolves a legacy slug or display name.
func (c *Catalog) BySlug(slug string) (model.Status, bool) {
	i, ok := c.bySlug[statusutil.Normalize(slug)]
	if !ok {
		return model.Status{}, false
	}
	return c.statuses[i], true
}

// Resolve finds the catalog status of a task: by status id, then by legacy slug.
func (c *Catalog) Resolve(t model.Task) (model.Status, bool) {
	id, slug := t.StatusKey()
	if id != "" {
		if s, ok := c.ByID(id); ok {
			return s, true
		}
	}
	if slug != "" {
		return c.BySlug(slug)
	}
	return model.Status{}, false
}

func (c *Catalog) IsFinal(id model.ID) bool {
	s, ok := c.ByID(id)
	return ok && c.rules.IsFinal(s)
}
