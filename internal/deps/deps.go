// Package deps answers "is this task blocked?" from each task's direct predecessors.
//
// The check is one hop deep: a predecessor counts as resolved when its own status is final,
// regardless of what that predecessor is itself waiting on.
package deps

import (
	"sort"
	"strings"

	"taskboard/internal/catalog"
	"taskboard/internal/model"
	"taskboard/internal/statusutil"
)

const completedName = "completed"

// Graph indexes a task collection for dependency lookups. It is not safe for concurrent use.
type Graph struct {
	cat   *catalog.Catalog
	rules statusutil.Rules
	tasks map[model.ID]model.Task
	order []model.ID
}

func New(cat *catalog.Catalog, tasks []model.Task) *Graph {
	if cat == nil {
		cat = catalog.Empty(statusutil.DefaultRules())
	}
	g := &Graph{
		cat:   cat,
		rules: cat.Rules(),
		tasks: make(map[model.ID]model.Task, len(tasks)),
	}
	for _, t := range tasks {
		g.Upsert(t)
	}
	return g
}

// Upsert adds or replaces a task record, e.g. after a status transition.
func (g *Graph) Upsert(t model.Task) {
	if t.ID == "" {
		return
	}
	if _, ok := g.tasks[t.ID]; !ok {
		g.order = append(g.order, t.ID)
	}
	g.tasks[t.ID] = t
}

func (g *Graph) Task(id model.ID) (model.Task, bool) {
	t, ok := g.tasks[id]
	return t, ok
}

// Predecessor is one direct dependency as seen by the graph.
type Predecessor struct {
	ID       model.ID `json:"id"`
	Title    string   `json:"title"`
	Status   string   `json:"status,omitempty"`
	Known    bool     `json:"known"`
	Resolved bool     `json:"resolved"`
}

// Predecessors lists t's direct dependencies in declaration order. A predecessor with no
// task record and no embedded snapshot is unknown and counts as unresolved.
func (g *Graph) Predecessors(t model.Task) []Predecessor {
	out := make([]Predecessor, 0, len(t.Dependencies))
	for _, d := range t.Dependencies {
		out = append(out, g.predecessor(d))
	}
	return out
}

func (g *Graph) predecessor(d model.Dependency) Predecessor {
	id := d.DependsOnTaskID
	if id == "" && d.DependsOnTask != nil {
		id = d.DependsOnTask.ID
	}
	p := Predecessor{ID: id}

	if rec, ok := g.tasks[id]; ok {
		p.Known = true
		p.Title = rec.Title
		p.Status, p.Resolved = g.statusOf(rec)
		return p
	}
	if ref := d.DependsOnTask; ref != nil {
		p.Known = true
		p.Title = ref.Title
		p.Status, p.Resolved = g.statusOf(model.Task{ID: ref.ID, StatusID: ref.StatusID, Status: ref.Status})
		return p
	}
	p.Title = "#" + string(id)
	return p
}

// statusOf returns the display name of t's status and whether it counts as resolved.
func (g *Graph) statusOf(t model.Task) (string, bool) {
	if s, ok := g.cat.Resolve(t); ok {
		return s.Name, g.rules.IsFinal(s) || statusutil.Normalize(s.Name) == completedName
	}
	_, slug := t.StatusKey()
	if slug == "" {
		return "", false
	}
	n := statusutil.Normalize(slug)
	return slug, g.rules.IsFinalName(n) || n == completedName
}

func (g *Graph) isWaiting(t model.Task) bool {
	if s, ok := g.cat.Resolve(t); ok {
		return g.rules.IsWaitingName(s.Name) || (s.Slug != "" && g.rules.IsWaitingName(s.Slug))
	}
	_, slug := t.StatusKey()
	return g.rules.IsWaitingName(slug)
}

// IsBlocked reports whether t sits in the waiting status or has an unresolved predecessor.
func (g *Graph) IsBlocked(t model.Task) bool {
	if g.isWaiting(t) {
		return true
	}
	for _, d := range t.Dependencies {
		if !g.predecessor(d).Resolved {
			return true
		}
	}
	return false
}

// BlockingReasons returns the titles of t's unresolved predecessors.
func (g *Graph) BlockingReasons(t model.Task) []string {
	out := []string{}
	for _, p := range g.Predecessors(t) {
		if p.Resolved {
			continue
		}
		title := strings.TrimSpace(p.Title)
		if title == "" {
			title = "#" + string(p.ID)
		}
		out = append(out, title)
	}
	return out
}

// Ready lists tasks that are neither final nor blocked, in insertion order.
func (g *Graph) Ready() []model.Task {
	out := []model.Task{}
	for _, id := range g.order {
		t := g.tasks[id]
		if _, resolved := g.statusOf(t); resolved {
			continue
		}
		if g.IsBlocked(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Cycles reports dependency cycles among the indexed tasks. Each cycle starts and ends
// with the same id. Cycles do not affect IsBlocked.
func (g *Graph) Cycles() [][]model.ID {
	edges := map[model.ID][]model.ID{}
	for _, id := range g.order {
		for _, d := range g.tasks[id].Dependencies {
			if d.DependsOnTaskID == "" {
				continue
			}
			edges[id] = append(edges[id], d.DependsOnTaskID)
		}
	}

	nodes := make([]model.ID, 0, len(edges))
	for n := range edges {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return statusutil.CompareIDs(nodes[i], nodes[j]) < 0 })

	visited := map[model.ID]bool{}
	onStack := map[model.ID]bool{}
	var stack []model.ID
	cycles := [][]model.ID{}
	seen := map[string]bool{}

	var dfs func(n model.ID)
	dfs = func(n model.ID) {
		visited[n] = true
		onStack[n] = true
		stack = append(stack, n)

		for _, m := range edges[n] {
			if !visited[m] {
				dfs(m)
				continue
			}
			if !onStack[m] {
				continue
			}
			var cycle []model.ID
			for i := len(stack) - 1; i >= 0; i-- {
				cycle = append([]model.ID{stack[i]}, cycle...)
				if stack[i] == m {
					break
				}
			}
			cycle = append(cycle, m)
			parts := make([]string, len(cycle))
			for i, c := range cycle {
				parts[i] = string(c)
			}
			key := strings.Join(parts, "->")
			if !seen[key] {
				seen[key] = true
				cycles = append(cycles, cycle)
			}
		}

		stack = stack[:len(stack)-1]
		onStack[n] = false
	}

	for _, n := range nodes {
		if !visited[n] {
			dfs(n)
		}
	}
	return cycles
}
