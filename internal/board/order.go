package board

import (
	"sort"
	"strings"

	"taskboard/internal/model"
)

// ApplyOrder sorts each column by locally stored ranks, keyed by column id. Ranked tasks
// come first in rank order; unranked tasks follow in their current order.
func (b *Board) ApplyOrder(ranks map[string]map[model.ID]string) *Board {
	if len(ranks) == 0 {
		return b
	}
	out := b.clone()
	for i := range out.columns {
		colRanks := ranks[out.columns[i].ID]
		if len(colRanks) == 0 {
			continue
		}
		ids := out.columns[i].TaskIDs
		pos := make(map[model.ID]int, len(ids))
		for p, id := range ids {
			pos[id] = p
		}
		sort.SliceStable(ids, func(x, y int) bool {
			rx := strings.TrimSpace(colRanks[ids[x]])
			ry := strings.TrimSpace(colRanks[ids[y]])
			switch {
			case rx != "" && ry != "":
				if rx != ry {
					return rx < ry
				}
				return pos[ids[x]] < pos[ids[y]]
			case rx != "":
				return true
			case ry != "":
				return false
			default:
				return pos[ids[x]] < pos[ids[y]]
			}
		})
	}
	return out
}

type columnView struct {
	ID    string       `json:"id"`
	Label string       `json:"label"`
	Tasks []model.Task `json:"tasks"`
}

type boardView struct {
	Variant Variant      `json:"variant"`
	Today   model.Date   `json:"today,omitempty"`
	Columns []columnView `json:"columns"`
}

// View returns the board as a plain serializable structure.
func (b *Board) View() any {
	v := boardView{Variant: b.variant, Today: b.today, Columns: make([]columnView, 0, len(b.columns))}
	for _, c := range b.columns {
		v.Columns = append(v.Columns, columnView{ID: c.ID, Label: c.Label, Tasks: b.ColumnTasks(c.ID)})
	}
	return v
}
