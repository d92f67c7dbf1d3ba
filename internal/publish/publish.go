// Package publish writes a board snapshot as a tree of Markdown files.
package publish

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"taskboard/internal/model"
)

type WriteOptions struct {
	Overwrite bool
}

type WriteResult struct {
	Written []string `json:"written"`
}

// WriteBoard writes <toDir>/<variant>/index.md and one page per task under tasks/.
func WriteBoard(s Snapshot, toDir string, opt WriteOptions) (WriteResult, error) {
	if s.Board == nil {
		return WriteResult{}, errors.New("missing board")
	}
	toDir = strings.TrimSpace(toDir)
	if toDir == "" {
		return WriteResult{}, errors.New("missing --to")
	}
	boardDir := filepath.Join(filepath.Clean(toDir), string(s.Board.Variant()))
	tasksDir := filepath.Join(boardDir, "tasks")
	if err := os.MkdirAll(tasksDir, 0o755); err != nil {
		return WriteResult{}, err
	}

	indexMD, err := RenderBoardIndexMarkdown(s)
	if err != nil {
		return WriteResult{}, err
	}
	indexPath := filepath.Join(boardDir, "index.md")
	if err := writeFile(indexPath, []byte(indexMD), opt.Overwrite); err != nil {
		return WriteResult{}, err
	}

	// Stop on the first failed page.
	written := []string{indexPath}
	for _, col := range s.Board.Columns() {
		for _, id := range col.TaskIDs {
			md, err := RenderTaskMarkdown(s, id)
			if err != nil {
				return WriteResult{}, err
			}
			p := filepath.Join(boardDir, taskFile(id))
			if err := writeFile(p, []byte(md), opt.Overwrite); err != nil {
				return WriteResult{}, err
			}
			written = append(written, p)
		}
	}
	return WriteResult{Written: written}, nil
}

// taskFile is the page path of a task relative to the board directory.
func taskFile(id model.ID) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, string(id))
	return "tasks/" + name + ".md"
}

func writeFile(path string, b []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.New("file exists (use --overwrite): " + path)
		}
	}
	return os.WriteFile(path, b, 0o644)
}
