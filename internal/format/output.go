// Package format renders command results as JSON or EDN.
package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"
)

const (
	JSON = "json"
	EDN  = "edn"
)

// Write renders v in format ("" means json).
func Write(w io.Writer, v any, format string, pretty bool) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", JSON:
		return WriteJSON(w, v, pretty)
	case EDN:
		return WriteEDN(w, v, pretty)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteJSON writes one JSON document followed by a newline.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var (
		b   []byte
		err error
	)
	if pretty {
		b, err = sonic.ConfigStd.MarshalIndent(v, "", "  ")
	} else {
		b, err = sonic.ConfigStd.Marshal(v)
	}
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}
