package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/bytedance/sonic"
)

// numberAPI keeps JSON numbers as json.Number so large task ids survive the round trip.
var numberAPI = sonic.Config{UseNumber: true, SortMapKeys: true}.Froze()

// WriteEDN writes v as EDN. Values go through their JSON form first so json tags decide
// key names; keys become kebab-case keywords (taskIds -> :task-ids).
func WriteEDN(w io.Writer, v any, pretty bool) error {
	raw, err := numberAPI.Marshal(v)
	if err != nil {
		return err
	}
	var x any
	if err := numberAPI.Unmarshal(raw, &x); err != nil {
		return err
	}
	var buf bytes.Buffer
	e := ednWriter{buf: &buf, pretty: pretty}
	e.value(x, 0)
	buf.WriteByte('\n')
	_, err = w.Write(buf.Bytes())
	return err
}

type ednWriter struct {
	buf    *bytes.Buffer
	pretty bool
}

func (e ednWriter) value(v any, depth int) {
	switch t := v.(type) {
	case nil:
		e.buf.WriteString("nil")
	case bool:
		e.buf.WriteString(strconv.FormatBool(t))
	case string:
		e.buf.WriteString(strconv.Quote(t))
	case json.Number:
		e.buf.WriteString(t.String())
	case float64:
		e.buf.WriteString(strconv.FormatFloat(t, 'f', -1, 64))
	case []any:
		e.seq('[', ']', len(t), depth, func(i int) { e.value(t[i], depth+1) })
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		e.seq('{', '}', len(keys), depth, func(i int) {
			e.buf.WriteByte(':')
			e.buf.WriteString(Keyword(keys[i]))
			e.buf.WriteByte(' ')
			e.value(t[keys[i]], depth+1)
		})
	default:
		e.buf.WriteString(strconv.Quote(fmt.Sprint(v)))
	}
}

func (e ednWriter) seq(open, close byte, n, depth int, item func(int)) {
	e.buf.WriteByte(open)
	if n == 0 {
		e.buf.WriteByte(close)
		return
	}
	for i := 0; i < n; i++ {
		switch {
		case e.pretty:
			e.buf.WriteByte('\n')
			e.buf.WriteString(strings.Repeat("  ", depth+1))
		case i > 0:
			e.buf.WriteByte(' ')
		}
		item(i)
	}
	if e.pretty {
		e.buf.WriteByte('\n')
		e.buf.WriteString(strings.Repeat("  ", depth))
	}
	e.buf.WriteByte(close)
}

// Keyword converts a JSON field name to an EDN keyword name.
func Keyword(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	prevLower := false
	for _, r := range s {
		switch {
		case r == ' ' || r == '_':
			b.WriteByte('-')
			prevLower = false
		case unicode.IsUpper(r):
			if prevLower {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		default:
			b.WriteRune(r)
			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		}
	}
	return b.String()
}
