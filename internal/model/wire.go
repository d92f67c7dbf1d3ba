package model

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// ID is an opaque entity identifier. Backends send ids either as JSON numbers or strings;
// both decode to the same ID, which encodes back as its decimal text.
type ID string

func (id ID) String() string { return string(id) }

// Wire returns the value sent in request bodies: digit-only ids go out as numbers, matching
// what the backend stores.
func (id ID) Wire() any {
	s := string(id)
	if isDigits(s) {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	}
	return s
}

func (id *ID) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	switch {
	case raw == "null":
		*id = ""
		return nil
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := sonic.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	default:
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			return errors.New("invalid id: " + raw)
		}
		*id = ID(raw)
		return nil
	}
}

func isDigits(s string) bool {
	if s == "" || len(s) > 15 {
		return false
	}
	if len(s) > 1 && s[0] == '0' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

const dateLayout = "2006-01-02"

// Date is a calendar day (YYYY-MM-DD).
type Date string

func DateOf(t time.Time) Date { return Date(t.Format(dateLayout)) }

// ParseDate accepts YYYY-MM-DD or an RFC3339 timestamp; timestamps keep the calendar
// day in their own offset.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("empty date")
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return DateOf(t), nil
	}
	return "", errors.New("invalid date: " + s)
}

func (d Date) String() string { return string(d) }

func (d *Date) UnmarshalJSON(b []byte) error {
	if strings.TrimSpace(string(b)) == "null" {
		*d = ""
		return nil
	}
	var s string
	if err := sonic.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// LegacyStatus decodes the pre-statusId "status" field, which older payloads send either as
// a slug string or as an embedded {id, name, slug} object.
type LegacyStatus struct {
	ID   ID
	Slug string
}

func (s LegacyStatus) IsZero() bool { return s.ID == "" && s.Slug == "" }

func (s LegacyStatus) MarshalJSON() ([]byte, error) {
	if s.IsZero() {
		return []byte("null"), nil
	}
	if s.ID == "" {
		return sonic.Marshal(s.Slug)
	}
	return sonic.Marshal(map[string]any{"id": s.ID, "slug": s.Slug})
}

func (s *LegacyStatus) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	switch {
	case raw == "null" || raw == "":
		*s = LegacyStatus{}
		return nil
	case strings.HasPrefix(raw, `"`):
		var v string
		if err := sonic.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = LegacyStatus{Slug: strings.TrimSpace(v)}
		return nil
	default:
		var obj struct {
			ID   ID     `json:"id"`
			Name string `json:"name"`
			Slug string `json:"slug"`
		}
		if err := sonic.Unmarshal(b, &obj); err != nil {
			return err
		}
		slug := strings.TrimSpace(obj.Slug)
		if slug == "" {
			slug = strings.TrimSpace(obj.Name)
		}
		*s = LegacyStatus{ID: obj.ID, Slug: slug}
		return nil
	}
}

// Priority is a free-form label; numeric priorities are kept as their decimal text.
type Priority string

func (p *Priority) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	switch {
	case raw == "null":
		*p = ""
	case strings.HasPrefix(raw, `"`):
		var v string
		if err := sonic.Unmarshal(b, &v); err != nil {
			return err
		}
		*p = Priority(v)
	default:
		*p = Priority(raw)
	}
	return nil
}
