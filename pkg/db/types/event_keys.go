package dbtypes

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// EventKeys is the set of idempotency keys already applied to a row, stored as
// a Postgres text[] literal. SQLite keeps the same literal in a TEXT column.
type EventKeys []string

// Has reports whether key was already recorded.
func (k EventKeys) Has(key string) bool {
	for _, existing := range k {
		if existing == key {
			return true
		}
	}
	return false
}

// Add appends key unless it is already present.
func (k EventKeys) Add(key string) EventKeys {
	if k.Has(key) {
		return k
	}
	return append(k, key)
}

// GormDBDataType maps the column to text[] on Postgres and TEXT elsewhere.
func (EventKeys) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "TEXT"
}

func (k *EventKeys) Scan(src any) error {
	if src == nil {
		*k = EventKeys{}
		return nil
	}

	switch v := src.(type) {
	case string:
		return k.parseFromString(v)
	case []byte:
		return k.parseFromString(string(v))
	default:
		return fmt.Errorf("EventKeys: unsupported Scan type %T", src)
	}
}

func (k EventKeys) Value() (driver.Value, error) {
	// Postgres array literal: {"a","b"}
	if len(k) == 0 {
		return "{}", nil
	}
	parts := make([]string, 0, len(k))
	for _, key := range k {
		escaped := strings.ReplaceAll(key, `\`, `\\`)
		escaped = strings.ReplaceAll(escaped, `"`, `\"`)
		parts = append(parts, `"`+escaped+`"`)
	}
	return "{" + strings.Join(parts, ",") + "}", nil
}

func (k *EventKeys) parseFromString(s string) error {
	s = strings.TrimSpace(s)
	if s == "{}" || s == "" {
		*k = EventKeys{}
		return nil
	}
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return fmt.Errorf("EventKeys: malformed array literal %q", s)
	}
	body := s[1 : len(s)-1]

	out := EventKeys{}
	var (
		current  strings.Builder
		quoted   bool
		inQuotes bool
		escaped  bool
	)
	flush := func() {
		value := current.String()
		if !quoted {
			value = strings.TrimSpace(value)
		}
		out = append(out, value)
		current.Reset()
		quoted = false
	}
	for _, r := range body {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			inQuotes = !inQuotes
			quoted = true
		case r == ',' && !inQuotes:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	if inQuotes || escaped {
		return fmt.Errorf("EventKeys: unterminated element in %q", s)
	}
	flush()
	*k = out
	return nil
}
