package store

// convert.go maps record text to and from nullable PostgreSQL text.
//
// An empty field is stored as NULL and a NULL reads back as an empty field.
// Non-empty values are stored byte for byte; no trimming, so an exported file
// reproduces the imported text exactly.

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// toPgText converts a field value to pgtype.Text.
// Returns invalid (NULL) if the value is empty.
func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// fromPgText returns the text value, or "" for NULL.
func fromPgText(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}
