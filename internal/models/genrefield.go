package models

import (
	"strconv"
	"strings"
)

// The denormalized genre column has accumulated several formats over the
// life of the activity log: the canonical comma-joined id list written by
// this service ("28,12,878"), comma-joined display names ("Action,
// Adventure"), and bracket-stringified lists ("[28, 12]",
// "['Action', 'Comedy']"). Parsing is centralized here so every reader
// shares one tolerant decoder instead of re-sniffing the format.

// EncodeGenreIDs renders the canonical on-write genre field: a
// comma-joined, order-preserving id list.
func EncodeGenreIDs(ids []int) string {
	if len(ids) == 0 {
		return ""
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// ParseGenreField decodes a stored genre field into genre display names,
// preserving token order. Purely numeric tokens are resolved through the
// taxonomy; tokens that are empty, unresolvable ids, or the literal
// markers "Unknown"/"Error" are skipped rather than surfaced as
// pseudo-genres. A nil taxonomy drops all numeric tokens.
func ParseGenreField(field string, tax *GenreTaxonomy) []string {
	field = strings.TrimSpace(field)
	field = strings.TrimPrefix(field, "[")
	field = strings.TrimSuffix(field, "]")
	if field == "" {
		return nil
	}

	var names []string
	for _, tok := range strings.Split(field, ",") {
		tok = strings.TrimSpace(tok)
		tok = strings.Trim(tok, `'"`)
		tok = strings.TrimSpace(tok)
		if tok == "" || tok == "Unknown" || tok == "Error" {
			continue
		}
		if id, err := strconv.Atoi(tok); err == nil {
			if name, ok := tax.NameOf(id); ok {
				names = append(names, name)
			}
			continue
		}
		names = append(names, tok)
	}
	return names
}
