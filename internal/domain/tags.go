package domain

import (
	"fmt"
	"strings"
)

// Tag is a listing category.
type Tag string

const (
	TagArt      Tag = "ART"
	TagMusic    Tag = "MUSIC"
	TagVideo    Tag = "VIDEO"
	TagCode     Tag = "CODE"
	TagTemplate Tag = "TEMPLATE"
	TagPhoto    Tag = "PHOTO"
	TagModel3D  Tag = "MODEL_3D"
	TagFont     Tag = "FONT"
	TagOther    Tag = "OTHER"
)

const (
	MaxTags         = 5
	MaxPreviews     = 5
	InterestSlots   = 3
	UnlimitedCopies = -1
)

// Tags lists every valid tag in display order.
var Tags = []Tag{TagArt, TagMusic, TagVideo, TagCode, TagTemplate, TagPhoto, TagModel3D, TagFont, TagOther}

// ParseTag normalizes s (case-insensitive, "3d model" style spacing allowed) and validates it.
func ParseTag(s string) (Tag, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	for _, t := range Tags {
		if string(t) == norm {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown tag %q", s)
}

// ValidateTags checks count and membership and drops duplicates, keeping order.
func ValidateTags(raw []string) ([]Tag, error) {
	seen := make(map[Tag]bool, len(raw))
	out := make([]Tag, 0, len(raw))
	for _, r := range raw {
		t, err := ParseTag(r)
		if err != nil {
			return nil, err
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) > MaxTags {
		return nil, fmt.Errorf("at most %d tags allowed, got %d", MaxTags, len(out))
	}
	return out, nil
}

// Label is the human form of a tag.
func (t Tag) Label() string {
	switch t {
	case TagModel3D:
		return "3D model"
	default:
		s := strings.ToLower(string(t))
		return strings.ToUpper(s[:1]) + s[1:]
	}
}

// Strings converts tags for wire payloads.
func Strings(tags []Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	return out
}
