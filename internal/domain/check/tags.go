package check

import (
	"sort"
	"strings"
)

// Tags is a sorted set of trimmed, non-empty tag names.
type Tags []string

// ParseTags splits a comma-delimited source such as "alpha, beta ,gamma".
func ParseTags(src string) Tags {
	if strings.TrimSpace(src) == "" {
		return Tags{}
	}
	return NewTags(strings.Split(src, ",")...)
}

func NewTags(items ...string) Tags {
	seen := make(map[string]struct{}, len(items))
	out := make(Tags, 0, len(items))
	for _, it := range items {
		t := strings.TrimSpace(it)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// String is the stored form: tags joined by "," in sorted order.
func (t Tags) String() string { return strings.Join(t, ",") }

func (t Tags) Has(tag string) bool {
	i := sort.SearchStrings(t, tag)
	return i < len(t) && t[i] == tag
}

// Intersects reports whether t and other share at least one tag.
func (t Tags) Intersects(other Tags) bool {
	i, j := 0, 0
	for i < len(t) && j < len(other) {
		switch {
		case t[i] == other[j]:
			return true
		case t[i] < other[j]:
			i++
		default:
			j++
		}
	}
	return false
}
