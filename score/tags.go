package score

import (
	"encoding/json"
	"slices"
)

// Tags is a sorted set of labels
type Tags []string

// NewTags builds a tag set
func NewTags(tags ...string) Tags {
	return Tags(nil).Add(tags...)
}

// Add returns the union with the given tags
func (t Tags) Add(tags ...string) Tags {
	out := slices.Clone(t)
	for _, tag := range tags {
		if i, found := slices.BinarySearch(out, tag); !found {
			out = slices.Insert(out, i, tag)
		}
	}
	return out
}

// Remove returns the set without the given tags
func (t Tags) Remove(tags ...string) Tags {
	return slices.DeleteFunc(slices.Clone(t), func(tag string) bool {
		return slices.Contains(tags, tag)
	})
}

// Has reports membership
func (t Tags) Has(tag string) bool {
	_, found := slices.BinarySearch(t, tag)
	return found
}

// Union merges two tag sets
func (t Tags) Union(o Tags) Tags {
	return t.Add(o...)
}

// UnmarshalJSON accepts tags in any order and with duplicates
func (t *Tags) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = NewTags(raw...)
	return nil
}
