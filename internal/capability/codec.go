package capability

import "strings"

// None is the presentation sentinel for an empty mask.
const None = "없음"

// Label is one named capability and its value.
type Label struct {
	Name string
	Bit  int64
}

// Set is a fixed vocabulary of capabilities.
type Set struct {
	Name   string
	Kind   Kind
	Labels []Label

	index map[string]int64
}

// Bit returns the value for a label.
func (s *Set) Bit(label string) (int64, bool) {
	b, ok := s.index[label]
	return b, ok
}

// Names lists labels in declaration order.
func (s *Set) Names() []string {
	out := make([]string, len(s.Labels))
	for i, l := range s.Labels {
		out[i] = l.Name
	}
	return out
}

// All returns the union of every known bit.
func (s *Set) All() int64 {
	var all int64
	for _, l := range s.Labels {
		all |= l.Bit
	}
	return all
}

// LabelOf returns the label whose value equals v. Single-select domains
// store exactly one enumerant, so equality rather than bit tests applies.
func (s *Set) LabelOf(v int64) (string, bool) {
	for _, l := range s.Labels {
		if l.Bit == v {
			return l.Name, true
		}
	}
	return "", false
}

// Filter returns the labels containing query, in declaration order.
// An empty query matches everything.
func (s *Set) Filter(query string) []string {
	var out []string
	for _, l := range s.Labels {
		if strings.Contains(l.Name, query) {
			out = append(out, l.Name)
		}
	}
	return out
}

// Encode ORs together the bit of every known label. Unknown labels are
// ignored.
func Encode(labels []string, set *Set) int64 {
	var mask int64
	for _, name := range labels {
		if bit, ok := set.index[name]; ok {
			mask |= bit
		}
	}
	return mask
}

// Decode returns every label whose bit is set in mask, in declaration
// order. For single-select domains it returns the one matching enumerant.
// Bits outside the registry are dropped; see Unknown and Merge.
func Decode(mask int64, set *Set) []string {
	if set.Kind == KindSingle {
		if name, ok := set.LabelOf(mask); ok {
			return []string{name}
		}
		return nil
	}
	var out []string
	for _, l := range set.Labels {
		if IsSet(mask, l.Bit) {
			out = append(out, l.Name)
		}
	}
	return out
}

// Toggle flips one bit without disturbing the others.
func Toggle(mask, bit int64) int64 {
	if IsSet(mask, bit) {
		return mask - bit
	}
	return mask | bit
}

// IsSet reports whether bit is present in mask.
func IsSet(mask, bit int64) bool {
	return mask&bit != 0
}

// Unknown returns the bits of mask that no label of set claims.
func Unknown(mask int64, set *Set) int64 {
	return mask &^ set.All()
}

// Merge re-encodes labels over mask, keeping bits the registry does not
// know about.
func Merge(mask int64, labels []string, set *Set) int64 {
	return Unknown(mask, set) | Encode(labels, set)
}

// Display joins the decoded labels with sep, or returns None when nothing
// is selected.
func Display(mask int64, set *Set, sep string) string {
	labels := Decode(mask, set)
	if len(labels) == 0 {
		return None
	}
	return strings.Join(labels, sep)
}
