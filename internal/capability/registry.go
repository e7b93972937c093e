package capability

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"
)

//go:embed registry.cue
var defaultRegistry []byte

// Domain names in the default registry.
const (
	Tools     = "tools"
	Allergies = "allergies"
	FoodType  = "foodType"
)

// Kind distinguishes bit-packed domains from enumerated ones.
type Kind string

const (
	// KindMulti domains pack any subset of labels into one mask.
	KindMulti Kind = "multi"
	// KindSingle domains hold exactly one enumerant; callers replace the
	// value instead of OR-ing it.
	KindSingle Kind = "single"
)

// RegistryError reports an invalid capability definition.
type RegistryError struct {
	Domain  string
	Label   string
	Message string
	Pos     token.Pos
}

func (e *RegistryError) Error() string {
	where := e.Domain
	if e.Label != "" {
		where += "." + e.Label
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), where, e.Message)
	}
	return fmt.Sprintf("%s: %s", where, e.Message)
}

// Registry holds every capability domain, in declaration order.
type Registry struct {
	sets  map[string]*Set
	order []string
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the built-in registry. It is parsed once per process.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := Parse("registry.cue", defaultRegistry)
		if err != nil {
			panic(fmt.Sprintf("capability: embedded registry: %v", err))
		}
		defaultReg = r
	})
	return defaultReg
}

// Load reads a registry override from a CUE file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return Parse(path, data)
}

// Parse compiles CUE source into a Registry. The source must define a
// top-level "domains" struct; each domain has a kind and a label map.
func Parse(filename string, src []byte) (*Registry, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile registry: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate registry: %w", err)
	}

	domains := v.LookupPath(cue.ParsePath("domains"))
	if !domains.Exists() {
		return nil, &RegistryError{Domain: "domains", Message: "domains is required", Pos: v.Pos()}
	}

	reg := &Registry{sets: make(map[string]*Set)}
	iter, err := domains.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterate domains: %w", err)
	}
	for iter.Next() {
		set, err := parseSet(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		reg.sets[set.Name] = set
		reg.order = append(reg.order, set.Name)
	}
	if len(reg.order) == 0 {
		return nil, &RegistryError{Domain: "domains", Message: "at least one domain is required", Pos: domains.Pos()}
	}
	return reg, nil
}

func parseSet(name string, v cue.Value) (*Set, error) {
	kindStr, err := v.LookupPath(cue.ParsePath("kind")).String()
	if err != nil {
		return nil, &RegistryError{Domain: name, Message: "kind must be a string", Pos: v.Pos()}
	}
	set := &Set{Name: name, Kind: Kind(kindStr), index: make(map[string]int64)}

	labels, err := v.LookupPath(cue.ParsePath("labels")).Fields()
	if err != nil {
		return nil, &RegistryError{Domain: name, Message: "labels must be a struct", Pos: v.Pos()}
	}

	seen := make(map[int64]string)
	for labels.Next() {
		label := labels.Label()
		bit, err := labels.Value().Int64()
		if err != nil {
			return nil, &RegistryError{Domain: name, Label: label, Message: "value must be an integer", Pos: labels.Value().Pos()}
		}
		if set.Kind == KindMulti && !isPowerOfTwo(bit) {
			return nil, &RegistryError{Domain: name, Label: label, Message: fmt.Sprintf("%d is not a single bit", bit), Pos: labels.Value().Pos()}
		}
		if other, dup := seen[bit]; dup {
			return nil, &RegistryError{Domain: name, Label: label, Message: fmt.Sprintf("value %d already used by %q", bit, other), Pos: labels.Value().Pos()}
		}
		seen[bit] = label
		set.Labels = append(set.Labels, Label{Name: label, Bit: bit})
		set.index[label] = bit
	}
	if len(set.Labels) == 0 {
		return nil, &RegistryError{Domain: name, Message: "at least one label is required", Pos: v.Pos()}
	}
	return set, nil
}

// Set returns the named domain.
func (r *Registry) Set(name string) (*Set, error) {
	s, ok := r.sets[name]
	if !ok {
		return nil, fmt.Errorf("unknown capability domain %q", name)
	}
	return s, nil
}

// MustSet is like Set but panics on unknown names. Use it only with the
// package constants against the default registry.
func (r *Registry) MustSet(name string) *Set {
	s, err := r.Set(name)
	if err != nil {
		panic(err)
	}
	return s
}

// Names lists domains in declaration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func isPowerOfTwo(v int64) bool {
	return v > 0 && v&(v-1) == 0
}
