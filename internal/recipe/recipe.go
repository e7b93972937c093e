// Package recipe defines the recipe and user shapes the client works with.
//
// Data enters the client as loosely shaped JSON: fields may be missing,
// null, or spelled differently between endpoints. FromJSON and UserFromJSON
// are the only places that tolerate that; everything downstream works with
// Ref and User, whose zero values are explicit defaults (a missing code is
// 0, never absent).
//
// This package imports nothing internal.
package recipe

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRecipe is returned when a recipe cannot be identified.
var ErrInvalidRecipe = errors.New("invalid recipe")

// Ingredient is one ingredient line.
type Ingredient struct {
	Name  string `json:"name"`
	Count string `json:"count"`
}

// Ref is the part of a recipe record the client needs to identify and
// synchronize it. ServerCode 0 means the server has not assigned one yet.
type Ref struct {
	ServerCode int64
	Name       string
	Time       string
	Author     string
	ToolsMask  int64
	TypeCode   int64

	Steps           []string
	MainIngredients []Ingredient
	SubIngredients  []Ingredient
	Thumbnail       string
}

// HasCode reports whether the server has assigned an identity.
func (r Ref) HasCode() bool {
	return r.ServerCode > 0
}

// WithCode returns a copy of r carrying code.
func (r Ref) WithCode(code int64) Ref {
	r.ServerCode = code
	return r
}

// Validate checks the fields identity derivation depends on.
func (r Ref) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRecipe)
	}
	if r.ServerCode < 0 {
		return fmt.Errorf("%w: negative code %d", ErrInvalidRecipe, r.ServerCode)
	}
	if r.ToolsMask < 0 {
		return fmt.Errorf("%w: negative tools mask %d", ErrInvalidRecipe, r.ToolsMask)
	}
	return nil
}

// wireRecipe mirrors every spelling of a recipe the API has produced.
// encoding/json matches keys case-insensitively, which absorbs the casing
// drift between endpoints.
type wireRecipe struct {
	Code            *int64       `json:"code"`
	Name            string       `json:"name"`
	Title           string       `json:"title"`
	Time            string       `json:"time"`
	Author          string       `json:"author"`
	Owner           string       `json:"owner"`
	Tools           *int64       `json:"tools"`
	Type            *int64       `json:"type"`
	Recipe          []string     `json:"recipe"`
	MainIngredients []Ingredient `json:"mainIngredients"`
	SubIngredients  []Ingredient `json:"subIngredients"`
	Thumbnail       string       `json:"thumbnail"`
}

func (w wireRecipe) ref() Ref {
	r := Ref{
		Name:            strings.TrimSpace(w.Name),
		Time:            strings.TrimSpace(w.Time),
		Author:          w.Author,
		Steps:           w.Recipe,
		MainIngredients: w.MainIngredients,
		SubIngredients:  w.SubIngredients,
		Thumbnail:       w.Thumbnail,
	}
	if r.Name == "" {
		r.Name = strings.TrimSpace(w.Title)
	}
	if r.Author == "" {
		r.Author = w.Owner
	}
	if w.Code != nil {
		r.ServerCode = *w.Code
	}
	if w.Tools != nil {
		r.ToolsMask = *w.Tools
	}
	if w.Type != nil {
		r.TypeCode = *w.Type
	}
	return r
}

// FromJSON decodes and validates a single recipe.
func FromJSON(data []byte) (Ref, error) {
	var w wireRecipe
	if err := json.Unmarshal(data, &w); err != nil {
		return Ref{}, fmt.Errorf("decode recipe: %w", err)
	}
	r := w.ref()
	if err := r.Validate(); err != nil {
		return Ref{}, err
	}
	return r, nil
}

// ListFromJSON decodes a recipe list. A bare object is accepted as a list
// of one; null decodes to an empty list. Entries that fail validation are
// skipped and counted.
func ListFromJSON(data []byte) ([]Ref, int, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil, 0, nil
	}

	var ws []wireRecipe
	if strings.HasPrefix(trimmed, "{") {
		var w wireRecipe
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, 0, fmt.Errorf("decode recipe: %w", err)
		}
		ws = []wireRecipe{w}
	} else if err := json.Unmarshal(data, &ws); err != nil {
		return nil, 0, fmt.Errorf("decode recipe list: %w", err)
	}

	out := make([]Ref, 0, len(ws))
	skipped := 0
	for _, w := range ws {
		r := w.ref()
		if r.Validate() != nil {
			skipped++
			continue
		}
		out = append(out, r)
	}
	return out, skipped, nil
}

// ParseIngredient splits an entry like "돼지고기 200g" into name and count.
// The name is the first word; the rest, if any, is the count.
func ParseIngredient(entry string) (Ingredient, bool) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return Ingredient{}, false
	}
	name, count, _ := strings.Cut(entry, " ")
	return Ingredient{Name: name, Count: strings.TrimSpace(count)}, true
}

// SplitIngredients treats the first ingredient as the main one.
func SplitIngredients(all []Ingredient) (main, sub []Ingredient) {
	if len(all) == 0 {
		return []Ingredient{}, []Ingredient{}
	}
	main = append([]Ingredient{}, all[:1]...)
	sub = append([]Ingredient{}, all[1:]...)
	return main, sub
}
