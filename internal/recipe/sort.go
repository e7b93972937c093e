package recipe

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Order selects how recipe lists are presented.
type Order string

const (
	// OrderLatest keeps the server's order.
	OrderLatest Order = "latest"
	// OrderAlpha sorts by name using Korean collation.
	OrderAlpha Order = "alpha"
	// OrderTime sorts by cooking time; recipes without one go last.
	OrderTime Order = "time"
)

// ParseOrder validates an order name.
func ParseOrder(s string) (Order, error) {
	switch o := Order(s); o {
	case OrderLatest, OrderAlpha, OrderTime:
		return o, nil
	}
	return "", fmt.Errorf("unknown order %q: must be one of latest, alpha, time", s)
}

var leadingNumber = regexp.MustCompile(`\d+`)

// Minutes extracts the first number in a cooking time such as "30분".
func Minutes(t string) (int, bool) {
	m := leadingNumber.FindString(t)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Sort returns a sorted copy of refs. The sort is stable so equal keys keep
// the server's order.
func Sort(refs []Ref, order Order) []Ref {
	return SortBy(refs, order, func(r Ref) Ref { return r })
}

// SortBy sorts a copy of items by the recipe each one carries.
func SortBy[T any](items []T, order Order, ref func(T) Ref) []T {
	out := slices.Clone(items)
	switch order {
	case OrderAlpha:
		c := collate.New(language.Korean)
		slices.SortStableFunc(out, func(a, b T) int {
			return c.CompareString(ref(a).Name, ref(b).Name)
		})
	case OrderTime:
		slices.SortStableFunc(out, func(a, b T) int {
			return minutesOrMax(ref(a).Time) - minutesOrMax(ref(b).Time)
		})
	}
	return out
}

func minutesOrMax(t string) int {
	if n, ok := Minutes(t); ok {
		return n
	}
	return math.MaxInt32
}
