package recipe

// LikeBody is the JSON body of POST /recipes/like.
//
// Type carries the recipe's own type code. Tools carries the liking user's
// tools mask, which the server uses to personalize defaults; the recipe's
// own tools mask stays on Ref and is not sent under this field.
type LikeBody struct {
	Code            int64        `json:"code"`
	Name            string       `json:"name"`
	Time            string       `json:"time"`
	Recipe          []string     `json:"recipe"`
	MainIngredients []Ingredient `json:"mainIngredients"`
	SubIngredients  []Ingredient `json:"subIngredients"`
	Thumbnail       string       `json:"thumbnail"`
	Type            int64        `json:"type"`
	Tools           int64        `json:"tools"`
	Author          string       `json:"author"`
}

// NewLikeBody builds the like request for r on behalf of a user whose tools
// mask is userTools. Lists are never null on the wire.
func NewLikeBody(r Ref, userTools int64) LikeBody {
	return LikeBody{
		Code:            r.ServerCode,
		Name:            r.Name,
		Time:            r.Time,
		Recipe:          nonNil(r.Steps),
		MainIngredients: nonNil(r.MainIngredients),
		SubIngredients:  nonNil(r.SubIngredients),
		Thumbnail:       r.Thumbnail,
		Type:            r.TypeCode,
		Tools:           userTools,
		Author:          r.Author,
	}
}

// Ref converts a like body back into a recipe reference. The fake API and
// the saved-list endpoint both echo this shape.
func (b LikeBody) Ref() Ref {
	return Ref{
		ServerCode:      b.Code,
		Name:            b.Name,
		Time:            b.Time,
		Author:          b.Author,
		TypeCode:        b.Type,
		Steps:           b.Recipe,
		MainIngredients: b.MainIngredients,
		SubIngredients:  b.SubIngredients,
		Thumbnail:       b.Thumbnail,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
