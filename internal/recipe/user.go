package recipe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// GuestID identifies a user the client has no id for.
const GuestID = "guest"

// User is the current user as returned by /api/me.
type User struct {
	ID          string
	ToolsMask   int64
	BannedMask  int64
	Ingredients []string
}

// KeyID returns the id used in local keys, falling back to GuestID.
func (u User) KeyID() string {
	if id := strings.TrimSpace(u.ID); id != "" {
		return id
	}
	return GuestID
}

type wireUser struct {
	ID          json.RawMessage   `json:"id"`
	UserID      json.RawMessage   `json:"userId"`
	Tools       int64             `json:"tools"`
	Banned      int64             `json:"banned"`
	Ingredients []json.RawMessage `json:"ingredients"`
}

// UserFromJSON decodes /api/me. The id may be a string or a number, and
// ingredients may be plain names or {"name": ...} objects.
func UserFromJSON(data []byte) (User, error) {
	var w wireUser
	if err := json.Unmarshal(data, &w); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}

	u := User{
		ToolsMask:  w.Tools,
		BannedMask: w.Banned,
	}

	id, err := rawID(w.ID)
	if err != nil {
		return User{}, err
	}
	if id == "" {
		if id, err = rawID(w.UserID); err != nil {
			return User{}, err
		}
	}
	u.ID = id

	for _, raw := range w.Ingredients {
		if name := ingredientName(raw); name != "" {
			u.Ingredients = append(u.Ingredients, name)
		}
	}
	return u, nil
}

func rawID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("decode user id: %w", err)
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("decode user id: %w", err)
	}
	return n.String(), nil
}

func ingredientName(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Name string `json:"name"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return strings.TrimSpace(obj.Name)
	}
	return ""
}

// Update is the body of PUT /api/update. Masks are sent alongside their
// decoded label lists, as the profile screens do.
type Update struct {
	ID          string       `json:"id,omitempty"`
	Tools       int64        `json:"tools"`
	ToolsList   []string     `json:"toolsList"`
	Banned      int64        `json:"banned"`
	BannedList  []string     `json:"bannedList"`
	Ingredients []FridgeItem `json:"ingredients"`
}

// FridgeItem is one ingredient the user has at home. New entries carry
// code and type 0; the server fills them in.
type FridgeItem struct {
	Name string `json:"name"`
	Code int64  `json:"code"`
	Type int64  `json:"type"`
}

// FridgeItems wraps names as new fridge entries.
func FridgeItems(names []string) []FridgeItem {
	out := make([]FridgeItem, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, FridgeItem{Name: n})
		}
	}
	return out
}
