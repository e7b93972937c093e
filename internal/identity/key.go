// Package identity derives the local dedup key for a (user, recipe) like.
//
// Key format:
//
//	liked:<userId>:<serverCode>:<name>:<time>
//
// A recipe may be liked before the server has assigned it a code. When the
// code arrives the authoritative key moves, even though the recipe did not,
// so every lookup or cleanup must consult DeriveCandidateKeys: the key for
// the current code and the key for code 0.
//
// Text fields are trimmed and NFC normalized, so "김치 " and "김치", or the
// same Hangul typed on different keyboards, map to one key. The delimiter
// and the escape character are percent-escaped inside fields; keys for
// ordinary fields are byte-identical to the format above.
//
// Older clients wrote fields verbatim. When the verbatim form of a recipe
// differs from its normalized form, DeriveCandidateKeys also returns the
// verbatim keys so those records are still found and cleaned up.
package identity

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/recipesync/internal/recipe"
)

// Prefix starts every like key.
const Prefix = "liked"

const sep = ":"

var (
	escaper   = strings.NewReplacer("%", "%25", sep, "%3A")
	unescaper = strings.NewReplacer("%3A", sep, "%25", "%")
)

// Parts is a decoded key.
type Parts struct {
	UserID     string
	ServerCode int64
	Name       string
	Time       string
}

// DeriveKey returns the key for userID liking r under r's current code.
// An empty userID becomes recipe.GuestID.
func DeriveKey(userID string, r recipe.Ref) string {
	return Key(Parts{
		UserID:     userID,
		ServerCode: r.ServerCode,
		Name:       r.Name,
		Time:       r.Time,
	})
}

// DeriveCandidateKeys returns the current-code key followed by the
// zero-code key. When the code is already 0 there is only one key. Verbatim
// keys written by older clients follow when they differ, unless a field
// contains the delimiter.
func DeriveCandidateKeys(userID string, r recipe.Ref) []string {
	keys := []string{DeriveKey(userID, r)}
	if r.ServerCode != 0 {
		keys = append(keys, DeriveKey(userID, r.WithCode(0)))
	}
	if strings.Contains(userID+r.Name+r.Time, sep) {
		// Verbatim keys of such fields are ambiguous; never touch them.
		return keys
	}
	for _, code := range []int64{r.ServerCode, 0} {
		legacy := verbatimKey(userID, r.WithCode(code))
		if !slices.Contains(keys, legacy) {
			keys = append(keys, legacy)
		}
	}
	return keys
}

// verbatimKey joins the fields as given, the way older clients did.
func verbatimKey(userID string, r recipe.Ref) string {
	return strings.Join([]string{
		Prefix,
		userOrGuest(userID),
		strconv.FormatInt(r.ServerCode, 10),
		r.Name,
		r.Time,
	}, sep)
}

// UserPrefix returns the prefix shared by every key of userID.
func UserPrefix(userID string) string {
	return Prefix + sep + field(userOrGuest(userID)) + sep
}

// Key encodes p.
func Key(p Parts) string {
	var b strings.Builder
	b.WriteString(Prefix)
	b.WriteString(sep)
	b.WriteString(field(userOrGuest(p.UserID)))
	b.WriteString(sep)
	b.WriteString(strconv.FormatInt(p.ServerCode, 10))
	b.WriteString(sep)
	b.WriteString(field(p.Name))
	b.WriteString(sep)
	b.WriteString(field(p.Time))
	return b.String()
}

// Parse decodes a key produced by Key.
func Parse(key string) (Parts, error) {
	fields := strings.Split(key, sep)
	if len(fields) != 5 || fields[0] != Prefix {
		return Parts{}, fmt.Errorf("malformed like key %q", key)
	}
	code, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil || code < 0 {
		return Parts{}, fmt.Errorf("malformed like key %q: bad code %q", key, fields[2])
	}
	return Parts{
		UserID:     unescaper.Replace(fields[1]),
		ServerCode: code,
		Name:       unescaper.Replace(fields[3]),
		Time:       unescaper.Replace(fields[4]),
	}, nil
}

// Recipe rebuilds the identifying fields of a recipe from p.
func (p Parts) Recipe() recipe.Ref {
	return recipe.Ref{ServerCode: p.ServerCode, Name: p.Name, Time: p.Time}
}

func field(s string) string {
	return escaper.Replace(norm.NFC.String(strings.TrimSpace(s)))
}

func userOrGuest(id string) string {
	if strings.TrimSpace(id) == "" {
		return recipe.GuestID
	}
	return id
}
