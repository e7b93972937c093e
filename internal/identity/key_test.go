package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"
	"pgregory.net/rapid"

	"github.com/roach88/recipesync/internal/recipe"
)

func TestDeriveKey(t *testing.T) {
	r := recipe.Ref{ServerCode: 0, Name: "김치볶음밥", Time: "30분"}
	assert.Equal(t, "liked:u1:0:김치볶음밥:30분", DeriveKey("u1", r))
	assert.Equal(t, "liked:guest:0:김치볶음밥:30분", DeriveKey("", r))
	assert.Equal(t, "liked:guest:0:김치볶음밥:30분", DeriveKey("  ", r))
}

func TestDeriveKey_IgnoresNonIdentityFields(t *testing.T) {
	a := recipe.Ref{ServerCode: 7, Name: "잡채", Time: "40분", ToolsMask: 1, Author: "x"}
	b := recipe.Ref{ServerCode: 7, Name: "잡채", Time: "40분", ToolsMask: 2, Author: "y"}
	assert.Equal(t, DeriveKey("u", a), DeriveKey("u", b))
}

func TestDeriveKey_NFC(t *testing.T) {
	composed := "김치"
	decomposed := norm.NFD.String(composed)
	require.NotEqual(t, composed, decomposed)

	a := DeriveKey("u", recipe.Ref{Name: composed})
	b := DeriveKey("u", recipe.Ref{Name: decomposed})
	assert.Equal(t, a, b)
}

func TestDeriveKey_EscapesDelimiter(t *testing.T) {
	a := DeriveKey("u", recipe.Ref{Name: "a:b", Time: "c"})
	b := DeriveKey("u", recipe.Ref{Name: "a", Time: "b:c"})
	assert.NotEqual(t, a, b)
	assert.Equal(t, "liked:u:0:a%3Ab:c", a)
}

func TestDeriveCandidateKeys(t *testing.T) {
	r := recipe.Ref{ServerCode: 42, Name: "된장찌개", Time: "20분"}
	keys := DeriveCandidateKeys("u1", r)
	assert.Equal(t, []string{
		"liked:u1:42:된장찌개:20분",
		"liked:u1:0:된장찌개:20분",
	}, keys)

	keys = DeriveCandidateKeys("u1", r.WithCode(0))
	assert.Equal(t, []string{"liked:u1:0:된장찌개:20분"}, keys)
}

func TestDeriveKey_TrimsFields(t *testing.T) {
	assert.Equal(t,
		DeriveKey("u", recipe.Ref{Name: "김치", Time: "30분"}),
		DeriveKey("u", recipe.Ref{Name: " 김치 ", Time: "30분\t"}))
}

func TestDeriveCandidateKeys_Verbatim(t *testing.T) {
	nfd := norm.NFD.String("된장찌개")
	r := recipe.Ref{ServerCode: 15, Name: nfd, Time: "20분"}

	keys := DeriveCandidateKeys("u1", r)
	assert.Equal(t, []string{
		"liked:u1:15:된장찌개:20분",
		"liked:u1:0:된장찌개:20분",
		"liked:u1:15:" + nfd + ":20분",
		"liked:u1:0:" + nfd + ":20분",
	}, keys)

	padded := DeriveCandidateKeys("u1", recipe.Ref{Name: "잡채 ", Time: "40분"})
	assert.Equal(t, []string{"liked:u1:0:잡채:40분", "liked:u1:0:잡채 :40분"}, padded)

	// A delimiter makes the verbatim form ambiguous, so it is left out.
	assert.Len(t, DeriveCandidateKeys("u1", recipe.Ref{Name: "a:b ", Time: "c"}), 1)
}

func TestUserPrefix(t *testing.T) {
	key := DeriveKey("u1", recipe.Ref{Name: "x"})
	assert.Equal(t, "liked:u1:", UserPrefix("u1"))
	assert.Contains(t, key, UserPrefix("u1"))
	assert.Equal(t, "liked:guest:", UserPrefix(""))
}

func TestParse(t *testing.T) {
	p, err := Parse("liked:u1:7:김치볶음밥:30분")
	require.NoError(t, err)
	assert.Equal(t, Parts{UserID: "u1", ServerCode: 7, Name: "김치볶음밥", Time: "30분"}, p)
	assert.Equal(t, int64(7), p.Recipe().ServerCode)

	for _, bad := range []string{"", "liked:u1:7:x", "saved:u1:7:x:y", "liked:u1:abc:x:y", "liked:u1:-3:x:y"} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestKeyParse_Properties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		p := Parts{
			UserID:     rapid.StringMatching(`[a-z0-9:%]{1,12}`).Draw(rt, "user"),
			ServerCode: rapid.Int64Range(0, 1<<40).Draw(rt, "code"),
			Name:       rapid.StringMatching(`[가-힣a-z :%]{1,20}`).Draw(rt, "name"),
			Time:       rapid.StringMatching(`[0-9분시간:%]{0,6}`).Draw(rt, "time"),
		}
		// Keys trim surrounding space, so compare against the trimmed form.
		got, err := Parse(Key(p))
		if err != nil {
			rt.Fatalf("Parse(Key(%+v)): %v", p, err)
		}
		if got.ServerCode != p.ServerCode || got.UserID != p.UserID {
			rt.Fatalf("round trip: got %+v, want %+v", got, p)
		}
		if Key(got) != Key(p) {
			rt.Fatalf("key not stable: %q vs %q", Key(got), Key(p))
		}
	})
}
