package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignableTo(t *testing.T) {
	tests := []struct {
		name   string
		from   Type
		to     Type
		expect bool
	}{
		{"same kind", Of(Integer), Of(Integer), true},
		{"widening", Of(Integer), Of(BigInt), true},
		{"widening to double", Of(BigInt), NullableOf(Double), true},
		{"narrowing", Of(Double), Of(Integer), false},
		{"nullable into not null", NullableOf(Varchar), Of(Varchar), false},
		{"not null into nullable", Of(Varchar), NullableOf(Varchar), true},
		{"any accepts all", Of(Document), Of(Any), true},
		{"cross family", Of(Varchar), Of(Integer), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, tc.from.AssignableTo(tc.to))
		})
	}
}

func TestLeastRestrictive(t *testing.T) {
	got, ok := LeastRestrictive(Of(Integer), NullableOf(BigInt))
	require.True(t, ok)
	assert.Equal(t, NullableOf(BigInt), got)

	_, ok = LeastRestrictive(Of(Boolean), Of(Varchar))
	assert.False(t, ok)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("bigint")
	require.NoError(t, err)
	assert.Equal(t, BigInt, k)

	k, err = ParseKind("text")
	require.NoError(t, err)
	assert.Equal(t, Varchar, k)

	_, err = ParseKind("float128")
	require.Error(t, err)
}

func TestCheckCompatible(t *testing.T) {
	logical := Row(F("id", Of(BigInt)), F("note", NullableOf(Varchar)))

	require.NoError(t, CheckCompatible(logical, Row(F("c0", Of(Integer)), F("c1", NullableOf(Varchar)))))

	err := CheckCompatible(logical, Row(F("id", Of(BigInt))))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field count")

	err = CheckCompatible(logical, Row(F("id", Of(BigInt)), F("note", Of(Varchar))))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT NULL")

	err = CheckCompatible(logical, Row(F("id", Of(Varchar)), F("note", NullableOf(Varchar))))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not compatible")
}

func TestRowTypeHelpers(t *testing.T) {
	r := Row(F("a", Of(Integer)), F("b", Of(Varchar)))
	assert.Equal(t, 2, r.Arity())
	assert.Equal(t, 1, r.IndexOf("b"))
	assert.Equal(t, -1, r.IndexOf("z"))
	assert.Equal(t, "(a INTEGER NOT NULL, b VARCHAR NOT NULL)", r.String())

	c := r.Concat(r.Nullable())
	assert.Equal(t, 4, c.Arity())
	assert.True(t, c.Field(3).Type.Nullable)
	assert.True(t, r.Equal(Row(F("a", Of(Integer)), F("b", Of(Varchar)))))
}
