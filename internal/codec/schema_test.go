package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = Schema{
	Name: "partition",
	Fields: []FieldSpec{
		{Name: "id", Kind: KindInt},
		{Name: "name", Kind: KindString},
		{Name: "unbound", Kind: KindBool},
		{Name: "qualifiers", Kind: KindStringList, Optional: true},
	},
}

func TestSchemaEncode_WritesExplicitNull(t *testing.T) {
	data, err := testSchema.Encode(Object{
		"id":      Int(10),
		"name":    String("p0"),
		"unbound": Bool(true),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"id":10,"name":"p0","qualifiers":null,"unbound":true}`, string(data))
}

func TestSchemaRoundTrip(t *testing.T) {
	in := Object{
		"id":         Int(11),
		"name":       String("p1"),
		"unbound":    Bool(false),
		"qualifiers": Strings([]string{"eu", "us"}),
	}

	data, err := testSchema.Encode(in)
	require.NoError(t, err)

	out, err := testSchema.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	quals, err := AsStrings(out["qualifiers"])
	require.NoError(t, err)
	assert.Equal(t, []string{"eu", "us"}, quals)
}

func TestSchemaValidate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		obj   Object
		field string
	}{
		{
			name:  "missing required",
			obj:   Object{"name": String("p"), "unbound": Bool(true)},
			field: "id",
		},
		{
			name:  "required null",
			obj:   Object{"id": Null{}, "name": String("p"), "unbound": Bool(true)},
			field: "id",
		},
		{
			name:  "wrong kind",
			obj:   Object{"id": String("1"), "name": String("p"), "unbound": Bool(true)},
			field: "id",
		},
		{
			name:  "undeclared field",
			obj:   Object{"id": Int(1), "name": String("p"), "unbound": Bool(true), "extra": Int(1)},
			field: "extra",
		},
		{
			name:  "bad list element",
			obj:   Object{"id": Int(1), "name": String("p"), "unbound": Bool(false), "qualifiers": Array{Int(1)}},
			field: "qualifiers",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := testSchema.Validate(tc.obj)
			require.Error(t, err)

			var fe *FieldError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tc.field, fe.Field)
			assert.Equal(t, "partition", fe.Schema)
		})
	}
}

func TestSchemaDecode_RejectsNonObject(t *testing.T) {
	_, err := testSchema.Decode([]byte(`[1,2]`))
	require.Error(t, err)
}
