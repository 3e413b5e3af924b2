package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataDecodesTaggedValues(t *testing.T) {
	var m Metadata
	require.NoError(t, json.Unmarshal([]byte(`{"color":"brown","count":2,"insured":true,"serial":null}`), &m))

	s, ok := m["color"].AsString()
	assert.True(t, ok)
	assert.Equal(t, "brown", s)

	n, ok := m["count"].AsNumber()
	assert.True(t, ok)
	assert.Equal(t, 2.0, n)

	b, ok := m["insured"].AsBool()
	assert.True(t, ok)
	assert.True(t, b)

	assert.True(t, m["serial"].IsNull())
	assert.Equal(t, MetaNull, m["serial"].Kind())
}

func TestMetadataRejectsNestedValues(t *testing.T) {
	var m Metadata
	err := json.Unmarshal([]byte(`{"tags":["a","b"]}`), &m)
	assert.ErrorIs(t, err, ErrUnsupportedMetaValue)

	err = json.Unmarshal([]byte(`{"owner":{"name":"x"}}`), &m)
	assert.ErrorIs(t, err, ErrUnsupportedMetaValue)
}

func TestMetadataSQLRoundTrip(t *testing.T) {
	in := Metadata{"brand": StringValue("Acme"), "size": NumberValue(4.5), "lost_twice": BoolValue(false)}
	value, err := in.Value()
	require.NoError(t, err)

	var out Metadata
	require.NoError(t, out.Scan(value))
	assert.Equal(t, in, out)

	var empty Metadata
	require.NoError(t, empty.Scan(nil))
	assert.NotNil(t, empty)
	assert.Len(t, empty, 0)
}

func TestMetadataValidate(t *testing.T) {
	assert.NoError(t, Metadata{"ok": NullValue()}.Validate())
	assert.Error(t, Metadata{"": NullValue()}.Validate())
	assert.Error(t, Metadata{strings.Repeat("k", 65): NullValue()}.Validate())
}

func TestMetaValueText(t *testing.T) {
	assert.Equal(t, "4.5", NumberValue(4.5).Text())
	assert.Equal(t, "true", BoolValue(true).Text())
	assert.Equal(t, "", NullValue().Text())
}
