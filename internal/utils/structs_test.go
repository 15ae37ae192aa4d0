package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type taggedRow struct {
	ID      string `db:"id"`
	Name    string `db:"name"`
	Skipped string `db:"-"`
	NoTag   string
	hidden  string `db:"hidden"`
}

func TestStructTagValues(t *testing.T) {
	assert.Equal(t, []string{"id", "name"}, StructTagValues(taggedRow{}))
	assert.Equal(t, []string{"id", "name"}, StructTagValues(&taggedRow{}))
}

func TestStructToMap(t *testing.T) {
	row := &taggedRow{ID: "1", Name: "a", Skipped: "x", NoTag: "y", hidden: "z"}
	assert.Equal(t, map[string]any{"id": "1", "name": "a"}, StructToMap(row))
}

func TestStructTagValues_PanicsOnNonStruct(t *testing.T) {
	assert.Panics(t, func() { StructTagValues(42) })
}

func TestErrorWrapOrNil(t *testing.T) {
	assert.NoError(t, ErrorWrapOrNil(nil, "ignored"))

	base := errors.New("boom")
	wrapped := ErrorWrapOrNil(base, "failed to insert")
	assert.EqualError(t, wrapped, "failed to insert: boom")
	assert.ErrorIs(t, wrapped, base)
	assert.Same(t, base, ErrorWrapOrNil(base, ""))
}

type EmbeddedAddress struct {
	City string `db:"city"`
	Zip  string `db:"zip"`
}

type rowWithEmbedded struct {
	ID string `db:"id"`
	EmbeddedAddress
	Status string `db:"status"`
}

func TestStructTagValues_FlattensEmbedded(t *testing.T) {
	assert.Equal(t, []string{"id", "city", "zip", "status"}, StructTagValues(rowWithEmbedded{}))

	m := StructToMap(rowWithEmbedded{ID: "1", EmbeddedAddress: EmbeddedAddress{City: "Austin", Zip: "78701"}, Status: "draft"})
	assert.Equal(t, map[string]any{"id": "1", "city": "Austin", "zip": "78701", "status": "draft"}, m)
}
