package errors

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	base := NewStd("disk full")
	err := New(base).
		Component("review").
		Category(CategoryFileIO).
		Context("batch_id", "abc").
		Build()

	assert.Equal(t, "disk full", err.Error())
	assert.Equal(t, "review", err.Component)
	assert.Equal(t, CategoryFileIO, err.Category)
	assert.Equal(t, "abc", err.Context["batch_id"])
	assert.False(t, err.Timestamp.IsZero())
}

func TestBuilder_DefaultCategory(t *testing.T) {
	err := Newf("boom %d", 7).Build()
	assert.Equal(t, CategoryGeneric, err.Category)
	assert.Equal(t, "boom 7", err.Error())
}

func TestUnwrap(t *testing.T) {
	wrapped := fmt.Errorf("reading sidecar: %w", io.ErrUnexpectedEOF)
	err := New(wrapped).Category(CategoryReview).Build()

	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestIsCategory(t *testing.T) {
	nf := Newf("project missing").Category(CategoryNotFound).Build()
	assert.True(t, IsNotFound(nf))
	assert.False(t, IsValidation(nf))

	// category survives further wrapping
	outer := fmt.Errorf("lookup failed: %w", nf)
	assert.True(t, IsNotFound(outer))

	assert.False(t, IsNotFound(NewStd("plain")))
	assert.False(t, IsNotFound(nil))
}

func TestGetContext_Copies(t *testing.T) {
	err := Newf("x").Context("k", "v").Build()
	ctx := err.GetContext()
	ctx["k"] = "mutated"
	assert.Equal(t, "v", err.Context["k"])
}
