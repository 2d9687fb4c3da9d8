package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name   string `validate:"required"`
	Status string `validate:"oneof=new delivered"`
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(&sample{Name: "a", Status: "new"}))

	err := Struct(&sample{Status: "lost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Name: required")
	assert.Contains(t, err.Error(), "Status: oneof")
}
