package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRenderer(t *testing.T) {
	render := NewRenderer()
	out, err := render("Bring your **student id**.")
	require.NoError(t, err)
	assert.Contains(t, out, "student id")
}
