package foliage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInputEdges(t *testing.T) {
	var in Input

	in.SetPressed(KeyW, true)
	assert.True(t, in.Pressed[KeyW])
	assert.True(t, in.JustPressed[KeyW])

	in.SetPressed(KeyW, true)
	assert.True(t, in.Pressed[KeyW])
	assert.False(t, in.JustPressed[KeyW])

	in.SetPressed(KeyW, false)
	assert.False(t, in.Pressed[KeyW])
	assert.True(t, in.JustReleased[KeyW])

	in.SetPressed(KeyW, false)
	assert.False(t, in.JustReleased[KeyW])
}

func TestInputMouse(t *testing.T) {
	var in Input
	in.MoveMouse(10, 20)
	in.MoveMouse(13, 16)
	assert.Equal(t, 3.0, in.MouseDeltaX)
	assert.Equal(t, -4.0, in.MouseDeltaY)

	in.Scroll = 2
	in.ResetFrame()
	assert.Zero(t, in.Scroll)
	assert.Equal(t, 13.0, in.MouseX)
}
