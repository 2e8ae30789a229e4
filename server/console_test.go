package server

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"webgame/entity"
	"webgame/logger"
)

func TestConsoleCommands(t *testing.T) {
	t.Cleanup(func() {
		logger.SetIOLog(false)
		logger.SetDataLog(false)
	})
	s, _ := newTestScheduler(t, Options{})
	s.world.Add(entity.NewStationary("rock", entity.Vec(0, 0)))

	var out bytes.Buffer
	exited := false
	console := NewConsole(strings.NewReader("help\ninfo\nio\n  data  \nbogus\nexit\ninfo\n"), &out, s, func() { exited = true })
	console.Run()

	text := out.String()
	assert.True(t, exited)
	assert.Contains(t, text, "commands:")
	assert.Contains(t, text, "entities: 1")
	assert.Contains(t, text, "io log: true")
	assert.Contains(t, text, "data log: true")
	assert.Contains(t, text, "unknown command: bogus")
	assert.Equal(t, 1, strings.Count(text, "entities:"), "commands after exit are not run")
	assert.True(t, logger.IOLog())
	assert.True(t, logger.DataLog())
}

func TestConsoleStopsAtEOF(t *testing.T) {
	s, _ := newTestScheduler(t, Options{})
	var out bytes.Buffer
	exited := false
	NewConsole(strings.NewReader("help\n"), &out, s, func() { exited = true }).Run()
	assert.False(t, exited)
	assert.False(t, NewConsole(nil, &out, s, nil).Exec(""))
}
