package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCommand_Subcommands(t *testing.T) {
	cmd := newCommand()

	var names []string
	for _, c := range cmd.Commands {
		names = append(names, c.Name)
		assert.NotNil(t, c.Action, c.Name)
	}
	assert.Equal(t, []string{"item", "all", "sample", "reset", "retries", "retry", "schedule", "jobs", "libraries"}, names)
}

func TestOptional(t *testing.T) {
	n := 603
	assert.Equal(t, "603", optional(&n))
	assert.Equal(t, "", optional(nil))
	s := "textless"
	assert.Equal(t, "textless", deref(&s))
	assert.Equal(t, "", deref(nil))
}
