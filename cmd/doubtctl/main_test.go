package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandListsSubcommands(t *testing.T) {
	root := rootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"migrate", "sweep", "seed-catalog", "assign-role", "issue-token"})
}

func TestAssignRoleRejectsUnknownRole(t *testing.T) {
	root := rootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"assign-role", "--user", "u1", "--role", "tutor"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--role")
}

func TestSweepRejectsBadTime(t *testing.T) {
	root := rootCmd()
	root.SetArgs([]string{"sweep", "--at", "yesterday"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --at")
}
