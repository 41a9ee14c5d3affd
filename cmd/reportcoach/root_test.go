package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "ingest", "search", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestVersionCmd(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "reportcoach dev"), out.String())
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"search"})
	assert.Error(t, root.Execute())
}

func TestIngestCmd_Flags(t *testing.T) {
	cmd := newIngestCmd(new(string))
	for _, name := range []string{"dir", "batch", "workers", "reset"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}
