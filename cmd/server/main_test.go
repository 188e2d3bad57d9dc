package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"cms-graphql", "--version"}, &out))
	assert.Equal(t, "cms-graphql dev (none)\n", out.String())
}

func TestRun_Help(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"cms-graphql", "--help"}, &out))
	assert.Contains(t, out.String(), "--lists.file")
}

func TestRun_InvalidConfiguration(t *testing.T) {
	t.Chdir(t.TempDir())
	var out bytes.Buffer
	err := run([]string{"cms-graphql", "--database.provider", "oracle"}, &out)
	require.Error(t, err)
	assert.Equal(t, "configuration validation failed", err.Error())
}

func TestRun_UnknownFlag(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, run([]string{"cms-graphql", "--no-such-flag"}, &out))
}
