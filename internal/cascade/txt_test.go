// Copyright 2026 Phillip Cloud
// Licensed under the Apache License, Version 2.0

package cascade

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTxtPass_AcceptsFileContentsVerbatim(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.txt")
	require.NoError(t, os.WriteFile(path, []byte("Hello World"), 0o644))

	outcome := RunTxtPass(path)
	assert.True(t, outcome.Accepted)
	assert.Equal(t, txtPassName, outcome.PassUsed)
	assert.Equal(t, "Hello World", outcome.DocText)
	assert.InDelta(t, 0.9091, outcome.Score, 0.0001)
	assert.False(t, outcome.UsedOCR)
}

func TestRunTxtPass_MissingFileRejects(t *testing.T) {
	outcome := RunTxtPass(filepath.Join(t.TempDir(), "missing.txt"))
	assert.False(t, outcome.Accepted)
}
