// Copyright 2026 Phillip Cloud
// Licensed under the Apache License, Version 2.0

package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreeBytes_TmpDirIsPositive(t *testing.T) {
	free, err := FreeBytes(t.TempDir())
	require.NoError(t, err)
	assert.Greater(t, free, int64(0))
}

func TestHasHeadroom_ZeroThresholdAlwaysTrue(t *testing.T) {
	assert.True(t, HasHeadroom(t.TempDir(), 0))
}

func TestHasHeadroom_ImpossiblyHighThresholdIsFalse(t *testing.T) {
	assert.False(t, HasHeadroom(t.TempDir(), 1<<62))
}
