package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"1", "42"})
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 42}, ids)

	_, err = parseIDs([]string{"x"})
	require.Error(t, err)
}

func TestIsLinkNumber(t *testing.T) {
	require.True(t, isLinkNumber("1", 3))
	require.True(t, isLinkNumber("3", 3))
	require.False(t, isLinkNumber("0", 3))
	require.False(t, isLinkNumber("4", 3))
	require.False(t, isLinkNumber("page.gmi", 3))
}
