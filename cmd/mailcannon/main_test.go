package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitBindAddr(t *testing.T) {
	host, port, err := splitBindAddr("127.0.0.1:9090")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", host)
	assert.Equal(t, 9090, port)

	// Empty host binds all interfaces
	host, port, err = splitBindAddr(":8081")
	require.NoError(t, err)
	assert.Empty(t, host)
	assert.Equal(t, 8081, port)
}

func TestSplitBindAddr_Invalid(t *testing.T) {
	for _, addr := range []string{"localhost", "localhost:", "localhost:abc", "localhost:0", "localhost:70000"} {
		_, _, err := splitBindAddr(addr)
		assert.Error(t, err, "addr %q", addr)
	}
}
