package idgen

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGenerateID_DistinctAcrossCalls(t *testing.T) {
	gen := NewHostGenerator(discardLogger())

	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := gen.GenerateID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id generated: %s", id)
		seen[id] = struct{}{}
	}
}

func TestGenerateID_CarriesServerIdentifier(t *testing.T) {
	gen := NewHostGenerator(discardLogger())

	id := gen.GenerateID()
	require.NotEmpty(t, gen.serverID)
	assert.True(t, strings.HasPrefix(id, gen.serverID+"-"))
	// Suffix is a full UUID.
	assert.Len(t, strings.TrimPrefix(id, gen.serverID+"-"), 36)
}
