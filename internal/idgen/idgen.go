// Package idgen assigns globally unique keys to inbound messages.
package idgen

import (
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Generator produces a fresh message key per call. Implementations must be
// safe for concurrent use and infallible after construction.
type Generator interface {
	GenerateID() string
}

// HostGenerator prefixes every key with a server identifier resolved once
// at construction, so two processes on different hosts cannot collide and
// the random component keeps calls within one process distinct.
type HostGenerator struct {
	serverID string
}

// NewHostGenerator resolves the hostname once. When resolution fails it
// falls back to a random identifier instead of failing startup.
func NewHostGenerator(logger *slog.Logger) *HostGenerator {
	serverID, err := os.Hostname()
	if err != nil {
		serverID = "unknown-" + uuid.NewString()[:8]
		logger.Warn("Could not resolve hostname for message keys, falling back to random identifier",
			"server_id", serverID, "error", err)
	}
	logger.Info("Message key generator initialized", "server_id", serverID)
	return &HostGenerator{serverID: serverID}
}

func (g *HostGenerator) GenerateID() string {
	return g.serverID + "-" + uuid.NewString()
}
