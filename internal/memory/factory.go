package memory

import (
	"fmt"
	"strings"

	"council/internal/agent"
)

// Options selects and parameterizes a Store backend.
type Options struct {
	// Backend is "sqlite" (durable, default) or "chromem" (in-process).
	Backend string
	// Path is the sqlite database location; ignored by chromem.
	Path string
	// TopK is the default retrieval depth the graph uses.
	TopK int
}

const DefaultTopK = 2

// Open builds the configured Store backend.
func Open(opts Options, embedder agent.Embedder) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", "sqlite":
		return NewSQLiteStore(opts.Path, embedder)
	case "chromem", "memory":
		return NewChromemStore(embedder)
	default:
		return nil, fmt.Errorf("unknown memory backend %q", opts.Backend)
	}
}
