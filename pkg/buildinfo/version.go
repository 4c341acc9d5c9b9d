// Package buildinfo holds the version stamped into the binary and the
// version of the graph vocabulary it emits.
//
//	go build -ldflags "-X github.com/matzehuels/astkg/pkg/buildinfo.Version=v1.0.0 \
//	    -X github.com/matzehuels/astkg/pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X github.com/matzehuels/astkg/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package buildinfo

import "fmt"

// Set via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Vocabulary versions the node kinds, attribute names and relation names
// of encoded graphs. Bump it whenever the encoder's output changes shape,
// which also invalidates cached graphs.
const Vocabulary = "1"

// CacheTag identifies encoder output for cache keys. Dev builds share a
// tag per vocabulary so rebuilding does not discard the cache.
func CacheTag() string {
	return fmt.Sprintf("%s/v%s", Version, Vocabulary)
}

// Template returns the version template for cobra.
func Template() string {
	return fmt.Sprintf("{{.Name}} %s (vocabulary v%s)\ncommit: %s\nbuilt: %s\n", Version, Vocabulary, Commit, Date)
}
