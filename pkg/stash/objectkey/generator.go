// Package objectkey generates blob storage keys for uploaded files.
//
// Keys are owner-scoped, time-ordered and collision-resistant: a ULID carries
// the upload time in its first 48 bits and 80 bits of monotonic entropy.
// The generator never checks the store for collisions.
package objectkey

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator defines the interface for storage key generation strategies
type Generator interface {
	// GenerateKey creates a storage key for a file uploaded by ownerID
	GenerateKey(ownerID, fileName string) string
}

// OwnerScopedGenerator produces keys of the form
// {prefix}/{owner}/{ulid}_{filename}
type OwnerScopedGenerator struct {
	Prefix string

	mu      sync.Mutex
	now     func() time.Time
	entropy io.Reader
}

// NewOwnerScopedGenerator returns a generator rooted at "owners".
func NewOwnerScopedGenerator() *OwnerScopedGenerator {
	return &OwnerScopedGenerator{
		Prefix:  "owners",
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (g *OwnerScopedGenerator) GenerateKey(ownerID, fileName string) string {
	id := g.next()
	name := id
	if fileName != "" {
		name = fmt.Sprintf("%s_%s", id, sanitizeFilename(fileName))
	}
	return joinKey(g.Prefix, sanitizePathComponent(ownerOrDefault(ownerID)), name)
}

// next is serialized because ulid.Monotonic is not safe for concurrent use.
func (g *OwnerScopedGenerator) next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy).String()
}

// ShardedGenerator adds Git-style sharding under the owner directory:
// {prefix}/{owner}/{last two ulid chars}/{ulid}_{filename}
//
// The shard comes from the random tail of the ULID; its time-ordered head
// would put every recent upload in the same directory.
type ShardedGenerator struct {
	Base        *OwnerScopedGenerator
	ShardLength int
}

func NewShardedGenerator() *ShardedGenerator {
	return &ShardedGenerator{
		Base:        NewOwnerScopedGenerator(),
		ShardLength: 2,
	}
}

func (g *ShardedGenerator) GenerateKey(ownerID, fileName string) string {
	id := g.Base.next()
	shard := strings.ToLower(id[len(id)-g.ShardLength:])
	name := id
	if fileName != "" {
		name = fmt.Sprintf("%s_%s", id, sanitizeFilename(fileName))
	}
	return joinKey(g.Base.Prefix, sanitizePathComponent(ownerOrDefault(ownerID)), shard, name)
}

// CustomFuncGenerator allows callers to provide their own key generation function
type CustomFuncGenerator struct {
	GenerateFunc func(ownerID, fileName string) string
}

func NewCustomFuncGenerator(fn func(ownerID, fileName string) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{GenerateFunc: fn}
}

func (g *CustomFuncGenerator) GenerateKey(ownerID, fileName string) string {
	return g.GenerateFunc(ownerID, fileName)
}

// NewRecommendedGenerator returns the default generator for new installations
func NewRecommendedGenerator() Generator {
	return NewOwnerScopedGenerator()
}

func joinKey(parts ...string) string {
	nonEmpty := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "/")
}

func ownerOrDefault(ownerID string) string {
	if ownerID == "" {
		return "anonymous"
	}
	return ownerID
}

var unsafeChars = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	" ", "_",
	"#", "_",
	"%", "_",
)

func sanitizeFilename(filename string) string {
	name := unsafeChars.Replace(filename)
	if name == "." || name == ".." {
		return "_"
	}
	return name
}

func sanitizePathComponent(component string) string {
	return strings.ToLower(sanitizeFilename(component))
}
