package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator hands out monotonic ULIDs. It is safe for concurrent use.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// NewGenerator returns a generator seeded with seed. A zero seed is replaced
// with one read from crypto/rand.
func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
	}
	return &Generator{
		entropy: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
		now:     time.Now,
	}
}

// New returns the next ULID string. IDs generated within the same
// millisecond remain lexicographically increasing.
func (g *Generator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(g.now().UTC()), g.entropy)
	if err != nil {
		// Only possible if the clock runs backwards past the monotonic window.
		panic(err)
	}
	return id.String()
}

var std = NewGenerator(0)

// New returns a ULID from the package generator.
func New() string {
	return std.New()
}
