// Package id issues the ULID identifiers that key realized-trade rows.
// ULIDs sort by creation time, so primary-key order in the journal
// agrees with insertion order.
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

// Generator produces monotonically increasing ULID strings. Two ids
// from the same generator within one millisecond still sort in
// generation order.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

func NewGenerator() *Generator {
	// Seed the entropy PRNG from crypto/rand so ids are unpredictable
	// across processes.
	var seed int64
	if err := binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed); err != nil || seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		entropy: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
	}
}

func (g *Generator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), g.entropy).String()
}

var trades = NewGenerator()

// New returns the next trade id from the shared generator.
func New() string {
	return trades.New()
}
