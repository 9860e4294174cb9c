package game

import (
	"math/rand"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator assigns ids to cards, melds and players at construction time.
type IDGenerator interface {
	NewID() uuid.UUID
}

type randomIDs struct{}

func (randomIDs) NewID() uuid.UUID { return uuid.New() }

// NewRandomIDs returns the production generator (UUIDv4).
func NewRandomIDs() IDGenerator { return randomIDs{} }

// SequentialIDs derives name-based UUIDs from a namespace and a counter, so the same
// namespace always yields the same sequence. Safe for concurrent use.
type SequentialIDs struct {
	mu sync.Mutex
	ns uuid.UUID
	n  uint64
}

func NewSequentialIDs(namespace string) *SequentialIDs {
	return &SequentialIDs{ns: uuid.NewSHA1(uuid.NameSpaceOID, []byte(namespace))}
}

func (s *SequentialIDs) NewID() uuid.UUID {
	s.mu.Lock()
	s.n++
	n := s.n
	s.mu.Unlock()
	return uuid.NewSHA1(s.ns, []byte(strconv.FormatUint(n, 10)))
}

// codeAlphabet omits 0/O and 1/I so codes survive being read aloud.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GameCodeLength is the number of characters in a shareable game code.
const GameCodeLength = 6

func newGameCode(rng *rand.Rand) string {
	var sb strings.Builder
	sb.Grow(GameCodeLength)
	for i := 0; i < GameCodeLength; i++ {
		sb.WriteByte(codeAlphabet[rng.Intn(len(codeAlphabet))])
	}
	return sb.String()
}

// NormalizeCode upper-cases and trims a user-typed game code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
