package pii

import (
	"math/rand"
	"time"

	piiGenerators "github.com/hannes/yaak-redact/src/backend/pii/generators"
)

// GeneratorService handles PII replacement generation
type GeneratorService struct {
	rng *rand.Rand
}

// NewGeneratorService creates a new generator service
func NewGeneratorService() *GeneratorService {
	// #nosec G404 - math/rand is fine for stand-in values
	return &GeneratorService{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewGeneratorServiceWithSeed creates a generator with a fixed seed for
// reproducible output. A zero seed means a time-based seed.
func NewGeneratorServiceWithSeed(seed int64) *GeneratorService {
	if seed == 0 {
		return NewGeneratorService()
	}
	// #nosec G404 - math/rand is fine for stand-in values
	return &GeneratorService{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GenerateReplacement generates a replacement for the given entity type.
// Types without a generator fall back to the "<ENTITY_TYPE>" placeholder.
// Not safe for concurrent use; callers serialize.
func (s *GeneratorService) GenerateReplacement(entityType, originalText string) string {
	if generator := piiGenerators.For(entityType); generator != nil {
		return generator(s.rng, originalText)
	}
	return "<" + entityType + ">"
}
