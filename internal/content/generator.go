package content

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
)

// Labels prefix every generated descriptor, in selection order.
var Labels = []string{
	"GitHub Repo",
	"Legal Pack",
	"ASCII QR",
	"Dataset",
	"API Key",
	"Script",
}

const (
	apiKeyAlphabet     = "0123456789abcdefghijklmnopqrstuvwxyz"
	apiKeySuffixLength = 11
)

// Generator produces the filler content revealed by a claimed tile.
type Generator struct {
	mu     sync.Mutex
	random *rand.Rand
}

// NewGenerator builds a Generator over source. A nil source selects a randomly seeded PCG.
func NewGenerator(source rand.Source) *Generator {
	if source == nil {
		source = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Generator{random: rand.New(source)}
}

// Generate returns "<Label>: <content>" for the tile at page/position.
func (g *Generator) Generate(page, position int) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	index := g.random.IntN(len(Labels))
	return Labels[index] + ": " + g.body(index, page, position)
}

func (g *Generator) body(index, page, position int) string {
	switch index {
	case 0:
		return fmt.Sprintf("https://github.com/miraiwall/tile-%d-%d", page, position)
	case 1:
		return fmt.Sprintf("Legal document bundle #%d-%d - Terms, Privacy, GDPR", page, position)
	case 2:
		return fmt.Sprintf("QR Code: TILE-%d-%d\n████ ██ ████\n██ ████ ██ ██\n████ ██ ████", page, position)
	case 3:
		return fmt.Sprintf("ML Dataset: tile_%d_%d_training_data.json (2.3MB)", page, position)
	case 4:
		return fmt.Sprintf("API_KEY_TILE_%d_%d: sk-%s", page, position, g.apiKeySuffix())
	default:
		return fmt.Sprintf("#!/bin/bash\n# Utility script for tile %d-%d\necho \"MiraiWall utility activated\"", page, position)
	}
}

func (g *Generator) apiKeySuffix() string {
	var builder strings.Builder
	builder.Grow(apiKeySuffixLength)
	for range apiKeySuffixLength {
		builder.WriteByte(apiKeyAlphabet[g.random.IntN(len(apiKeyAlphabet))])
	}
	return builder.String()
}

// HasKnownLabel reports whether value starts with one of Labels followed by ": ".
func HasKnownLabel(value string) bool {
	for _, label := range Labels {
		if strings.HasPrefix(value, label+": ") {
			return true
		}
	}
	return false
}
