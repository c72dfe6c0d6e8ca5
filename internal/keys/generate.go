package keys

import (
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Generate returns a random license key in the XXXXX-XXXXX-XXXXX-XXXXX format.
func Generate() (string, error) {
	raw, err := gonanoid.Generate(alphabet, GroupCount*GroupLength)
	if err != nil {
		return "", err
	}
	groups := make([]string, 0, GroupCount)
	for start := 0; start < len(raw); start += GroupLength {
		groups = append(groups, raw[start:start+GroupLength])
	}
	return strings.Join(groups, "-"), nil
}
