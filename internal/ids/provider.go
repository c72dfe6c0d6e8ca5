package ids

import "github.com/google/uuid"

// Provider issues unique identifiers for stored records.
type Provider interface {
	NewID() (string, error)
}

type uuidProvider struct{}

// NewUUIDProvider constructs a Provider that issues UUIDv7 identifiers.
// UUIDv7 values sort by creation time, which keeps primary key inserts append-only.
func NewUUIDProvider() Provider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}

// Sequence hands out identifiers from a fixed list. Tests use it to make stored ids predictable.
type Sequence struct {
	values []string
	index  int
}

// NewSequence returns a Provider that yields the supplied values in order.
func NewSequence(values ...string) *Sequence {
	return &Sequence{values: append([]string(nil), values...)}
}

// NewID returns the next identifier or ErrSequenceExhausted.
func (s *Sequence) NewID() (string, error) {
	if s.index >= len(s.values) {
		return "", ErrSequenceExhausted
	}
	value := s.values[s.index]
	s.index++
	return value, nil
}
