package keys

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidDemoKey indicates a configured demo key does not match the license key format.
var ErrInvalidDemoKey = errors.New("keys: invalid demo key")

// DefaultDemoKeys lists the demo keys shipped with the application.
var DefaultDemoKeys = []string{
	"2Z23H-YA548-FKBU2-8LAUL",
	"9X7K2-M4N8P-Q1W5E-R3T6Y",
	"A5B9C-D2F7G-H4J8K-L1M6N",
	"P8Q3R-S7T2U-V6W9X-Y4Z1A",
	"B3C8D-E1F6G-H9I4J-K7L2M",
	"N6O1P-Q5R9S-T3U8V-W2X7Y",
	"Z4A9B-C6D1E-F8G3H-I5J2K",
	"L7M2N-O4P8Q-R1S6T-U9V3W",
	"X5Y1Z-A8B3C-D6E2F-G9H4I",
	"J2K7L-M1N5O-P8Q3R-S6T9U",
}

// DemoSet is the immutable set of keys that always redeem without being consumed.
type DemoSet struct {
	members map[string]struct{}
}

// NewDemoSet validates and normalizes rawKeys into a DemoSet.
func NewDemoSet(rawKeys []string) (DemoSet, error) {
	members := make(map[string]struct{}, len(rawKeys))
	for _, raw := range rawKeys {
		key := Normalize(raw)
		if key == "" {
			continue
		}
		if !IsValidFormat(key) {
			return DemoSet{}, fmt.Errorf("%w: %q", ErrInvalidDemoKey, raw)
		}
		members[key] = struct{}{}
	}
	return DemoSet{members: members}, nil
}

// Contains reports whether key is a demo key. The key must already be normalized.
func (s DemoSet) Contains(key string) bool {
	_, ok := s.members[key]
	return ok
}

// Len returns the number of demo keys.
func (s DemoSet) Len() int {
	return len(s.members)
}

// Keys returns the demo keys in lexical order.
func (s DemoSet) Keys() []string {
	out := make([]string, 0, len(s.members))
	for key := range s.members {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
