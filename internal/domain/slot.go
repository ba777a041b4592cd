package domain

import (
	"fmt"
	"strings"
)

// Slot is one of the two deployable environments of an application.
type Slot string

const (
	SlotBlue  Slot = "BLUE"
	SlotGreen Slot = "GREEN"
)

func ParseSlot(s string) (Slot, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(SlotBlue):
		return SlotBlue, nil
	case string(SlotGreen):
		return SlotGreen, nil
	}
	return "", fmt.Errorf("invalid slot %q", s)
}

// UnmarshalText accepts either case; records written by older tooling use
// "blue" and "green".
func (s *Slot) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*s = ""
		return nil
	}
	v, err := ParseSlot(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s Slot) Valid() bool {
	return s == SlotBlue || s == SlotGreen
}

// Complement returns the other slot. It panics on an invalid slot since every
// slot reaching it has already been validated.
func (s Slot) Complement() Slot {
	switch s {
	case SlotBlue:
		return SlotGreen
	case SlotGreen:
		return SlotBlue
	}
	panic(fmt.Sprintf("domain: complement of invalid slot %q", string(s)))
}

// Lower is the form used inside load balancer backend names.
func (s Slot) Lower() string {
	return strings.ToLower(string(s))
}

func (s Slot) String() string {
	return string(s)
}

var Slots = []Slot{SlotBlue, SlotGreen}
