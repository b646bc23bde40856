package app

import (
	"fmt"

	"github.com/dkeye/WatchParty/internal/core"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a connection whose send buffer is full.
type Policy interface {
	OnBackPressure(sid core.SessionID) BackpressureAction
}

type SimplePolicy struct {
	Action BackpressureAction
}

func (p SimplePolicy) OnBackPressure(core.SessionID) BackpressureAction {
	return p.Action
}

// PolicyFromString maps the config value ("drop" or "kick") to a Policy.
func PolicyFromString(s string) (Policy, error) {
	switch s {
	case "", "drop":
		return SimplePolicy{Action: DropFrame}, nil
	case "kick":
		return SimplePolicy{Action: KickMember}, nil
	}
	return nil, fmt.Errorf("unknown backpressure policy %q", s)
}
