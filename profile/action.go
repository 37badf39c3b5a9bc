package profile

import (
	"fmt"
	"strings"
)

// Action is one of the things hlsweep can be asked to do.
type Action string

const (
	SystemCSim Action = "systemc_sim"
	RTLSim     Action = "rtl_sim"
	HWSim      Action = "hw_sim"
	RTLArea    Action = "get_rtl_area"
	CopyRTL    Action = "copy_rtl"
	Clean      Action = "clean"
)

// Actions lists every action in the order they are documented.
var Actions = []Action{SystemCSim, RTLSim, HWSim, RTLArea, CopyRTL, Clean}

// IsSweep reports whether the action runs a simulation sweep.
func (a Action) IsSweep() bool {
	return a == SystemCSim || a == RTLSim || a == HWSim
}

// ParseAction accepts exactly the names in Actions.
func ParseAction(s string) (Action, error) {
	for _, a := range Actions {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("invalid action '%s', expected one of '%s'", s, strings.Join(ActionNames(), "', '"))
}

// ActionNames returns the names of all actions.
func ActionNames() []string {
	names := make([]string, len(Actions))
	for i, a := range Actions {
		names[i] = string(a)
	}
	return names
}
