package dispatcher

import (
	"fmt"
	"strings"
)

// State es la fase del request dentro del dispatcher.
type State int

const (
	StateReceived State = iota
	StateAuthenticating
	StateAuthorizing
	StateExecuting
	StateRejected
	StateResponded
)

var stateNames = map[State]string{
	StateReceived:       "RECEIVED",
	StateAuthenticating: "AUTHENTICATING",
	StateAuthorizing:    "AUTHORIZING",
	StateExecuting:      "EXECUTING",
	StateRejected:       "REJECTED",
	StateResponded:      "RESPONDED",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// EXECUTING solo se alcanza desde AUTHORIZING.
var transitions = map[State][]State{
	// ruta desconocida
	StateReceived:       {StateAuthenticating, StateResponded},
	// RESPONDED directo: verificador de tokens caído
	StateAuthenticating: {StateAuthorizing, StateRejected, StateResponded},
	// RESPONDED directo: falla del resolver o payload ilegible
	StateAuthorizing: {StateExecuting, StateRejected, StateResponded},
	StateExecuting:   {StateResponded},
	StateRejected:    {StateResponded},
}

func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Trace es el recorrido de estados de un request.
type Trace []State

func (t Trace) Current() State {
	if len(t) == 0 {
		return StateReceived
	}
	return t[len(t)-1]
}

func (t Trace) String() string {
	parts := make([]string, len(t))
	for i, s := range t {
		parts[i] = s.String()
	}
	return strings.Join(parts, ">")
}

// flow avanza la máquina; una transición ilegal es un bug del dispatcher.
type flow struct {
	trace Trace
}

func newFlow() *flow { return &flow{trace: Trace{StateReceived}} }

func (f *flow) to(next State) {
	cur := f.trace.Current()
	if !cur.CanTransition(next) {
		panic(fmt.Sprintf("dispatcher: illegal transition %s -> %s", cur, next))
	}
	f.trace = append(f.trace, next)
}
