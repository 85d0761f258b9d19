// Package session tracks the flight currently being recorded.
package session

import (
	"sync"

	"github.com/mazeflight/simulator/internal/model"
)

// Context holds the current flight and arena state
type Context struct {
	mu     sync.RWMutex
	Flight *model.Flight
	Arena  *model.Arena
}

// NewContext creates a new Context with default values
func NewContext() *Context {
	return &Context{
		Flight: &model.Flight{FlightName: "No flight loaded"},
		Arena:  &model.Arena{Name: "No arena loaded"},
	}
}

// GetFlight returns the current flight
func (sc *Context) GetFlight() *model.Flight {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.Flight
}

// GetArena returns the current arena
func (sc *Context) GetArena() *model.Arena {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.Arena
}

// SetFlight sets the current flight and arena
func (sc *Context) SetFlight(flight *model.Flight, arena *model.Arena) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.Flight = flight
	sc.Arena = arena
}
