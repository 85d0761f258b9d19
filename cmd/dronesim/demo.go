package main

import (
	"fmt"
	"time"

	"github.com/mazeflight/simulator/internal/dispatcher"
)

// demoScript is a short scripted flight: cruise, a left sweep, a right sweep,
// brake, then a long run toward the far wall.
var demoScript = []struct {
	command string
	repeat  int
}{
	{dispatcher.CmdThrottleUp, 40},
	{dispatcher.CmdRotateLeft, 15},
	{dispatcher.CmdThrottleUp, 30},
	{dispatcher.CmdRotateRight, 30},
	{dispatcher.CmdThrottleDown, 10},
	{dispatcher.CmdThrottleUp, 50},
}

// runDemoFlight records one scripted flight so a fresh install has something
// to replay and upload.
func runDemoFlight() error {
	name := fmt.Sprintf("demo flight %s", time.Now().Format("2006-01-02 15:04:05"))

	if _, err := eventDispatcher.Dispatch(dispatcher.Event{
		Command:   dispatcher.CmdFlightStart,
		Args:      []string{name},
		Timestamp: time.Now(),
	}); err != nil {
		return fmt.Errorf("starting demo flight: %w", err)
	}

	intents := 0
	for _, step := range demoScript {
		for i := 0; i < step.repeat; i++ {
			if _, err := eventDispatcher.Dispatch(dispatcher.Event{
				Command:   step.command,
				Timestamp: time.Now(),
			}); err != nil {
				Logger.Warn("Demo intent failed", "command", step.command, "error", err)
			}
			intents++
		}
	}

	if _, err := eventDispatcher.Dispatch(dispatcher.Event{
		Command:   dispatcher.CmdFlightEnd,
		Timestamp: time.Now(),
	}); err != nil {
		return fmt.Errorf("ending demo flight: %w", err)
	}
	flushTelemetry()
	uploadLastExport()

	Logger.Info("Demo flight recorded", "name", name, "intents", intents)
	return nil
}
