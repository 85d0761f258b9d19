package postgres

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mazeflight/simulator/internal/logging"
	"github.com/mazeflight/simulator/internal/session"
)

func TestNew_DoesNotConnect(t *testing.T) {
	b := New(logging.NewSlogManager(), session.NewContext())
	require.NotNil(t, b)
	// Connection is deferred to Init; no embedded backend yet.
	require.Nil(t, b.Backend)
}
