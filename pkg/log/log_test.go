package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("defaults to info", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewWithWriter(&buf, "")
		l.Debug().Msg("hidden")
		l.Info().Msg("shown")
		assert.False(t, strings.Contains(buf.String(), "hidden"))
		assert.Contains(t, buf.String(), `"message":"shown"`)
	})

	t.Run("unknown level means info", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewWithWriter(&buf, "chatty")
		l.Debug().Msg("hidden")
		assert.Equal(t, "", buf.String())
	})

	t.Run("logr names and verbosity", func(t *testing.T) {
		var buf bytes.Buffer
		lr := Logr(NewWithWriter(&buf, "debug")).WithName("kflow").WithName("program")
		lr.V(1).Info("Program built", "operators", 3)
		out := buf.String()
		assert.Contains(t, out, `"logger":"kflow/program"`)
		assert.Contains(t, out, `"operators":3`)
	})
}
