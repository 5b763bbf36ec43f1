package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("triggers", &buf, WARN)

	l.Info("не должно попасть")
	l.Warn("op=%s slot=%d", "remove", 3)
	l.Error("ошибка %v", errors.New("boom"))

	out := buf.String()
	assert.NotContains(t, out, "не должно попасть")
	assert.Contains(t, out, "[WARN] [triggers] op=remove slot=3")
	assert.Contains(t, out, "[ERROR] [triggers] ошибка boom")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel("что-то"))
}

func TestLoggerManager_ReusesLoggers(t *testing.T) {
	var buf bytes.Buffer
	lm := &LoggerManager{
		loggers: make(map[string]*Logger),
		factory: func(component string) (*Logger, error) {
			return NewLoggerWithWriter(component, &buf, DEBUG), nil
		},
	}

	a := lm.MustGetLogger("triggers")
	b := lm.MustGetLogger("triggers")
	require.Same(t, a, b, "логгер компонента должен создаваться один раз")

	lm.MustGetLogger("api")
	assert.Equal(t, []string{"api", "triggers"}, lm.ListComponents())

	require.NoError(t, lm.SetLogLevel("api", ERROR, ERROR))
	assert.Error(t, lm.SetLogLevel("missing", ERROR, ERROR))

	lm.MustGetLogger("api").Info("hidden")
	assert.False(t, strings.Contains(buf.String(), "hidden"))

	require.NoError(t, lm.CloseAll())
	assert.Empty(t, lm.ListComponents())
}

func TestLoggerManager_FallbackOnFactoryError(t *testing.T) {
	lm := &LoggerManager{
		loggers: make(map[string]*Logger),
		factory: func(component string) (*Logger, error) {
			return nil, errors.New("no disk")
		},
	}

	l := lm.MustGetLogger("storage")
	require.NotNil(t, l)
	assert.Equal(t, "storage", l.Component())
}
