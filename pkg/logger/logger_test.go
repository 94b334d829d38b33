package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notekit/pkg/logger"
)

type ctxKey struct{}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json by default", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf))
		log.Info("hello")

		entry := decode(t, buf)
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "hello", entry["msg"])
	})

	t.Run("development uses text at debug level", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithEnvironment("development", "notekit"))
		log.Debug("details")

		out := buf.String()
		assert.Contains(t, out, "level=DEBUG")
		assert.Contains(t, out, "service=notekit")
		assert.Contains(t, out, "env=development")
	})

	t.Run("production uses json at info level", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(logger.WithOutput(buf), logger.WithEnvironment("production", "notekit"))
		log.Debug("hidden")
		assert.Empty(t, buf.String())

		log.Info("shown")
		entry := decode(t, buf)
		assert.Equal(t, "production", entry["env"])
	})

	t.Run("level name overrides environment", func(t *testing.T) {
		t.Parallel()
		buf := &bytes.Buffer{}
		log := logger.New(
			logger.WithOutput(buf),
			logger.WithEnvironment("production", "notekit"),
			logger.WithLevelName("warn"),
		)
		log.Info("hidden")
		assert.Empty(t, buf.String())
	})

	t.Run("invalid format panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { logger.New(logger.WithFormat("xml")) })
	})
}

func TestContextExtractors(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.New(
		logger.WithOutput(buf),
		logger.WithContextExtractors(nil, func(ctx context.Context) (slog.Attr, bool) {
			v, ok := ctx.Value(ctxKey{}).(string)
			return slog.String("session_id", v), ok
		}),
	)

	ctx := context.WithValue(context.Background(), ctxKey{}, "sess-1")
	log.With(logger.Component("limits")).InfoContext(ctx, "refreshed")

	entry := decode(t, buf)
	assert.Equal(t, "sess-1", entry["session_id"])
	assert.Equal(t, "limits", entry["component"])
}

func TestAttrs(t *testing.T) {
	t.Parallel()

	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
	assert.Equal(t, "error", logger.Error(errors.New("x")).Key)

	assert.True(t, logger.UserID(uuid.Nil).Equal(slog.Attr{}))
	id := uuid.New()
	assert.Equal(t, id.String(), logger.UserID(id).Value.String())

	assert.True(t, logger.SessionID("").Equal(slog.Attr{}))
	assert.Equal(t, "plan_id", logger.PlanID("pro").Key)
}
