package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"git.handmade.network/hmn/postmerge/src/oops"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestPrettyZerologWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(NewPrettyZerologWriterTo(&buf))

	t.Run("plain message", func(t *testing.T) {
		buf.Reset()
		logger.Info().Msg("merged some posts")
		out := buf.String()
		assert.Contains(t, out, "INFO")
		assert.Contains(t, out, "merged some posts")
		assert.NotContains(t, out, "Fields:")
	})
	t.Run("fields and errors", func(t *testing.T) {
		buf.Reset()
		logger.Warn().
			Err(errors.New("queue unavailable")).
			Int("target_id", 10).
			Msg("failed to enqueue search index job")
		out := buf.String()
		assert.Contains(t, out, "ERROR:")
		assert.Contains(t, out, "queue unavailable")
		assert.Contains(t, out, "target_id: 10")
		assert.True(t, strings.HasPrefix(out, "----"), "multiline entries are separated")
	})
	t.Run("stack traces", func(t *testing.T) {
		buf.Reset()
		logger.Error().Stack().Err(oops.New(nil, "rebuild failed")).Msg("merge failed")
		out := buf.String()
		assert.Contains(t, out, "Stack trace:")
		assert.Contains(t, out, "TestPrettyZerologWriter")
	})
	t.Run("not json", func(t *testing.T) {
		buf.Reset()
		w := NewPrettyZerologWriterTo(&buf)
		n, err := w.Write([]byte("raw line\n"))
		assert.Nil(t, err)
		assert.Equal(t, len("raw line\n"), n)
		assert.Equal(t, "raw line\n", buf.String())
	})
}

func TestExtractLogger(t *testing.T) {
	assert.Same(t, GlobalLogger(), ExtractLogger(context.Background()))

	logger := zerolog.Nop()
	ctx := AttachLoggerToContext(&logger, context.Background())
	assert.Same(t, &logger, ExtractLogger(ctx))
}
