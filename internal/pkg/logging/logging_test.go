package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWriter_JSON(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	SetupWriter(&buf, "debug", false)

	log.Debug().Uint("document_id", 7).Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "hello", entry["message"])
	assert.EqualValues(t, 7, entry["document_id"])
}

func TestSetupWriter_UnknownLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	SetupWriter(&buf, "chatty", false)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	log.Debug().Msg("dropped")
	assert.Empty(t, buf.String())
}
