package output

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalJSONPretty(t *testing.T) {
	v := map[string]any{"type": "monitor", "freemem": 10}

	compact, err := MarshalJSONPretty(v, false)
	require.NoError(t, err)
	assert.Equal(t, `{"freemem":10,"type":"monitor"}`, string(compact))

	pretty, err := MarshalJSONPretty(v, true)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"freemem\": 10,\n  \"type\": \"monitor\"\n}", string(pretty))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, map[string]string{"type": "start"}, false))
	require.NoError(t, WriteJSON(&buf, map[string]string{"type": "stop"}, false))

	assert.Equal(t, "{\"type\":\"start\"}\n{\"type\":\"stop\"}\n", buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestWriteJSON_PropagatesErrors(t *testing.T) {
	assert.Error(t, WriteJSON(failingWriter{}, 1, false))
	assert.Error(t, WriteJSON(&bytes.Buffer{}, make(chan int), false))
}
