package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModelList(t *testing.T) {
	body := `{"data":[{"id":"claude-3-5-sonnet-latest"},{"id":"claude-3-opus-latest"},{"object":"nameless"}]}`

	ids, err := ParseModelList([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, []string{"claude-3-5-sonnet-latest", "claude-3-opus-latest"}, ids)
}

func TestParseModelListMalformed(t *testing.T) {
	for _, body := range []string{`{}`, `{"data":"nope"}`, `garbage`} {
		_, err := ParseModelList([]byte(body))
		assert.Error(t, err, body)
	}
}
