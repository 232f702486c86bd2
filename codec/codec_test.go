package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/deepview/codec"
)

func TestCodecs(t *testing.T) {
	t.Parallel()

	record := map[string]any{"id": "7", "title": "hello"}

	for _, c := range []codec.Codec{codec.JSON, codec.Msgpack} {
		t.Run(c.Name(), func(t *testing.T) {
			data, err := c.Marshal(record)
			require.NoError(t, err)

			var got map[string]any
			require.NoError(t, c.Unmarshal(data, &got))
			assert.Equal(t, "7", got["id"])
			assert.Equal(t, "hello", got["title"])
		})
	}

	t.Run("names", func(t *testing.T) {
		assert.Equal(t, "json", codec.JSON.Name())
		assert.Equal(t, "msgpack", codec.Msgpack.Name())
	})
}
