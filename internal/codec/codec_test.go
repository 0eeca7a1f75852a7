package codec_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/fcatalogd/internal/codec"
)

func Test_Uint32_Round_Trips_When_Buffer_Long_Enough(t *testing.T) {
	t.Parallel()

	testCases := []uint32{0, 1, 255, 65536, 0xdeadbeef, 0xffffffff}

	for _, v := range testCases {
		buf := codec.AppendUint32(nil, v)
		require.Len(t, buf, codec.Uint32Size)

		got, n, err := codec.DecodeUint32(buf)
		require.NoError(t, err)
		assert.Equal(t, codec.Uint32Size, n)
		assert.Equal(t, v, got)
	}
}

func Test_DecodeUint32_Returns_ErrShortBuffer_When_Input_Too_Short(t *testing.T) {
	t.Parallel()

	_, _, err := codec.DecodeUint32([]byte{0x01, 0x02})
	require.Error(t, err)
	assert.True(t, errors.Is(err, codec.ErrShortBuffer))
}

func Test_String_Round_Trips_When_Buffer_Long_Enough(t *testing.T) {
	t.Parallel()

	testCases := []string{"", "a", "hello, catalog", "日本語"}

	for _, s := range testCases {
		buf := codec.AppendString(nil, s)

		got, n, err := codec.DecodeString(buf)
		require.NoError(t, err)
		assert.Equal(t, len(buf), n)
		assert.Equal(t, s, got)
	}
}

func Test_Blob_Round_Trips_With_Trailing_Bytes_Left_Untouched(t *testing.T) {
	t.Parallel()

	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	trailer := []byte{0x99}

	buf := codec.AppendBlob(nil, payload)
	buf = append(buf, trailer...)

	got, n, err := codec.DecodeBlob(buf)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, len(buf)-len(trailer), n)
}

func Test_DecodeBlob_Returns_ErrShortBuffer_When_Body_Truncated(t *testing.T) {
	t.Parallel()

	buf := codec.AppendUint32(nil, 10)
	buf = append(buf, []byte{0x01, 0x02}...)

	_, _, err := codec.DecodeBlob(buf)
	require.Error(t, err)
	assert.True(t, errors.Is(err, codec.ErrShortBuffer))
}
