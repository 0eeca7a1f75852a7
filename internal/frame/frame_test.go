package frame_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/fcatalogd/internal/frame"
)

func Test_Frame_Round_Trips_When_Payload_Within_Bound(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		msgType byte
		payload []byte
	}{
		{name: "EmptyPayload", msgType: 9, payload: nil},
		{name: "SmallPayload", msgType: 1, payload: []byte("hello")},
		{name: "BinaryPayload", msgType: 2, payload: []byte{0x00, 0xff, 0x10, 0x00}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer

			w := frame.NewWriter(&buf)
			require.NoError(t, w.WriteFrame(tc.msgType, tc.payload))

			r := frame.NewReader(&buf, 0)
			gotType, gotPayload, err := r.ReadFrame()
			require.NoError(t, err)

			assert.Equal(t, tc.msgType, gotType)

			if len(tc.payload) == 0 {
				assert.Empty(t, gotPayload)
			} else {
				assert.Equal(t, tc.payload, gotPayload)
			}
		})
	}
}

func Test_ReadFrame_Returns_EOF_When_Peer_Closes_Between_Frames(t *testing.T) {
	t.Parallel()

	r := frame.NewReader(bytes.NewReader(nil), 0)

	_, _, err := r.ReadFrame()
	assert.True(t, errors.Is(err, io.EOF))
}

func Test_ReadFrame_Returns_ErrTooLarge_When_Length_Exceeds_Max(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	w := frame.NewWriter(&buf)
	require.NoError(t, w.WriteFrame(1, make([]byte, 100)))

	r := frame.NewReader(&buf, 50)

	_, _, err := r.ReadFrame()
	require.Error(t, err)
	assert.True(t, errors.Is(err, frame.ErrTooLarge))
}

func Test_ReadFrame_Returns_Error_When_Body_Truncated(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	w := frame.NewWriter(&buf)
	require.NoError(t, w.WriteFrame(1, []byte("hello world")))

	truncated := buf.Bytes()[:buf.Len()-4]
	r := frame.NewReader(bytes.NewReader(truncated), 0)

	_, _, err := r.ReadFrame()
	require.Error(t, err)
	assert.False(t, errors.Is(err, io.EOF))
}

func Test_Multiple_Frames_Are_Read_In_Order(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	w := frame.NewWriter(&buf)
	require.NoError(t, w.WriteFrame(1, []byte("first")))
	require.NoError(t, w.WriteFrame(2, []byte("second")))

	r := frame.NewReader(&buf, 0)

	typ1, payload1, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, byte(1), typ1)
	assert.Equal(t, []byte("first"), payload1)

	typ2, payload2, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, byte(2), typ2)
	assert.Equal(t, []byte("second"), payload2)
}
