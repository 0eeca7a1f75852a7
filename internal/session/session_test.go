package session_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/fcatalogd/internal/frame"
	"github.com/calvinalkan/fcatalogd/internal/registry"
	"github.com/calvinalkan/fcatalogd/internal/session"
	"github.com/calvinalkan/fcatalogd/internal/wire"
)

// testClient drives the client side of a net.Pipe connected to a live
// Session running on the server side.
type testClient struct {
	conn   net.Conn
	reader *frame.Reader
	writer *frame.Writer
}

func newTestSession(t *testing.T, reg *registry.Registry) *testClient {
	t.Helper()

	clientConn, serverConn := net.Pipe()

	sess := session.New(serverConn, reg, 0)

	done := make(chan struct{})

	go func() {
		defer close(done)

		sess.Run(context.Background())
	}()

	t.Cleanup(func() {
		_ = clientConn.Close()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("session did not shut down after client closed")
		}
	})

	return &testClient{
		conn:   clientConn,
		reader: frame.NewReader(clientConn, 0),
		writer: frame.NewWriter(clientConn),
	}
}

func (c *testClient) send(t *testing.T, msgType wire.MsgType, payload []byte) {
	t.Helper()

	require.NoError(t, c.writer.WriteFrame(byte(msgType), payload))
}

func (c *testClient) recv(t *testing.T) (wire.MsgType, []byte) {
	t.Helper()

	typ, payload, err := c.reader.ReadFrame()
	require.NoError(t, err)

	return wire.MsgType(typ), payload
}

func chooseDB(t *testing.T, c *testClient, name string) {
	t.Helper()

	c.send(t, wire.MsgChooseDB, wire.ChooseDB{DBName: name}.Encode(nil))
}

func Test_Session_Closes_Connection_When_First_Message_Is_Not_ChooseDB(t *testing.T) {
	t.Parallel()

	reg := registry.New(t.TempDir(), 8, 0)
	t.Cleanup(func() { _ = reg.CloseAll() })

	c := newTestSession(t, reg)

	req := wire.RequestSimilars{Data: []byte("abcdefgh"), NumSimilars: 5}
	c.send(t, wire.MsgRequestSimilars, req.Encode(nil))

	_, _, err := c.reader.ReadFrame()
	assert.Error(t, err, "server should close the connection with no response")
}

func Test_Session_SYN_Gets_ACK_After_ChooseDB(t *testing.T) {
	t.Parallel()

	reg := registry.New(t.TempDir(), 8, 0)
	t.Cleanup(func() { _ = reg.CloseAll() })

	c := newTestSession(t, reg)

	chooseDB(t, c, "k")

	c.send(t, wire.MsgSYN, nil)

	typ, payload := c.recv(t)
	assert.Equal(t, wire.MsgACK, typ)
	assert.Empty(t, payload)
}

func Test_Session_Empty_Catalog_Query_Returns_Empty_Similars(t *testing.T) {
	t.Parallel()

	reg := registry.New(t.TempDir(), 16, 0)
	t.Cleanup(func() { _ = reg.CloseAll() })

	c := newTestSession(t, reg)

	chooseDB(t, c, "k")

	req := wire.RequestSimilars{Data: []byte{0x01, 0x02, 0x03}, NumSimilars: 5}
	c.send(t, wire.MsgRequestSimilars, req.Encode(nil))

	typ, payload := c.recv(t)
	require.Equal(t, wire.MsgResponseSimilars, typ)

	resp, err := wire.DecodeResponseSimilars(payload)
	require.NoError(t, err)
	assert.Empty(t, resp.Similars)
}

func Test_Session_AddFunction_Then_RequestSimilars_Finds_Exact_Match(t *testing.T) {
	t.Parallel()

	reg := registry.New(t.TempDir(), 16, 0)
	t.Cleanup(func() { _ = reg.CloseAll() })

	c := newTestSession(t, reg)

	chooseDB(t, c, "k")

	data := []byte("abcdefghabcdefghabcdefghabcdefgh")
	add := wire.AddFunction{Name: "foo", Comment: "c", Data: data}
	c.send(t, wire.MsgAddFunction, add.Encode(nil))

	req := wire.RequestSimilars{Data: data, NumSimilars: 3}
	c.send(t, wire.MsgRequestSimilars, req.Encode(nil))

	typ, payload := c.recv(t)
	require.Equal(t, wire.MsgResponseSimilars, typ)

	resp, err := wire.DecodeResponseSimilars(payload)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Similars)
	assert.Equal(t, "foo", resp.Similars[0].Name)
	assert.Equal(t, uint32(16), resp.Similars[0].SimGrade)
}

func Test_Session_AddStructure_Then_RequestStruct_Round_Trips(t *testing.T) {
	t.Parallel()

	reg := registry.New(t.TempDir(), 8, 0)
	t.Cleanup(func() { _ = reg.CloseAll() })

	c := newTestSession(t, reg)

	chooseDB(t, c, "k")

	dump := []byte{0xde, 0xad, 0xbe, 0xef}
	add := wire.AddStructure{StructName: "pixel_t", StructDump: dump}
	c.send(t, wire.MsgAddStructure, add.Encode(nil))

	req := wire.RequestStruct{StructName: "pixel_t"}
	c.send(t, wire.MsgRequestStruct, req.Encode(nil))

	typ, payload := c.recv(t)
	require.Equal(t, wire.MsgResponseStruct, typ)
	assert.Equal(t, dump, payload)
}

func Test_Session_RequestStruct_Returns_Empty_Blob_When_Not_Found(t *testing.T) {
	t.Parallel()

	reg := registry.New(t.TempDir(), 8, 0)
	t.Cleanup(func() { _ = reg.CloseAll() })

	c := newTestSession(t, reg)

	chooseDB(t, c, "k")

	req := wire.RequestStruct{StructName: "nonexistent"}
	c.send(t, wire.MsgRequestStruct, req.Encode(nil))

	typ, payload := c.recv(t)
	require.Equal(t, wire.MsgResponseStruct, typ)
	assert.Empty(t, payload)
}
