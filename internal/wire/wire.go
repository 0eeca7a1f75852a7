// Package wire defines the typed request/response messages exchanged over a
// Session's frame, and their Codec-based encodings.
package wire

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/calvinalkan/fcatalogd/internal/codec"
)

// MsgType identifies a message's wire shape. Values match the frame body's
// leading type byte.
type MsgType byte

// Message-type ids, per the protocol's dispatch table.
const (
	MsgChooseDB            MsgType = 0
	MsgAddFunction         MsgType = 1
	MsgRequestSimilars     MsgType = 2
	MsgResponseSimilars    MsgType = 3
	MsgAddStructure        MsgType = 4
	MsgRequestStructNames  MsgType = 5
	MsgResponseStructNames MsgType = 6
	MsgRequestStruct       MsgType = 7
	MsgResponseStruct      MsgType = 8
	MsgSYN                 MsgType = 9
	MsgACK                 MsgType = 10
	MsgRequestFuncNames    MsgType = 11
	MsgResponseFuncNames   MsgType = 12
)

// ErrMalformed wraps any decode failure at the message layer. Callers should
// use errors.Is(err, ErrMalformed); the session layer treats it as a fatal
// protocol error.
var ErrMalformed = errors.New("wire: malformed message")

// ChooseDB selects the catalog for the remainder of a session. Valid only as
// the first message on a connection.
type ChooseDB struct {
	DBName string
}

// Encode appends ChooseDB's payload to buf.
func (m ChooseDB) Encode(buf []byte) []byte {
	return codec.AppendString(buf, m.DBName)
}

// DecodeChooseDB decodes a ChooseDB payload.
func DecodeChooseDB(payload []byte) (ChooseDB, error) {
	name, _, err := codec.DecodeString(payload)
	if err != nil {
		return ChooseDB{}, fmt.Errorf("%w: choose_db: %w", ErrMalformed, err)
	}

	return ChooseDB{DBName: name}, nil
}

// AddFunction inserts or replaces a function record, keyed by the strong hash
// of Data.
type AddFunction struct {
	Name    string
	Comment string
	Data    []byte
}

// Encode appends AddFunction's payload to buf.
func (m AddFunction) Encode(buf []byte) []byte {
	buf = codec.AppendString(buf, m.Name)
	buf = codec.AppendString(buf, m.Comment)
	buf = codec.AppendBlob(buf, m.Data)

	return buf
}

// DecodeAddFunction decodes an AddFunction payload.
func DecodeAddFunction(payload []byte) (AddFunction, error) {
	name, n, err := codec.DecodeString(payload)
	if err != nil {
		return AddFunction{}, fmt.Errorf("%w: add_function: name: %w", ErrMalformed, err)
	}

	payload = payload[n:]

	comment, n, err := codec.DecodeString(payload)
	if err != nil {
		return AddFunction{}, fmt.Errorf("%w: add_function: comment: %w", ErrMalformed, err)
	}

	payload = payload[n:]

	data, _, err := codec.DecodeBlob(payload)
	if err != nil {
		return AddFunction{}, fmt.Errorf("%w: add_function: data: %w", ErrMalformed, err)
	}

	return AddFunction{Name: name, Comment: comment, Data: append([]byte(nil), data...)}, nil
}

// RequestSimilars asks for the K catalog functions most similar to Data.
type RequestSimilars struct {
	Data        []byte
	NumSimilars uint32
}

// Encode appends RequestSimilars's payload to buf.
func (m RequestSimilars) Encode(buf []byte) []byte {
	buf = codec.AppendBlob(buf, m.Data)
	buf = codec.AppendUint32(buf, m.NumSimilars)

	return buf
}

// DecodeRequestSimilars decodes a RequestSimilars payload.
func DecodeRequestSimilars(payload []byte) (RequestSimilars, error) {
	data, n, err := codec.DecodeBlob(payload)
	if err != nil {
		return RequestSimilars{}, fmt.Errorf("%w: request_similars: data: %w", ErrMalformed, err)
	}

	payload = payload[n:]

	k, _, err := codec.DecodeUint32(payload)
	if err != nil {
		return RequestSimilars{}, fmt.Errorf("%w: request_similars: num_similars: %w", ErrMalformed, err)
	}

	return RequestSimilars{Data: append([]byte(nil), data...), NumSimilars: k}, nil
}

// Similar is one ranked candidate returned by a similarity query.
type Similar struct {
	Name     string
	Comment  string
	SimGrade uint32
}

// ResponseSimilars carries the ranked candidates for a RequestSimilars.
type ResponseSimilars struct {
	Similars []Similar
}

// Encode appends ResponseSimilars's payload to buf.
func (m ResponseSimilars) Encode(buf []byte) []byte {
	buf = codec.AppendUint32(buf, uint32(len(m.Similars)))

	for _, s := range m.Similars {
		buf = codec.AppendString(buf, s.Name)
		buf = codec.AppendString(buf, s.Comment)
		buf = codec.AppendUint32(buf, s.SimGrade)
	}

	return buf
}

// DecodeResponseSimilars decodes a ResponseSimilars payload.
func DecodeResponseSimilars(payload []byte) (ResponseSimilars, error) {
	count, n, err := codec.DecodeUint32(payload)
	if err != nil {
		return ResponseSimilars{}, fmt.Errorf("%w: response_similars: count: %w", ErrMalformed, err)
	}

	payload = payload[n:]

	sims := make([]Similar, 0, count)

	for i := uint32(0); i < count; i++ {
		name, n, err := codec.DecodeString(payload)
		if err != nil {
			return ResponseSimilars{}, fmt.Errorf("%w: response_similars[%d]: name: %w", ErrMalformed, i, err)
		}

		payload = payload[n:]

		comment, n, err := codec.DecodeString(payload)
		if err != nil {
			return ResponseSimilars{}, fmt.Errorf("%w: response_similars[%d]: comment: %w", ErrMalformed, i, err)
		}

		payload = payload[n:]

		grade, n, err := codec.DecodeUint32(payload)
		if err != nil {
			return ResponseSimilars{}, fmt.Errorf("%w: response_similars[%d]: grade: %w", ErrMalformed, i, err)
		}

		payload = payload[n:]

		sims = append(sims, Similar{Name: name, Comment: comment, SimGrade: grade})
	}

	return ResponseSimilars{Similars: sims}, nil
}

// AddStructure inserts or replaces a named opaque structure blob. Unlike
// every other message, it uses legacy NUL-delimited framing: an ASCII name
// terminated by a single NUL byte, followed by the raw dump to the end of
// the frame. This asymmetry is a preserved compatibility wart, not a
// Codec-layer primitive.
type AddStructure struct {
	StructName string
	StructDump []byte
}

// Encode appends AddStructure's legacy-framed payload to buf.
func (m AddStructure) Encode(buf []byte) []byte {
	buf = append(buf, m.StructName...)
	buf = append(buf, 0x00)
	buf = append(buf, m.StructDump...)

	return buf
}

// DecodeAddStructure decodes an AddStructure legacy-framed payload.
func DecodeAddStructure(payload []byte) (AddStructure, error) {
	i := bytes.IndexByte(payload, 0x00)
	if i < 0 {
		return AddStructure{}, fmt.Errorf("%w: add_structure: missing NUL separator", ErrMalformed)
	}

	name := payload[:i]
	dump := payload[i+1:]

	return AddStructure{
		StructName: string(name),
		StructDump: append([]byte(nil), dump...),
	}, nil
}

// RequestStructNames asks for every stored structure name.
type RequestStructNames struct{}

// DecodeRequestStructNames decodes a (empty) RequestStructNames payload.
func DecodeRequestStructNames([]byte) (RequestStructNames, error) {
	return RequestStructNames{}, nil
}

// ResponseStructNames carries every stored structure name, NUL-joined.
type ResponseStructNames struct {
	Names []string
}

// Encode appends ResponseStructNames's NUL-joined payload to buf.
func (m ResponseStructNames) Encode(buf []byte) []byte {
	return appendNULJoined(buf, m.Names)
}

// DecodeResponseStructNames decodes a NUL-joined ResponseStructNames payload.
func DecodeResponseStructNames(payload []byte) (ResponseStructNames, error) {
	return ResponseStructNames{Names: splitNULJoined(payload)}, nil
}

// RequestStruct asks for one structure's dump by name.
type RequestStruct struct {
	StructName string
}

// Encode appends RequestStruct's payload to buf. Per the legacy protocol,
// the name is sent as raw ASCII with no length prefix and no terminator —
// it occupies the entire frame body.
func (m RequestStruct) Encode(buf []byte) []byte {
	return append(buf, m.StructName...)
}

// DecodeRequestStruct decodes a RequestStruct payload.
func DecodeRequestStruct(payload []byte) (RequestStruct, error) {
	return RequestStruct{StructName: string(payload)}, nil
}

// ResponseStruct carries one structure's dump. An empty Dump means
// not-found; a principled "no value" signal at the wire level would need a
// length-prefixed optional, but the legacy protocol overloads empty-blob for
// both an absent structure and a genuinely empty stored dump.
type ResponseStruct struct {
	Dump []byte
}

// Encode appends ResponseStruct's raw, unprefixed payload to buf.
func (m ResponseStruct) Encode(buf []byte) []byte {
	return append(buf, m.Dump...)
}

// DecodeResponseStruct decodes a ResponseStruct payload.
func DecodeResponseStruct(payload []byte) (ResponseStruct, error) {
	return ResponseStruct{Dump: append([]byte(nil), payload...)}, nil
}

// SYN is a liveness probe; Ready sessions answer it with ACK.
type SYN struct{}

// DecodeSYN decodes a (empty) SYN payload.
func DecodeSYN([]byte) (SYN, error) {
	return SYN{}, nil
}

// ACK answers a SYN. Its payload is always empty.
type ACK struct{}

// Encode returns buf unchanged: ACK carries no payload.
func (ACK) Encode(buf []byte) []byte {
	return buf
}

// RequestFuncNames asks for every stored function name.
type RequestFuncNames struct{}

// DecodeRequestFuncNames decodes a (empty) RequestFuncNames payload.
func DecodeRequestFuncNames([]byte) (RequestFuncNames, error) {
	return RequestFuncNames{}, nil
}

// ResponseFuncNames carries every stored function name, NUL-joined.
type ResponseFuncNames struct {
	Names []string
}

// Encode appends ResponseFuncNames's NUL-joined payload to buf.
func (m ResponseFuncNames) Encode(buf []byte) []byte {
	return appendNULJoined(buf, m.Names)
}

// DecodeResponseFuncNames decodes a NUL-joined ResponseFuncNames payload.
func DecodeResponseFuncNames(payload []byte) (ResponseFuncNames, error) {
	return ResponseFuncNames{Names: splitNULJoined(payload)}, nil
}

func appendNULJoined(buf []byte, names []string) []byte {
	for i, n := range names {
		if i > 0 {
			buf = append(buf, 0x00)
		}

		buf = append(buf, n...)
	}

	return buf
}

func splitNULJoined(payload []byte) []string {
	if len(payload) == 0 {
		return nil
	}

	parts := bytes.Split(payload, []byte{0x00})
	names := make([]string, len(parts))

	for i, p := range parts {
		names[i] = string(p)
	}

	return names
}
