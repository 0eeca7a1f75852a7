// Package session implements the per-connection protocol state machine:
// catalog selection, message dispatch, and request/response pairing.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/calvinalkan/fcatalogd/internal/catalogstore"
	"github.com/calvinalkan/fcatalogd/internal/frame"
	"github.com/calvinalkan/fcatalogd/internal/registry"
	"github.com/calvinalkan/fcatalogd/internal/wire"
)

type state int

const (
	stateStart state = iota
	stateReady
)

// Session drives one connection's message state machine: Start admits only
// ChooseDB; Ready admits the request types in readyHandlers; any decode failure,
// unknown type id, or wrong-state message is fatal and closes the
// connection.
type Session struct {
	id     uuid.UUID
	reader *frame.Reader
	writer *frame.Writer
	reg    *registry.Registry
	state  state
	store  *catalogstore.CatalogStore
}

// New returns a Session reading/writing frames over rw, resolving catalogs
// through reg. maxFrameBytes bounds incoming frame size; 0 selects
// [frame.DefaultMaxSize]. The id is used only to correlate log lines across
// one connection's lifetime — it never appears on the wire.
func New(rw io.ReadWriter, reg *registry.Registry, maxFrameBytes uint32) *Session {
	return &Session{
		id:     uuid.New(),
		reader: frame.NewReader(rw, maxFrameBytes),
		writer: frame.NewWriter(rw),
		reg:    reg,
		state:  stateStart,
	}
}

// Run processes frames until the peer disconnects, a fatal protocol error
// occurs, or ctx is done. ctx is checked before each frame read; a read that
// is already waiting ends when the connection is closed, which the Listener
// does once its context is done. Run has no error result: a clean peer
// disconnect (io.EOF) and fatal errors both end the loop and are logged.
func (s *Session) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			klog.V(2).Infof("session %s: shutting down: %v", s.id, ctx.Err())

			return
		default:
		}

		msgType, payload, err := s.reader.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				klog.V(2).Infof("session %s: peer closed connection", s.id)

				return
			}

			klog.V(1).Infof("session %s: closing on frame error: %v", s.id, err)

			return
		}

		if err := s.dispatch(ctx, wire.MsgType(msgType), payload); err != nil {
			klog.V(1).Infof("session %s: closing: %v", s.id, err)

			return
		}
	}
}

// readyHandlers maps each Ready-state message type to its handler; any id
// not listed here is rejected as unknown.
var readyHandlers = map[wire.MsgType]func(*Session, context.Context, []byte) error{
	wire.MsgAddFunction:        (*Session).handleAddFunction,
	wire.MsgRequestSimilars:    (*Session).handleRequestSimilars,
	wire.MsgAddStructure:       (*Session).handleAddStructure,
	wire.MsgRequestStructNames: (*Session).handleRequestStructNames,
	wire.MsgRequestStruct:      (*Session).handleRequestStruct,
	wire.MsgSYN:                (*Session).handleSYN,
	wire.MsgRequestFuncNames:   (*Session).handleRequestFuncNames,
}

func (s *Session) dispatch(ctx context.Context, msgType wire.MsgType, payload []byte) error {
	if s.state == stateStart {
		if msgType != wire.MsgChooseDB {
			return fmt.Errorf("session: message type %d not allowed before ChooseDB", msgType)
		}

		return s.handleChooseDB(ctx, payload)
	}

	handler, ok := readyHandlers[msgType]
	if !ok {
		return fmt.Errorf("session: unknown message type %d", msgType)
	}

	return handler(s, ctx, payload)
}

func (s *Session) writeFrame(msgType wire.MsgType, payload []byte) error {
	if err := s.writer.WriteFrame(byte(msgType), payload); err != nil {
		return fmt.Errorf("session: write response: %w", err)
	}

	return nil
}

func (s *Session) handleChooseDB(ctx context.Context, payload []byte) error {
	msg, err := wire.DecodeChooseDB(payload)
	if err != nil {
		return err
	}

	store, err := s.reg.Choose(ctx, msg.DBName)
	if err != nil {
		return fmt.Errorf("session: choose_db %q: %w", msg.DBName, err)
	}

	s.store = store
	s.state = stateReady

	klog.V(2).Infof("session %s: chose catalog %q", s.id, msg.DBName)

	return nil
}

// handleAddFunction never fails the session on a storage error: per the
// spec, a misbehaving record must not take down the rest of a client's
// batch, so the error is only logged.
func (s *Session) handleAddFunction(ctx context.Context, payload []byte) error {
	msg, err := wire.DecodeAddFunction(payload)
	if err != nil {
		return err
	}

	if err := s.store.AddFunction(ctx, msg.Name, msg.Comment, msg.Data); err != nil {
		klog.V(2).Infof("session %s: add_function %q: %v", s.id, msg.Name, err)
	}

	return nil
}

func (s *Session) handleRequestSimilars(ctx context.Context, payload []byte) error {
	msg, err := wire.DecodeRequestSimilars(payload)
	if err != nil {
		return err
	}

	k := int(msg.NumSimilars)
	if k < 1 {
		k = 1
	}

	candidates := s.store.GetSimilars(ctx, msg.Data, k)

	resp := wire.ResponseSimilars{Similars: make([]wire.Similar, len(candidates))}
	for i, c := range candidates {
		resp.Similars[i] = wire.Similar{
			Name:     c.FuncName,
			Comment:  c.FuncComment,
			SimGrade: uint32(c.Grade),
		}
	}

	return s.writeFrame(wire.MsgResponseSimilars, resp.Encode(nil))
}

// handleAddStructure, like handleAddFunction, logs storage errors rather
// than closing the session.
func (s *Session) handleAddStructure(ctx context.Context, payload []byte) error {
	msg, err := wire.DecodeAddStructure(payload)
	if err != nil {
		return err
	}

	if err := s.store.AddStructure(ctx, msg.StructName, msg.StructDump); err != nil {
		klog.V(2).Infof("session %s: add_structure %q: %v", s.id, msg.StructName, err)
	}

	return nil
}

func (s *Session) handleRequestStructNames(ctx context.Context, _ []byte) error {
	names := s.store.GetStructNames(ctx)

	resp := wire.ResponseStructNames{Names: names}

	return s.writeFrame(wire.MsgResponseStructNames, resp.Encode(nil))
}

// handleRequestStruct sends an empty blob when the structure is absent: the
// legacy wire format cannot distinguish "not found" from "stored empty".
func (s *Session) handleRequestStruct(ctx context.Context, payload []byte) error {
	msg, err := wire.DecodeRequestStruct(payload)
	if err != nil {
		return err
	}

	dump, err := s.store.GetStruct(ctx, msg.StructName)
	if err != nil {
		dump = nil
	}

	resp := wire.ResponseStruct{Dump: dump}

	return s.writeFrame(wire.MsgResponseStruct, resp.Encode(nil))
}

func (s *Session) handleSYN(_ context.Context, _ []byte) error {
	return s.writeFrame(wire.MsgACK, wire.ACK{}.Encode(nil))
}

func (s *Session) handleRequestFuncNames(ctx context.Context, _ []byte) error {
	names := s.store.GetFuncNames(ctx)

	resp := wire.ResponseFuncNames{Names: names}

	return s.writeFrame(wire.MsgResponseFuncNames, resp.Encode(nil))
}
