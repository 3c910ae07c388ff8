// Package dispatch implements the command dispatcher: one method per
// EE operation, each building the exact wire layout for its command
// and decoding the matching reply shape, driving the transport and
// reply reader underneath.
package dispatch

import (
	"fmt"

	"github.com/ehrlich-b/eeipc/internal/buffer"
	"github.com/ehrlich-b/eeipc/internal/interfaces"
	"github.com/ehrlich-b/eeipc/internal/reply"
	"github.com/ehrlich-b/eeipc/internal/transport"
	"github.com/ehrlich-b/eeipc/internal/wire"
)

// sock is the transport surface the dispatcher needs beyond framing:
// reading raw reply bytes once the reply reader has cleared the
// status byte for commands with a non-empty reply shape.
type sock interface {
	WriteFrame(payload []byte) error
	ReadExact(n int) ([]byte, error)
	ReadExactInto(buf []byte) error
	ReadStatus() (byte, error)
	WriteByte(b byte) error
	WriteUint32(v uint32) error
	WriteBody(p []byte) error
}

var _ sock = (*transport.Transport)(nil)

// Dispatcher owns the reusable frame buffer and drives one command at
// a time across the transport, servicing any mid-reply dependency
// callbacks through the reply reader before decoding the command's
// reply shape.
type Dispatcher struct {
	t           sock
	fb          *buffer.FrameBuffer
	coordinator interfaces.Coordinator
	observer    interfaces.Observer
}

// New creates a Dispatcher. coordinator supplies dependency tables and
// receives crash reports; observer may be nil.
func New(t sock, fb *buffer.FrameBuffer, coordinator interfaces.Coordinator, observer interfaces.Observer) *Dispatcher {
	if observer == nil {
		observer = interfaces.NoOpObserver{}
	}
	return &Dispatcher{t: t, fb: fb, coordinator: coordinator, observer: observer}
}

// beginCommand resets the frame buffer and writes the command code,
// returning a *wire.Writer positioned to encode the command's fields.
func (d *Dispatcher) beginCommand(code uint32) *wire.Writer {
	d.fb.Reset()
	w := wire.NewWriter(d.fb)
	w.WriteUint32(code)
	return w
}

// send flushes the frame buffer and awaits the status-only reply
// shape shared by most commands, servicing dependency callbacks along
// the way.
func (d *Dispatcher) send() error {
	if err := d.t.WriteFrame(d.fb.Payload()); err != nil {
		return fmt.Errorf("dispatch: write frame: %w", err)
	}
	r := reply.New(d.t, d.coordinator, d.observer)
	return r.Await()
}

// Dependency is one entry of a DependencySet: the id the EE assigned
// the output table and the table's serialized bytes.
type Dependency struct {
	ID    uint32
	Table []byte
}

// DependencySet is PlanFragment's reply shape: a dirty flag (8-bit
// bool) followed by n (dep-id, table) pairs.
type DependencySet struct {
	Dirty        bool
	Dependencies []Dependency
}

// ResultTableSet is the reply shape for CustomPlanFragment and
// QueryPlanFragments: a dirty flag derived from a >0 comparison on a
// single byte, followed by one serialized table per expected
// fragment. Both dirty-flag encodings appear verbatim in their
// respective readers rather than being unified, preserving the
// distinction the EE's two reply shapes actually draw.
type ResultTableSet struct {
	Dirty  bool
	Tables [][]byte
}

// readSerializedTable reads a u32 length followed by that many bytes,
// the shape every "serialized table" field uses on this wire.
func (d *Dispatcher) readSerializedTable() ([]byte, error) {
	lenBytes, err := d.t.ReadExact(4)
	if err != nil {
		return nil, err
	}
	n := wire.Uint32(lenBytes)
	return d.t.ReadExact(int(n))
}

// Initialize configures a fresh EE instance with its partition and
// host identity and the requested log level vector.
func (d *Dispatcher) Initialize(clusterIdx, siteID, partitionID, hostID uint32, logLevels uint64, hostname string) error {
	w := d.beginCommand(wire.CmdInitialize)
	w.WriteUint32(clusterIdx)
	w.WriteUint32(siteID)
	w.WriteUint32(partitionID)
	w.WriteUint32(hostID)
	w.WriteUint64(logLevels)
	w.WriteString16(hostname)
	return d.send()
}

// LoadCatalog installs a full catalog.
func (d *Dispatcher) LoadCatalog(catalog []byte) error {
	w := d.beginCommand(wire.CmdLoadCatalog)
	w.WriteCString(catalog)
	return d.send()
}

// UpdateCatalog applies a versioned catalog diff.
func (d *Dispatcher) UpdateCatalog(version uint32, diff []byte) error {
	w := d.beginCommand(wire.CmdUpdateCatalog)
	w.WriteUint32(version)
	w.WriteCString(diff)
	return d.send()
}

// Tick advances the EE's notion of wall-clock time and last-committed
// transaction id, the periodic heartbeat the coordinator sends between
// transactions.
func (d *Dispatcher) Tick(time, lastCommittedTxnID uint64) error {
	w := d.beginCommand(wire.CmdTick)
	w.WriteUint64(time)
	w.WriteUint64(lastCommittedTxnID)
	return d.send()
}

// Quiesce flushes any buffered export data up to lastCommittedTxnID.
func (d *Dispatcher) Quiesce(lastCommittedTxnID uint64) error {
	w := d.beginCommand(wire.CmdQuiesce)
	w.WriteUint64(lastCommittedTxnID)
	return d.send()
}

// PlanFragment executes a single precompiled plan fragment and
// returns the resulting dependency set, servicing any
// RETRIEVE_DEPENDENCY callbacks the fragment triggers along the way.
func (d *Dispatcher) PlanFragment(txnID, lastCommittedTxnID, undoToken, planFragmentID uint64, outputDepID, inputDepID uint32, params []byte) (DependencySet, error) {
	w := d.beginCommand(wire.CmdPlanFragment)
	w.WriteUint64(txnID)
	w.WriteUint64(lastCommittedTxnID)
	w.WriteUint64(undoToken)
	w.WriteUint64(planFragmentID)
	w.WriteUint32(outputDepID)
	w.WriteUint32(inputDepID)
	w.WriteBytes(params)

	if err := d.t.WriteFrame(d.fb.Payload()); err != nil {
		return DependencySet{}, fmt.Errorf("dispatch: write frame: %w", err)
	}
	r := reply.New(d.t, d.coordinator, d.observer)
	if err := r.Await(); err != nil {
		return DependencySet{}, err
	}
	return d.readDependencySet()
}

// readDependencySet decodes PlanFragment's reply body: an 8-bit dirty
// flag (not a >0-derived bool — see ResultTableSet), then n pairs of
// (dep-id, serialized table).
func (d *Dispatcher) readDependencySet() (DependencySet, error) {
	dirtyByte, err := d.t.ReadExact(1)
	if err != nil {
		return DependencySet{}, fmt.Errorf("dispatch: read dependency set dirty flag: %w", err)
	}
	nBytes, err := d.t.ReadExact(4)
	if err != nil {
		return DependencySet{}, fmt.Errorf("dispatch: read dependency set count: %w", err)
	}
	n := wire.Uint32(nBytes)

	set := DependencySet{Dirty: dirtyByte[0] != 0, Dependencies: make([]Dependency, 0, n)}
	for i := uint32(0); i < n; i++ {
		idBytes, err := d.t.ReadExact(4)
		if err != nil {
			return DependencySet{}, fmt.Errorf("dispatch: read dependency id %d: %w", i, err)
		}
		table, err := d.readSerializedTable()
		if err != nil {
			return DependencySet{}, fmt.Errorf("dispatch: read dependency table %d: %w", i, err)
		}
		set.Dependencies = append(set.Dependencies, Dependency{ID: wire.Uint32(idBytes), Table: table})
	}
	return set, nil
}

// CustomPlanFragment executes an ad hoc plan string rather than a
// precompiled fragment, returning a single-table result set.
func (d *Dispatcher) CustomPlanFragment(txnID, lastCommittedTxnID, undoToken uint64, outputDepID, inputDepID uint32, planString []byte) (ResultTableSet, error) {
	w := d.beginCommand(wire.CmdCustomPlanFragment)
	w.WriteUint64(txnID)
	w.WriteUint64(lastCommittedTxnID)
	w.WriteUint64(undoToken)
	w.WriteUint32(outputDepID)
	w.WriteUint32(inputDepID)
	w.WriteBytes(planString)

	if err := d.t.WriteFrame(d.fb.Payload()); err != nil {
		return ResultTableSet{}, fmt.Errorf("dispatch: write frame: %w", err)
	}
	r := reply.New(d.t, d.coordinator, d.observer)
	if err := r.Await(); err != nil {
		return ResultTableSet{}, err
	}
	return d.readResultTableSet(1)
}

// QueryPlanFragments executes N precompiled fragments in one
// round-trip, each with its own input/output dependency ids and
// parameter set, and returns the N-table result.
func (d *Dispatcher) QueryPlanFragments(txnID, lastCommittedTxnID, undoToken uint64, fragmentIDs []uint64, inputDepIDs, outputDepIDs []uint32, parameterSets [][]byte) (ResultTableSet, error) {
	n := len(fragmentIDs)
	w := d.beginCommand(wire.CmdQueryPlanFragments)
	w.WriteUint64(txnID)
	w.WriteUint64(lastCommittedTxnID)
	w.WriteUint64(undoToken)
	w.WriteUint32(uint32(n))
	w.WriteUint32(uint32(len(parameterSets)))
	for _, id := range fragmentIDs {
		w.WriteUint64(id)
	}
	for _, id := range inputDepIDs {
		w.WriteUint32(id)
	}
	for _, id := range outputDepIDs {
		w.WriteUint32(id)
	}
	for _, ps := range parameterSets {
		w.WriteBytes(ps)
	}

	if err := d.t.WriteFrame(d.fb.Payload()); err != nil {
		return ResultTableSet{}, fmt.Errorf("dispatch: write frame: %w", err)
	}
	r := reply.New(d.t, d.coordinator, d.observer)
	if err := r.Await(); err != nil {
		return ResultTableSet{}, err
	}
	return d.readResultTableSet(n)
}

// readResultTableSet decodes the result-table-set reply shape shared
// by CustomPlanFragment (expected=1) and QueryPlanFragments
// (expected=N): a dirty flag derived from a >0 comparison on a single
// byte, then for each expected table a dependency-count (must equal
// 1), a dependency id (ignored), and the serialized table body.
func (d *Dispatcher) readResultTableSet(expected int) (ResultTableSet, error) {
	dirtyByte, err := d.t.ReadExact(1)
	if err != nil {
		return ResultTableSet{}, fmt.Errorf("dispatch: read result table set dirty flag: %w", err)
	}

	set := ResultTableSet{Dirty: dirtyByte[0] > 0, Tables: make([][]byte, 0, expected)}
	for i := 0; i < expected; i++ {
		depCountBytes, err := d.t.ReadExact(4)
		if err != nil {
			return ResultTableSet{}, fmt.Errorf("dispatch: read table %d dependency count: %w", i, err)
		}
		if wire.Uint32(depCountBytes) != 1 {
			return ResultTableSet{}, fmt.Errorf("dispatch: table %d dependency count = %d, want 1", i, wire.Uint32(depCountBytes))
		}
		if _, err := d.t.ReadExact(4); err != nil { // dependency id, ignored
			return ResultTableSet{}, fmt.Errorf("dispatch: read table %d dependency id: %w", i, err)
		}
		table, err := d.readSerializedTable()
		if err != nil {
			return ResultTableSet{}, fmt.Errorf("dispatch: read table %d body: %w", i, err)
		}
		set.Tables = append(set.Tables, table)
	}
	return set, nil
}

// LoadTable bulk-loads a serialized table into the EE outside of plan
// fragment execution, optionally making it visible to export.
func (d *Dispatcher) LoadTable(tableID uint32, txnID, lastCommittedTxnID, undoToken uint64, allowExport bool, table []byte) error {
	w := d.beginCommand(wire.CmdLoadTable)
	w.WriteUint32(tableID)
	w.WriteUint64(txnID)
	w.WriteUint64(lastCommittedTxnID)
	w.WriteUint64(undoToken)
	if allowExport {
		w.WriteUint16(1)
	} else {
		w.WriteUint16(0)
	}
	w.WriteBytes(table)
	return d.send()
}

// GetStats retrieves one statistics table for the given selector and
// locator set.
func (d *Dispatcher) GetStats(selectorOrdinal uint32, interval bool, now uint64, locators []uint32) ([]byte, error) {
	w := d.beginCommand(wire.CmdGetStats)
	w.WriteUint32(selectorOrdinal)
	if interval {
		w.WriteByte(1)
	} else {
		w.WriteByte(0)
	}
	w.WriteUint64(now)
	w.WriteUint32(uint32(len(locators)))
	for _, l := range locators {
		w.WriteUint32(l)
	}

	if err := d.t.WriteFrame(d.fb.Payload()); err != nil {
		return nil, fmt.Errorf("dispatch: write frame: %w", err)
	}
	r := reply.New(d.t, d.coordinator, d.observer)
	if err := r.Await(); err != nil {
		return nil, err
	}

	msgLenBytes, err := d.t.ReadExact(4)
	if err != nil {
		return nil, fmt.Errorf("dispatch: read stats message length: %w", err)
	}
	msgLen := wire.Uint32(msgLenBytes)
	msg, err := d.t.ReadExact(int(msgLen))
	if err != nil {
		return nil, fmt.Errorf("dispatch: read stats message: %w", err)
	}
	return msg, nil
}

// ReleaseUndoToken releases all undo state at or below undoToken.
func (d *Dispatcher) ReleaseUndoToken(undoToken uint64) error {
	w := d.beginCommand(wire.CmdReleaseUndoToken)
	w.WriteUint64(undoToken)
	return d.send()
}

// UndoUndoToken reverses all work performed at or above undoToken.
func (d *Dispatcher) UndoUndoToken(undoToken uint64) error {
	w := d.beginCommand(wire.CmdUndoUndoToken)
	w.WriteUint64(undoToken)
	return d.send()
}

// SetLogLevels updates the EE's per-component log level vector.
func (d *Dispatcher) SetLogLevels(logLevels uint64) error {
	w := d.beginCommand(wire.CmdSetLogLevels)
	w.WriteUint64(logLevels)
	return d.send()
}

// ActivateTableStream begins streaming a table out in the given
// stream type (e.g. snapshot, recovery, elastic).
func (d *Dispatcher) ActivateTableStream(tableID, streamTypeOrdinal uint32) error {
	w := d.beginCommand(wire.CmdActivateTableStream)
	w.WriteUint32(tableID)
	w.WriteUint32(streamTypeOrdinal)
	return d.send()
}

// SerializeResult is TableStreamSerializeMore's reply: EOF is true
// once the EE reports 0 remaining bytes; a negative length reported by
// the EE surfaces as a non-nil error rather than as Data/EOF, since it
// signals the stream itself failed.
type SerializeResult struct {
	Data []byte
	EOF  bool
}

// TableStreamSerializeMore pulls the next chunk of an active table
// stream. The wire length is signed: -1 reports an EE-side streaming
// error, 0 reports end of stream, and any positive N is followed by
// exactly N bytes of tuple data.
func (d *Dispatcher) TableStreamSerializeMore(tableID, streamTypeOrdinal, capacity uint32) (SerializeResult, error) {
	w := d.beginCommand(wire.CmdTableStreamSerializeMore)
	w.WriteUint32(tableID)
	w.WriteUint32(streamTypeOrdinal)
	w.WriteUint32(capacity)
	if err := d.t.WriteFrame(d.fb.Payload()); err != nil {
		return SerializeResult{}, fmt.Errorf("dispatch: write frame: %w", err)
	}
	r := reply.New(d.t, d.coordinator, d.observer)
	if err := r.Await(); err != nil {
		return SerializeResult{}, err
	}

	lenBytes, err := d.t.ReadExact(4)
	if err != nil {
		return SerializeResult{}, fmt.Errorf("dispatch: read serialize-more length: %w", err)
	}
	length := int32(wire.Uint32(lenBytes))
	switch {
	case length < 0:
		return SerializeResult{}, fmt.Errorf("dispatch: table stream serialize error (length %d)", length)
	case length == 0:
		return SerializeResult{EOF: true}, nil
	default:
		data, err := d.t.ReadExact(int(length))
		if err != nil {
			return SerializeResult{}, fmt.Errorf("dispatch: read serialize-more body: %w", err)
		}
		return SerializeResult{Data: data}, nil
	}
}

// ExportActionResult is ExportAction's status-less reply: a negative
// Offset reports an EE-side error with no further bytes to read; a
// non-negative Offset is followed by a poll payload only when the
// request asked for one.
type ExportActionResult struct {
	Offset int64
	Data   []byte
}

// ExportAction drives export stream bookkeeping: ack/poll/reset/sync
// flags, an ack offset, a sequence number, and a table id. Uniquely
// among every command on this wire, its reply carries no leading
// status byte — the EE's export subsystem predates the status-byte
// convention and this asymmetry is preserved rather than normalized.
func (d *Dispatcher) ExportAction(ack, poll, reset, sync bool, ackOffset, seqNo uint64, tableID uint64) (ExportActionResult, error) {
	w := d.beginCommand(wire.CmdExportAction)
	w.WriteUint32(boolU32(ack))
	w.WriteUint32(boolU32(poll))
	w.WriteUint32(boolU32(reset))
	w.WriteUint32(boolU32(sync))
	w.WriteUint64(ackOffset)
	w.WriteUint64(seqNo)
	w.WriteUint64(tableID)

	if err := d.t.WriteFrame(d.fb.Payload()); err != nil {
		return ExportActionResult{}, fmt.Errorf("dispatch: write frame: %w", err)
	}

	offsetBytes, err := d.t.ReadExact(8)
	if err != nil {
		return ExportActionResult{}, fmt.Errorf("dispatch: read export result offset: %w", err)
	}
	offset := int64(wire.Uint64(offsetBytes))
	result := ExportActionResult{Offset: offset}
	if offset < 0 || !poll {
		return result, nil
	}

	sizeBytes, err := d.t.ReadExact(4)
	if err != nil {
		return ExportActionResult{}, fmt.Errorf("dispatch: read export poll size: %w", err)
	}
	size := wire.Uint32(sizeBytes)
	if size == 0 {
		return result, nil
	}
	data, err := d.t.ReadExact(int(size))
	if err != nil {
		return ExportActionResult{}, fmt.Errorf("dispatch: read export poll payload: %w", err)
	}
	result.Data = data
	return result, nil
}

func boolU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// RecoveryMessage forwards a raw recovery message to the EE.
func (d *Dispatcher) RecoveryMessage(msg []byte) error {
	w := d.beginCommand(wire.CmdRecoveryMessage)
	w.WriteUint32(uint32(len(msg)))
	w.WriteBytes(msg)
	return d.send()
}

// TableHashCode returns the EE's hash of a table's contents, used to
// detect replica divergence.
func (d *Dispatcher) TableHashCode(tableID uint32) (uint64, error) {
	w := d.beginCommand(wire.CmdTableHashCode)
	w.WriteUint32(tableID)

	if err := d.t.WriteFrame(d.fb.Payload()); err != nil {
		return 0, fmt.Errorf("dispatch: write frame: %w", err)
	}
	r := reply.New(d.t, d.coordinator, d.observer)
	if err := r.Await(); err != nil {
		return 0, err
	}
	hashBytes, err := d.t.ReadExact(8)
	if err != nil {
		return 0, fmt.Errorf("dispatch: read hash code: %w", err)
	}
	return wire.Uint64(hashBytes), nil
}

// Hashinate computes which partition a single parameter value hashes
// to under the given partition count.
func (d *Dispatcher) Hashinate(partitionCount uint32, value []byte) (uint32, error) {
	w := d.beginCommand(wire.CmdHashinate)
	w.WriteUint32(partitionCount)
	w.WriteBytes(value)

	if err := d.t.WriteFrame(d.fb.Payload()); err != nil {
		return 0, fmt.Errorf("dispatch: write frame: %w", err)
	}
	r := reply.New(d.t, d.coordinator, d.observer)
	if err := r.Await(); err != nil {
		return 0, err
	}
	partitionBytes, err := d.t.ReadExact(4)
	if err != nil {
		return 0, fmt.Errorf("dispatch: read partition: %w", err)
	}
	return wire.Uint32(partitionBytes), nil
}
