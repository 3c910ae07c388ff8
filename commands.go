package eeipc

import (
	"time"

	"github.com/ehrlich-b/eeipc/internal/dispatch"
	"github.com/ehrlich-b/eeipc/internal/wire"
)

// observe times a command, reports it to the driver's observer under
// the given wire command code, and logs its outcome tagged with the
// command name and latency.
func (d *Driver) observe(code uint32, fn func() error) error {
	start := time.Now()
	err := fn()
	latencyNs := uint64(time.Since(start).Nanoseconds())
	d.observer.ObserveCommand(code, latencyNs, err == nil)
	if d.logger != nil {
		if err != nil {
			d.logger.Warn("command failed", "cmd", wire.CommandName(code), "latency_ns", latencyNs, "error", err)
		} else {
			d.logger.Debug("command completed", "cmd", wire.CommandName(code), "latency_ns", latencyNs)
		}
	}
	return err
}

// Initialize configures the EE with its partition/host identity and
// log level vector. Driver.New already performs this once during
// construction; calling it again re-initializes the same EE instance.
func (d *Driver) Initialize(clusterIdx, siteID, partitionID, hostID uint32, logLevels uint64, hostname string) error {
	err := d.observe(wire.CmdInitialize, func() error {
		return d.dispatcher.Initialize(clusterIdx, siteID, partitionID, hostID, logLevels, hostname)
	})
	if err != nil {
		return WrapError("Initialize", err)
	}
	return nil
}

// LoadCatalog installs a full catalog into the EE.
func (d *Driver) LoadCatalog(catalog []byte) error {
	err := d.observe(wire.CmdLoadCatalog, func() error {
		return d.dispatcher.LoadCatalog(catalog)
	})
	if err != nil {
		return WrapError("LoadCatalog", err)
	}
	return nil
}

// UpdateCatalog applies a versioned catalog diff.
func (d *Driver) UpdateCatalog(version uint32, diff []byte) error {
	err := d.observe(wire.CmdUpdateCatalog, func() error {
		return d.dispatcher.UpdateCatalog(version, diff)
	})
	if err != nil {
		return WrapError("UpdateCatalog", err)
	}
	return nil
}

// Tick advances the EE's wall-clock time and last-committed transaction id.
func (d *Driver) Tick(time, lastCommittedTxnID uint64) error {
	err := d.observe(wire.CmdTick, func() error {
		return d.dispatcher.Tick(time, lastCommittedTxnID)
	})
	if err != nil {
		return WrapError("Tick", err)
	}
	return nil
}

// Quiesce flushes buffered export data up to lastCommittedTxnID.
func (d *Driver) Quiesce(lastCommittedTxnID uint64) error {
	err := d.observe(wire.CmdQuiesce, func() error {
		return d.dispatcher.Quiesce(lastCommittedTxnID)
	})
	if err != nil {
		return WrapError("Quiesce", err)
	}
	return nil
}

// PlanFragment executes a single precompiled plan fragment.
func (d *Driver) PlanFragment(txnID, lastCommittedTxnID, undoToken, planFragmentID uint64, outputDepID, inputDepID uint32, params []byte) (dispatch.DependencySet, error) {
	var set dispatch.DependencySet
	err := d.observe(wire.CmdPlanFragment, func() error {
		var innerErr error
		set, innerErr = d.dispatcher.PlanFragment(txnID, lastCommittedTxnID, undoToken, planFragmentID, outputDepID, inputDepID, params)
		return innerErr
	})
	if err != nil {
		return dispatch.DependencySet{}, WrapError("PlanFragment", err)
	}
	return set, nil
}

// CustomPlanFragment executes an ad hoc plan string.
func (d *Driver) CustomPlanFragment(txnID, lastCommittedTxnID, undoToken uint64, outputDepID, inputDepID uint32, planString []byte) (dispatch.ResultTableSet, error) {
	var set dispatch.ResultTableSet
	err := d.observe(wire.CmdCustomPlanFragment, func() error {
		var innerErr error
		set, innerErr = d.dispatcher.CustomPlanFragment(txnID, lastCommittedTxnID, undoToken, outputDepID, inputDepID, planString)
		return innerErr
	})
	if err != nil {
		return dispatch.ResultTableSet{}, WrapError("CustomPlanFragment", err)
	}
	return set, nil
}

// QueryPlanFragments executes N precompiled fragments in one round-trip.
func (d *Driver) QueryPlanFragments(txnID, lastCommittedTxnID, undoToken uint64, fragmentIDs []uint64, inputDepIDs, outputDepIDs []uint32, parameterSets [][]byte) (dispatch.ResultTableSet, error) {
	var set dispatch.ResultTableSet
	err := d.observe(wire.CmdQueryPlanFragments, func() error {
		var innerErr error
		set, innerErr = d.dispatcher.QueryPlanFragments(txnID, lastCommittedTxnID, undoToken, fragmentIDs, inputDepIDs, outputDepIDs, parameterSets)
		return innerErr
	})
	if err != nil {
		return dispatch.ResultTableSet{}, WrapError("QueryPlanFragments", err)
	}
	return set, nil
}

// LoadTable bulk-loads a serialized table outside of fragment execution.
func (d *Driver) LoadTable(tableID uint32, txnID, lastCommittedTxnID, undoToken uint64, allowExport bool, table []byte) error {
	err := d.observe(wire.CmdLoadTable, func() error {
		return d.dispatcher.LoadTable(tableID, txnID, lastCommittedTxnID, undoToken, allowExport, table)
	})
	if err != nil {
		return WrapError("LoadTable", err)
	}
	return nil
}

// GetStats retrieves one statistics table.
func (d *Driver) GetStats(selectorOrdinal uint32, interval bool, now uint64, locators []uint32) ([]byte, error) {
	var msg []byte
	err := d.observe(wire.CmdGetStats, func() error {
		var innerErr error
		msg, innerErr = d.dispatcher.GetStats(selectorOrdinal, interval, now, locators)
		return innerErr
	})
	if err != nil {
		return nil, WrapError("GetStats", err)
	}
	return msg, nil
}

// ReleaseUndoToken releases all undo state at or below undoToken.
func (d *Driver) ReleaseUndoToken(undoToken uint64) error {
	err := d.observe(wire.CmdReleaseUndoToken, func() error {
		return d.dispatcher.ReleaseUndoToken(undoToken)
	})
	if err != nil {
		return WrapError("ReleaseUndoToken", err)
	}
	return nil
}

// UndoUndoToken reverses all work performed at or above undoToken.
func (d *Driver) UndoUndoToken(undoToken uint64) error {
	err := d.observe(wire.CmdUndoUndoToken, func() error {
		return d.dispatcher.UndoUndoToken(undoToken)
	})
	if err != nil {
		return WrapError("UndoUndoToken", err)
	}
	return nil
}

// SetLogLevels updates the EE's per-component log level vector.
func (d *Driver) SetLogLevels(logLevels uint64) error {
	err := d.observe(wire.CmdSetLogLevels, func() error {
		return d.dispatcher.SetLogLevels(logLevels)
	})
	if err != nil {
		return WrapError("SetLogLevels", err)
	}
	return nil
}

// ActivateTableStream begins streaming a table in the given stream type.
func (d *Driver) ActivateTableStream(tableID, streamTypeOrdinal uint32) error {
	err := d.observe(wire.CmdActivateTableStream, func() error {
		return d.dispatcher.ActivateTableStream(tableID, streamTypeOrdinal)
	})
	if err != nil {
		return WrapError("ActivateTableStream", err)
	}
	return nil
}

// TableStreamSerializeMore pulls the next chunk of an active table stream.
func (d *Driver) TableStreamSerializeMore(tableID, streamTypeOrdinal, capacity uint32) (dispatch.SerializeResult, error) {
	var result dispatch.SerializeResult
	err := d.observe(wire.CmdTableStreamSerializeMore, func() error {
		var innerErr error
		result, innerErr = d.dispatcher.TableStreamSerializeMore(tableID, streamTypeOrdinal, capacity)
		return innerErr
	})
	if err != nil {
		return dispatch.SerializeResult{}, WrapError("TableStreamSerializeMore", err)
	}
	return result, nil
}

// ExportAction drives export stream bookkeeping. Its reply carries no
// status byte, so failures here are reported as Go errors rather than
// EEException/GenericEEError — there is no status byte to classify.
func (d *Driver) ExportAction(ack, poll, reset, sync bool, ackOffset, seqNo, tableID uint64) (dispatch.ExportActionResult, error) {
	var result dispatch.ExportActionResult
	err := d.observe(wire.CmdExportAction, func() error {
		var innerErr error
		result, innerErr = d.dispatcher.ExportAction(ack, poll, reset, sync, ackOffset, seqNo, tableID)
		return innerErr
	})
	if err != nil {
		return dispatch.ExportActionResult{}, WrapError("ExportAction", err)
	}
	return result, nil
}

// RecoveryMessage forwards a raw recovery message to the EE.
func (d *Driver) RecoveryMessage(msg []byte) error {
	err := d.observe(wire.CmdRecoveryMessage, func() error {
		return d.dispatcher.RecoveryMessage(msg)
	})
	if err != nil {
		return WrapError("RecoveryMessage", err)
	}
	return nil
}

// TableHashCode returns the EE's hash of a table's contents.
func (d *Driver) TableHashCode(tableID uint32) (uint64, error) {
	var hash uint64
	err := d.observe(wire.CmdTableHashCode, func() error {
		var innerErr error
		hash, innerErr = d.dispatcher.TableHashCode(tableID)
		return innerErr
	})
	if err != nil {
		return 0, WrapError("TableHashCode", err)
	}
	return hash, nil
}

// Hashinate computes which partition a single parameter value hashes to.
func (d *Driver) Hashinate(partitionCount uint32, value []byte) (uint32, error) {
	var partition uint32
	err := d.observe(wire.CmdHashinate, func() error {
		var innerErr error
		partition, innerErr = d.dispatcher.Hashinate(partitionCount, value)
		return innerErr
	})
	if err != nil {
		return 0, WrapError("Hashinate", err)
	}
	return partition, nil
}
