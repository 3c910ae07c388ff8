// Package wire defines the EE-IPC binary protocol: command codes, reply
// status codes, and the big-endian encode/decode helpers shared by the
// dispatcher and the reply reader.
//
// All multi-byte integers on the wire are big-endian. Outbound frames
// carry a leading length that includes itself; inbound replies are
// status-byte first and use field-local length prefixes that exclude
// themselves, except where a command's reply shape says otherwise
// (ExportAction has no status byte at all).
package wire

// Command codes. Wire order is fixed by the EE and must not be
// reordered or renumbered.
const (
	CmdInitialize               uint32 = 0
	CmdLoadCatalog              uint32 = 1
	CmdUpdateCatalog            uint32 = 2
	CmdQuiesce                  uint32 = 3
	CmdTick                     uint32 = 4
	CmdPlanFragment             uint32 = 5
	CmdQueryPlanFragments       uint32 = 6
	CmdLoadTable                uint32 = 7
	CmdReleaseUndoToken         uint32 = 8
	CmdUndoUndoToken            uint32 = 9
	CmdCustomPlanFragment       uint32 = 10
	CmdGetStats                 uint32 = 11
	CmdSetLogLevels             uint32 = 12
	CmdActivateTableStream      uint32 = 13
	CmdTableStreamSerializeMore uint32 = 14
	CmdExportAction             uint32 = 15
	CmdRecoveryMessage          uint32 = 16
	CmdTableHashCode            uint32 = 17
	CmdHashinate                uint32 = 18
)

// commandNames maps each wire command code to the name it should
// appear under in logs and metrics, independent of the Go method name
// a caller used to reach it.
var commandNames = map[uint32]string{
	CmdInitialize:               "Initialize",
	CmdLoadCatalog:              "LoadCatalog",
	CmdUpdateCatalog:            "UpdateCatalog",
	CmdQuiesce:                  "Quiesce",
	CmdTick:                     "Tick",
	CmdPlanFragment:             "PlanFragment",
	CmdQueryPlanFragments:       "QueryPlanFragments",
	CmdLoadTable:                "LoadTable",
	CmdReleaseUndoToken:         "ReleaseUndoToken",
	CmdUndoUndoToken:            "UndoUndoToken",
	CmdCustomPlanFragment:       "CustomPlanFragment",
	CmdGetStats:                 "GetStats",
	CmdSetLogLevels:             "SetLogLevels",
	CmdActivateTableStream:      "ActivateTableStream",
	CmdTableStreamSerializeMore: "TableStreamSerializeMore",
	CmdExportAction:             "ExportAction",
	CmdRecoveryMessage:          "RecoveryMessage",
	CmdTableHashCode:            "TableHashCode",
	CmdHashinate:                "Hashinate",
}

// CommandName returns the human-readable name of a wire command code,
// or "unknown" if code isn't one of the documented commands.
func CommandName(code uint32) string {
	if name, ok := commandNames[code]; ok {
		return name
	}
	return "unknown"
}

// Reply status codes, the first byte of every reply (ExportAction
// excepted — its reply carries no status byte at all).
const (
	StatusSuccess            byte = 0
	StatusGenericError       byte = 1
	StatusRetrieveDependency byte = 100
	StatusDependencyFound    byte = 101
	StatusDependencyNotFound byte = 102
	StatusCrashEE            byte = 104
)
