// Package constants holds protocol and process tuning constants for the
// EE-IPC driver.
package constants

import "time"

// Frame buffer sizing. The dispatcher writes starting at offset 4
// (reserved for the outbound length prefix); the buffer grows by copy
// whenever a command payload would overflow it.
const (
	DefaultFrameBufferSize = 10 << 20 // 10 MiB
	FrameBufferMargin      = 4096     // extra slack added on regrowth
	FrameLengthPrefixSize  = 4
)

// BasePort is the first port handed out by the supervisor. The
// supervisor's port counter increments from here for every Supervisor
// created in this process, External ones included.
const BasePort = 21214

// Memory-checker defaults: leak check full, show reachable, sufficient
// caller-frame depth to resolve EE call sites, fail-on-error exit code.
const (
	MemcheckLeakCheck  = "--leak-check=full"
	MemcheckShowReach  = "--show-reachable=yes"
	MemcheckNumCallers = "--num-callers=32"
	MemcheckErrorExit  = "--error-exitcode=1"
	MemcheckLogFileArg = "--log-file="
	MemcheckQuietArg   = "--quiet"
)

// EnvEEPath names the environment variable carrying the absolute path
// to the EE binary. When unset, DefaultEEPath is assumed and the memory
// checker is invoked quietly with a per-site log file instead of
// streaming its output inline.
const (
	EnvEEPath     = "EEIPC_PATH"
	DefaultEEPath = "./eeipc-engine"
)

// HandshakeTimeout bounds how long the supervisor waits for the child's
// "listening" handshake line before declaring startup failed. This is a
// process-supervision concern, not a protocol-layer timeout; the wire
// protocol itself has none (the driver is purely synchronous).
const HandshakeTimeout = 30 * time.Second

// ShutdownGrace is how long Release waits for the child to exit after
// the socket is closed before giving up on a clean wait4.
const ShutdownGrace = 5 * time.Second
