package eeipc

import "github.com/ehrlich-b/eeipc/internal/constants"

// Re-exported for callers that don't want to import internal/constants directly.
const (
	DefaultFrameBufferSize = constants.DefaultFrameBufferSize
	BasePort               = constants.BasePort
	EnvEEPath              = constants.EnvEEPath
	DefaultEEPath          = constants.DefaultEEPath
	HandshakeTimeout       = constants.HandshakeTimeout
	ShutdownGrace          = constants.ShutdownGrace
)
