// Package eeipc drives an out-of-process Execution Engine over the
// EE-IPC binary protocol: it launches (or attaches to) the EE, performs
// the Initialize handshake, and exposes one method per EE operation,
// each serializing its request, flushing it, and decoding the EE's
// reply — servicing any mid-reply dependency callbacks along the way.
package eeipc

import (
	"context"
	"fmt"
	"strings"

	"github.com/ehrlich-b/eeipc/internal/buffer"
	"github.com/ehrlich-b/eeipc/internal/constants"
	"github.com/ehrlich-b/eeipc/internal/dispatch"
	"github.com/ehrlich-b/eeipc/internal/interfaces"
	"github.com/ehrlich-b/eeipc/internal/logging"
	"github.com/ehrlich-b/eeipc/internal/supervisor"
	"github.com/ehrlich-b/eeipc/internal/transport"
)

// Driver mediates between a coordinator and one EE process instance.
// It is not safe for concurrent use: the protocol is strictly
// synchronous and serializes all commands through one socket, matching
// the single-threaded-per-instance scheduling model of the EE itself.
type Driver struct {
	ClusterIndex uint32
	SiteID       uint32
	PartitionID  uint32
	HostID       uint32
	Hostname     string

	ctx    context.Context
	cancel context.CancelFunc

	launchMode supervisor.LaunchMode
	sup        *supervisor.Supervisor
	conn       *transport.Transport
	fb         *buffer.FrameBuffer
	dispatcher *dispatch.Dispatcher

	coordinator interfaces.Coordinator
	observer    interfaces.Observer
	logger      interfaces.Logger
	metrics     *Metrics
}

// Options configures a new Driver.
type Options struct {
	// Context is the parent of the driver's internal context, which
	// Release cancels; if nil, context.Background() is used. Cancelling
	// it does not close the driver.
	Context context.Context

	// Logger receives child-process output and internal diagnostics.
	// Defaults to the package-level logging.Default().
	Logger interfaces.Logger

	// Coordinator supplies dependency tables and receives crash
	// reports. Required — a Driver with no coordinator cannot service
	// RETRIEVE_DEPENDENCY callbacks.
	Coordinator interfaces.Coordinator

	// Observer receives protocol-level metrics events. Defaults to a
	// MetricsObserver backed by a fresh Metrics instance.
	Observer interfaces.Observer

	// LaunchMode selects how the EE process is obtained. The zero value
	// is supervisor.External.
	LaunchMode supervisor.LaunchMode

	// EEPath overrides the EE binary path; defaults to $EEIPC_PATH or
	// constants.DefaultEEPath.
	EEPath string

	// Identity fields forwarded to Initialize.
	ClusterIndex uint32
	SiteID       uint32
	PartitionID  uint32
	HostID       uint32
	Hostname     string
	LogLevels    uint64
}

// New launches (or attaches to, for supervisor.External) the EE,
// completes the handshake, dials the transport, and runs Initialize.
// The returned Driver is ready to accept commands.
func New(opts Options) (*Driver, error) {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Coordinator == nil {
		return nil, fmt.Errorf("eeipc: New: Coordinator is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.With("cluster", opts.ClusterIndex, "site", opts.SiteID, "partition", opts.PartitionID, "host", opts.HostID)
	metrics := NewMetrics()
	observer := opts.Observer
	if observer == nil {
		observer = NewMetricsObserver(metrics)
	}

	sup, err := supervisor.New(supervisor.Config{
		Mode:     opts.LaunchMode,
		EEPath:   opts.EEPath,
		SiteID:   opts.SiteID,
		Logger:   logger,
		Observer: observer,
	})
	if err != nil {
		return nil, fmt.Errorf("eeipc: New: %w", err)
	}
	if err := sup.WaitForHandshake(constants.HandshakeTimeout); err != nil {
		return nil, fmt.Errorf("eeipc: New: %w", err)
	}

	conn, err := transport.Dial(sup.Port())
	if err != nil {
		sup.Shutdown()
		return nil, fmt.Errorf("eeipc: New: %w", err)
	}

	fb := buffer.New(constants.DefaultFrameBufferSize)
	dctx, cancel := context.WithCancel(opts.Context)

	d := &Driver{
		ClusterIndex: opts.ClusterIndex,
		SiteID:       opts.SiteID,
		PartitionID:  opts.PartitionID,
		HostID:       opts.HostID,
		Hostname:     opts.Hostname,
		ctx:          dctx,
		cancel:       cancel,
		launchMode:   opts.LaunchMode,
		sup:          sup,
		conn:         conn,
		fb:           fb,
		dispatcher:   dispatch.New(conn, fb, opts.Coordinator, observer),
		coordinator:  opts.Coordinator,
		observer:     observer,
		logger:       logger,
		metrics:      metrics,
	}

	if err := d.Initialize(opts.ClusterIndex, opts.SiteID, opts.PartitionID, opts.HostID, opts.LogLevels, opts.Hostname); err != nil {
		d.Release()
		return nil, err
	}

	return d, nil
}

// Metrics returns the driver's metrics instance. New always creates
// one; when the caller supplied its own Observer, nothing records into
// it.
func (d *Driver) Metrics() *Metrics { return d.metrics }

// MetricsSnapshot returns a point-in-time snapshot of the driver's
// metrics, or a zero value if Metrics is nil.
func (d *Driver) MetricsSnapshot() MetricsSnapshot {
	if d.metrics == nil {
		return MetricsSnapshot{}
	}
	return d.metrics.Snapshot()
}

// Release closes the socket (unblocking any in-flight I/O), waits for
// the child to exit, and joins the supervisor's output reader. It is
// idempotent-safe to call once; calling it again after a successful
// release is a no-op aside from re-closing an already-closed socket.
func (d *Driver) Release() error {
	if d.cancel != nil {
		d.cancel()
	}
	if d.metrics != nil {
		d.metrics.Stop()
	}
	var firstErr error
	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			firstErr = err
		}
	}
	if d.sup != nil {
		if err := d.sup.Shutdown(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.launchMode == supervisor.Instrumented && firstErr == nil {
		if leaks := supervisor.InstrumentationErrors(); len(leaks) > 0 {
			firstErr = &Error{
				Op:   "Release",
				Code: CodeInstrumentationError,
				Msg:  fmt.Sprintf("%d instrumentation diagnostic(s) reported: %s", len(leaks), strings.Join(leaks, "; ")),
			}
		}
	}
	return firstErr
}
