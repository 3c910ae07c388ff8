package reply

import (
	"fmt"

	"github.com/ehrlich-b/eeipc/internal/interfaces"
	"github.com/ehrlich-b/eeipc/internal/wire"
)

// decodeCrash parses a crash message body: reason string, source
// file, line number, and a vector of stack-trace strings, each
// length-prefixed UTF-8.
func decodeCrash(msg []byte) (interfaces.CrashReport, error) {
	r := wire.NewReader(msg)

	reason, err := readLPString(r)
	if err != nil {
		return interfaces.CrashReport{}, fmt.Errorf("reason: %w", err)
	}
	file, err := readLPString(r)
	if err != nil {
		return interfaces.CrashReport{}, fmt.Errorf("file: %w", err)
	}
	line, err := r.ReadUint32()
	if err != nil {
		return interfaces.CrashReport{}, fmt.Errorf("line: %w", err)
	}
	n, err := r.ReadUint32()
	if err != nil {
		return interfaces.CrashReport{}, fmt.Errorf("trace count: %w", err)
	}

	traces := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		trace, err := readLPString(r)
		if err != nil {
			return interfaces.CrashReport{}, fmt.Errorf("trace[%d]: %w", i, err)
		}
		traces = append(traces, trace)
	}

	return interfaces.CrashReport{
		Reason: reason,
		File:   file,
		Line:   int32(line),
		Traces: traces,
	}, nil
}

// readLPString reads a 4-byte length followed by that many bytes of
// UTF-8. Unlike some legacy readers that assign into a trace array
// before its backing bytes are fully read, this always reads a
// string's bytes fully before decoding them.
func readLPString(r *wire.Reader) (string, error) {
	length, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	b, err := r.ReadBytes(int(length))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
