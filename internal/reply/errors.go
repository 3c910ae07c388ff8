package reply

import (
	"fmt"

	"github.com/ehrlich-b/eeipc/internal/interfaces"
)

// GenericEEError is returned when the EE signals a non-success,
// non-exception, non-crash status with a zero-length exception body —
// there is nothing to decode beyond the status byte itself.
type GenericEEError struct {
	Status byte
}

func (e *GenericEEError) Error() string {
	return fmt.Sprintf("reply: generic EE error (status %d)", e.Status)
}

// EEException carries a typed exception payload the EE serialized
// alongside a non-success status: a 4-byte self-length followed by an
// EE-defined exception deserializer payload. This package does not
// interpret the payload further; callers that need the exception type
// and fields decode Raw themselves.
type EEException struct {
	Status byte
	Raw    []byte
}

func (e *EEException) Error() string {
	return fmt.Sprintf("reply: EE exception (status %d, %d bytes)", e.Status, len(e.Raw))
}

// CrashError reports that the EE reported a fatal crash. The
// coordinator's FatalCrash has already been invoked by the time this
// error is returned; callers typically treat it as terminal for the
// whole driver.
type CrashError struct {
	Report interfaces.CrashReport
}

func (e *CrashError) Error() string {
	return fmt.Sprintf("reply: EE crash: %s (%s:%d)", e.Report.Reason, e.Report.File, e.Report.Line)
}
