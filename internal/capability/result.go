package capability

// IOValue is one entry of a live snapshot as produced by the transport layer.
type IOValue struct {
	Val  int      `json:"val"`
	Type int      `json:"type"`
	V    *float64 `json:"v,omitempty"`
}

// IOSnapshot is the live IO data of one physical device. It is read-only to
// this module.
type IOSnapshot map[IOKey]IOValue

// Status tags the variant of a Result.
type Status int

// Status constants.
const (
	StatusSuccess Status = iota
	StatusWarning
	StatusError
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusWarning:
		return "warning"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Fallback reasons reported with StatusWarning.
const (
	ReasonDefaultMode = "no mode matched, used default"
	ReasonBaseConfig  = "no mode matched, used base configuration"
)

// Result is the outcome of one resolution. It is created per call and owned
// by the caller.
//
//   - Success: Platforms set, ActiveMode set for dynamic devices
//   - Warning: Platforms set from a fallback, Reason explains which
//   - Error:   Err set, Platforms nil
type Result struct {
	Status     Status
	Platforms  PlatformMap
	ActiveMode string
	Reason     string
	Err        error
}

// Success builds a successful Result.
func Success(platforms PlatformMap, activeMode string) Result {
	return Result{Status: StatusSuccess, Platforms: platforms, ActiveMode: activeMode}
}

// Warning builds a fallback Result.
func Warning(platforms PlatformMap, activeMode, reason string) Result {
	return Result{Status: StatusWarning, Platforms: platforms, ActiveMode: activeMode, Reason: reason}
}

// Failure builds an error Result.
func Failure(err error) Result {
	return Result{Status: StatusError, Err: err}
}

// OK reports whether the result carries platforms (Success or Warning).
func (r Result) OK() bool {
	return r.Status != StatusError
}

// Message returns the error text for Error results and the reason otherwise.
func (r Result) Message() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	return r.Reason
}
