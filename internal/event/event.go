// Package event defines the normalized error model shared by every
// source adapter, plus the classifier that deduplicates candidates
// across scan cycles.
package event

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
)

// Kind tags an event with the remediation family it belongs to.
type Kind string

const (
	KindMissingModule  Kind = "missing_module"
	KindTsconfigNoEmit Kind = "tsconfig_no_emit"
	KindRuntime        Kind = "runtime"
	KindNetwork        Kind = "network"
	KindUnknown        Kind = "unknown"

	typeErrorPrefix = "type_error:"
)

// TypeError builds the kind for a compiler diagnostic code, e.g.
// TypeError("TS2307") -> "type_error:TS2307".
func TypeError(code string) Kind {
	return Kind(typeErrorPrefix + code)
}

// IsTypeError reports whether the kind belongs to the compiler
// diagnostic family.
func (k Kind) IsTypeError() bool {
	return strings.HasPrefix(string(k), typeErrorPrefix)
}

// DiagnosticCode returns the TSxxxx subcode for a type_error kind,
// or "" for any other kind.
func (k Kind) DiagnosticCode() string {
	if !k.IsTypeError() {
		return ""
	}
	return strings.TrimPrefix(string(k), typeErrorPrefix)
}

// Event is one observed anomaly, normalized from whichever source
// reported it.
type Event struct {
	Fingerprint  string `json:"fingerprint"`
	Kind         Kind   `json:"kind"`
	Service      string `json:"service"` // owning service name
	File         string `json:"file,omitempty"`
	Line         int    `json:"line,omitempty"`
	Column       int    `json:"column,omitempty"`
	Message      string `json:"message,omitempty"`
	CreatedCycle int    `json:"created_cycle"`
}

// FixOutcome is the result of one remediation attempt.
type FixOutcome struct {
	Fingerprint     string `json:"fingerprint"`
	Applied         bool   `json:"applied"`
	RequiresRestart bool   `json:"requires_restart"`
	Detail          string `json:"detail,omitempty"`
}

// Declined builds the outcome for a strategy that recognized the kind
// but abstained because its precondition pattern did not match.
func Declined(fingerprint, detail string) FixOutcome {
	return FixOutcome{Fingerprint: fingerprint, Detail: detail}
}

// Fingerprint constructors. Formats must stay stable across scans of
// the same underlying condition; they intentionally match the original
// monitor so dedup behavior is observable-identical. In particular a
// compiler fingerprint is tied to (file, line, code): a fix that shifts
// later line numbers re-surfaces an outstanding error under a new
// fingerprint. Known limitation, kept on purpose.

// DiagnosticFingerprint identifies a compiler diagnostic block.
func DiagnosticFingerprint(file string, line int, code string) string {
	return fmt.Sprintf("%s:%d:%s", file, line, code)
}

// MissingModuleFingerprint identifies a module resolution failure.
func MissingModuleFingerprint(module string) string {
	return "missing:" + module
}

// NoEmitFingerprint identifies the per-service no-emit misconfiguration.
func NoEmitFingerprint(service string) string {
	return "no_output:" + service
}

// RuntimeFingerprint identifies a structured in-page error record.
func RuntimeFingerprint(id string) string {
	return "runtime:" + id
}

// ConsoleFingerprint identifies a captured console message by content,
// since console messages carry no stable identifier of their own.
func ConsoleFingerprint(service, message string) string {
	sum := sha256.Sum256([]byte(message))
	return fmt.Sprintf("console:%s:%x", service, sum[:8])
}

// RuntimeRecord is the tagged decoding of one in-page error payload.
// Payloads are dynamic JSON; anything missing the expected fields
// downgrades to KindUnknown rather than being accessed open-endedly.
type RuntimeRecord struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Source  string `json:"source"`
}

// DecodeRuntimeRecords parses the raw JSON array returned by the
// in-page error collector.
func DecodeRuntimeRecords(raw []byte) ([]RuntimeRecord, error) {
	var records []RuntimeRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode runtime records: %w", err)
	}
	return records, nil
}

// Classify maps a runtime record onto the event model.
func (r RuntimeRecord) Classify() Kind {
	if r.ID == "" || r.Message == "" {
		return KindUnknown
	}
	if strings.EqualFold(r.Type, "network") || strings.Contains(strings.ToLower(r.Message), "failed to fetch") {
		return KindNetwork
	}
	return KindRuntime
}
