// Package protocol implements the ZKTeco iClock wire format: tab/line
// delimited ASCII records pushed over HTTP. All functions are pure; malformed
// input degrades to a dropped unit, never an error the caller must handle.
package protocol

import (
	"net/url"
	"strconv"
	"strings"
)

// Enrollment fragment subtypes, selected by the first token of a line.
const (
	FragmentFingerprint = "fingerprint"
	FragmentUser        = "user"
	FragmentPhoto       = "photo"
)

const (
	prefixFingerprint = "FP PIN="
	prefixUser        = "USER PIN="
	prefixPhoto       = "BIOPHOTO PIN="
)

// AttendanceRecord is one parsed attendance line. Fields are positional:
// employee id, timestamp, verification code (unused), then up to four
// optional integer codes. Codes are nil when absent or non-numeric.
type AttendanceRecord struct {
	EmployeeID string
	Timestamp  string
	Status2    *int
	Status3    *int
	Status4    *int
	Status5    *int
}

// EnrollmentFragment is one parsed enrollment line. Only the fields the
// line carried are set; merging is the recorder's job.
type EnrollmentFragment struct {
	Subtype             string
	EmployeeID          string
	FingerprintID       string
	FingerprintTemplate string
	CardNumber          string
	Photo               string
}

// CommandResult is a decoded command-result report body.
type CommandResult struct {
	CMD       string
	Return    string
	CommandID string
}

// SplitLines splits a push payload on any of \r\n, \r, \n and discards
// empty lines.
func SplitLines(raw string) []string {
	normalized := strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(raw)
	var lines []string
	for _, line := range strings.Split(normalized, "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// IsEnrollmentPayload classifies a push payload: enrollment if any line
// begins with an enrollment prefix, attendance otherwise.
func IsEnrollmentPayload(lines []string) bool {
	for _, line := range lines {
		if isEnrollmentLine(line) {
			return true
		}
	}
	return false
}

func isEnrollmentLine(line string) bool {
	return strings.HasPrefix(line, prefixFingerprint) ||
		strings.HasPrefix(line, prefixUser) ||
		strings.HasPrefix(line, prefixPhoto)
}

// ParseAttendanceLine parses one tab-separated attendance line. Lines with
// fewer than two fields are dropped (ok=false). Timestamp validity is the
// caller's concern; devices send zero or garbage timestamps for unset clocks.
func ParseAttendanceLine(line string) (AttendanceRecord, bool) {
	parts := strings.Split(line, "\t")
	if len(parts) < 2 {
		return AttendanceRecord{}, false
	}

	rec := AttendanceRecord{
		EmployeeID: strings.TrimSpace(parts[0]),
		Timestamp:  strings.TrimSpace(parts[1]),
	}
	if rec.EmployeeID == "" {
		return AttendanceRecord{}, false
	}

	rec.Status2 = optionalInt(parts, 3)
	rec.Status3 = optionalInt(parts, 4)
	rec.Status4 = optionalInt(parts, 5)
	rec.Status5 = optionalInt(parts, 6)
	return rec, true
}

func optionalInt(parts []string, idx int) *int {
	if idx >= len(parts) {
		return nil
	}
	v := strings.TrimSpace(parts[idx])
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

// ParseEnrollmentLine parses one enrollment line into a fragment. The first
// token selects the subtype and supplies the employee id; later tokens carry
// FID=, TMP=, Card=, Content= as applicable. Lines missing the employee id or
// the subtype's mandatory field are dropped (ok=false), matching device
// behavior of sending partial or future fields.
func ParseEnrollmentLine(line string) (EnrollmentFragment, bool) {
	parts := strings.Split(line, "\t")
	if len(parts) == 0 {
		return EnrollmentFragment{}, false
	}

	var frag EnrollmentFragment
	switch {
	case strings.HasPrefix(parts[0], prefixFingerprint):
		frag.Subtype = FragmentFingerprint
		frag.EmployeeID = strings.TrimPrefix(parts[0], prefixFingerprint)
	case strings.HasPrefix(parts[0], prefixUser):
		frag.Subtype = FragmentUser
		frag.EmployeeID = strings.TrimPrefix(parts[0], prefixUser)
	case strings.HasPrefix(parts[0], prefixPhoto):
		frag.Subtype = FragmentPhoto
		frag.EmployeeID = strings.TrimPrefix(parts[0], prefixPhoto)
	default:
		return EnrollmentFragment{}, false
	}

	for _, part := range parts[1:] {
		switch {
		case strings.HasPrefix(part, "FID="):
			frag.FingerprintID = strings.TrimPrefix(part, "FID=")
		case strings.HasPrefix(part, "TMP="):
			frag.FingerprintTemplate = strings.TrimPrefix(part, "TMP=")
		case strings.HasPrefix(part, "Card="):
			frag.CardNumber = strings.TrimPrefix(part, "Card=")
		case strings.HasPrefix(part, "Content="):
			frag.Photo = strings.TrimPrefix(part, "Content=")
		}
	}

	if frag.EmployeeID == "" {
		return EnrollmentFragment{}, false
	}
	switch frag.Subtype {
	case FragmentFingerprint:
		if frag.FingerprintID == "" {
			return EnrollmentFragment{}, false
		}
	case FragmentUser:
		if frag.CardNumber == "" {
			return EnrollmentFragment{}, false
		}
	case FragmentPhoto:
		if frag.Photo == "" {
			return EnrollmentFragment{}, false
		}
	}
	return frag, true
}

// DecodeCommandResult decodes a devicecmd body: key=value pairs joined by &,
// with stray line breaks stripped before URL decoding. A missing ID makes the
// report a no-op (ok=false).
func DecodeCommandResult(body string) (CommandResult, bool) {
	cleaned := strings.NewReplacer("\r", "", "\n", "").Replace(body)
	values, err := url.ParseQuery(cleaned)
	if err != nil {
		return CommandResult{}, false
	}

	res := CommandResult{
		CMD:       values.Get("CMD"),
		Return:    values.Get("Return"),
		CommandID: values.Get("ID"),
	}
	if res.CommandID == "" {
		return CommandResult{}, false
	}
	return res, true
}
