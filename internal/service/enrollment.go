package service

import (
	"context"

	"iclock-gateway/internal/domain"
	"iclock-gateway/internal/protocol"
	"iclock-gateway/internal/repository"

	"go.uber.org/zap"
)

// Enrollment merges incoming fingerprint/card/photo fragments into employee
// enrollment records. Fragments are idempotent merge-upserts by employee id;
// fields a fragment does not carry stay untouched.
type Enrollment struct {
	employees repository.EmployeesRepo
	logger    *zap.Logger
}

func NewEnrollment(employees repository.EmployeesRepo, logger *zap.Logger) *Enrollment {
	return &Enrollment{employees: employees, logger: logger}
}

// Apply processes a batch of enrollment lines from one device. Malformed
// lines drop silently; per-line storage failures drop that line only.
func (e *Enrollment) Apply(ctx context.Context, device *domain.Device, lines []string) {
	for _, line := range lines {
		frag, ok := protocol.ParseEnrollmentLine(line)
		if !ok {
			continue
		}
		if err := e.ApplyFragment(ctx, frag); err != nil {
			e.logger.Error("enrollment fragment failed",
				zap.String("serial_number", device.SerialNumber),
				zap.String("employee_id", frag.EmployeeID),
				zap.String("subtype", frag.Subtype),
				zap.Error(err),
			)
		}
	}
}

// ApplyFragment upserts one parsed fragment. The codec already rejected
// fragments missing their subtype's mandatory field, but the check is cheap
// enough to repeat for callers constructing fragments directly.
func (e *Enrollment) ApplyFragment(ctx context.Context, frag protocol.EnrollmentFragment) error {
	if frag.EmployeeID == "" {
		return nil
	}

	var patch domain.EmployeePatch
	truth := true
	switch frag.Subtype {
	case protocol.FragmentFingerprint:
		if frag.FingerprintID == "" {
			return nil
		}
		patch.HasFingerprint = &truth
		fid := frag.FingerprintID
		patch.FingerprintID = &fid
		if frag.FingerprintTemplate != "" {
			tmpl := frag.FingerprintTemplate
			patch.FingerprintTemplate = &tmpl
		}
	case protocol.FragmentUser:
		if frag.CardNumber == "" {
			return nil
		}
		card := frag.CardNumber
		patch.CardNumber = &card
	case protocol.FragmentPhoto:
		if frag.Photo == "" {
			return nil
		}
		patch.HasPhoto = &truth
		photo := frag.Photo
		patch.Photo = &photo
	default:
		return nil
	}

	_, err := e.employees.Upsert(ctx, frag.EmployeeID, patch)
	return err
}
