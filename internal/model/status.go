package model

import (
	"errors"
	"fmt"
)

// ErrUnknownStatus is returned when a status or role string is not one of
// the declared constants.
var ErrUnknownStatus = errors.New("unknown status")

// parseEnum accepts the empty string (absent value, filled in later by
// normalization) and any of the allowed values.
func parseEnum[T ~string](kind, raw string, allowed ...T) (T, error) {
	if raw == "" {
		return T(""), nil
	}
	for _, a := range allowed {
		if string(a) == raw {
			return a, nil
		}
	}
	return T(""), fmt.Errorf("%s %q: %w", kind, raw, ErrUnknownStatus)
}

// TaskStatus is the lifecycle state of a care task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
)

// UnmarshalText rejects statuses outside the declared set.
func (s *TaskStatus) UnmarshalText(b []byte) error {
	v, err := parseEnum("task status", string(b), TaskPending, TaskInProgress, TaskCompleted)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// MedicationStatus is the administration state of a scheduled dose.
type MedicationStatus string

const (
	MedicationPending MedicationStatus = "pending"
	MedicationGiven   MedicationStatus = "given"
	MedicationMissed  MedicationStatus = "missed"
	MedicationDelayed MedicationStatus = "delayed"
)

// UnmarshalText rejects statuses outside the declared set.
func (s *MedicationStatus) UnmarshalText(b []byte) error {
	v, err := parseEnum("medication status", string(b),
		MedicationPending, MedicationGiven, MedicationMissed, MedicationDelayed)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// PatientStatus is the clinical condition shown on the ward board.
type PatientStatus string

const (
	PatientStable      PatientStatus = "stable"
	PatientObservation PatientStatus = "observation"
	PatientCritical    PatientStatus = "critical"
	PatientDischarged  PatientStatus = "discharged"
)

// UnmarshalText rejects statuses outside the declared set.
func (s *PatientStatus) UnmarshalText(b []byte) error {
	v, err := parseEnum("patient status", string(b),
		PatientStable, PatientObservation, PatientCritical, PatientDischarged)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ResourceStatus is the availability of a bed, device or stock item.
type ResourceStatus string

const (
	ResourceAvailable   ResourceStatus = "available"
	ResourceInUse       ResourceStatus = "in_use"
	ResourceMaintenance ResourceStatus = "maintenance"
	ResourceOutOfStock  ResourceStatus = "out_of_stock"
)

// UnmarshalText rejects statuses outside the declared set.
func (s *ResourceStatus) UnmarshalText(b []byte) error {
	v, err := parseEnum("resource status", string(b),
		ResourceAvailable, ResourceInUse, ResourceMaintenance, ResourceOutOfStock)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// AppointmentStatus is the booking state of an appointment.
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentNoShow    AppointmentStatus = "no_show"
)

// UnmarshalText rejects statuses outside the declared set.
func (s *AppointmentStatus) UnmarshalText(b []byte) error {
	v, err := parseEnum("appointment status", string(b),
		AppointmentScheduled, AppointmentConfirmed, AppointmentCompleted,
		AppointmentCancelled, AppointmentNoShow)
	if err != nil {
		return err
	}
	*s = v
	return nil
}
