package model

import (
	"time"

	"github.com/google/uuid"
)

type EncounterStatus string

const (
	EncounterStatusCheckedIn        EncounterStatus = "checked_in"
	EncounterStatusInRoom           EncounterStatus = "in_room"
	EncounterStatusVitalsComplete   EncounterStatus = "vitals_complete"
	EncounterStatusWithNurse        EncounterStatus = "with_nurse"
	EncounterStatusWaitingForDoctor EncounterStatus = "waiting_for_doctor"
	EncounterStatusWithDoctor       EncounterStatus = "with_doctor"
	EncounterStatusAtLab            EncounterStatus = "at_lab"
	EncounterStatusAtImaging        EncounterStatus = "at_imaging"
	EncounterStatusAtPharmacy       EncounterStatus = "at_pharmacy"
	EncounterStatusReadyForCheckout EncounterStatus = "ready_for_checkout"
	EncounterStatusCompleted        EncounterStatus = "completed"
	EncounterStatusCancelled        EncounterStatus = "cancelled"
)

// IsTerminal reports whether the status permits no further transitions.
func (s EncounterStatus) IsTerminal() bool {
	return s == EncounterStatusCompleted || s == EncounterStatusCancelled
}

type Department string

const (
	DepartmentLab      Department = "lab"
	DepartmentImaging  Department = "imaging"
	DepartmentPharmacy Department = "pharmacy"
)

// StatusFor maps a department to its informational status marker.
func (d Department) StatusFor() EncounterStatus {
	switch d {
	case DepartmentLab:
		return EncounterStatusAtLab
	case DepartmentImaging:
		return EncounterStatusAtImaging
	case DepartmentPharmacy:
		return EncounterStatusAtPharmacy
	}
	return ""
}

// Encounter is a single patient visit from check-in to completion or
// cancellation. Version is bumped on every write; a zero-row update under a
// stale version surfaces as a conflict.
type Encounter struct {
	Base
	PatientID         uuid.UUID       `db:"patient_id" json:"patient_id"`
	Status            EncounterStatus `db:"status" json:"status"`
	Version           int64           `db:"version" json:"version"`
	RoomID            *uuid.UUID      `db:"room_id" json:"room_id,omitempty"`
	BedID             *uuid.UUID      `db:"bed_id" json:"bed_id,omitempty"`
	CurrentDepartment *Department     `db:"current_department" json:"current_department,omitempty"`
	AssignedNurseID   *uuid.UUID      `db:"assigned_nurse_id" json:"assigned_nurse_id,omitempty"`
	AssignedDoctorID  *uuid.UUID      `db:"assigned_doctor_id" json:"assigned_doctor_id,omitempty"`

	CheckedInAt        *time.Time `db:"checked_in_at" json:"checked_in_at,omitempty"`
	RoomAssignedAt     *time.Time `db:"room_assigned_at" json:"room_assigned_at,omitempty"`
	VitalsCompletedAt  *time.Time `db:"vitals_completed_at" json:"vitals_completed_at,omitempty"`
	NurseStartedAt     *time.Time `db:"nurse_started_at" json:"nurse_started_at,omitempty"`
	DoctorWaitingAt    *time.Time `db:"doctor_waiting_at" json:"doctor_waiting_at,omitempty"`
	DoctorStartedAt    *time.Time `db:"doctor_started_at" json:"doctor_started_at,omitempty"`
	LabOrderedAt       *time.Time `db:"lab_ordered_at" json:"lab_ordered_at,omitempty"`
	ImagingOrderedAt   *time.Time `db:"imaging_ordered_at" json:"imaging_ordered_at,omitempty"`
	PharmacyOrderedAt  *time.Time `db:"pharmacy_ordered_at" json:"pharmacy_ordered_at,omitempty"`
	NurseReturnedAt    *time.Time `db:"nurse_returned_at" json:"nurse_returned_at,omitempty"`
	ReadyForCheckoutAt *time.Time `db:"ready_for_checkout_at" json:"ready_for_checkout_at,omitempty"`
	CompletedAt        *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt        *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

type CheckInRequest struct {
	PatientID uuid.UUID `json:"patient_id" validate:"required"`
}

type TransitionRequest struct {
	Target  EncounterStatus `json:"target" validate:"required"`
	ActorID uuid.UUID       `json:"actor_id" validate:"required"`
}

type AssignStaffRequest struct {
	NurseID  *uuid.UUID `json:"nurse_id"`
	DoctorID *uuid.UUID `json:"doctor_id"`
}

type RouteRequest struct {
	Department Department `json:"department" validate:"required,oneof=lab imaging pharmacy"`
	ActorID    uuid.UUID  `json:"actor_id" validate:"required"`
}

type EncounterFilters struct {
	Status           EncounterStatus
	AssignedNurseID  *uuid.UUID
	AssignedDoctorID *uuid.UUID
	PatientID        *uuid.UUID
}
