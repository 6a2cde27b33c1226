package model

import "time"

// Patient is an admitted patient shown on the active-patients board.
type Patient struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	MRN        string        `json:"mrn,omitempty"`
	Room       string        `json:"room,omitempty"`
	Status     PatientStatus `json:"status"`
	Diagnosis  string        `json:"diagnosis,omitempty"`
	AssignedTo string        `json:"assignedTo,omitempty"`
	AdmittedAt time.Time     `json:"admittedAt,omitempty"`
	LastUpdate time.Time     `json:"lastUpdate"`
}

// Task is a care task assigned to a member of staff.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	PatientID   string     `json:"patientId,omitempty"`
	AssignedTo  string     `json:"assignedTo,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	Status      TaskStatus `json:"status"`
	DueAt       *time.Time `json:"dueAt,omitempty"`
	LastUpdate  time.Time  `json:"lastUpdate"`
}

// Medication is a scheduled dose on a patient's medication chart.
type Medication struct {
	ID          string           `json:"id"`
	PatientID   string           `json:"patientId"`
	Name        string           `json:"name"`
	Dosage      string           `json:"dosage,omitempty"`
	Route       string           `json:"route,omitempty"`
	ScheduledAt time.Time        `json:"scheduledAt"`
	Status      MedicationStatus `json:"status"`
	LastUpdate  time.Time        `json:"lastUpdate"`
}

// Resource is an inventory item: a bed, a device or a consumable.
type Resource struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Category   string         `json:"category,omitempty"`
	Location   string         `json:"location,omitempty"`
	Quantity   int            `json:"quantity"`
	Status     ResourceStatus `json:"status"`
	LastUpdate time.Time      `json:"lastUpdate"`
}

// Appointment is a scheduled encounter between a patient and a clinician.
type Appointment struct {
	ID          string            `json:"id"`
	PatientID   string            `json:"patientId"`
	PatientName string            `json:"patientName,omitempty"`
	ClinicianID string            `json:"clinicianId,omitempty"`
	StartsAt    time.Time         `json:"startsAt"`
	Duration    int               `json:"durationMinutes,omitempty"`
	Status      AppointmentStatus `json:"status"`
	LastUpdate  time.Time         `json:"lastUpdate"`
}

// Analytics holds the ward-level counters rendered on the admin board.
type Analytics struct {
	BedOccupancy       float64   `json:"bedOccupancy"`
	ActivePatients     int       `json:"activePatients"`
	CriticalPatients   int       `json:"criticalPatients"`
	PendingTasks       int       `json:"pendingTasks"`
	MissedMedications  int       `json:"missedMedications"`
	AppointmentsToday  int       `json:"appointmentsToday"`
	AverageWaitMinutes float64   `json:"averageWaitMinutes"`
	GeneratedAt        time.Time `json:"generatedAt,omitempty"`
}
