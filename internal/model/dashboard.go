package model

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"time"
)

// Top-level aggregate field names as they appear in state_update payloads.
const (
	FieldUser           = "user"
	FieldNotifications  = "notifications"
	FieldActivePatients = "activePatients"
	FieldTasks          = "tasks"
	FieldMedications    = "medications"
	FieldResources      = "resources"
	FieldAppointments   = "appointments"
	FieldAnalytics      = "analytics"
)

// DashboardState is the aggregate shared by every dashboard widget.
type DashboardState struct {
	User           *User          `json:"user"`
	Notifications  []Notification `json:"notifications"`
	ActivePatients []Patient      `json:"activePatients"`
	Tasks          []Task         `json:"tasks"`
	Medications    []Medication   `json:"medications"`
	Resources      []Resource     `json:"resources"`
	Appointments   []Appointment  `json:"appointments"`
	Analytics      *Analytics     `json:"analytics"`
	LastUpdate     time.Time      `json:"lastUpdate"`
	LastSync       time.Time      `json:"lastSync"`
}

// Clone returns a deep copy so readers never share backing arrays with
// the writer.
func (s DashboardState) Clone() DashboardState {
	out := s
	if s.User != nil {
		u := *s.User
		u.Permissions = slices.Clone(s.User.Permissions)
		out.User = &u
	}
	if s.Analytics != nil {
		a := *s.Analytics
		out.Analytics = &a
	}
	out.Notifications = slices.Clone(s.Notifications)
	out.ActivePatients = slices.Clone(s.ActivePatients)
	out.Tasks = slices.Clone(s.Tasks)
	out.Medications = slices.Clone(s.Medications)
	out.Resources = slices.Clone(s.Resources)
	out.Appointments = slices.Clone(s.Appointments)
	return out
}

// Patch is a partial update of the aggregate. A nil field is left alone; a
// non-nil field replaces the aggregate's value wholesale, including
// collections (no element-wise merge).
type Patch struct {
	User           *User
	Notifications  *[]Notification
	ActivePatients *[]Patient
	Tasks          *[]Task
	Medications    *[]Medication
	Resources      *[]Resource
	Appointments   *[]Appointment
	Analytics      *Analytics
}

// Empty reports whether the patch carries no fields.
func (p Patch) Empty() bool {
	return len(p.Fields()) == 0
}

// Fields returns the names of the fields present in the patch, sorted.
func (p Patch) Fields() []string {
	var fields []string
	if p.User != nil {
		fields = append(fields, FieldUser)
	}
	if p.Notifications != nil {
		fields = append(fields, FieldNotifications)
	}
	if p.ActivePatients != nil {
		fields = append(fields, FieldActivePatients)
	}
	if p.Tasks != nil {
		fields = append(fields, FieldTasks)
	}
	if p.Medications != nil {
		fields = append(fields, FieldMedications)
	}
	if p.Resources != nil {
		fields = append(fields, FieldResources)
	}
	if p.Appointments != nil {
		fields = append(fields, FieldAppointments)
	}
	if p.Analytics != nil {
		fields = append(fields, FieldAnalytics)
	}
	sort.Strings(fields)
	return fields
}

// Merge copies the fields present in other over p.
func (p *Patch) Merge(other Patch) {
	if other.User != nil {
		p.User = other.User
	}
	if other.Notifications != nil {
		p.Notifications = other.Notifications
	}
	if other.ActivePatients != nil {
		p.ActivePatients = other.ActivePatients
	}
	if other.Tasks != nil {
		p.Tasks = other.Tasks
	}
	if other.Medications != nil {
		p.Medications = other.Medications
	}
	if other.Resources != nil {
		p.Resources = other.Resources
	}
	if other.Appointments != nil {
		p.Appointments = other.Appointments
	}
	if other.Analytics != nil {
		p.Analytics = other.Analytics
	}
}

// UnmarshalJSON decodes a patch keyed by top-level field name. Unknown
// keys are ignored; a JSON null for a known key leaves the field absent.
func (p *Patch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding patch: %w", err)
	}

	for key, value := range raw {
		if string(value) == "null" {
			continue
		}
		var err error
		switch key {
		case FieldUser:
			p.User = new(User)
			err = json.Unmarshal(value, p.User)
		case FieldNotifications:
			p.Notifications = new([]Notification)
			err = json.Unmarshal(value, p.Notifications)
		case FieldActivePatients:
			p.ActivePatients = new([]Patient)
			err = json.Unmarshal(value, p.ActivePatients)
		case FieldTasks:
			p.Tasks = new([]Task)
			err = json.Unmarshal(value, p.Tasks)
		case FieldMedications:
			p.Medications = new([]Medication)
			err = json.Unmarshal(value, p.Medications)
		case FieldResources:
			p.Resources = new([]Resource)
			err = json.Unmarshal(value, p.Resources)
		case FieldAppointments:
			p.Appointments = new([]Appointment)
			err = json.Unmarshal(value, p.Appointments)
		case FieldAnalytics:
			p.Analytics = new(Analytics)
			err = json.Unmarshal(value, p.Analytics)
		default:
			continue
		}
		if err != nil {
			return fmt.Errorf("decoding patch field %s: %w", key, err)
		}
	}
	return nil
}

// MarshalJSON encodes only the fields present in the patch.
func (p Patch) MarshalJSON() ([]byte, error) {
	out := make(map[string]any)
	if p.User != nil {
		out[FieldUser] = p.User
	}
	if p.Notifications != nil {
		out[FieldNotifications] = *p.Notifications
	}
	if p.ActivePatients != nil {
		out[FieldActivePatients] = *p.ActivePatients
	}
	if p.Tasks != nil {
		out[FieldTasks] = *p.Tasks
	}
	if p.Medications != nil {
		out[FieldMedications] = *p.Medications
	}
	if p.Resources != nil {
		out[FieldResources] = *p.Resources
	}
	if p.Appointments != nil {
		out[FieldAppointments] = *p.Appointments
	}
	if p.Analytics != nil {
		out[FieldAnalytics] = p.Analytics
	}
	return json.Marshal(out)
}
