package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/wardboard/internal/model"
)

// DecodePatch parses a state_update payload and normalizes it. Unknown
// status values fail with model.ErrUnknownStatus in the chain.
func DecodePatch(raw []byte, now time.Time) (model.Patch, error) {
	var p model.Patch
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.Patch{}, fmt.Errorf("decoding state update: %w", err)
	}
	Normalize(&p, now)
	return p, nil
}

// DecodeNotification parses a notification payload and normalizes it.
func DecodeNotification(raw []byte, now time.Time) (model.Notification, error) {
	var n model.Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return model.Notification{}, fmt.Errorf("decoding notification: %w", err)
	}
	NormalizeNotification(&n, now)
	return n, nil
}

// Normalize fills absent statuses with their defaults and absent
// timestamps with now, in place.
func Normalize(p *model.Patch, now time.Time) {
	if p.Notifications != nil {
		for i := range *p.Notifications {
			NormalizeNotification(&(*p.Notifications)[i], now)
		}
	}
	if p.ActivePatients != nil {
		for i := range *p.ActivePatients {
			r := &(*p.ActivePatients)[i]
			if r.Status == "" {
				r.Status = model.PatientStable
			}
			stamp(&r.LastUpdate, now)
		}
	}
	if p.Tasks != nil {
		for i := range *p.Tasks {
			r := &(*p.Tasks)[i]
			if r.Status == "" {
				r.Status = model.TaskPending
			}
			stamp(&r.LastUpdate, now)
		}
	}
	if p.Medications != nil {
		for i := range *p.Medications {
			r := &(*p.Medications)[i]
			if r.Status == "" {
				r.Status = model.MedicationPending
			}
			stamp(&r.LastUpdate, now)
		}
	}
	if p.Resources != nil {
		for i := range *p.Resources {
			r := &(*p.Resources)[i]
			if r.Status == "" {
				r.Status = model.ResourceAvailable
			}
			stamp(&r.LastUpdate, now)
		}
	}
	if p.Appointments != nil {
		for i := range *p.Appointments {
			r := &(*p.Appointments)[i]
			if r.Status == "" {
				r.Status = model.AppointmentScheduled
			}
			stamp(&r.LastUpdate, now)
		}
	}
	if p.Analytics != nil {
		stamp(&p.Analytics.GeneratedAt, now)
	}
}

// NormalizeNotification gives n an id, a kind and a creation time when
// the sender left them out.
func NormalizeNotification(n *model.Notification, now time.Time) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Kind == "" {
		n.Kind = model.NotificationInfo
	}
	stamp(&n.CreatedAt, now)
}

func stamp(t *time.Time, now time.Time) {
	if t.IsZero() {
		*t = now
	}
}
