package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nhle/wardboard/internal/model"
)

// fetchTimeout is the maximum time allowed for one refresh fan-out.
const fetchTimeout = 30 * time.Second

// Source is the REST surface a refresh reads from. *api.Client
// implements it.
type Source interface {
	FetchActivePatients(ctx context.Context) ([]model.Patient, error)
	FetchTasks(ctx context.Context) ([]model.Task, error)
	FetchMedications(ctx context.Context) ([]model.Medication, error)
	FetchResources(ctx context.Context) ([]model.Resource, error)
	FetchAppointments(ctx context.Context) ([]model.Appointment, error)
	FetchAnalytics(ctx context.Context) (*model.Analytics, error)
	FetchNotifications(ctx context.Context) ([]model.Notification, error)
}

// fetch issues every slice request concurrently and joins on all of them.
// The returned patch holds the slices that succeeded; err is a
// *FetchError when any failed. Unless partial is set the first failure
// cancels the remaining requests.
func fetch(ctx context.Context, src Source, partial bool) (model.Patch, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if partial {
		g, gctx = &errgroup.Group{}, ctx
	}

	var (
		mu   gosync.Mutex
		ok   = make(map[string]bool)
		ferr = &FetchError{}
	)
	slice := func(field string, fn func(context.Context) error) {
		g.Go(func() error {
			err := fn(gctx)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok[field] = true
			case errors.Is(err, context.Canceled) && ctx.Err() == nil:
				// Cancelled because a sibling failed first.
			default:
				ferr.add(field, err)
			}
			return err
		})
	}

	var (
		patients  []model.Patient
		tasks     []model.Task
		meds      []model.Medication
		resources []model.Resource
		appts     []model.Appointment
		analytics *model.Analytics
		notes     []model.Notification
	)
	slice(model.FieldActivePatients, func(ctx context.Context) (err error) {
		patients, err = src.FetchActivePatients(ctx)
		return err
	})
	slice(model.FieldTasks, func(ctx context.Context) (err error) {
		tasks, err = src.FetchTasks(ctx)
		return err
	})
	slice(model.FieldMedications, func(ctx context.Context) (err error) {
		meds, err = src.FetchMedications(ctx)
		return err
	})
	slice(model.FieldResources, func(ctx context.Context) (err error) {
		resources, err = src.FetchResources(ctx)
		return err
	})
	slice(model.FieldAppointments, func(ctx context.Context) (err error) {
		appts, err = src.FetchAppointments(ctx)
		return err
	})
	slice(model.FieldAnalytics, func(ctx context.Context) (err error) {
		analytics, err = src.FetchAnalytics(ctx)
		return err
	})
	slice(model.FieldNotifications, func(ctx context.Context) (err error) {
		notes, err = src.FetchNotifications(ctx)
		return err
	})
	_ = g.Wait()

	var p model.Patch
	if ok[model.FieldActivePatients] {
		p.ActivePatients = nonNil(patients)
	}
	if ok[model.FieldTasks] {
		p.Tasks = nonNil(tasks)
	}
	if ok[model.FieldMedications] {
		p.Medications = nonNil(meds)
	}
	if ok[model.FieldResources] {
		p.Resources = nonNil(resources)
	}
	if ok[model.FieldAppointments] {
		p.Appointments = nonNil(appts)
	}
	if ok[model.FieldAnalytics] && analytics != nil {
		p.Analytics = analytics
	}
	if ok[model.FieldNotifications] {
		p.Notifications = nonNil(notes)
	}

	if len(ferr.Failed) > 0 {
		return p, ferr
	}
	if err := ctx.Err(); err != nil {
		return p, err
	}
	return p, nil
}

// nonNil turns a JSON null collection into a present, empty one.
func nonNil[T any](s []T) *[]T {
	if s == nil {
		s = []T{}
	}
	return &s
}
