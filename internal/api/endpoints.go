package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nhle/wardboard/internal/model"
)

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token and the authenticated user.
type LoginResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// TaskChanges is the partial body of PATCH /api/tasks/{id}. Nil fields
// are omitted from the request.
type TaskChanges struct {
	Status     *model.TaskStatus `json:"status,omitempty"`
	AssignedTo *string           `json:"assignedTo,omitempty"`
	Priority   *string           `json:"priority,omitempty"`
}

// ResourceChanges is the partial body of PATCH /api/resources/{id}.
type ResourceChanges struct {
	Status   *model.ResourceStatus `json:"status,omitempty"`
	Quantity *int                  `json:"quantity,omitempty"`
	Location *string               `json:"location,omitempty"`
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var resp LoginResponse
	err := c.Post(ctx, "/api/auth/login", LoginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("logging in: server returned no token")
	}
	return &resp, nil
}

// Me returns the user the current token belongs to.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.Get(ctx, "/api/auth/me", &u); err != nil {
		return nil, fmt.Errorf("fetching current user: %w", err)
	}
	return &u, nil
}

// Health probes the back-end; any 2xx answer means reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.Get(ctx, "/api/health", nil)
}

// FetchActivePatients lists patients currently on the ward.
func (c *Client) FetchActivePatients(ctx context.Context) ([]model.Patient, error) {
	var patients []model.Patient
	q := url.Values{"status": []string{"active"}}
	if err := c.Get(ctx, "/api/patients?"+q.Encode(), &patients); err != nil {
		return nil, fmt.Errorf("fetching patients: %w", err)
	}
	return patients, nil
}

// FetchTasks lists care tasks.
func (c *Client) FetchTasks(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := c.Get(ctx, "/api/tasks", &tasks); err != nil {
		return nil, fmt.Errorf("fetching tasks: %w", err)
	}
	return tasks, nil
}

// FetchMedications lists scheduled doses.
func (c *Client) FetchMedications(ctx context.Context) ([]model.Medication, error) {
	var meds []model.Medication
	if err := c.Get(ctx, "/api/medications", &meds); err != nil {
		return nil, fmt.Errorf("fetching medications: %w", err)
	}
	return meds, nil
}

// FetchResources lists inventory.
func (c *Client) FetchResources(ctx context.Context) ([]model.Resource, error) {
	var resources []model.Resource
	if err := c.Get(ctx, "/api/resources", &resources); err != nil {
		return nil, fmt.Errorf("fetching resources: %w", err)
	}
	return resources, nil
}

// FetchAppointments lists appointments.
func (c *Client) FetchAppointments(ctx context.Context) ([]model.Appointment, error) {
	var appts []model.Appointment
	if err := c.Get(ctx, "/api/appointments", &appts); err != nil {
		return nil, fmt.Errorf("fetching appointments: %w", err)
	}
	return appts, nil
}

// FetchAnalytics returns the ward counters.
func (c *Client) FetchAnalytics(ctx context.Context) (*model.Analytics, error) {
	var a model.Analytics
	if err := c.Get(ctx, "/api/analytics", &a); err != nil {
		return nil, fmt.Errorf("fetching analytics: %w", err)
	}
	return &a, nil
}

// FetchNotifications lists the server-side notifications for the user.
func (c *Client) FetchNotifications(ctx context.Context) ([]model.Notification, error) {
	var ns []model.Notification
	if err := c.Get(ctx, "/api/notifications", &ns); err != nil {
		return nil, fmt.Errorf("fetching notifications: %w", err)
	}
	return ns, nil
}

// UpdateTask applies a partial update and returns the server's record.
func (c *Client) UpdateTask(ctx context.Context, id string, changes TaskChanges) (*model.Task, error) {
	var task model.Task
	if err := c.Patch(ctx, "/api/tasks/"+url.PathEscape(id), changes, &task); err != nil {
		return nil, fmt.Errorf("updating task %s: %w", id, err)
	}
	return &task, nil
}

// UpdateResource applies a partial update and returns the server's record.
func (c *Client) UpdateResource(ctx context.Context, id string, changes ResourceChanges) (*model.Resource, error) {
	var res model.Resource
	if err := c.Patch(ctx, "/api/resources/"+url.PathEscape(id), changes, &res); err != nil {
		return nil, fmt.Errorf("updating resource %s: %w", id, err)
	}
	return &res, nil
}
