package dashboard_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/rs/zerolog"

	"github.com/nhle/wardboard/internal/api"
	"github.com/nhle/wardboard/internal/credential"
	"github.com/nhle/wardboard/internal/dashboard"
	"github.com/nhle/wardboard/internal/model"
	"github.com/nhle/wardboard/internal/store"
	"github.com/nhle/wardboard/tests/testutil"
)

var nurse = model.User{
	ID:          "u-nurse",
	Name:        "Sam Rivera",
	Role:        model.RoleNurse,
	Permissions: []string{model.PermUpdateTasks},
}

type fixture struct {
	backend *testutil.Backend
	tokens  *credential.Keyring
	svc     *dashboard.Service
	cfg     *model.AppConfig
}

func testConfig(b *testutil.Backend) *model.AppConfig {
	return &model.AppConfig{
		Server: model.ServerConfig{BaseURL: b.URL(), SocketURL: b.SocketURL(), RequestTimeout: 5 * time.Second},
		Sync: model.SyncConfig{
			Interval:      time.Hour,
			RetryDelay:    time.Hour,
			MaxRetries:    3,
			Backoff:       "fixed",
			ProbeInterval: time.Hour,
		},
		Channel: model.ChannelConfig{ReconnectDelay: 20 * time.Millisecond, SendBuffer: 16, Heartbeat: true},
	}
}

func newFixture(t *testing.T, opts ...dashboard.Option) *fixture {
	t.Helper()
	b := testutil.NewBackend(t, nurse, testutil.SignToken(t, nurse.ID, time.Now().Add(time.Hour)))
	cfg := testConfig(b)
	tokens := credential.NewKeyringWith(keyring.NewArrayKeyring(nil))
	client := api.NewClient(cfg.Server.BaseURL, cfg.Server.RequestTimeout)
	svc := dashboard.New(cfg, client, tokens, zerolog.Nop(), opts...)
	t.Cleanup(svc.Close)
	return &fixture{backend: b, tokens: tokens, svc: svc, cfg: cfg}
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	if _, err := f.svc.Login(context.Background(), "srivera", testutil.TestPassword); err != nil {
		t.Fatalf("login: %v", err)
	}
	waitFor(t, "first sync", func() bool { return !f.svc.State().LastSync.IsZero() })
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func taskByID(st model.DashboardState, id string) (model.Task, bool) {
	for _, task := range st.Tasks {
		if task.ID == id {
			return task, true
		}
	}
	return model.Task{}, false
}

func TestLogin_OpensSessionAndSyncs(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	st := f.svc.State()
	if st.User == nil || st.User.ID != nurse.ID {
		t.Errorf("expected nurse in state, got %+v", st.User)
	}
	if len(st.Tasks) != 2 || len(st.ActivePatients) != 2 || st.Analytics == nil {
		t.Errorf("expected synced data, got %+v", st)
	}

	token, _ := f.tokens.Token(context.Background())
	if token == "" {
		t.Error("expected token saved after login")
	}

	select {
	case r := <-f.backend.Connected:
		if r.URL.Query().Get("user_id") != nurse.ID || r.URL.Query().Get("role") != "nurse" {
			t.Errorf("channel opened without session identifier: %s", r.URL.RawQuery)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("push channel never connected")
	}
}

func TestLogin_BadPassword(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Login(context.Background(), "srivera", "wrong")
	if !api.IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if f.svc.User() != nil {
		t.Error("no session should be open")
	}
	if err := f.svc.RefreshData(context.Background()); !errors.Is(err, dashboard.ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestSendNotification_AddsLocallyAndPublishes(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	waitFor(t, "channel", f.svc.ChannelConnected)

	before := time.Now()
	countBefore := len(f.svc.Notifications())
	n := f.svc.SendNotification(context.Background(), dashboard.NotificationInput{
		Kind:    model.NotificationError,
		Message: "X",
	})

	if len(f.svc.Notifications()) != countBefore+1 {
		t.Errorf("expected exactly one new notification")
	}
	got, ok := f.svc.Notification(n.ID)
	if !ok {
		t.Fatal("notification not retrievable by id")
	}
	if got.Read || got.Kind != model.NotificationError || got.Message != "X" || got.ID == "" {
		t.Errorf("unexpected notification %+v", got)
	}
	if got.CreatedAt.Before(before) {
		t.Errorf("timestamp %v before call time %v", got.CreatedAt, before)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case frame := <-f.backend.Received:
			if frame.Event != "notification" {
				continue
			}
			var wire model.Notification
			if err := json.Unmarshal(frame.Data, &wire); err != nil || wire.ID != n.ID {
				t.Fatalf("unexpected published notification %s (%v)", frame.Data, err)
			}
			return
		case <-deadline:
			t.Fatal("notification not published on the channel")
		}
	}
}

func TestUpdateTask_AppliesServerRecord(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	status := model.TaskCompleted
	task, err := f.svc.UpdateTask(context.Background(), "t1", api.TaskChanges{Status: &status})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Status != model.TaskCompleted {
		t.Errorf("expected server record, got %+v", task)
	}
	local, _ := taskByID(f.svc.State(), "t1")
	if local.Status != model.TaskCompleted {
		t.Errorf("expected local task completed, got %q", local.Status)
	}
}

func TestUpdateTask_FailureLeavesStateAndNotifies(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.backend.Fail("/api/tasks/t1", http.StatusInternalServerError)
	before, _ := taskByID(f.svc.State(), "t1")

	status := model.TaskCompleted
	if _, err := f.svc.UpdateTask(context.Background(), "t1", api.TaskChanges{Status: &status}); err == nil {
		t.Fatal("expected an error")
	}

	after, _ := taskByID(f.svc.State(), "t1")
	if after.Status != before.Status {
		t.Errorf("state changed on failure: %q -> %q", before.Status, after.Status)
	}
	found := false
	for _, n := range f.svc.Notifications() {
		if n.Kind == model.NotificationError && n.Title == "Task not updated" {
			found = true
		}
	}
	if !found {
		t.Error("expected an error notification")
	}
}

func TestUpdateResource_RequiresPermission(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	status := model.ResourceMaintenance
	_, err := f.svc.UpdateResource(context.Background(), "r1", api.ResourceChanges{Status: &status})
	if !errors.Is(err, dashboard.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if n := f.backend.Requests("/api/resources/r1"); n != 0 {
		t.Errorf("no request should reach the server, got %d", n)
	}
}

func TestPushedEvents(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	waitFor(t, "channel", f.svc.ChannelConnected)

	err := f.backend.Push("state_update", map[string]any{
		"tasks": []map[string]any{{"id": "t9", "title": "Blood cultures"}},
	})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	waitFor(t, "pushed tasks", func() bool {
		st := f.svc.State()
		return len(st.Tasks) == 1 && st.Tasks[0].ID == "t9" && st.Tasks[0].Status == model.TaskPending
	})

	f.backend.Push("notification", map[string]any{"id": "srv-7", "type": "warning", "message": "Bed 4 call bell"})
	waitFor(t, "pushed notification", func() bool {
		_, ok := f.svc.Notification("srv-7")
		return ok
	})

	fetches := f.backend.Requests("/api/tasks")
	f.backend.Push("sync_required", nil)
	waitFor(t, "triggered refresh", func() bool { return f.backend.Requests("/api/tasks") > fetches })
}

func TestSessionExpiry(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	f.backend.SetToken("rotated")
	if err := f.svc.RefreshData(context.Background()); !api.IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}

	select {
	case <-f.svc.SessionExpired():
	case <-time.After(3 * time.Second):
		t.Fatal("session expiry not signalled")
	}
	if f.svc.User() != nil {
		t.Error("expected logout after expiry")
	}
	if token, _ := f.tokens.Token(context.Background()); token != "" {
		t.Error("expected token cleared")
	}
	notes := f.svc.Notifications()
	if len(notes) != 1 || notes[0].Kind != model.NotificationWarning {
		t.Errorf("expected a single session warning, got %+v", notes)
	}
}

func TestRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Restore(ctx); !errors.Is(err, dashboard.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated without a token, got %v", err)
	}

	valid := testutil.SignToken(t, nurse.ID, time.Now().Add(time.Hour))
	f.backend.SetToken(valid)
	f.tokens.SetToken(ctx, valid)

	user, err := f.svc.Restore(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != nurse.ID {
		t.Errorf("expected nurse, got %+v", user)
	}
}

func TestRestore_ExpiredTokenNeverReachesServer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.tokens.SetToken(ctx, testutil.SignToken(t, nurse.ID, time.Now().Add(-time.Minute)))
	if _, err := f.svc.Restore(ctx); !errors.Is(err, dashboard.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if n := f.backend.Requests("/api/auth/me"); n != 0 {
		t.Errorf("expected no server round-trip, got %d", n)
	}
	if token, _ := f.tokens.Token(ctx); token != "" {
		t.Error("expired token should be cleared")
	}
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	if err := f.svc.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	st := f.svc.State()
	if st.User != nil || len(st.Tasks) != 0 {
		t.Errorf("expected empty state, got %+v", st)
	}
	if f.svc.ChannelConnected() {
		t.Error("channel still connected")
	}
	if token, _ := f.tokens.Token(context.Background()); token != "" {
		t.Error("token not cleared")
	}
}

func TestSnapshot_LoadedForFirstPaint(t *testing.T) {
	prefs := store.Prefs{Store: testutil.NewTestStore(t)}
	f := newFixture(t, dashboard.WithPrefs(prefs))
	f.login(t)
	waitFor(t, "snapshot saved", func() bool {
		_, ok, _ := prefs.Snapshot(context.Background())
		return ok
	})
	f.svc.Close()

	// A second process starts while the task endpoint is down.
	f.backend.Fail("/api/tasks", http.StatusServiceUnavailable)
	client := api.NewClient(f.cfg.Server.BaseURL, time.Second)
	second := dashboard.New(f.cfg, client, f.tokens, zerolog.Nop(), dashboard.WithPrefs(prefs))
	t.Cleanup(second.Close)

	token, _ := f.tokens.Token(context.Background())
	if err := second.Authenticate(context.Background(), nurse, token); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got := len(second.State().Tasks); got != 2 {
		t.Errorf("expected 2 tasks from the snapshot, got %d", got)
	}
}

func TestDismissExpired(t *testing.T) {
	f := newFixture(t)
	f.svc.AddNotification(dashboard.NotificationInput{Message: "saved", Duration: time.Millisecond})
	f.svc.AddNotification(dashboard.NotificationInput{Message: "sticky"})

	time.Sleep(5 * time.Millisecond)
	if n := f.svc.DismissExpired(); n != 1 {
		t.Errorf("expected 1 dismissed, got %d", n)
	}
	if len(f.svc.Notifications()) != 1 {
		t.Errorf("expected sticky notification to remain")
	}
}
