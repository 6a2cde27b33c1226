package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/nhle/wardboard/internal/model"
)

// TestPassword is the only password the fake back-end accepts.
const TestPassword = "correct-horse"

// SignToken returns an HS256 JWT for userID expiring at exp.
func SignToken(t *testing.T, userID string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	signed, err := token.SignedString([]byte("wardboard-test"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

// Frame is one envelope received from a client over the push channel.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Backend is an in-process hospital back-end: the REST API under /api and
// the push channel at /ws.
type Backend struct {
	Server *httptest.Server

	mu            sync.Mutex
	token         string
	user          model.User
	patients      []model.Patient
	tasks         []model.Task
	medications   []model.Medication
	resources     []model.Resource
	appointments  []model.Appointment
	analytics     model.Analytics
	notifications []model.Notification
	failures      map[string]int // path -> status to answer with
	conns         []*websocket.Conn
	requests      map[string]int

	// Received carries frames sent by clients over /ws.
	Received chan Frame
	// Connected receives the request of every accepted /ws upgrade.
	Connected chan *http.Request
}

// NewBackend starts a fake back-end for user, issuing token at login.
// It is shut down when the test completes.
func NewBackend(t *testing.T, user model.User, token string) *Backend {
	t.Helper()

	b := &Backend{
		token:     token,
		user:      user,
		failures:  make(map[string]int),
		requests:  make(map[string]int),
		Received:  make(chan Frame, 32),
		Connected: make(chan *http.Request, 8),
		patients: []model.Patient{
			{ID: "p1", Name: "R. Jones", Room: "4B", Status: model.PatientCritical},
			{ID: "p2", Name: "A. Okafor", Room: "2A", Status: model.PatientStable},
		},
		tasks: []model.Task{
			{ID: "t1", Title: "Wound dressing", PatientID: "p1", Status: model.TaskPending},
			{ID: "t2", Title: "Obs round", PatientID: "p2", Status: model.TaskInProgress},
		},
		medications: []model.Medication{
			{ID: "m1", PatientID: "p1", Name: "Heparin", Dosage: "5000 IU", Status: model.MedicationPending},
		},
		resources: []model.Resource{
			{ID: "r1", Name: "Infusion pump", Quantity: 4, Status: model.ResourceAvailable},
		},
		appointments: []model.Appointment{
			{ID: "a1", PatientID: "p2", PatientName: "A. Okafor", Status: model.AppointmentConfirmed},
		},
		analytics: model.Analytics{ActivePatients: 2, CriticalPatients: 1, PendingTasks: 1},
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(b.track)

	e.POST("/api/auth/login", b.login)
	e.GET("/api/health", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/ws", b.upgrade)

	g := e.Group("/api", b.requireToken)
	g.GET("/auth/me", func(c echo.Context) error { return b.respond(c, func() any { return b.user }) })
	g.GET("/patients", func(c echo.Context) error { return b.respond(c, func() any { return b.patients }) })
	g.GET("/tasks", func(c echo.Context) error { return b.respond(c, func() any { return b.tasks }) })
	g.GET("/medications", func(c echo.Context) error { return b.respond(c, func() any { return b.medications }) })
	g.GET("/resources", func(c echo.Context) error { return b.respond(c, func() any { return b.resources }) })
	g.GET("/appointments", func(c echo.Context) error { return b.respond(c, func() any { return b.appointments }) })
	g.GET("/analytics", func(c echo.Context) error { return b.respond(c, func() any { return b.analytics }) })
	g.GET("/notifications", func(c echo.Context) error { return b.respond(c, func() any { return b.notifications }) })
	g.PATCH("/tasks/:id", b.patchTask)
	g.PATCH("/resources/:id", b.patchResource)

	b.Server = httptest.NewServer(e)
	t.Cleanup(func() {
		b.mu.Lock()
		for _, conn := range b.conns {
			conn.Close()
		}
		b.mu.Unlock()
		b.Server.Close()
	})
	return b
}

// URL is the REST base URL.
func (b *Backend) URL() string {
	return b.Server.URL
}

// SocketURL is the push-channel endpoint.
func (b *Backend) SocketURL() string {
	return "ws" + strings.TrimPrefix(b.Server.URL, "http") + "/ws"
}

// Fail makes requests to path answer with status until cleared with 0.
func (b *Backend) Fail(path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if status == 0 {
		delete(b.failures, path)
		return
	}
	b.failures[path] = status
}

// SetToken changes the token the back-end accepts; earlier tokens become
// invalid.
func (b *Backend) SetToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.token = token
}

// SetTasks replaces the server-side tasks.
func (b *Backend) SetTasks(tasks []model.Task) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tasks = tasks
}

// Requests returns how many requests hit path.
func (b *Backend) Requests(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[path]
}

// Push sends an event to every connected client.
func (b *Backend) Push(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, conn := range b.conns {
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) track(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		b.mu.Lock()
		b.requests[c.Request().URL.Path]++
		status := b.failures[c.Request().URL.Path]
		b.mu.Unlock()
		if status != 0 {
			return c.JSON(status, map[string]string{"error": http.StatusText(status)})
		}
		return next(c)
	}
}

func (b *Backend) authorized(r *http.Request) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return r.Header.Get("Authorization") == "Bearer "+b.token
}

func (b *Backend) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !b.authorized(c.Request()) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
		}
		return next(c)
	}
}

// respond encodes the value returned by get under the lock.
func (b *Backend) respond(c echo.Context, get func() any) error {
	b.mu.Lock()
	data, err := json.Marshal(get())
	b.mu.Unlock()
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, data)
}

func (b *Backend) login(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
	}
	if req.Password != TestPassword {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return c.JSON(http.StatusOK, map[string]any{"token": b.token, "user": b.user})
}

func (b *Backend) patchTask(c echo.Context) error {
	var changes struct {
		Status     *model.TaskStatus `json:"status"`
		AssignedTo *string           `json:"assignedTo"`
	}
	if err := json.NewDecoder(c.Request().Body).Decode(&changes); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.tasks {
		if b.tasks[i].ID != c.Param("id") {
			continue
		}
		if changes.Status != nil {
			b.tasks[i].Status = *changes.Status
		}
		if changes.AssignedTo != nil {
			b.tasks[i].AssignedTo = *changes.AssignedTo
		}
		b.tasks[i].LastUpdate = time.Now().UTC()
		return c.JSON(http.StatusOK, b.tasks[i])
	}
	return c.JSON(http.StatusNotFound, map[string]string{"error": "task not found"})
}

func (b *Backend) patchResource(c echo.Context) error {
	var changes struct {
		Status   *model.ResourceStatus `json:"status"`
		Quantity *int                  `json:"quantity"`
	}
	if err := json.NewDecoder(c.Request().Body).Decode(&changes); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.resources {
		if b.resources[i].ID != c.Param("id") {
			continue
		}
		if changes.Status != nil {
			b.resources[i].Status = *changes.Status
		}
		if changes.Quantity != nil {
			b.resources[i].Quantity = *changes.Quantity
		}
		b.resources[i].LastUpdate = time.Now().UTC()
		return c.JSON(http.StatusOK, b.resources[i])
	}
	return c.JSON(http.StatusNotFound, map[string]string{"error": "resource not found"})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func (b *Backend) upgrade(c echo.Context) error {
	if !b.authorized(c.Request()) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
	}
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.conns = append(b.conns, conn)
	b.mu.Unlock()

	select {
	case b.Connected <- c.Request():
	default:
	}

	go func() {
		defer b.drop(conn)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var f Frame
			if json.Unmarshal(msg, &f) != nil {
				continue
			}
			select {
			case b.Received <- f:
			default:
			}
		}
	}()
	return nil
}

func (b *Backend) drop(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, c := range b.conns {
		if c == conn {
			b.conns = append(b.conns[:i], b.conns[i+1:]...)
			break
		}
	}
	conn.Close()
}
