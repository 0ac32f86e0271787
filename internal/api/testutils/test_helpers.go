package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rongwang/ledger-server/internal/api"
	"github.com/rongwang/ledger-server/internal/models"
	"github.com/rongwang/ledger-server/internal/repository"
	"github.com/rongwang/ledger-server/internal/service"
	"github.com/rongwang/ledger-server/internal/utils"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// TestContext holds all dependencies for tests
type TestContext struct {
	Router     *gin.Engine
	Repository repository.Repository
	Service    service.Service
	Clock      *Clock
}

// Clock is a controllable time source. Every call advances it by one second
// so transactions created back to back get distinct dates.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

// Set moves the clock to t
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// SetupTestContext creates a new test context backed by an in-memory store
func SetupTestContext(t *testing.T) *TestContext {
	t.Helper()

	repo := repository.NewMemoryRepository()
	clock := &Clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}

	svc := service.NewDefaultService(repo,
		service.WithClock(clock.Now),
		service.WithBcryptCost(bcrypt.MinCost),
	)

	// Create API handler
	handler := api.NewHandler(svc)

	// Set up Gin router
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(utils.NopLogger()))

	// Set up routes
	handler.SetupRoutes(router)

	return &TestContext{
		Router:     router,
		Repository: repo,
		Service:    svc,
		Clock:      clock,
	}
}

// CreateUser creates a user with the given opening balance directly through the service
func (tc *TestContext) CreateUser(t *testing.T, username, password string, balance int64) {
	t.Helper()
	_, err := tc.Service.CreateUser(context.Background(), username, password)
	require.NoError(t, err, "Failed to create test user")

	if balance > 0 {
		_, err = tc.Service.CreateTransaction(context.Background(), models.CreateTransactionRequest{
			Type:     models.Deposit,
			Amount:   balance,
			Username: username,
		})
		require.NoError(t, err, "Failed to fund test user")
	}
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// DecodeJSON unmarshals a recorded response body into out
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), "body: %s", w.Body.String())
}
