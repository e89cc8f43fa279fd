package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func up(context.Context) ComponentHealth { return ComponentHealth{Status: StatusUp} }

func TestChecker_Run(t *testing.T) {
	c := NewChecker()
	c.Register("catalog", up)
	c.RegisterOptional("redis", OptionalCheck(false, "redis", nil))

	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "redis disabled", report.Components["redis"].Message)
	assert.True(t, report.Components["redis"].Optional)

	c.Register("kafka", PingCheck(func(context.Context) error { return errors.New("no brokers") }))
	report = c.Run(context.Background())
	assert.Equal(t, StatusDown, report.Status)
	assert.Equal(t, "no brokers", report.Components["kafka"].Message)
}

func TestChecker_OptionalDownDegrades(t *testing.T) {
	c := NewChecker()
	c.Register("catalog", up)
	c.RegisterOptional("postgres", PingCheck(func(context.Context) error { return errors.New("connection refused") }))

	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, StatusDown, report.Components["postgres"].Status)
}

func TestChecker_CheckTimeout(t *testing.T) {
	c := NewChecker()
	c.Register("slow", PingCheck(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := c.Run(ctx)
	assert.Equal(t, StatusDown, report.Status)
}

func TestChecker_Handlers(t *testing.T) {
	c := NewChecker()
	c.RegisterOptional("redis", OptionalCheck(false, "redis", nil))

	rec := httptest.NewRecorder()
	c.LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"alive"`)

	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	c.Register("kafka", PingCheck(func(context.Context) error { return errors.New("no brokers") }))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusDown, report.Status)
}
