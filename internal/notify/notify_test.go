package notify

import (
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/sagacore/internal/platform/logger"
	"github.com/yungbote/sagacore/internal/sagatypes"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("construct test logger: %v", err)
	}
	return log
}

func TestLogNotifierNilLogIsSafe(t *testing.T) {
	var n LogNotifier
	job := &sagatypes.Job{ID: uuid.New()}
	// None of these should panic with a nil Log.
	n.JobProgress(uuid.New(), job, "stage", 50, "msg")
	n.JobFailed(uuid.New(), job, "stage", "err")
	n.JobSucceeded(uuid.New(), job)
}

func TestLogNotifierNilJobIsSafe(t *testing.T) {
	n := LogNotifier{Log: testLogger(t)}
	n.JobProgress(uuid.New(), nil, "stage", 50, "msg")
	n.JobFailed(uuid.New(), nil, "stage", "err")
	n.JobSucceeded(uuid.New(), nil)
}

func TestLogNotifierWithJobDoesNotPanic(t *testing.T) {
	n := LogNotifier{Log: testLogger(t)}
	job := &sagatypes.Job{ID: uuid.New()}
	n.JobProgress(uuid.New(), job, "stage", 10, "in progress")
	n.JobFailed(uuid.New(), job, "stage", "disk full")
	n.JobSucceeded(uuid.New(), job)
}

func TestNewRedisNotifierDefaultsChannel(t *testing.T) {
	n := NewRedisNotifier(nil, "", testLogger(t))
	if n.channel != "sagacore:job-events" {
		t.Fatalf("expected default channel, got %q", n.channel)
	}
}

func TestNewRedisNotifierKeepsExplicitChannel(t *testing.T) {
	n := NewRedisNotifier(nil, "custom:channel", testLogger(t))
	if n.channel != "custom:channel" {
		t.Fatalf("expected custom channel preserved, got %q", n.channel)
	}
}

func TestRedisNotifierNilClientIsSafe(t *testing.T) {
	n := NewRedisNotifier(nil, "", testLogger(t))
	job := &sagatypes.Job{ID: uuid.New()}
	// With a nil *redis.Client, publish must no-op rather than panic.
	n.JobProgress(uuid.New(), job, "stage", 50, "msg")
	n.JobFailed(uuid.New(), job, "stage", "err")
	n.JobSucceeded(uuid.New(), job)
}

func TestRedisNotifierNilJobIsSafe(t *testing.T) {
	n := NewRedisNotifier(nil, "", testLogger(t))
	n.JobProgress(uuid.New(), nil, "stage", 50, "msg")
	n.JobFailed(uuid.New(), nil, "stage", "err")
	n.JobSucceeded(uuid.New(), nil)
}
