package logger

import (
	"testing"

	"github.com/google/uuid"
)

func TestIsHashKeyRecognizesSagaIdentifiers(t *testing.T) {
	for _, key := range []string{"job_id", "step_id", "parent_step_id", "owner_id", "chunk_id", "user_id"} {
		if !isHashKey(key) {
			t.Fatalf("expected %q to be a hash key", key)
		}
	}
	if isHashKey("message") {
		t.Fatal("expected an ordinary field name to not be a hash key")
	}
}

func TestIsRedactKeyRecognizesSecrets(t *testing.T) {
	for _, key := range []string{"token", "authorization", "password", "secret", "cookie", "api_key"} {
		if !isRedactKey(key) {
			t.Fatalf("expected %q to be a redact key", key)
		}
	}
}

func TestWithJobAttachesJobAndStepIDs(t *testing.T) {
	log, err := New("test")
	if err != nil {
		t.Fatalf("construct logger: %v", err)
	}
	jobID := uuid.New()
	stepID := uuid.New()
	scoped := log.WithJob(jobID, stepID, 2)
	if scoped == nil || scoped.SugaredLogger == nil {
		t.Fatal("expected a scoped logger with a non-nil sugared logger")
	}
}

func TestWithJobOmitsZeroStepID(t *testing.T) {
	log, err := New("test")
	if err != nil {
		t.Fatalf("construct logger: %v", err)
	}
	scoped := log.WithJob(uuid.New(), uuid.Nil, 0)
	if scoped == nil {
		t.Fatal("expected a scoped logger even with no step resolved yet")
	}
}

func TestHashValueIsDeterministicAndTruncated(t *testing.T) {
	a := hashValue("some-id")
	b := hashValue("some-id")
	if a != b {
		t.Fatalf("expected hashing to be deterministic, got %q and %q", a, b)
	}
	if len(a) != len("hash:")+12 {
		t.Fatalf("expected a 12-char truncated hash, got %q", a)
	}
}
