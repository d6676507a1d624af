// Package engine defines the transport-agnostic dispatch contract:
// handing a batch of Jobs to whatever delivers them to an
// orchestrator worker. The core module only assumes this interface; the
// specific transport is a domain-stack concern, with three concrete
// implementations in the inmem, redisstream, and temporalengine
// subpackages.
package engine

import (
	"context"

	"github.com/yungbote/sagacore/internal/sagatypes"
)

// Engine accepts jobs for dispatch. Start returning nil means every job
// was handed off for at-least-once delivery to some orchestrator worker;
// it does not mean every job has run. A non-nil error (typically
// *errtax.PublishingError for a partial-batch failure) tells the caller
// which jobs still need to be retried.
type Engine interface {
	Start(ctx context.Context, jobs []*sagatypes.Job) error
}
