// Package metrics records reconcile passes, admin mutations and auth
// failures. The backend is chosen by configuration: Prometheus for long-lived
// servers, CloudWatch for Lambda, or nothing.
package metrics

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hasib2k/online-store/internal/aws"
	"github.com/hasib2k/online-store/internal/config"
)

// Mutation outcomes
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// ReconcileSample describes one reconcile pass.
type ReconcileSample struct {
	Structured   int
	File         int
	SkippedByID  int
	Duplicates   int
	Untimed      int
	Result       int
	SourceErrors int
	Duration     time.Duration
}

// Recorder receives observations from the admin service and the reconciler.
type Recorder interface {
	ObserveReconcile(s ReconcileSample)
	ObserveMutation(action, store, outcome string)
	ObserveAuthFailure()
}

// Nop discards everything.
type Nop struct{}

func (Nop) ObserveReconcile(ReconcileSample)       {}
func (Nop) ObserveMutation(string, string, string) {}
func (Nop) ObserveAuthFailure()                    {}

// New builds the recorder selected by cfg.Backend. cw may be nil unless the
// cloudwatch backend is selected.
func New(cfg config.MetricsConfig, cw aws.CloudWatchAPI, logger *zap.Logger) (Recorder, error) {
	switch cfg.Backend {
	case "", "none":
		return Nop{}, nil
	case "prometheus":
		return NewPrometheus(cfg.Namespace), nil
	case "cloudwatch":
		if cw == nil {
			return nil, fmt.Errorf("cloudwatch metrics backend needs a cloudwatch client")
		}
		return NewCloudWatch(cw, cfg.Namespace, logger), nil
	default:
		return nil, fmt.Errorf("unknown metrics backend %q", cfg.Backend)
	}
}
