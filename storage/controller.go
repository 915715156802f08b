package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperdot/hyperdot-node/common"
	"github.com/hyperdot/hyperdot-node/log"
)

// ErrEngineNotFound is returned when a query names an engine the controller
// does not hold, or one that cannot answer queries.
var ErrEngineNotFound = errors.New("data engine not found")

// EngineFailure is one failed engine write.
type EngineFailure struct {
	Engine string
	Block  uint64
	Err    error
}

// FanoutError reports the engines that failed a WriteBlock. The other
// engines were still written to.
type FanoutError struct {
	Failures  []EngineFailure
	Succeeded []string
}

func (e *FanoutError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: block %d: %v", f.Engine, f.Block, f.Err))
	}
	return fmt.Sprintf("%d engine write(s) failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

func (e *FanoutError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Controller fans blocks out to every data engine of a storage node.
type Controller struct {
	engines []DataEngine
	logger  *log.Logger
}

func NewController(engines []DataEngine, logger *log.Logger) *Controller {
	return &Controller{
		engines: engines,
		logger:  logger.WithModule("storage_controller"),
	}
}

// Engines returns the engines in fan-out order.
func (c *Controller) Engines() []DataEngine {
	return c.engines
}

// WriteBlock writes every block of req to every engine. A failing engine
// does not stop the others; failures are returned as a *FanoutError.
func (c *Controller) WriteBlock(ctx context.Context, req *common.WriteBlock) error {
	payloads, err := req.Payloads()
	if err != nil {
		return err
	}

	fanout := &FanoutError{}
	for _, engine := range c.engines {
		failed := false
		for _, payload := range payloads {
			if err := engine.Write(ctx, req.Chain, payload); err != nil {
				c.logger.Error("engine write failed",
					"engine", engine.Name(),
					"chain", req.Chain,
					"block", payload.Number(),
					"err", err,
				)
				fanout.Failures = append(fanout.Failures, EngineFailure{
					Engine: engine.Name(),
					Block:  payload.Number(),
					Err:    err,
				})
				failed = true
				continue
			}
			c.logger.Debug("block written",
				"engine", engine.Name(),
				"chain", req.Chain,
				"block", payload.Number(),
			)
		}
		if !failed {
			fanout.Succeeded = append(fanout.Succeeded, engine.Name())
		}
	}

	if len(fanout.Failures) > 0 {
		return fanout
	}
	return nil
}

func (c *Controller) queryEngine(name string) (QueryEngine, error) {
	for _, engine := range c.engines {
		if engine.Name() != name {
			continue
		}
		if qe, ok := engine.(QueryEngine); ok {
			return qe, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrEngineNotFound, name)
}

// Query runs sql on the chain's database of the named engine.
func (c *Controller) Query(ctx context.Context, engine string, chain string, sql string) (*Rows, error) {
	qe, err := c.queryEngine(engine)
	if err != nil {
		return nil, err
	}
	return qe.Query(ctx, chain, sql)
}

// Schema lists the tables of the chain's database in the named engine.
func (c *Controller) Schema(ctx context.Context, engine string, chain string) ([]Table, error) {
	qe, err := c.queryEngine(engine)
	if err != nil {
		return nil, err
	}
	return qe.Schema(ctx, chain)
}

// Close closes every engine.
func (c *Controller) Close() {
	for _, engine := range c.engines {
		engine.Close()
	}
}
