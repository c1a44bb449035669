package publisher

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/oshokin/release-publisher/internal/logger"
	"github.com/oshokin/release-publisher/internal/printer"
	"github.com/oshokin/release-publisher/internal/transport"
)

// Command is a workflow run against one transport session.
type Command interface {
	// Name returns the command name, e.g. "publish".
	Name() string
	// Prepare validates input and resolves builds before the transport is initialized.
	Prepare(ctx context.Context) error
	// BeforeAction runs the transport hooks that open the workflow.
	BeforeAction(ctx context.Context) error
	// Action performs the per-build transport calls.
	Action(ctx context.Context) error
	// AfterAction flushes manifests and runs the closing transport hooks.
	AfterAction(ctx context.Context) error
	// Results returns the versioned build ids the command processed.
	Results() []string
}

// Reporter is implemented by commands that print their own summary.
type Reporter interface {
	Report(p *printer.Printer)
}

// Run executes cmd against t and prints the summary.
// The transport is closed whenever Init was attempted, and a Close failure never hides the cause.
func Run(ctx context.Context, cmd Command, t transport.Transport, p *printer.Printer) error {
	ctx = logger.WithName(ctx, cmd.Name())

	if err := cmd.Prepare(ctx); err != nil {
		return err
	}

	err := execute(ctx, cmd, t)

	if closeErr := t.Close(ctx); closeErr != nil {
		err = multierr.Append(err, fmt.Errorf("close transport: %w", closeErr))
	}

	if err != nil {
		return err
	}

	if reporter, ok := cmd.(Reporter); ok {
		reporter.Report(p)
	} else {
		p.Summary(Verb(cmd.Name()), cmd.Results())
	}

	return nil
}

// execute runs the transport Init and the three command phases.
func execute(ctx context.Context, cmd Command, t transport.Transport) error {
	if err := t.Init(ctx); err != nil {
		return fmt.Errorf("initialize transport: %w", err)
	}

	logger.Debug(ctx, "Transport initialized")

	phases := []struct {
		name string
		run  func(context.Context) error
	}{
		{name: "before action", run: cmd.BeforeAction},
		{name: "action", run: cmd.Action},
		{name: "after action", run: cmd.AfterAction},
	}

	for _, phase := range phases {
		if err := phase.run(ctx); err != nil {
			return err
		}

		logger.DebugKV(ctx, "Phase completed", "phase", phase.name)
	}

	return nil
}

// Verb returns the past tense of a command name: "publish" becomes "published".
func Verb(name string) string {
	if strings.HasSuffix(name, "e") {
		return name + "d"
	}

	return name + "ed"
}
