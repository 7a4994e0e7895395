package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/flowtree/internal/engine"
)

// flowResult renders res, turning a failed result into ExitFailure.
func flowResult(out *OutputFormatter, res engine.FlowResult) error {
	if !res.Success {
		return out.Rejected(res)
	}
	return out.Success(res.Message)
}

// NewInsertFlowCommand creates the insert-flow command.
func NewInsertFlowCommand(rootOpts *RootOptions) *cobra.Command {
	var content contentFlag

	cmd := &cobra.Command{
		Use:   "insert-flow <flow-id> <content>",
		Short: "Create a main flow, shifting later flows",
		Long: `Create the root message 1.<flow-id>. Every flow at or above flow-id
moves up by one first. Fails if the flow already exists.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, rootOpts)
			flow, err := engine.ParseFlow(args[0])
			if err != nil {
				return out.Fail(err)
			}
			c, err := content.parse(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				res, err := app.Engine.InsertMainFlow(ctx, flow, c)
				if err != nil {
					return out.Fail(err)
				}
				return flowResult(out, res)
			})
		},
	}
	content.register(cmd)
	return cmd
}

// NewDeleteMainFlowCommand creates the delete-main-flow command.
func NewDeleteMainFlowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-main-flow <flow-id>",
		Short: "Delete a main flow and shift later flows down",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, rootOpts)
			flow, err := engine.ParseFlow(args[0])
			if err != nil {
				return out.Fail(err)
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				res, err := app.Engine.DeleteMainFlow(ctx, flow)
				if err != nil {
					return out.Fail(err)
				}
				return flowResult(out, res)
			})
		},
	}
}

// NewExchangeCommand creates the exchange command.
func NewExchangeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exchange <flow-a> <flow-b>",
		Short: "Swap the positions of two flows",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, rootOpts)
			a, err := engine.ParseFlow(args[0])
			if err != nil {
				return out.Fail(err)
			}
			b, err := engine.ParseFlow(args[1])
			if err != nil {
				return out.Fail(err)
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				res, err := app.Engine.ExchangeFlows(ctx, a, b)
				if err != nil {
					return out.Fail(err)
				}
				return flowResult(out, res)
			})
		},
	}
}
