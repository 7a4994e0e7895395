package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/flowtree/internal/engine"
	"github.com/roach88/flowtree/internal/ir"
)

// contentFlag selects how a content argument is read.
type contentFlag struct {
	JSON bool
}

func (c *contentFlag) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&c.JSON, "json", false, "parse content as a JSON document instead of plain text")
}

func (c contentFlag) parse(s string) (ir.Content, error) {
	if !c.JSON {
		return ir.NewTextContent(s), nil
	}
	content, err := ir.ParseContent([]byte(s))
	if err != nil {
		return ir.Content{}, WrapExitError(ExitCommandError, "invalid JSON content", err)
	}
	return content, nil
}

// parseTarget parses a flow id and identifier argument pair.
func parseTarget(flowArg, identifierArg string) (ir.FlowID, ir.Path, error) {
	flow, err := engine.ParseFlow(flowArg)
	if err != nil {
		return 0, nil, err
	}
	path, err := engine.ParseIdentifier(identifierArg)
	if err != nil {
		return 0, nil, err
	}
	return flow, path, nil
}

func printMessage(w io.Writer, m ir.Message) {
	fmt.Fprintf(w, "%-12s %s  [%s]\n", m.Identifier, m.Content, m.ID)
}

// NewInsertCommand creates the insert command.
func NewInsertCommand(rootOpts *RootOptions) *cobra.Command {
	var content contentFlag

	cmd := &cobra.Command{
		Use:   "insert <flow-id> <identifier> <content>",
		Short: "Insert a message, shifting later siblings",
		Long: `Insert a message at identifier. The sibling at that position and every
later sibling move up by one, together with their subtrees.

Identifiers of depth 2 (1.<flow>) are flow roots; use insert-flow.

Examples:
  flowtree insert 1 1.1.2 "hello"
  flowtree insert 1 1.1.2 '{"text":"hi"}' --json`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, rootOpts)
			flow, path, err := parseTarget(args[0], args[1])
			if err != nil {
				return out.Fail(err)
			}
			c, err := content.parse(args[2])
			if err != nil {
				return err
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				msg, err := app.Engine.InsertMessage(ctx, flow, path, c)
				if err != nil {
					return out.Fail(err)
				}
				return out.Render(msg, func(w io.Writer) {
					fmt.Fprintf(w, "Message created at %s (%s)\n", msg.Identifier, msg.ID)
				})
			})
		},
	}
	content.register(cmd)
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <flow-id> <identifier>",
		Short: "Delete a message, closing the gap",
		Long: `Delete the message at identifier and shift every later sibling down by
one. Deleting a missing message is not an error.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, rootOpts)
			flow, path, err := parseTarget(args[0], args[1])
			if err != nil {
				return out.Fail(err)
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				msg, err := app.Engine.DeleteMessage(ctx, flow, path)
				if err != nil {
					return out.Fail(err)
				}
				return out.Success(msg)
			})
		},
	}
}

// DeleteFlowResult is the JSON payload of delete-flow.
type DeleteFlowResult struct {
	Flow    ir.FlowID `json:"flowId"`
	Deleted int       `json:"deleted"`
}

// NewDeleteFlowCommand creates the delete-flow command.
func NewDeleteFlowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-flow <flow-id>",
		Short: "Delete every message of a flow without renumbering",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, rootOpts)
			flow, err := engine.ParseFlow(args[0])
			if err != nil {
				return out.Fail(err)
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				n, err := app.Engine.DeleteMessagesByFlow(ctx, flow)
				if err != nil {
					return out.Fail(err)
				}
				if n == 0 {
					return out.Rejected(engine.FlowResult{
						Code:    engine.CodeFlowNotFound,
						Message: fmt.Sprintf("no messages found for flow %s", flow),
					})
				}
				return out.Render(DeleteFlowResult{Flow: flow, Deleted: n}, func(w io.Writer) {
					fmt.Fprintf(w, "%d messages deleted from flow %s\n", n, flow)
				})
			})
		},
	}
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		content contentFlag
		to      string
		text    string
	)

	cmd := &cobra.Command{
		Use:   "update <flow-id> <identifier>",
		Short: "Rename a message within its parent or replace its content",
		Long: `Update the message at identifier.

--to renames it within the same parent; every other sibling at or above
the old position moves up by one. --content replaces the payload.

Examples:
  flowtree update 1 1.1.2 --content "edited"
  flowtree update 1 1.1.3 --to 1.1.1`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, rootOpts)
			flow, path, err := parseTarget(args[0], args[1])
			if err != nil {
				return out.Fail(err)
			}

			var upd engine.MessageUpdate
			if to != "" {
				next, err := engine.ParseIdentifier(to)
				if err != nil {
					return out.Fail(err)
				}
				upd.Identifier = next
			}
			if cmd.Flags().Changed("content") {
				c, err := content.parse(text)
				if err != nil {
					return err
				}
				upd.Content = &c
			}
			if upd.Identifier == nil && upd.Content == nil {
				return NewExitError(ExitCommandError, "nothing to update: pass --to and/or --content")
			}

			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				if err := app.Engine.UpdateMessage(ctx, flow, path, upd); err != nil {
					return out.Fail(err)
				}
				return out.Success(fmt.Sprintf("Message %s updated", path))
			})
		},
	}
	content.register(cmd)
	cmd.Flags().StringVar(&to, "to", "", "new identifier (same parent)")
	cmd.Flags().StringVar(&text, "content", "", "replacement content")
	return cmd
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		flowArg string
		flows   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List messages in identifier order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, rootOpts)
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App) error {
				if flows {
					summaries, err := app.Engine.ListFlows(ctx)
					if err != nil {
						return out.Fail(err)
					}
					return out.Render(summaries, func(w io.Writer) {
						for _, s := range summaries {
							root := "(no root)"
							if s.Root != nil {
								root = s.Root.Content.String()
							}
							fmt.Fprintf(w, "flow %-4s %3d messages  %s\n", s.Flow, s.Messages, root)
						}
					})
				}

				var (
					msgs []ir.Message
					err  error
				)
				if flowArg != "" {
					flow, perr := engine.ParseFlow(flowArg)
					if perr != nil {
						return out.Fail(perr)
					}
					msgs, err = app.Engine.ListFlowMessages(ctx, flow)
				} else {
					msgs, err = app.Engine.ListMessages(ctx)
				}
				if err != nil {
					return out.Fail(err)
				}
				return out.Render(msgs, func(w io.Writer) {
					if len(msgs) == 0 {
						fmt.Fprintln(w, "No messages.")
					}
					for _, m := range msgs {
						printMessage(w, m)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&flowArg, "flow", "", "only list this flow")
	cmd.Flags().BoolVar(&flows, "flows", false, "list flow summaries instead of messages")
	return cmd
}
