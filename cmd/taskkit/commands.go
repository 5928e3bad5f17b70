package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vinayprograms/taskkit/errors"
	"github.com/vinayprograms/taskkit/export"
	"github.com/vinayprograms/taskkit/task"
	"github.com/vinayprograms/taskkit/tracker"
)

func addCmd() *cobra.Command {
	var tags []string
	cmd := &cobra.Command{
		Use:   "add [content]",
		Short: "Add a new pending task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(func(tr *tracker.Tracker) error {
				created, err := tr.Add(args[0], tags)
				if err != nil {
					return err
				}
				return succeed(created)
			})
		},
	}
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "tag (repeatable)")
	return cmd
}

func listCmd() *cobra.Command {
	var (
		state           string
		tags            []string
		text            string
		includeArchived bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(func(tr *tracker.Tracker) error {
				tasks, err := tr.List(tracker.ListOptions{
					State:           task.State(state),
					Tags:            tags,
					Text:            text,
					IncludeArchived: includeArchived,
				})
				if err != nil {
					return err
				}
				return succeed(tasks)
			})
		},
	}
	cmd.Flags().StringVarP(&state, "state", "s", "", "filter by state (pending, active, completed, archived)")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "filter by tag, all must match (repeatable)")
	cmd.Flags().StringVarP(&text, "text", "q", "", "full-text filter over content and tags")
	cmd.Flags().BoolVarP(&includeArchived, "include-archived", "a", false, "include archived tasks")
	return cmd
}

// transitionCmd builds the shared shape of start/done/reopen.
func transitionCmd(use, short string, op func(*tracker.Tracker, string) (*task.Task, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(func(tr *tracker.Tracker) error {
				tk, err := op(tr, args[0])
				if err != nil {
					return err
				}
				return succeed(tk)
			})
		},
	}
}

func startCmd() *cobra.Command {
	return transitionCmd("start", "Move a pending task to active",
		func(tr *tracker.Tracker, id string) (*task.Task, error) { return tr.Start(id) })
}

func doneCmd() *cobra.Command {
	return transitionCmd("done", "Complete an active task",
		func(tr *tracker.Tracker, id string) (*task.Task, error) { return tr.Complete(id) })
}

func reopenCmd() *cobra.Command {
	return transitionCmd("reopen", "Return a recently completed task to pending",
		func(tr *tracker.Tracker, id string) (*task.Task, error) { return tr.Reopen(id) })
}

func updateCmd() *cobra.Command {
	var (
		content string
		tags    []string
	)
	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Edit a task's content or tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			upd := tracker.Update{}
			if cmd.Flags().Changed("content") {
				upd.Content = &content
			}
			if cmd.Flags().Changed("tag") {
				upd.Tags = &tags
			}
			return withTracker(func(tr *tracker.Tracker) error {
				tk, err := tr.Update(args[0], upd)
				if err != nil {
					return err
				}
				return succeed(tk)
			})
		},
	}
	cmd.Flags().StringVarP(&content, "content", "c", "", "new content")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "replacement tag set (repeatable)")
	return cmd
}

func reorderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reorder [id] [position]",
		Short: "Move a task to a new position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := strconv.Atoi(args[1])
			if err != nil {
				return errors.Validation(fmt.Sprintf("position %q is not a number", args[1]))
			}
			return withTracker(func(tr *tracker.Tracker) error {
				if err := tr.Reorder(args[0], position); err != nil {
					return err
				}
				tasks, err := tr.List(tracker.ListOptions{})
				if err != nil {
					return err
				}
				return succeed(tasks)
			})
		},
	}
}

func archiveCmd() *cobra.Command {
	var allCompleted bool
	cmd := &cobra.Command{
		Use:   "archive [id]",
		Short: "Archive a completed task",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if allCompleted {
				return withTracker(func(tr *tracker.Tracker) error {
					archived, err := tr.ArchiveCompleted()
					if err != nil {
						return err
					}
					return succeed(archived)
				})
			}
			if len(args) != 1 {
				return errors.Validation("archive needs a task id or --all-completed")
			}
			return withTracker(func(tr *tracker.Tracker) error {
				tk, err := tr.Archive(args[0])
				if err != nil {
					return err
				}
				return succeed(tk)
			})
		},
	}
	cmd.Flags().BoolVar(&allCompleted, "all-completed", false, "archive every completed task")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Remove a task permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(func(tr *tracker.Tracker) error {
				if err := tr.Delete(args[0]); err != nil {
					return err
				}
				return succeed(map[string]string{"deleted": args[0]})
			})
		},
	}
}

func metricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show aggregate task statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(func(tr *tracker.Tracker) error {
				return succeed(tr.Metrics())
			})
		},
	}
}

// integrityCmd is check-only. Repair runs through the scheduler or a
// maintenance path, never as a bare command, so a stray invocation
// cannot rewrite the store.
func integrityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "integrity",
		Short: "Report structural anomalies without changing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(func(tr *tracker.Tracker) error {
				anomalies := tr.CheckIntegrity()
				return succeed(map[string]any{
					"anomalies": anomalies,
					"count":     len(anomalies),
				})
			})
		},
	}
}

func exportCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render a snapshot of all tasks, metrics, and tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			return withTracker(func(tr *tracker.Tracker) error {
				out, err := export.Render(tr.Snapshot(), f)
				if err != nil {
					return err
				}
				fmt.Print(string(out))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "output format (markdown, json, yaml)")
	return cmd
}
