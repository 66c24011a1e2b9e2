package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tgienger/projectflow/internal/models"
	"github.com/tgienger/projectflow/internal/ui/views"
)

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// withTracker runs fn against a wired runtime and closes it afterwards
func withTracker(cmd *cobra.Command, flags *rootFlags, fn func(ctx context.Context, rt *runtime) error) error {
	rt, err := setup(cmd, flags, false)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(commandContext(cmd), rt)
}

func projectsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects with their progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(cmd, flags, func(ctx context.Context, rt *runtime) error {
				snap, err := rt.tracker.LoadAll(ctx)
				if err != nil {
					return err
				}
				writeProjects(cmd.OutOrStdout(), snap, rt.tracker.Today())
				return nil
			})
		},
	}
}

func tasksCmd(flags *rootFlags) *cobra.Command {
	var project, status, priority string
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks, optionally filtered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(cmd, flags, func(ctx context.Context, rt *runtime) error {
				snap, err := rt.tracker.LoadAll(ctx)
				if err != nil {
					return err
				}
				filter, err := parseTaskFilter(snap, project, status, priority)
				if err != nil {
					return err
				}
				writeTasks(cmd.OutOrStdout(), snap, snap.Filter(filter), rt.tracker.Today())
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "project id or name")
	cmd.Flags().StringVarP(&status, "status", "s", "", "todo, in-progress or completed")
	cmd.Flags().StringVar(&priority, "priority", "", "low, medium or high")
	return cmd
}

// parseTaskFilter validates the flag values. project matches an id or,
// case-insensitively, a name.
func parseTaskFilter(snap *models.Snapshot, project, status, priority string) (models.TaskFilter, error) {
	var f models.TaskFilter
	if status != "" {
		f.Status = models.TaskStatus(status)
		if !f.Status.Valid() {
			return f, fmt.Errorf("unknown status %q", status)
		}
	}
	if priority != "" {
		f.Priority = models.Priority(priority)
		if !f.Priority.Valid() {
			return f, fmt.Errorf("unknown priority %q", priority)
		}
	}
	if project != "" {
		for _, p := range snap.Projects {
			if p.ID == project || strings.EqualFold(p.Name, project) {
				f.ProjectID = p.ID
				break
			}
		}
		if f.ProjectID == "" {
			return f, fmt.Errorf("no project %q", project)
		}
	}
	return f, nil
}

func dueCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "due [YYYY-MM-DD]",
		Short: "List tasks due on a date (default today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(cmd, flags, func(ctx context.Context, rt *runtime) error {
				day := rt.tracker.Today()
				if len(args) == 1 {
					d, err := models.ParseDate(args[0])
					if err != nil {
						return err
					}
					day = d
				}
				// bootstrap first so a fresh store is seeded
				snap, err := rt.tracker.LoadAll(ctx)
				if err != nil {
					return err
				}
				tasks, err := rt.tracker.TasksDueOn(ctx, day)
				if err != nil {
					return err
				}
				models.SortTasks(tasks)
				fmt.Fprintf(cmd.OutOrStdout(), "Due %s (%s)\n", views.FormatDate(day), views.DueLabel(day, rt.tracker.Today()))
				writeTasks(cmd.OutOrStdout(), snap, tasks, rt.tracker.Today())
				return nil
			})
		},
	}
}

func statsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(cmd, flags, func(ctx context.Context, rt *runtime) error {
				snap, err := rt.tracker.LoadAll(ctx)
				if err != nil {
					return err
				}
				writeStats(cmd.OutOrStdout(), snap, rt.tracker.Today())
				return nil
			})
		},
	}
}

func exportCmd(flags *rootFlags) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all projects and tasks as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTracker(cmd, flags, func(ctx context.Context, rt *runtime) error {
				snap, err := rt.tracker.LoadAll(ctx)
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					return exportSnapshot(cmd.OutOrStdout(), snap, format)
				}
				return exportFile(output, snap, format)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default stdout)")
	return cmd
}

// exportFile writes the snapshot to path. A failed close is reported since
// it can be the write that hit the disk.
func exportFile(path string, snap *models.Snapshot, format string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return exportSnapshot(f, snap, format)
}

func exportSnapshot(w io.Writer, snap *models.Snapshot, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown format %q (want json or yaml)", format)
}

func resetCmd(flags *rootFlags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all data and run first-start setup again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("reset deletes every project and task; pass --yes to confirm")
			}
			return withTracker(cmd, flags, func(ctx context.Context, rt *runtime) error {
				snap, err := rt.tracker.Reset(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset complete: %d projects, %d tasks\n", len(snap.Projects), len(snap.Tasks))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deletion")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "projectflow %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func writeProjects(w io.Writer, snap *models.Snapshot, today models.Date) {
	if len(snap.Projects) == 0 {
		fmt.Fprintln(w, "No projects.")
		return
	}
	for _, p := range snap.Projects {
		pr := snap.Progress(p.ID, today)
		fmt.Fprintf(w, "%-40s %-10s %3d%%  %d/%d tasks  %s\n",
			p.Name, p.Status, pr.Percent, pr.Completed, pr.Total, views.DueLabel(p.DueDate, today))
		fmt.Fprintf(w, "  %s\n", p.ID)
	}
}

func writeTasks(w io.Writer, snap *models.Snapshot, tasks []models.Task, today models.Date) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return
	}
	for _, t := range tasks {
		mark := " "
		if t.Status == models.TaskCompleted {
			mark = "x"
		}
		fmt.Fprintf(w, "[%s] %-40s %-7s %-12s %-24s %s\n",
			mark, t.Title, t.Priority, t.Status, snap.ProjectName(t.ProjectID), views.DueLabel(t.DueDate, today))
	}
}

func writeStats(w io.Writer, snap *models.Snapshot, today models.Date) {
	st := snap.Stats(today)
	rows := []struct {
		label string
		value int
	}{
		{"Projects:", st.TotalProjects},
		{"Active:", st.ActiveTasks},
		{"Completed:", st.CompletedTasks},
		{"Due today:", st.DueToday},
		{"Overdue:", st.OverdueTasks},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "  %-12s %s\n", r.label, humanize.Comma(int64(r.value)))
	}

	if recent := snap.Activity(3); len(recent) > 0 {
		now := today.Time().Add(12 * time.Hour)
		fmt.Fprintln(w, "\nRecent activity:")
		for _, a := range recent {
			fmt.Fprintf(w, "  %s (%s)\n", a.Text, views.RelativeDate(a.When, now))
		}
	}
}
