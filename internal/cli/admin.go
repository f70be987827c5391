package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"issuewatch/internal/config"
	"issuewatch/internal/monitor"
	"issuewatch/internal/storage"
	"issuewatch/internal/tracker"
	"issuewatch/pkg/logx"
)

// Admin commands operate on the task store directly and are meant to be used
// while the daemon is stopped; a running daemon picks the changes up on its
// next restart.

var addCmd = &cobra.Command{
	Use:   "add <source-url>",
	Short: "Validate a tracker item and add it to the watch list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		source := args[0]
		key, endpoint, err := tracker.Endpoint(source)
		if err != nil {
			return err
		}

		existing, err := store.LoadTasks(ctx)
		if err != nil {
			return err
		}
		if _, ok := existing[key]; ok {
			return fmt.Errorf("task %s already exists", key)
		}

		tcfg, err := trackerConfig(cfg)
		if err != nil {
			return err
		}
		client := tracker.NewClient(tcfg, logx.NewConsole(cfg.Logging.Level))
		if _, err := client.Probe(ctx, endpoint); err != nil {
			return fmt.Errorf("validate %s: %w", source, err)
		}

		rec := storage.TaskRecord{
			ID:        key,
			Source:    source,
			Endpoint:  endpoint,
			Status:    string(monitor.StatusMonitoring),
			CreatedAt: time.Now(),
		}
		if err := store.SaveTask(ctx, rec); err != nil {
			return err
		}
		fmt.Printf("added %s (%s)\n", key, endpoint)
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <task-id>",
	Short: "Remove a task from the watch list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		id := args[0]
		recs, err := store.LoadTasks(ctx)
		if err != nil {
			return err
		}
		if _, ok := recs[id]; !ok {
			return fmt.Errorf("task %s not found", id)
		}
		if err := store.DeleteTask(ctx, id); err != nil {
			return err
		}
		fmt.Printf("removed %s\n", id)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		recs, err := store.LoadTasks(ctx)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Println("No tasks watched.")
			return nil
		}

		ids := make([]string, 0, len(recs))
		for id := range recs {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tERRORS\tLAST CHECK\tLAST CHANGE\tSOURCE")
		for _, id := range ids {
			rec := recs[id]
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
				rec.ID, rec.Status, rec.ConsecutiveErrors,
				formatWhen(rec.LastCheckAt), formatWhen(rec.LastChangeAt), rec.Source)
		}
		return w.Flush()
	},
}

var showCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show a task's last known snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		id := args[0]
		recs, err := store.LoadTasks(ctx)
		if err != nil {
			return err
		}
		rec, ok := recs[id]
		if !ok {
			return fmt.Errorf("task %s not found", id)
		}
		fmt.Printf("task:        %s\n", rec.ID)
		fmt.Printf("source:      %s\n", rec.Source)
		fmt.Printf("status:      %s\n", rec.Status)
		fmt.Printf("last check:  %s\n", formatWhen(rec.LastCheckAt))
		fmt.Printf("last change: %s\n", formatWhen(rec.LastChangeAt))
		if rec.ConsecutiveErrors > 0 {
			fmt.Printf("errors:      %d consecutive\n", rec.ConsecutiveErrors)
		}
		if snap := rec.Snapshot; snap != nil {
			fmt.Printf("\nsnapshot:\n")
			fmt.Printf("  status:     %s\n", snap.Status)
			fmt.Printf("  assignee:   %s\n", orDash(snap.Assignee))
			fmt.Printf("  priority:   %s\n", orDash(snap.Priority))
			fmt.Printf("  resolution: %s\n", orDash(snap.Resolution))
			fmt.Printf("  comments:   %d\n", len(snap.Comments))
			for _, c := range tail(snap.Comments, 3) {
				fmt.Printf("    [%s] %s: %s\n", c.Created.Format("2006-01-02 15:04"), c.Author, c.Body)
			}
		} else {
			fmt.Println("\nno snapshot yet (first check pending)")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd, removeCmd, listCmd, showCmd)
}

// openStore opens the configured store and rejects the disabled driver, which
// would make every admin command a silent no-op.
func openStore(cfg *config.Config) (storage.Store, error) {
	scfg, err := storageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(scfg, logx.Nop())
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("storage is disabled (storage.driver=%q); admin commands need a persistent store", cfg.Storage.Driver)
	}
	return store, nil
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func tail(cs []tracker.Comment, n int) []tracker.Comment {
	if len(cs) <= n {
		return cs
	}
	return cs[len(cs)-n:]
}
