package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/averyk/diskpuri/internal/config"
	"github.com/averyk/diskpuri/internal/device"
	"github.com/averyk/diskpuri/internal/journal"
	"github.com/averyk/diskpuri/internal/lifecycle"
	"github.com/averyk/diskpuri/internal/schema"
	"github.com/averyk/diskpuri/internal/source"
	"github.com/averyk/diskpuri/internal/wipe"
	"github.com/averyk/diskpuri/plugins"
)

var runFlags struct {
	device string
	schema string
	loop   bool
	yes    bool
	force  bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an overwrite schema without the TUI",
	Long: "Loads a schema file and executes every pass against the target\n" +
		"device. Interrupting with SIGINT or SIGTERM stops the writer and\n" +
		"releases resources before exiting.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runSchema,
}

func init() {
	runCmd.Flags().StringVarP(&runFlags.device, "device", "d", "", "target device, overrides the schema's device")
	runCmd.Flags().StringVarP(&runFlags.schema, "schema", "f", "", "path to a schema YAML file (required)")
	runCmd.Flags().BoolVar(&runFlags.loop, "loop", false, "repeat the schema until interrupted")
	runCmd.Flags().BoolVarP(&runFlags.yes, "yes", "y", false, "skip the confirmation prompt")
	runCmd.Flags().BoolVar(&runFlags.force, "force", false, "allow targets that are not block devices")
	_ = runCmd.MarkFlagRequired("schema")
	rootCmd.AddCommand(runCmd)
}

func runSchema(cmd *cobra.Command, args []string) error {
	if !runFlags.force {
		if err := requireRoot(); err != nil {
			return err
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	if err := config.InitDir(cwd); err != nil {
		return err
	}
	cfg, err := config.New(cwd)
	if err != nil {
		return err
	}
	jnl, err := journal.New(cfg.JournalPath())
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	sources := source.Defaults()
	defs, err := plugins.LoadDir(cfg.PatternsDir())
	if err != nil {
		return err
	}
	if err := plugins.Install(sources, defs); err != nil {
		return err
	}

	sc, err := schema.Load(runFlags.schema, sources.CustomTypes())
	if err != nil {
		return err
	}
	if runFlags.device != "" {
		sc.Device = runFlags.device
	}
	if runFlags.loop {
		sc.Loop = true
	}
	if strings.TrimSpace(sc.Device) == "" {
		return fmt.Errorf("no target device: set one in the schema or pass --device")
	}

	if err := device.Validate(sc.Device, runFlags.force); err != nil {
		return err
	}
	if size, err := device.Size(sc.Device); err == nil && size > 0 {
		fmt.Printf("target %s (%s)\n", sc.Device, humanize.IBytes(size))
	} else {
		fmt.Printf("target %s (size unknown)\n", sc.Device)
	}

	if !runFlags.yes {
		if !confirmDestruction(sc.Device) {
			return errCancelled
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	invoker := wipe.NewInvoker(
		wipe.WithWriterCommand(cfg.WriterCommand()...),
		wipe.WithTerminateWait(time.Duration(cfg.Settings.TerminateWaitSeconds)*time.Second),
	)
	runner := wipe.NewRunner(sources, invoker, lifecycle.NewRegistry(),
		wipe.WithLogger(jnl),
		wipe.WithEvents(printEvent),
	)

	jnl.StartRun(sc.Device, len(sc.Passes), sc.Loop)
	outcome, err := runner.Run(ctx, sc)
	if err != nil {
		return err
	}
	if outcome == wipe.RunCancelled {
		return errCancelled
	}
	fmt.Println("all passes completed")
	return nil
}

// confirmDestruction makes the operator retype the device path. A plain
// y/n is too easy to answer on autopilot for something this final.
func confirmDestruction(target string) bool {
	fmt.Printf("This will destroy all data on %s.\nType the device path to continue: ", target)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(line) == target
}

// printEvent renders runner progress for a plain terminal. Progress lines
// overwrite in place the way dd itself does.
func printEvent(ev wipe.Event) {
	switch ev.Kind {
	case wipe.EventPassStart:
		fmt.Printf("pass %d/%d: %s\n", ev.Pass, ev.Total, ev.Spec.Summary())
	case wipe.EventPassLine:
		fmt.Printf("\r%s", ev.Line)
	case wipe.EventPassDone:
		fmt.Printf("\rpass %d/%d %s: %s\n", ev.Pass, ev.Total, ev.Spec.Summary(), ev.Result.Status)
	}
}
