// Package cli provides the liveproxydemo command-line interface,
// structured after the teacher's blueprints/chat/cli package: a root
// command built with cobra and executed through fang for styled
// help/errors, plus a ui.go helper for formatted terminal output.
package cli

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

var configPath string

// Execute runs the liveproxydemo CLI with the given context.
func Execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:   "liveproxydemo",
		Short: "Live data proxy demo server",
		Long: `liveproxydemo opens a DuckDB-backed Proxy over a single path and
relays its mutation, cursor, and error events to connected websocket
clients, giving the liveproxy core a runnable end-to-end example.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetVersionTemplate("liveproxydemo {{.Version}}\n")
	root.Version = versionString()
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")

	root.AddCommand(newServeCmd(), newTokenCmd())

	if err := fang.Execute(ctx, root, fang.WithVersion(Version), fang.WithCommit(Commit)); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(iconCross+" "+err.Error()))
		return err
	}
	return nil
}

func versionString() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		if bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			return bi.Main.Version
		}
	}
	return "dev"
}
