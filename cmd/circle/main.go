// Command circle is the command line client for shared savings groups.
package main

import (
	"os"

	"github.com/mmynk/savingcircle/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		format, _ := cmd.PersistentFlags().GetString("format")
		out := &cli.OutputFormatter{Format: format, Writer: os.Stdout, ErrWriter: os.Stderr}
		_ = out.Error(err)
		os.Exit(cli.GetExitCode(err))
	}
}
