// Command recipesync likes, unlikes and lists favorite recipes against the
// recipe API, and encodes the capability masks profiles and recipes share.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/recipesync/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
