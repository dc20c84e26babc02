// Command recordstore runs the record store API and its maintenance tasks.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/R3E-Network/recordstore/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
