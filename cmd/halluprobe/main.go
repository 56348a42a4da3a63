// halluprobe measures hallucination, abstention and accuracy of a language
// model across prompting conditions.
//
// Usage:
//
//	halluprobe generate [--questions path] [--generations path] [--provider name] [--conditions list]
//	halluprobe score    [--generations path] [--scored path] [--threshold x]
//	halluprobe analyze  [--scored path] [--summary path] [--plots dir] [--check]
//	halluprobe run      [flags of all three stages]
//	halluprobe replay   --fixture path [--fixture path ...]
//	halluprobe inspect  --db path [run-id]
//	halluprobe export-fixture --out path (--run id | --scored path --generations path)
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command tree and returns the process exit code.
func execute(ctx context.Context, args []string, out, errOut io.Writer) int {
	root := newRootCmd(out, errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
	}
	return exitCode(err)
}
