package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"invoicemix/internal/scenario"
)

// namePrompt returns a fixed name when one was given on the command line,
// and otherwise asks on stdin.
func namePrompt(cmd *cobra.Command, name string) scenario.NamePrompt {
	if name != "" {
		return func(context.Context, string) (string, bool) { return name, true }
	}
	return readerPrompt(cmd.InOrStdin(), cmd.OutOrStdout())
}

// readerPrompt asks for a scenario name. An empty line accepts the default
// name; end of input cancels.
func readerPrompt(in io.Reader, out io.Writer) scenario.NamePrompt {
	return func(ctx context.Context, defaultName string) (string, bool) {
		fmt.Fprintf(out, "Scenario name [%s]: ", defaultName)

		line, err := bufio.NewReader(in).ReadString('\n')
		if ctx.Err() != nil || (err != nil && line == "") {
			return "", false
		}
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			return defaultName, true
		}
		return line, true
	}
}
