// posh is a POSIX-style interactive command shell.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var command string
	var forceInteractive bool

	root := &cobra.Command{
		Use:   "posh [script]",
		Short: "posh is a POSIX-style command-line shell",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shell := NewShell()
			if forceInteractive {
				shell.Interactive = true
			}

			if command != "" {
				status, err := shell.ExecuteLine(command)
				if err != nil {
					fmt.Fprintf(os.Stderr, "posh: %v\n", err)
				}
				os.Exit(status)
			}

			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					fmt.Fprintf(os.Stderr, "posh: %s: %v\n", args[0], err)
					os.Exit(1)
				}
				defer f.Close()
				shell.Stdin = f
				shell.Interactive = false
			}

			os.Exit(shell.Run())
			return nil
		},
	}

	root.Flags().StringVarP(&command, "command", "c", "", "execute a single command and exit")
	root.Flags().BoolVarP(&forceInteractive, "interactive", "i", false, "force interactive mode")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
