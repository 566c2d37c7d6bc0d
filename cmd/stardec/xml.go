package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newXMLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "xml <file>",
		Short: "Decode a binary markup file to XML on stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return writeMarkup(cmd, data)
		},
	}
}
