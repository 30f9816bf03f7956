package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"formvoice/native/internal/config"
	"formvoice/native/internal/verify"
)

var toolCmd = &cobra.Command{
	Use:   "tool",
	Short: "Print the verify tool definition for the profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := config.LoadProfile(profilePath)
		if err != nil {
			return err
		}
		tool, err := verify.NewTool(profile.Verification.Tool, profile.Verification.Fields)
		if err != nil {
			return err
		}
		data, err := tool.JSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toolCmd)
}
