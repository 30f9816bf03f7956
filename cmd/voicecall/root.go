package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var profilePath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "voicecall",
	Short: "Run realtime voice interviews from the terminal",
	Long: `voicecall connects a microphone to a realtime voice interviewer over WebRTC.

It fetches an ephemeral credential from the interview backend, negotiates the
call, shows the live transcript and the details verification form, and saves
the transcript for analysis when the session is stopped.

Quick Start:
  voicecall run                          # console session with the default profile
  voicecall run --profile interview.yaml # custom fields and questions
  voicecall history                      # sessions recorded in the local archive
  voicecall tool                         # print the verify tool definition

Audio devices, backend URL and the WebSocket UI are configured through
VOICECALL_* environment variables or a .env file.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetOutput(os.Stderr)
		log.SetFlags(log.Ltime | log.Lmicroseconds)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&profilePath, "profile", "p", "", "Interview profile YAML (built-in defaults when empty)")
}
