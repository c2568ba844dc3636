package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "appliance-router",
	Short: "Conversational router for refrigerator and dishwasher help requests",
	Long: `appliance-router classifies a customer's request, collects the appliance model number
and the kind of help needed over several turns, and hands the completed request to a help handler.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "Optional dotenv file loaded before reading the environment")
}

func main() {
	Execute()
}
