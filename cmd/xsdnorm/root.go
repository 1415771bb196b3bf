package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var debugLogging bool

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "xsdnorm",
	Short: "Validate and normalize XML documents against XSD schemas",
	Long: `xsdnorm compiles XSD schema documents into an in-memory registry
and uses it to validate XML documents, producing a normalized value
tree where leaves are decoded to their declared native types.`,
}

// Execute adds all child commands to rootCmd and runs it. Called once
// from main.main().
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "use debug level logging")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if debugLogging {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	}
}
