package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/evintel/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long:  "Create .evintel.yaml in the current directory with documented defaults.",
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(_ *cobra.Command, _ []string) error {
	path := ".evintel.yaml"
	if cfgFile != "" {
		path = cfgFile
	}
	if err := config.WriteDefault(path); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
