package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eringen/pubhost/scaffold"
)

var (
	initName  string
	initURL   string
	initForce bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file with a fresh session secret",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().StringVar(&initName, "name", "pubhost", "platform name")
	initCmd.Flags().StringVar(&initURL, "url", "http://localhost:3000", "public base URL")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if initForce {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(configPath, flags, 0o600)
	if os.IsExist(err) {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := scaffold.NewConfigData(initName, initURL)
	if err != nil {
		return err
	}
	if err := scaffold.WriteConfig(f, data); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
	return nil
}
