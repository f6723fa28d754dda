package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prasenjit/go-mockserver/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize go-mockserver with default configuration and directory structure",
	Long: `Creates the default configuration file (config.yaml) and data directory.

This command will:
  - Create config.yaml with default settings
  - Create data/ directory for file storage
  - Create data/certs/ directory for generated TLS certificates

If config.yaml already exists, it will not be overwritten unless --force is used.`,
	RunE: runInit,
}

var (
	initForce bool
	initPath  string
)

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing config file")
	initCmd.Flags().StringVarP(&initPath, "path", "p", ".", "Path where to initialize (default: current directory)")
}

func runInit(cmd *cobra.Command, args []string) error {
	absPath, err := filepath.Abs(initPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	configFile := filepath.Join(absPath, "config.yaml")
	dataDir := filepath.Join(absPath, "data")

	if _, err := os.Stat(configFile); err == nil && !initForce {
		return fmt.Errorf("config.yaml already exists. Use --force to overwrite")
	}

	for _, dir := range []string{dataDir, filepath.Join(dataDir, "certs")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created directory: %s\n", dir)
	}

	data, err := defaultConfigYAML()
	if err != nil {
		return fmt.Errorf("failed to generate config: %w", err)
	}
	if err := os.WriteFile(configFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file: %s\n", configFile)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Initialization complete! You can now start the server with:")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  cd %s\n", absPath)
	fmt.Fprintln(out, "  go-mockserver serve")
	fmt.Fprintln(out)

	return nil
}

// defaultConfigYAML renders the default configuration with a relative data path
func defaultConfigYAML() ([]byte, error) {
	cfg := config.Default()
	cfg.Storage.Path = "./data"

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}

	header := "# go-mockserver configuration\n" +
		"# Every key can be overridden with MOCKSERVER_<SECTION>_<KEY>, e.g. MOCKSERVER_SERVER_PORT.\n\n"
	return append([]byte(header), data...), nil
}
