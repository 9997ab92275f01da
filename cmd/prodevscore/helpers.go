package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/jugalmahida/prodevscore/internal/config"
	"github.com/jugalmahida/prodevscore/internal/gateway"
)

// loadConfig loads the global config with the --backend override applied.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if backendURL != "" {
		cfg.BackendURL = backendURL
	}
	return cfg, nil
}

// newGateway builds a backend client with file-backed credentials.
func newGateway() (*gateway.Client, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store := gateway.NewFileStore(gateway.DefaultCredentialsPath(config.DataDir()))
	return gateway.New(cfg.BackendURL, store), cfg, nil
}

// prompt reads one line from stdin, using the flag value when given.
func prompt(label, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Printf("%s: ", label)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func verbosef(format string, args ...any) {
	if verbose {
		fmt.Printf(format, args...)
	}
}
