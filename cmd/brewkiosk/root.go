package main

import (
	"github.com/spf13/cobra"

	"brewcode-go/services/api"
	"brewcode-go/services/config"
)

type rootFlags struct {
	configPath string
	apiAddr    string
	apiKey     string
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:   "brewkiosk",
		Short: "Drink kiosk brew controller",
		Long: `brewkiosk drives the six-indicator brew sequence of a drink kiosk.

'brewkiosk run' starts the controller: hardware abstraction, brew sequencer,
kiosk API uplink, local HTTP API and run journal. The other commands are
clients of a running controller's local API.

Configuration comes from --config (YAML), a .env file and BREW_* variables.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&f.apiAddr, "api", "", "local API address (default: api.listen from config)")
	root.PersistentFlags().StringVar(&f.apiKey, "api-key", "", "local API key (default: api.api_key from config)")

	root.AddCommand(
		newRunCmd(f),
		newConfigCmd(f),
		newOrderCmd(f),
		newTriggerCmd(f),
		newAbortCmd(f),
		newStateCmd(f),
	)
	return root
}

// client builds a local API client from flags, falling back to the config.
func (f *rootFlags) client() (*api.Client, error) {
	addr, key := f.apiAddr, f.apiKey
	if addr == "" || key == "" {
		cfg, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		if addr == "" {
			addr = cfg.API.Listen
		}
		if key == "" {
			key = cfg.API.APIKey
		}
	}
	return api.NewClient(addr, key), nil
}
