package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/champschool/champdesk/internal/config"
	"github.com/champschool/champdesk/internal/gateway"
	"github.com/champschool/champdesk/internal/store"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "champdesk",
	Short: "Offline-first sync for the school administrative console",
	Long: `champdesk keeps a local SQLite mirror of the school's hosted database
and reconciles it in the background.

Writes land in the mirror first and are pushed to the hosted database when
connectivity allows, so the console keeps working through outages. A
reconciliation cycle pushes pending local changes, then pulls every table
back down, skipping records that still have unacknowledged local edits.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"Config file (default: ./champdesk.yaml if present)")
}

func loadConfig() (*config.Config, error) {
	return config.Load(configFile)
}

// openStore opens the mirror and makes sure its schema exists.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := st.InitSchema(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// openGateway connects to the hosted database. Errors out when no remote
// URL is configured.
func openGateway(cfg *config.Config) (*gateway.Remote, error) {
	if cfg.RemoteURL == "" {
		return nil, fmt.Errorf("no remote_url configured (set CHAMPDESK_REMOTE_URL or remote_url in the config file)")
	}
	return gateway.OpenRemote(remoteURL(cfg))
}

func remoteURL(cfg *config.Config) string {
	url := cfg.RemoteURL
	if cfg.AuthToken == "" || strings.Contains(url, "authToken=") {
		return url
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "authToken=" + cfg.AuthToken
}
