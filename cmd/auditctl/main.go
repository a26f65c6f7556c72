// Package main provides auditctl, an offline tool to verify and export the
// audit hash chains of a configured store.
//
// Import Path: agritrace.io/agritrace/cmd/auditctl
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"agritrace.io/agritrace/internal/audit"
	"agritrace.io/agritrace/internal/config"
	"agritrace.io/agritrace/internal/infrastructure"
	"agritrace.io/agritrace/internal/pkg/logger"
)

// errChainBroken makes verify exit non-zero without printing usage.
var errChainBroken = errors.New("audit chain integrity violated")

// serviceOpener opens the audit service for a config file. An empty path
// uses the default config search locations.
type serviceOpener func(ctx context.Context, configPath string) (*audit.Service, func(), error)

func main() {
	if err := newRootCmd(openService, os.Stdout).Execute(); err != nil {
		if !errors.Is(err, errChainBroken) {
			fmt.Fprintf(os.Stderr, "auditctl: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd(open serviceOpener, out io.Writer) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "auditctl",
		Short:         "Verify and export AgriTrace audit chains",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	withService := func(cmd *cobra.Command, fn func(*audit.Service) error) error {
		svc, closeFn, err := open(cmd.Context(), configPath)
		if err != nil {
			return err
		}
		defer closeFn()
		return fn(svc)
	}

	root.AddCommand(newVerifyCmd(withService), newDumpCmd(withService))
	return root
}

func openService(ctx context.Context, configPath string) (*audit.Service, func(), error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	// Diagnostics go to stderr so stdout stays machine readable.
	if err := logger.Init(cfg.Log.Level, "console"); err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	scopes, err := audit.ParseScopeMode(cfg.Audit.ChainScope)
	if err != nil {
		return nil, nil, err
	}

	var db *infrastructure.DatabaseClients
	if cfg.Audit.Store == config.StorePostgres {
		db, err = infrastructure.NewDatabaseClients(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
	}

	var store audit.Store
	if db != nil {
		store, err = infrastructure.OpenAuditStore(ctx, cfg.Audit, db.Pool)
	} else {
		store, err = infrastructure.OpenAuditStore(ctx, cfg.Audit, nil)
	}
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	closeFn := func() {
		_ = store.Close()
		db.Close()
		_ = logger.Sync()
	}
	return audit.NewService(store, scopes), closeFn, nil
}
