package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/MegaGrindStone/idea-generator/internal/services"
	"github.com/spf13/cobra"
)

const (
	dbEnv     = "IDEAGEN_DB"
	secretEnv = "IDEAGEN_SECRET"
)

var errMissingSecret = errors.New("a signing secret is required, pass --secret or set " + secretEnv)

type app struct {
	dbPath string
	secret string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "ideactl",
		Short:         "Manage idea generator users and sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&a.dbPath, "db", os.Getenv(dbEnv), "path to the user store (env "+dbEnv+")")
	rootCmd.PersistentFlags().StringVar(&a.secret, "secret", os.Getenv(secretEnv),
		"secret used to sign session tokens (env "+secretEnv+")")

	rootCmd.AddCommand(
		newUserCmd(a),
		newSessionCmd(a),
	)

	return rootCmd
}

// withStore opens the user store for the duration of fn.
func (a *app) withStore(fn func(store services.BoltDB) error) error {
	path := a.dbPath
	if path == "" {
		cfgDir, err := os.UserConfigDir()
		if err != nil {
			return err
		}
		path = filepath.Join(cfgDir, "ideagen", "store.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	store, err := services.NewBoltDB(path)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(store)
}
