// Command watchlog keeps a personal log of watched titles, either on this
// device or in a signed-in account on the API server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"watchlog/internal/auth"
	"watchlog/internal/cache"
	"watchlog/internal/client"
	"watchlog/internal/logging"
	wsync "watchlog/internal/sync"
	"watchlog/pkg/utils"
)

type app struct {
	cfg        utils.Config
	configPath string
	apiURL     string
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "watchlog",
		Short:         "Track watched titles by broadcast period",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&a.apiURL, "api", "", "API base URL (overrides config)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log session activity")

	root.AddCommand(
		a.authCmd(),
		a.addCmd(),
		a.listCmd(),
		a.rateCmd(),
		a.watchCmd(),
		a.rewatchCmd(),
		a.tagCmd(),
		a.moveCmd(),
		a.rmCmd(),
		a.seriesCmd(),
		a.statsCmd(),
		a.charactersCmd(),
		a.exportCmd(),
		a.eventsCmd(),
	)
	return root
}

func (a *app) init() error {
	cfg, err := utils.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.apiURL != "" {
		cfg.Client.APIURL = a.apiURL
	}
	a.cfg = cfg

	level := "warn"
	if a.verbose {
		level = "debug"
	}
	logging.Init(logging.Config{Level: level, Format: "console"})
	return nil
}

func (a *app) client(token string) *client.Client {
	return client.New(client.Config{
		BaseURL: a.cfg.Client.APIURL,
		Token:   token,
		Timeout: a.cfg.Client.Timeout,
	})
}

// withSession opens the local cache, enters a session for the stored
// credentials and runs fn against it. A stored token selects the remote
// collection; otherwise the device-local one is used.
func (a *app) withSession(ctx context.Context, fn func(*wsync.Session) error) error {
	store, err := cache.Open(a.cfg.Cache.Dir)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Warn().Err(err).Msg("close cache")
		}
	}()

	token, err := client.LoadToken(a.cfg.Client.TokenPath)
	if err != nil {
		return err
	}

	state := wsync.AuthState{}
	var api *client.Client
	if token != "" {
		claims, err := auth.PeekClaims(token)
		if err != nil {
			return fmt.Errorf("stored token is unreadable, run `watchlog auth logout`: %w", err)
		}
		state = wsync.AuthState{Authenticated: true, OwnerID: claims.UserID}
		api = a.client(token)
	}

	var sess *wsync.Session
	if api != nil {
		sess = wsync.NewSession(store, api)
		defer func() {
			logging.Debug().Str("breaker", api.BreakerState()).Msg("remote session done")
		}()
	} else {
		// a nil *client.Client must not reach the interface
		sess = wsync.NewSession(store, nil)
	}
	if err := sess.Enter(ctx, state); err != nil {
		return err
	}
	return fn(sess)
}

