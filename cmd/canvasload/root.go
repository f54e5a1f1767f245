package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"canvas-load/internal/canvasload"
	"canvas-load/internal/config"
	"canvas-load/internal/providers/canvas"
	"canvas-load/internal/sftpclient"
	"canvas-load/internal/store"
)

// app holds what the subcommands share. Fields set before Execute are kept,
// which is how tests swap in a store or a Canvas client.
type app struct {
	cfg       config.Config
	store     *store.Store
	newClient canvasload.ClientFactory
	upload    func(ctx context.Context, cfg sftpclient.Config, localPath, remoteFileName string) error

	ownsStore bool
}

func newRootCmd(a *app) *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:          "canvasload",
		Short:        "Provision sample courses, users and activity into a Canvas instance",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file read before the environment")

	root.AddCommand(
		newImportCmd(a),
		newRunCmd(a),
		newCheckSISCmd(a),
		newSetupWelcomeCmd(a),
		newProgressCmd(a),
		newViewPagesCmd(a),
		newListCmd(a),
		newReportCmd(a),
	)
	return root
}

func (a *app) setup(envFile string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return fmt.Errorf("reading %s: %w", envFile, err)
	}
	a.cfg = config.Load()
	setupLogging(a.cfg)

	if a.upload == nil {
		a.upload = sftpclient.UploadFile
	}
	if a.store != nil {
		return nil
	}
	s, err := store.Open(store.Driver(a.cfg.DBDriver), a.cfg.DBDSN)
	if err != nil {
		return err
	}
	a.store = s
	a.ownsStore = true
	return nil
}

func (a *app) close() {
	if a.ownsStore && a.store != nil {
		a.store.Close()
		a.store = nil
	}
}

func setupLogging(cfg config.Config) {
	log.SetOutput(os.Stderr)
	if strings.EqualFold(cfg.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func (a *app) clientFactory() canvasload.ClientFactory {
	if a.newClient != nil {
		return a.newClient
	}
	timeout := a.cfg.CanvasTimeout
	return func(domain, token string) canvasload.API {
		c := canvas.New(domain, token)
		if timeout > 0 {
			c.HTTP.Timeout = timeout
		}
		return c
	}
}

func (a *app) sftpConfig() sftpclient.Config {
	return sftpclient.Config{
		Host:                  a.cfg.SFTPHost,
		Port:                  a.cfg.SFTPPort,
		User:                  a.cfg.SFTPUser,
		Pass:                  a.cfg.SFTPPass,
		RemoteDir:             a.cfg.SFTPDir,
		InsecureIgnoreHostKey: a.cfg.SFTPInsecureIgnoreHostKey,
		KnownHostsPath:        a.cfg.SFTPKnownHosts,
	}
}

// loader fetches a load and wraps it in a fresh orchestrator.
func (a *app) loader(ctx context.Context, rawID string) (*canvasload.Loader, error) {
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return nil, fmt.Errorf("invalid load id %q: %w", rawID, err)
	}
	load, err := a.store.GetLoad(ctx, id)
	if err != nil {
		return nil, err
	}
	return canvasload.New(a.store, load,
		canvasload.WithClientFactory(a.clientFactory()),
		canvasload.WithSearchLimit(a.cfg.CanvasSearchLimit),
	), nil
}
