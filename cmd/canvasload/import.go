package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"canvas-load/internal/mappers"
	"canvas-load/internal/store"
)

func newImportCmd(a *app) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Store a load described in a YAML file and print its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			doc, err := mappers.ParseLoadFile(f)
			if err != nil {
				return err
			}
			if token != "" {
				doc.Owner.Token = token
			}

			load, err := a.importLoad(cmd.Context(), doc)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), load.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Canvas access token for the owner, overrides owner.token")
	return cmd
}

func (a *app) importLoad(ctx context.Context, doc *mappers.LoadFile) (*store.Load, error) {
	owner, err := a.store.FindUserByEmail(ctx, doc.Owner.Email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		owner = &store.User{Name: strings.TrimSpace(doc.Owner.Name), Email: doc.Owner.Email}
		if err := a.store.CreateUser(ctx, owner); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	if doc.Owner.Token != "" {
		if _, err := a.store.AddAuthentication(ctx, owner.ID, doc.CanvasDomain, doc.Owner.Token); err != nil {
			return nil, err
		}
	}

	load, err := doc.ToLoad(owner.ID, a.cfg.DefaultCourseSuffix)
	if err != nil {
		return nil, err
	}
	if err := a.store.CreateLoad(ctx, load); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"load_id": load.ID.String(),
		"domain":  load.CanvasDomain,
		"owner":   owner.Email,
		"courses": len(load.Courses),
	}).Info("load imported")
	return load, nil
}
