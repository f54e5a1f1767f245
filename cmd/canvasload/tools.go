package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"canvas-load/internal/devutil"
)

func newCheckSISCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check-sis <load-id>",
		Short: "Report whether the load's SIS id already belongs to a Canvas user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.loader(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			taken, err := l.CheckSISID(cmd.Context())
			if err != nil {
				return err
			}
			state := "available"
			if taken {
				state = "taken"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sis id %q is %s on %s\n", l.Load.SISID, state, l.Load.CanvasDomain)
			return nil
		},
	}
}

func newSetupWelcomeCmd(a *app) *cobra.Command {
	var subAccountID int64

	cmd := &cobra.Command{
		Use:   "setup-welcome <load-id>",
		Short: "Queue the welcome course on a load unless Canvas already has one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.loader(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			queued, err := l.SetupWelcome(cmd.Context(), subAccountID)
			if err != nil {
				return err
			}
			if queued {
				fmt.Fprintln(cmd.OutOrStdout(), "welcome course queued")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "welcome course already exists")
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&subAccountID, "sub-account", 0, "Canvas sub-account id to search in")
	return cmd
}

func newProgressCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <load-id> <progress-url>",
		Short: "Show the state of a content migration",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.loader(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			p, err := l.CheckProgressURL(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), devutil.Pick(p, "id", "workflow_state", "completion", "message", "updated_at"))
		},
	}
}

func newViewPagesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "view-pages <load-id> <user-id> <course-id>",
		Short: "Open every page of a course as a user to generate page views",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[1])
			}
			courseID, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid course id %q", args[2])
			}

			l, err := a.loader(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			pages, err := l.ViewPages(cmd.Context(), userID, courseID)
			if err != nil {
				return err
			}
			for _, p := range pages {
				if err := printJSON(cmd.OutOrStdout(), devutil.Pick(p, "url", "title")); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "viewed %d pages\n", len(pages))
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
