// File: /cli.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"trailcatalog-api/client"
)

var apiURL string

func addClientCommands(root *cobra.Command) {
	defaultURL := os.Getenv("TRAILCATALOG_API")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}
	root.PersistentFlags().StringVar(&apiURL, "api", defaultURL, "base URL of the catalog API")

	var (
		email, password, name string
		signUp, oauth         bool
	)
	login := &cobra.Command{
		Use:   "login",
		Short: "Sign in and keep the session on this machine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := startClient(cmd.Context())
			if err != nil {
				return err
			}
			if oauth {
				link, err := c.SignInWithOAuthRedirect(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Open this link to sign in, then run any command:\n%s\n", link)
				return nil
			}
			if email == "" || password == "" {
				return errors.New("--email and --password are required")
			}
			if signUp {
				_, err = c.SignUpWithEmail(cmd.Context(), email, password, name)
			} else {
				_, err = c.SignInWithEmail(cmd.Context(), email, password)
			}
			if err != nil {
				return err
			}
			return printSession(cmd, c.State())
		},
	}
	login.Flags().StringVar(&email, "email", "", "account email")
	login.Flags().StringVar(&password, "password", os.Getenv("TRAILCATALOG_PASSWORD"), "account password")
	login.Flags().StringVar(&name, "name", "", "display name for a new account")
	login.Flags().BoolVar(&signUp, "signup", false, "create the account first")
	login.Flags().BoolVar(&oauth, "oauth", false, "sign in with the OAuth provider")

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the local session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := startClient(cmd.Context())
			if err != nil {
				return err
			}
			return c.SignOut(cmd.Context())
		},
	}

	whoami := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := startClient(cmd.Context())
			if err != nil {
				return err
			}
			return printSession(cmd, c.State())
		},
	}

	var search, difficulty, routeType, suitableFor string
	list := &cobra.Command{
		Use:   "routes",
		Short: "List the public catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := startClient(cmd.Context())
			if err != nil {
				return err
			}
			q := url.Values{}
			for key, value := range map[string]string{
				"search":      search,
				"difficulty":  difficulty,
				"routeType":   routeType,
				"suitableFor": suitableFor,
			} {
				if value != "" {
					q.Set(key, value)
				}
			}
			found, err := c.ListRoutes(cmd.Context(), q)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tDIFFICULTY\tTYPE\tSUITABLE FOR")
			for _, r := range found {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\n", r.ID, r.Name, r.Difficulty, r.RouteType, []string(r.SuitableFor))
			}
			return w.Flush()
		},
	}
	list.Flags().StringVar(&search, "search", "", "name contains")
	list.Flags().StringVar(&difficulty, "difficulty", "", "difficulty facet")
	list.Flags().StringVar(&routeType, "type", "", "route type facet")
	list.Flags().StringVar(&suitableFor, "suitable-for", "", "suitability facet")

	root.AddCommand(login, logout, whoami, list)
}

func startClient(ctx context.Context) (*client.Client, error) {
	tokens, err := client.DefaultTokenFile()
	if err != nil {
		return nil, err
	}
	c := client.New(apiURL, tokens, zap.NewNop())
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func printSession(cmd *cobra.Command, state client.SessionState) error {
	if state.User == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", state.User.DisplayName, state.User.Email)
	return nil
}
