// ABOUTME: Google Contacts source commands
// ABOUTME: Handles OAuth setup and upserting Google Contacts into EveryAction
package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/hotgluexyz/target-everyaction/sync"
)

func newGoogleCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "google",
		Short: "Upsert Google Contacts into EveryAction",
	}
	cmd.AddCommand(newGoogleInitCommand(), newGoogleSyncCommand(root))
	return cmd
}

func newGoogleInitCommand() *cobra.Command {
	var noBrowser bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Authorize read access to Google Contacts",
		Long: `Runs the Google OAuth flow and stores the token under the data directory.
Requires GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET (a .env file works).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := sync.GetOAuthConfig()
			if err != nil {
				return fmt.Errorf("failed to get OAuth config: %w", err)
			}

			token, err := authorize(cmd, config, noBrowser)
			if err != nil {
				return err
			}

			if err := sync.SaveToken(token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "\n✓ Authenticated successfully\n")
			_, _ = fmt.Fprintf(out, "✓ Tokens saved to %s\n\n", sync.TokenPath())
			_, _ = fmt.Fprintln(out, "Ready to sync! Run 'target-everyaction google sync' to upsert contacts.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the authorization URL without opening a browser")
	return cmd
}

// authorize runs a local callback server on the redirect URL's port and
// exchanges the returned code for a token.
func authorize(cmd *cobra.Command, config *oauth2.Config, noBrowser bool) (*oauth2.Token, error) {
	ctx := cmd.Context()

	redirect, err := url.Parse(config.RedirectURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URL: %w", err)
	}

	callbackChan := make(chan *oauth2.Token, 1)
	errChan := make(chan error, 1)
	fail := func(err error) {
		select {
		case errChan <- err:
		default:
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc(redirect.Path, func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "no authorization code received", http.StatusBadRequest)
			fail(errors.New("no authorization code received"))
			return
		}

		token, err := config.Exchange(ctx, code)
		if err != nil {
			http.Error(w, "failed to exchange code", http.StatusInternalServerError)
			fail(fmt.Errorf("failed to exchange code: %w", err))
			return
		}

		_, _ = fmt.Fprintf(w, "Authorization successful! You can close this window.")
		select {
		case callbackChan <- token:
		default:
		}
	})

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", redirect.Host, err)
	}

	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			fail(err)
		}
	}()
	defer func() { _ = server.Shutdown(context.Background()) }()

	authURL := config.AuthCodeURL("state", oauth2.AccessTypeOffline)

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, "Opening browser for Google OAuth...")
	_, _ = fmt.Fprintf(out, "\nIf browser doesn't open, visit this URL:\n%s\n\n", authURL)
	if !noBrowser {
		_ = openBrowser(authURL)
	}

	select {
	case token := <-callbackChan:
		return token, nil
	case err := <-errChan:
		return nil, fmt.Errorf("OAuth flow failed: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newGoogleSyncCommand(root *rootOptions) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Upsert every Google contact that has an email and a name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := sync.LoadToken()
			if err != nil {
				return fmt.Errorf("no authentication token found. Run 'target-everyaction google init' first: %w", err)
			}

			service, err := sync.NewPeopleClient(cmd.Context(), token)
			if err != nil {
				return fmt.Errorf("failed to create People API client: %w", err)
			}

			e, err := root.setup(cmd, setupOptions{
				quiet:     flags.progress,
				onlyEmpty: onlyEmptyFlag(cmd),
				journal:   true,
			})
			if err != nil {
				return err
			}
			defer e.Close()

			source := sync.NewGoogleSource(service)
			if _, err := runSource(cmd, e, source, flags, cmd.OutOrStdout()); err != nil {
				return fmt.Errorf("google sync failed: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "  Fetched %d contacts from Google\n", source.Fetched())
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

// openBrowser attempts to open URL in default browser
func openBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		cmd = "xdg-open"
		args = []string{url}
	}

	command := exec.Command(cmd, args...)
	return command.Start()
}
