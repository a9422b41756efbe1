// ABOUTME: Single-contact commands
// ABOUTME: upsert writes one contact from flags or JSON; find looks a person up by VAN ID or email
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hotgluexyz/target-everyaction/models"
	"github.com/hotgluexyz/target-everyaction/sync"
)

// contactSource yields a fixed list of contacts.
type contactSource struct {
	name     string
	contacts []models.Contact
	pos      int
}

func (s *contactSource) Name() string { return s.name }

func (s *contactSource) Next(ctx context.Context) (*models.Contact, error) {
	if s.pos >= len(s.contacts) {
		return nil, io.EOF
	}
	c := s.contacts[s.pos]
	s.pos++
	return &c, nil
}

func newUpsertCommand(root *rootOptions) *cobra.Command {
	var (
		contact  models.Contact
		vanID    int
		phone    string
		jsonPath string
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Create or update one person",
		Long: `Upserts a single contact given by flags, or by a JSON object with --json.

Examples:
  target-everyaction upsert --email jane@example.org --first-name Jane --list Volunteer
  target-everyaction upsert --json contact.json --dry-run
  echo '{"email":"jane@example.org","tags":["VIP"]}' | target-everyaction upsert --json -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonPath != "" {
				loaded, err := readContactJSON(cmd, jsonPath)
				if err != nil {
					return err
				}
				contact = loaded
			}
			if cmd.Flags().Changed("van-id") {
				contact.VanID = &vanID
			}
			if phone != "" {
				contact.PhoneNumbers = append(contact.PhoneNumbers, models.Phone{Number: phone})
			}
			if contact.Email == "" && contact.VanID == nil && contact.FirstName == "" && contact.LastName == "" {
				return errors.New("an email, VAN ID or name is required")
			}

			e, err := root.setup(cmd, setupOptions{onlyEmpty: onlyEmptyFlag(cmd), journal: !dryRun})
			if err != nil {
				return err
			}
			defer e.Close()

			if dryRun {
				preview, err := e.upserter.Preview(cmd.Context(), contact)
				if err != nil {
					return err
				}
				diff, err := sync.PayloadDiff(preview.Existing, preview.Payload)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprint(cmd.OutOrStdout(), diff)
				return nil
			}

			var result *sync.Event
			runner := sync.NewRunner(e.upserter, e.journal, &e.logger)
			_, err = runner.Run(cmd.Context(), &contactSource{name: "cli", contacts: []models.Contact{contact}}, sync.RunOptions{
				OnEvent: func(ev sync.Event) { result = &ev },
			})
			if err != nil {
				return err
			}
			if result == nil {
				return errors.New("contact was not processed")
			}

			if err := printJSON(cmd.OutOrStdout(), result.Result); err != nil {
				return err
			}
			if result.Err != nil {
				return result.Err
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&contact.Email, "email", "", "Email address")
	f.StringVar(&contact.FirstName, "first-name", "", "First name")
	f.StringVar(&contact.LastName, "last-name", "", "Last name")
	f.StringVar(&contact.Employer, "employer", "", "Employer")
	f.StringVar(&contact.Title, "title", "", "Job title")
	f.StringVar(&phone, "phone", "", "Phone number")
	f.IntVar(&vanID, "van-id", 0, "Existing VAN ID")
	f.StringSliceVar(&contact.Lists, "list", nil, "Activist code to apply (repeatable)")
	f.StringVar(&contact.LeadSource, "source-code", "", "Source code to attach (created if missing)")
	f.StringSliceVar(&contact.Tags, "tag", nil, "Tag to attach (repeatable, created if missing)")
	f.StringVar(&jsonPath, "json", "", "Read the contact from a JSON file ('-' for stdin); flags override it")
	f.BoolVar(&dryRun, "dry-run", false, "Print the diff of what would be written without writing")
	f.Bool("only-empty", false, "Only fill fields that are empty on the stored person (overrides config)")

	return cmd
}

// readContactJSON loads a contact; flag values set afterwards take precedence.
func readContactJSON(cmd *cobra.Command, path string) (models.Contact, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return models.Contact{}, fmt.Errorf("failed to open contact file: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	var c models.Contact
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return models.Contact{}, fmt.Errorf("failed to decode contact: %w", err)
	}

	flags := cmd.Flags()
	overlay := func(name string, dst *string) {
		if flags.Changed(name) {
			v, _ := flags.GetString(name)
			*dst = v
		}
	}
	overlay("email", &c.Email)
	overlay("first-name", &c.FirstName)
	overlay("last-name", &c.LastName)
	overlay("employer", &c.Employer)
	overlay("title", &c.Title)
	overlay("source-code", &c.LeadSource)
	if flags.Changed("list") {
		c.Lists, _ = flags.GetStringSlice("list")
	}
	if flags.Changed("tag") {
		c.Tags, _ = flags.GetStringSlice("tag")
	}
	return c, nil
}

func newFindCommand(root *rootOptions) *cobra.Command {
	var (
		vanID int
		email string
	)

	cmd := &cobra.Command{
		Use:   "find",
		Short: "Look up a person by VAN ID or email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email = strings.TrimSpace(email)
			byVanID := cmd.Flags().Changed("van-id")
			if !byVanID && email == "" {
				return errors.New("--van-id or --email is required")
			}

			e, err := root.setup(cmd, setupOptions{})
			if err != nil {
				return err
			}
			defer e.Close()

			var person map[string]any
			if byVanID {
				person, err = e.client.FindByVanID(cmd.Context(), vanID)
			} else {
				person, err = e.client.FindByEmail(cmd.Context(), email)
			}
			if err != nil {
				return err
			}
			if person == nil {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No matching person found")
				return nil
			}
			return printJSON(cmd.OutOrStdout(), person)
		},
	}

	cmd.Flags().IntVar(&vanID, "van-id", 0, "VAN ID")
	cmd.Flags().StringVar(&email, "email", "", "Email address")

	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
