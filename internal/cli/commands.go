package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/prospectkeeper/keeper/internal/api"
	"github.com/prospectkeeper/keeper/internal/config"
	"github.com/prospectkeeper/keeper/internal/freshness"
)

func newAPIClient(cfg *config.Config) *api.Client {
	client := api.NewClient(cfg.API.BaseURL)
	if t := cfg.APITimeout(); t > 0 {
		client.HTTP.Timeout = t
	}
	return client
}

func defaultStateDBPath() string {
	return filepath.Join(filepath.Dir(config.GetConfigPath()), "keeper.db")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func maskKey(key string) string {
	if len(key) < 9 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// findContact resolves an exact contact ID or an unambiguous ID prefix
// against the live contact list.
func findContact(ctx context.Context, client *api.Client, id string) (api.Contact, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return api.Contact{}, errors.New("contact id is required")
	}
	contacts, err := client.ListContacts(ctx)
	if err != nil {
		return api.Contact{}, err
	}
	var matches []api.Contact
	for _, c := range contacts {
		if c.ID == id {
			return c, nil
		}
		if strings.HasPrefix(c.ID, id) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return api.Contact{}, fmt.Errorf("contact %q not found", id)
	case 1:
		return matches[0], nil
	default:
		return api.Contact{}, fmt.Errorf("contact ID prefix %q is ambiguous (%d matches)", id, len(matches))
	}
}

func upsertFromContact(c api.Contact) api.ContactUpsert {
	return api.ContactUpsert{
		ID:               c.ID,
		Name:             c.Name,
		Email:            c.Email,
		Title:            c.Title,
		Organization:     c.Organization,
		LinkedInURL:      c.LinkedInURL,
		DistrictWebsite:  c.DistrictWebsite,
		Status:           c.Status,
		NeedsHumanReview: c.NeedsHumanReview,
		ReviewReason:     c.ReviewReason,
	}
}

func confirm(prompt string) (bool, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func NewAuthCmd() *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the backend API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthStatus()
		},
	}

	var loginKey string
	loginCmd := &cobra.Command{
		Use:     "login",
		Aliases: []string{"set"},
		Short:   "Store the backend API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(loginKey)
			if key == "" {
				fmt.Print("Enter API key: ")
				reader := bufio.NewReader(os.Stdin)
				line, err := reader.ReadString('\n')
				if err != nil {
					return fmt.Errorf("read api key: %w", err)
				}
				key = strings.TrimSpace(line)
			}
			if err := api.StoreCredential(api.KeyName, key); err != nil {
				return fmt.Errorf("store api key: %w", err)
			}
			fmt.Println("Stored backend API key.")
			return nil
		},
	}
	loginCmd.Flags().StringVar(&loginKey, "key", "", "API key value (prompted when omitted)")

	statusCmd := &cobra.Command{
		Use:     "status",
		Aliases: []string{"show"},
		Short:   "Show whether an API key is stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthStatus()
		},
	}

	logoutCmd := &cobra.Command{
		Use:     "logout",
		Aliases: []string{"clear", "rm"},
		Short:   "Remove the stored API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := api.DeleteCredential(api.KeyName); err != nil {
				return fmt.Errorf("remove api key: %w", err)
			}
			fmt.Println("Removed stored API key.")
			return nil
		},
	}

	authCmd.AddCommand(loginCmd, statusCmd, logoutCmd)
	return authCmd
}

func runAuthStatus() error {
	key, err := api.LoadCredential(api.KeyName)
	if err != nil || strings.TrimSpace(key) == "" {
		fmt.Println("No API key stored. Run `keeper auth login`.")
		return nil
	}
	fmt.Printf("API key stored (%s).\n", maskKey(key))
	return nil
}

func NewContactsCmd() *cobra.Command {
	contactsCmd := &cobra.Command{
		Use:   "contacts",
		Short: "List and maintain prospect contacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runContactsList(cmd.Context())
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List contacts with freshness scoring",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runContactsList(cmd.Context())
		},
	}

	var ratePerSec float64
	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Bulk-create contacts from a YAML seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runContactsImport(cmd.Context(), args[0], ratePerSec)
		},
	}
	importCmd.Flags().Float64Var(&ratePerSec, "rate", 4, "Maximum contact creations per second")

	diffCmd := &cobra.Command{
		Use:   "diff <id>",
		Short: "Show the recorded LinkedIn profile change for a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client := newAPIClient(cfg)

			contact, err := findContact(cmd.Context(), client, args[0])
			if err != nil {
				return err
			}
			summary, err := client.LinkedInChange(cmd.Context(), contact.ID)
			if err != nil {
				return err
			}
			if summary == nil {
				fmt.Printf("No profile change on record for %s.\n", contact.Name)
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
			fmt.Fprintln(w, "FIELD\tFROM\tTO")
			for _, fc := range summary.Fields() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", fc.Field, orDash(fc.From), orDash(fc.To))
			}
			return w.Flush()
		},
	}

	var deleteYes bool
	deleteCmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Permanently remove a contact",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client := newAPIClient(cfg)

			contact, err := findContact(cmd.Context(), client, args[0])
			if err != nil {
				return err
			}
			if !deleteYes {
				ok, err := confirm(fmt.Sprintf("Delete %s (%s)? [y/N]: ", contact.Name, contact.Email))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("Aborted.")
					return nil
				}
			}
			if err := client.DeleteContact(cmd.Context(), contact.ID); err != nil {
				return err
			}
			fmt.Printf("Deleted %s.\n", contact.Name)
			return nil
		},
	}
	deleteCmd.Flags().BoolVar(&deleteYes, "yes", false, "Skip the confirmation prompt")

	contactsCmd.AddCommand(listCmd, importCmd, diffCmd, deleteCmd)
	return contactsCmd
}

func runContactsList(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	client := newAPIClient(cfg)

	contacts, err := client.ListContacts(ctx)
	if err != nil {
		return err
	}
	if len(contacts) == 0 {
		fmt.Println("No contacts found.")
		return nil
	}

	model := cfg.ScoringModel()
	now := time.Now().UTC()

	w := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tORGANIZATION\tSTATUS\tTIER\tCONF\tLAST SYNC")
	for _, c := range contacts {
		sync := "never"
		if age, ok := freshness.Age(c, now); ok {
			sync = formatAge(age)
		}
		status := c.Status
		if c.NeedsHumanReview {
			status += " (review)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			shortID(c.ID),
			c.Name,
			orDash(c.Organization),
			status,
			model.Tier(c, now),
			model.Confidence(c, now),
			sync,
		)
	}
	return w.Flush()
}

type seedContact struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	Email           string `yaml:"email"`
	Title           string `yaml:"title"`
	Organization    string `yaml:"organization"`
	Status          string `yaml:"status"`
	LinkedInURL     string `yaml:"linkedin_url"`
	DistrictWebsite string `yaml:"district_website"`
}

type seedFile struct {
	Contacts []seedContact `yaml:"contacts"`
}

func runContactsImport(ctx context.Context, path string, ratePerSec float64) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(content, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	if len(seed.Contacts) == 0 {
		return errors.New("seed file has no contacts")
	}
	if ratePerSec <= 0 {
		return errors.New("--rate must be positive")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	client := newAPIClient(cfg)

	limiter := rate.NewLimiter(rate.Limit(ratePerSec), 1)
	created := 0
	skipped := 0
	for i, row := range seed.Contacts {
		if strings.TrimSpace(row.Name) == "" || strings.TrimSpace(row.Email) == "" {
			fmt.Printf("Skipping row %d: name and email are required\n", i+1)
			skipped++
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		// The backend expects the client to mint contact IDs.
		upsert := api.ContactUpsert{
			ID:              strings.TrimSpace(row.ID),
			Name:            strings.TrimSpace(row.Name),
			Email:           strings.TrimSpace(row.Email),
			Title:           strings.TrimSpace(row.Title),
			Organization:    strings.TrimSpace(row.Organization),
			LinkedInURL:     strings.TrimSpace(row.LinkedInURL),
			DistrictWebsite: strings.TrimSpace(row.DistrictWebsite),
			Status:          strings.TrimSpace(row.Status),
		}
		if upsert.ID == "" {
			upsert.ID = uuid.NewString()
		}
		if upsert.Status == "" {
			upsert.Status = api.StatusUnknown
		}

		createdContact, err := client.CreateContact(ctx, upsert)
		if err != nil {
			return fmt.Errorf("create %q: %w", upsert.Name, err)
		}
		fmt.Printf("Created %s (%s)\n", createdContact.Name, shortID(createdContact.ID))
		created++
	}

	fmt.Printf("Imported %d contact(s) from %s", created, path)
	if skipped > 0 {
		fmt.Printf(", skipped %d invalid row(s)", skipped)
	}
	fmt.Println()
	return nil
}

func NewReviewCmd() *cobra.Command {
	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "Work the human-review queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReviewList(cmd.Context())
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List contacts flagged for human review",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReviewList(cmd.Context())
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear <id>",
		Short: "Clear the review flag after a human has looked at the contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client := newAPIClient(cfg)

			contact, err := findContact(cmd.Context(), client, args[0])
			if err != nil {
				return err
			}
			if !contact.NeedsHumanReview {
				fmt.Printf("%s is not flagged for review.\n", contact.Name)
				return nil
			}

			upsert := upsertFromContact(contact)
			upsert.NeedsHumanReview = false
			upsert.ReviewReason = ""
			saved, err := client.UpdateContact(cmd.Context(), upsert)
			if err != nil {
				return err
			}
			fmt.Printf("Cleared review flag for %s.\n", saved.Name)
			return nil
		},
	}

	reviewCmd.AddCommand(listCmd, clearCmd)
	return reviewCmd
}

func runReviewList(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	client := newAPIClient(cfg)

	contacts, err := client.ReviewQueue(ctx)
	if err != nil {
		return err
	}
	if len(contacts) == 0 {
		fmt.Println("Review queue is empty.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tORGANIZATION\tREASON")
	for _, c := range contacts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", shortID(c.ID), c.Name, orDash(c.Organization), orDash(c.ReviewReason))
	}
	return w.Flush()
}

func NewEmailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "email <contact-id>",
		Short: "Send the info-confirmation email to a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client := newAPIClient(cfg)

			contact, err := findContact(cmd.Context(), client, args[0])
			if err != nil {
				return err
			}
			result, err := client.SendConfirmation(cmd.Context(), contact.ID)
			if err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("send to %s failed: %s", contact.Name, orDash(result.Error))
			}
			fmt.Printf("Confirmation email sent to %s (%s).\n", contact.Name, result.Email)
			return nil
		},
	}
}
