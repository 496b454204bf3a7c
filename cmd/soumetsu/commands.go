package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/soumetsu-project/soumetsu/internal/config"
	"github.com/soumetsu-project/soumetsu/internal/db"
	"github.com/soumetsu-project/soumetsu/internal/models"
	"github.com/soumetsu-project/soumetsu/internal/util"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and list problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configDir)
			if err != nil {
				return err
			}
			result := config.Validate(cfg)
			printValidation(cmd.OutOrStdout(), result)
			if !result.IsValid() {
				return fmt.Errorf("%d configuration errors", len(result.Errors))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configDir)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cfg.Redacted())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Run the interactive setup wizard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(configDir)
			if err != nil {
				return err
			}
			return config.RunSetupWizard(cfg)
		},
	})

	return cmd
}

func printValidation(w io.Writer, result *config.ValidationResult) {
	if len(result.Errors) == 0 && len(result.Warnings) == 0 {
		fmt.Fprintln(w, "✓ Configuration is valid")
		return
	}

	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"Level", "Field", "Message"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	for _, e := range result.Errors {
		tw.Append([]string{"error", e.Field, e.Message})
	}
	for _, e := range result.Warnings {
		tw.Append([]string{"warning", e.Field, e.Message})
	}
	tw.Render()
}

type userAddOptions struct {
	name     string
	password string
	email    string
	country  string
	admin    bool
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage player accounts",
	}

	var opts userAddOptions
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a player account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserAdd(cmd, opts)
		},
	}
	add.Flags().StringVar(&opts.name, "name", "", "username")
	add.Flags().StringVar(&opts.password, "password", "", "plain-text password")
	add.Flags().StringVar(&opts.email, "email", "", "email address")
	add.Flags().StringVar(&opts.country, "country", "XX", "ISO 3166 country code")
	add.Flags().BoolVar(&opts.admin, "admin", false, "grant admin privileges")
	add.MarkFlagRequired("name")
	add.MarkFlagRequired("password")

	cmd.AddCommand(add)
	return cmd
}

func runUserAdd(cmd *cobra.Command, opts userAddOptions) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	users := db.NewUserRepository(database)
	existing, err := users.FetchByName(cmd.Context(), opts.name)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("user %q already exists with id %d", existing.Name, existing.ID)
	}

	hash, err := util.HashPassword(opts.password)
	if err != nil {
		return err
	}

	privs := models.PrivUserPublic | models.PrivUserNormal
	if opts.admin {
		privs |= models.PrivAdminAccess | models.PrivAdminManageUsers | models.PrivAdminBanUsers |
			models.PrivAdminSilence | models.PrivAdminChatMod
	}

	u := &models.User{
		Name:              opts.name,
		PasswordHash:      hash,
		Email:             opts.email,
		RegisterTimestamp: time.Now().Unix(),
		Privileges:        privs,
		Country:           strings.ToUpper(opts.country),
	}
	id, err := users.Insert(cmd.Context(), u)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Created %s with id %d\n", u.Name, id)
	return nil
}
