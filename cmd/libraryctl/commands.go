package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"firebase.google.com/go/v4/auth"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"library-management-api/internal/models"
	"library-management-api/internal/report"
	"library-management-api/internal/report/export"
	"library-management-api/internal/seed"
	"library-management-api/internal/session"
	"library-management-api/internal/store/sqlstore"
	"library-management-api/internal/validator"
)

func migrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long:  "Apply the database schema. Opening the store migrates it, so this reports the resulting version.",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, ok := e.backend.Store.(*sqlstore.Store)
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "driver %s has no schema\n", e.cfg.Database.Driver)
				return nil
			}
			v, err := st.SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
			return nil
		},
	}
}

func createAdminCmd(e *env) *cobra.Command {
	var (
		email, name, password, role string
		firebaseAuth                bool
	)

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a staff account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email = strings.ToLower(strings.TrimSpace(email))

			v := validator.New()
			v.Check(validator.Matches(email, validator.EmailRX), "email", "must be a valid email address")
			v.Check(strings.TrimSpace(name) != "", "name", "must be provided")
			v.Check(len(password) >= 6, "password", "must be at least 6 characters long")
			v.Check(validator.In(models.UserRole(role), models.StaffRoles...), "role", "must be admin or librarian")
			if !v.Valid() {
				var msgs []string
				for field, msg := range v.Errors {
					msgs = append(msgs, field+" "+msg)
				}
				return errors.New(strings.Join(msgs, "; "))
			}

			hash, err := session.HashPassword(password)
			if err != nil {
				return err
			}
			user := &models.User{
				Name:         strings.TrimSpace(name),
				Email:        email,
				PasswordHash: hash,
				Role:         models.UserRole(role),
			}
			if err := e.backend.Store.CreateUser(cmd.Context(), user); err != nil {
				return fmt.Errorf("create user: %w", err)
			}

			if firebaseAuth {
				fb := e.backend.Firebase
				if fb == nil || fb.Auth == nil {
					return errors.New("--firebase-auth needs firebase credentials")
				}
				params := (&auth.UserToCreate{}).
					Email(email).
					Password(password).
					DisplayName(user.Name)
				fbUser, err := fb.Auth.CreateUser(cmd.Context(), params)
				if err != nil {
					return fmt.Errorf("create firebase user: %w", err)
				}
				e.logger.Info("firebase user created", "uid", fbUser.UID)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (id %d)\n", user.Role, user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().StringVar(&role, "role", string(models.RoleAdmin), "admin or librarian")
	cmd.Flags().BoolVar(&firebaseAuth, "firebase-auth", false, "also create a Firebase Authentication user")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func seedBooksCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-books",
		Short: "Insert the sample catalog, skipping existing ISBNs",
		RunE: func(cmd *cobra.Command, args []string) error {
			added, skipped, err := seed.Catalog(cmd.Context(), e.backend.Store, e.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %d books, skipped %d\n", added, skipped)
			return nil
		},
	}
}

func reportCmd(e *env) *cobra.Command {
	var rangeName, format, out string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate a report as json, csv or pdf",
		RunE: func(cmd *cobra.Command, args []string) error {
			render, err := renderer(format)
			if err != nil {
				return err
			}

			rep, err := report.NewAggregator(e.backend.Store, nil).Generate(cmd.Context(), report.ParseRange(rangeName))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := render(w, rep); err != nil {
				return err
			}
			e.logger.Info("report written", "range", rep.Range, "format", format, "out", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&rangeName, "range", string(report.RangeMonth), "week, month, quarter or year")
	cmd.Flags().StringVar(&format, "format", "json", "json, csv or pdf")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	return cmd
}

func renderer(format string) (func(io.Writer, *report.Report) error, error) {
	if format == "json" {
		return func(w io.Writer, rep *report.Report) error {
			enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		}, nil
	}
	f, ok := export.Lookup(format)
	if !ok {
		return nil, fmt.Errorf("unknown format %q", format)
	}
	return f.Render, nil
}
