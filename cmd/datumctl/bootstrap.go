package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"datum/internal/domain"
	"datum/internal/domain/models"
	"datum/internal/repository/postgres"
)

func bootstrapAdminCmd() *cobra.Command {
	var user models.User

	cmd := &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Link an existing Keycloak administrator to a local profile",
		Long: `Insert the local profile of an account that already exists in Keycloak
with the administrator realm role. No Keycloak calls are made; the
administrator can then onboard everyone else through the API.

Example:
  datumctl bootstrap-admin --subject 5f0c... --nickname admin --email admin@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user.Nickname = strings.TrimSpace(user.Nickname)
			user.Email = strings.ToLower(strings.TrimSpace(user.Email))
			if user.FirstName == "" {
				user.FirstName = user.Nickname
			}

			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			users := postgres.NewUserRepository(e.repoConfig())

			existing, err := users.GetBySubject(cmd.Context(), user.IdpSubject)
			switch {
			case err == nil:
				fmt.Fprintf(cmd.OutOrStdout(), "subject already linked to user %d (%s)\n", existing.ID, existing.Nickname)
				return nil
			case !errors.Is(err, domain.ErrNotFound):
				return err
			}

			taken, err := users.ExistsByNickname(cmd.Context(), user.Nickname)
			if err != nil {
				return err
			}
			if taken {
				return fmt.Errorf("nickname %q is already taken", user.Nickname)
			}

			if err := users.Create(cmd.Context(), &user); err != nil {
				return err
			}
			e.logger.Info("administrator bootstrapped", "user_id", user.ID, "subject", user.IdpSubject)
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s)\n", user.ID, user.Nickname)
			return nil
		},
	}

	cmd.Flags().StringVar(&user.IdpSubject, "subject", "", "Keycloak user id (sub claim)")
	cmd.Flags().StringVar(&user.Nickname, "nickname", "", "local nickname")
	cmd.Flags().StringVar(&user.Email, "email", "", "e-mail address")
	cmd.Flags().StringVar(&user.FirstName, "first-name", "", "first name (defaults to the nickname)")
	cmd.Flags().StringVar(&user.LastName, "last-name", "", "last name")
	cmd.MarkFlagRequired("subject")
	cmd.MarkFlagRequired("nickname")
	cmd.MarkFlagRequired("email")
	return cmd
}
