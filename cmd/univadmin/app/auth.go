package app

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/moweilong/univadmin/pkg/jwt"
)

func (a *app) newLoginCommand() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and keep the session for the next commands",
		Example: color.HiBlackString(`  # Prompt for the password
  univadmin login -u scolarite

  # Read the password from stdin
  echo "$PASSWORD" | univadmin login -u scolarite`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return errors.New("username is required")
			}
			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			if _, err := a.service(cmd.Context()); err != nil {
				return err
			}
			user, err := a.client.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("Logged in as"), user.FullName())
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Account name.")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password, prompted for when empty.")
	return cmd
}

func (a *app) newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.service(cmd.Context()); err != nil {
				return err
			}
			if err := a.client.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

type whoami struct {
	ID            int    `json:"id"`
	Username      string `json:"username"`
	Name          string `json:"name"`
	Email         string `json:"email,omitempty"`
	Role          string `json:"role,omitempty"`
	Server        string `json:"server"`
	AccessExpires string `json:"access_expires,omitempty"`
}

func (a *app) newWhoAmICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user and the state of the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := a.service(ctx); err != nil {
				return err
			}
			user, err := a.client.CurrentUser(ctx)
			if err != nil {
				return err
			}

			out := &whoami{
				ID:       user.ID,
				Username: user.Username,
				Name:     user.FullName(),
				Email:    user.Email,
				Role:     user.Role,
				Server:   a.client.BaseURL(),
			}
			access, _ := a.client.Credentials().AccessToken(ctx)
			if claims, err := jwt.GetClaimsUnverified(access); err == nil && claims.ExpiresAt != nil {
				left := claims.ExpiresIn(time.Now())
				if left > 0 {
					out.AccessExpires = "in " + left.Round(time.Second).String()
				} else {
					// still usable, the next request refreshes it
					out.AccessExpires = "expired"
				}
			}
			return a.printObject(cmd.OutOrStdout(), out)
		},
	}
}
