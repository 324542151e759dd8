package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	loginUser     string
	loginPassword string
)

type adminView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the admin session and admin accounts",
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and save the token",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, pass := loginUser, loginPassword
		if user == "" {
			user = prompt("username: ")
		}
		if pass == "" {
			pass = os.Getenv("VRSTORE_PASSWORD")
		}
		if pass == "" {
			pass = prompt("password: ")
		}

		var out struct {
			Token     string    `json:"token"`
			ExpiresAt string    `json:"expiresAt"`
			Admin     adminView `json:"admin"`
		}
		body := map[string]string{"username": user, "password": pass}
		if err := newClient("").do(cmd.Context(), http.MethodPost, "/auth/login", nil, body, &out); err != nil {
			return err
		}
		if err := saveToken(tokenPath, out.Token); err != nil {
			return fmt.Errorf("save token: %w", err)
		}
		fmt.Printf("logged in as %s (expires %s)\n", out.Admin.Username, out.ExpiresAt)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the saved token and remove it",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		// the local token goes away even when the server call fails
		callErr := c.do(cmd.Context(), http.MethodPost, "/auth/logout", nil, nil, nil)
		if err := clearToken(tokenPath); err != nil {
			return err
		}
		if callErr != nil {
			return callErr
		}
		fmt.Println("logged out")
		return nil
	},
}

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the password of the logged-in admin",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		oldPass := prompt("current password: ")
		newPass := prompt("new password: ")
		if newPass != prompt("repeat new password: ") {
			return errors.New("passwords do not match")
		}
		body := map[string]string{"oldPassword": oldPass, "newPassword": newPass}
		if err := c.do(cmd.Context(), http.MethodPost, "/auth/change-password", nil, body, nil); err != nil {
			return err
		}
		// every token of this admin is now revoked
		_ = clearToken(tokenPath)
		fmt.Println("password updated, log in again")
		return nil
	},
}

var adminsCmd = &cobra.Command{
	Use:   "admins",
	Short: "List admin accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		admins, err := listAdmins(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(admins)
		}
		t := newTable()
		t.AppendHeader([]any{"ID", "Username", "Created"})
		for _, a := range admins {
			t.AppendRow([]any{a.ID, a.Username, a.CreatedAt.Local().Format(time.DateTime)})
		}
		t.Render()
		return nil
	},
}

var adminsCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Create another admin account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		pass := loginPassword
		if pass == "" {
			pass = prompt("password for " + args[0] + ": ")
		}
		var out struct {
			Admin adminView `json:"admin"`
		}
		body := map[string]string{"username": args[0], "password": pass}
		if err := c.do(cmd.Context(), http.MethodPost, "/auth/admins", nil, body, &out); err != nil {
			return err
		}
		fmt.Printf("created admin %s (%s)\n", out.Admin.Username, out.Admin.ID)
		return nil
	},
}

func listAdmins(ctx context.Context) ([]adminView, error) {
	c, err := authedClient()
	if err != nil {
		return nil, err
	}
	var out struct {
		Items []adminView `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/admins", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

var stdin = bufio.NewReader(os.Stdin)

func prompt(label string) string {
	fmt.Fprint(os.Stderr, label)
	line, _ := stdin.ReadString('\n')
	return strings.TrimSpace(line)
}

func init() {
	loginCmd.Flags().StringVarP(&loginUser, "username", "u", "", "admin username")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "admin password (or VRSTORE_PASSWORD)")
	adminsCreateCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "password for the new admin")

	adminsCmd.AddCommand(adminsCreateCmd)
	authCmd.AddCommand(loginCmd, logoutCmd, passwdCmd, adminsCmd)
	rootCmd.AddCommand(authCmd)
}
