package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/BradenHooton/tajnur-auth/internal/models"
	"github.com/BradenHooton/tajnur-auth/internal/repositories"
	"github.com/BradenHooton/tajnur-auth/internal/services"
)

// PasswordEnv lets scripts pass a password without it showing up in argv
const PasswordEnv = "AUTHCTL_PASSWORD"

var (
	createUsername string
	createPassword string
	createEmail    string
	createRole     string
	createAdmin    bool

	listLimit  int
	listOffset int

	attemptsLimit int
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account",
	Long: `Create an active account. The password is taken from --password or,
when the flag is omitted, from the AUTHCTL_PASSWORD environment variable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := resolvePassword(createPassword, os.Getenv(PasswordEnv))
		if err != nil {
			return err
		}

		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		svc := services.NewAccountService(repositories.NewAccountRepository(e.db), e.logger, e.audit)
		account, err := svc.CreateAccount(cmd.Context(), services.NewAccount{
			Username: createUsername,
			Password: password,
			Email:    createEmail,
			Role:     createRole,
			IsAdmin:  createAdmin,
		})
		if err != nil {
			return describeError(err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s, role %s)\n", account.Username, account.ID, account.Role)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		svc := services.NewAccountService(repositories.NewAccountRepository(e.db), e.logger, e.audit)
		accounts, err := svc.ListAccounts(cmd.Context(), listLimit, listOffset)
		if err != nil {
			return describeError(err)
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), accountViews(accounts))
		}
		return writeAccountTable(cmd.OutOrStdout(), accounts)
	},
}

var userActivateCmd = &cobra.Command{
	Use:   "activate <username>",
	Short: "Allow an account to log in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setActive(cmd, args[0], true)
	},
}

var userDeactivateCmd = &cobra.Command{
	Use:   "deactivate <username>",
	Short: "Stop an account from logging in",
	Long:  `Stop future logins for an account. Sessions that are already authenticated are not revoked.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setActive(cmd, args[0], false)
	},
}

var userAttemptsCmd = &cobra.Command{
	Use:   "attempts <username>",
	Short: "Show recent login attempts for a username",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		limit := attemptsLimit
		if limit <= 0 || limit > 1000 {
			limit = 20
		}

		repo := repositories.NewLoginAttemptRepository(e.db)
		attempts, err := repo.ListRecent(cmd.Context(), services.NormalizeUsername(args[0]), limit)
		if err != nil {
			return describeError(err)
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), attempts)
		}
		return writeAttemptTable(cmd.OutOrStdout(), attempts)
	},
}

func init() {
	userCreateCmd.Flags().StringVarP(&createUsername, "username", "u", "", "Username (3-50 characters)")
	userCreateCmd.Flags().StringVarP(&createPassword, "password", "p", "", "Password (falls back to "+PasswordEnv+")")
	userCreateCmd.Flags().StringVar(&createEmail, "email", "", "Address for lockout alerts")
	userCreateCmd.Flags().StringVar(&createRole, "role", models.RoleStaff, "Role: admin, staff or manager")
	userCreateCmd.Flags().BoolVar(&createAdmin, "admin", false, "Grant the administrative flag")
	_ = userCreateCmd.MarkFlagRequired("username")

	userListCmd.Flags().IntVar(&listLimit, "limit", 100, "Maximum accounts to show")
	userListCmd.Flags().IntVar(&listOffset, "offset", 0, "Accounts to skip")

	userAttemptsCmd.Flags().IntVar(&attemptsLimit, "limit", 20, "Maximum attempts to show")

	userCmd.AddCommand(userCreateCmd, userListCmd, userActivateCmd, userDeactivateCmd, userAttemptsCmd)
	rootCmd.AddCommand(userCmd)
}

func setActive(cmd *cobra.Command, username string, active bool) error {
	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	svc := services.NewAccountService(repositories.NewAccountRepository(e.db), e.logger, e.audit)
	if err := svc.SetActive(cmd.Context(), username, active); err != nil {
		return describeError(err)
	}

	state := "deactivated"
	if active {
		state = "activated"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", state, services.NormalizeUsername(username))
	return nil
}

// resolvePassword prefers the flag value over the environment
func resolvePassword(flagValue, envValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if envValue != "" {
		return envValue, nil
	}
	return "", fmt.Errorf("a password is required: pass --password or set %s", PasswordEnv)
}

// describeError turns store sentinels into operator-facing messages
func describeError(err error) error {
	switch {
	case errors.Is(err, models.ErrConflict):
		return errors.New("an account with that username already exists")
	case errors.Is(err, models.ErrNotFound):
		return errors.New("no such account")
	case errors.Is(err, models.ErrInvalidInput):
		return err
	default:
		return fmt.Errorf("operation failed: %w", err)
	}
}

type accountView struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email,omitempty"`
	Role      string     `json:"role"`
	IsAdmin   bool       `json:"is_admin"`
	IsActive  bool       `json:"is_active"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// accountViews drops the password hash and lockout bookkeeping
func accountViews(accounts []*models.Account) []accountView {
	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, accountView{
			ID:        a.ID,
			Username:  a.Username,
			Email:     a.Email,
			Role:      a.Role,
			IsAdmin:   a.IsAdmin,
			IsActive:  a.IsActive,
			LastLogin: a.LastLogin,
			CreatedAt: a.CreatedAt,
		})
	}
	return views
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeAccountTable(w io.Writer, accounts []*models.Account) error {
	if len(accounts) == 0 {
		_, err := fmt.Fprintln(w, "No accounts.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tROLE\tADMIN\tACTIVE\tLAST LOGIN")
	for _, a := range accounts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			a.Username, a.Role, yesNo(a.IsAdmin), yesNo(a.IsActive), formatTime(a.LastLogin))
	}
	return tw.Flush()
}

func writeAttemptTable(w io.Writer, attempts []*models.LoginAttempt) error {
	if len(attempts) == 0 {
		_, err := fmt.Fprintln(w, "No attempts recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tRESULT\tSOURCE\tUSER AGENT")
	for _, a := range attempts {
		result := "failure"
		if a.Success {
			result = "success"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			a.AttemptTime.UTC().Format(time.RFC3339), result, orDash(a.IPAddress), truncate(a.UserAgent, 40))
	}
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return orDash(s)
	}
	return string(r[:n-3]) + "..."
}
