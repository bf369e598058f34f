package commands

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"usmleapp/internal/observability"
	"usmleapp/internal/services"
	contextutils "usmleapp/internal/utils"

	"github.com/spf13/cobra"
)

// UserCommands returns the user management commands
func UserCommands(userService *services.UserService, logger *observability.Logger, databaseURL string) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
		Long: `User management commands for the exam prep backend.

Available commands:
  list           - List all users
  create         - Create a new user
  reset-password - Reset password for a specific user`,
	}

	userCmd.AddCommand(listCmd(userService, logger, databaseURL))
	userCmd.AddCommand(createUserCmd(userService, logger))
	userCmd.AddCommand(resetPasswordCmd(userService, logger))

	return userCmd
}

// listCmd returns the list command
func listCmd(userService *services.UserService, logger *observability.Logger, databaseURL string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all users",
		Long:  `List all users in the database with their basic information.`,
		RunE:  runListUsers(userService, logger, databaseURL),
	}
}

// createUserCmd returns the create command
func createUserCmd(userService *services.UserService, logger *observability.Logger) *cobra.Command {
	var email string
	var admin bool

	cmd := &cobra.Command{
		Use:   "create [username]",
		Short: "Create a new user",
		Long:  `Create a new user account. The password is prompted for interactively.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runCreateUser(userService, logger, &email, &admin),
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address for the new user")
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant the new user admin privileges")

	return cmd
}

// resetPasswordCmd returns the reset-password command
func resetPasswordCmd(userService *services.UserService, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password [username]",
		Short: "Reset password for a user",
		Long:  `Reset the password for a specific user. If username is not provided, you will be prompted for it.`,
		RunE:  runResetPassword(userService, logger),
	}
}

// runListUsers returns a function that lists all users
func runListUsers(userService *services.UserService, logger *observability.Logger, databaseURL string) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()

		logger.Info(ctx, "Admin command diagnostics", map[string]interface{}{"config_file": os.Getenv("USMLE_CONFIG_FILE"), "database_url": maskDatabaseURL(databaseURL)})

		users, err := userService.GetAllUsers(ctx)
		if err != nil {
			logger.Error(ctx, "Failed to get users", err, map[string]interface{}{})
			return contextutils.WrapError(err, "failed to get users")
		}

		if len(users) == 0 {
			fmt.Println("No users found in the database")
			return nil
		}

		fmt.Printf("%-5s %-20s %-30s %-7s %-12s %-12s\n", "ID", "Username", "Email", "Admin", "Last Active", "Created")

		for _, user := range users {
			email := "N/A"
			if user.Email.Valid {
				email = user.Email.String
			}

			isAdmin := "No"
			if user.IsAdmin {
				isAdmin = "Yes"
			}

			lastActive := "never"
			if user.LastActive.Valid {
				lastActive = user.LastActive.Time.Format("2006-01-02")
			}

			fmt.Printf("%-5d %-20s %-30s %-7s %-12s %-12s\n",
				user.ID,
				user.Username,
				email,
				isAdmin,
				lastActive,
				user.CreatedAt.Format("2006-01-02"),
			)
		}

		logger.Info(ctx, "Listed users", map[string]interface{}{"total": len(users)})
		return nil
	}
}

// runCreateUser returns a function that creates a new user
func runCreateUser(userService *services.UserService, logger *observability.Logger, email *string, admin *bool) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, args []string) error {
		ctx := context.Background()
		username := args[0]

		password, err := promptPassword("Enter password: ")
		if err != nil {
			return err
		}
		confirm, err := promptPassword("Confirm password: ")
		if err != nil {
			return err
		}
		if password != confirm {
			return contextutils.ErrorWithContextf("passwords do not match")
		}

		user, err := userService.CreateUser(ctx, username, *email, password, *admin)
		if err != nil {
			logger.Error(ctx, "Failed to create user", err, map[string]interface{}{"username": username})
			return contextutils.WrapErrorf(err, "failed to create user '%s'", username)
		}

		fmt.Printf("Created user '%s' (ID: %d, admin: %v)\n", user.Username, user.ID, user.IsAdmin)
		return nil
	}
}

// runResetPassword returns a function that resets a user's password
func runResetPassword(userService *services.UserService, logger *observability.Logger) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, args []string) error {
		ctx := context.Background()

		var username string
		if len(args) > 0 {
			username = args[0]
		} else {
			fmt.Print("Enter username: ")
			if _, err := fmt.Scanln(&username); err != nil {
				return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to read username: %v", err)
			}
		}

		if username == "" {
			return contextutils.ErrorWithContextf("username is required")
		}

		newPassword, err := promptPassword("Enter new password: ")
		if err != nil {
			return err
		}
		if newPassword == "" {
			return contextutils.ErrorWithContextf("password cannot be empty")
		}

		confirmPassword, err := promptPassword("Confirm new password: ")
		if err != nil {
			return err
		}
		if newPassword != confirmPassword {
			return contextutils.ErrorWithContextf("passwords do not match")
		}

		user, err := userService.GetUserByUsername(ctx, username)
		if err != nil {
			logger.Error(ctx, "Failed to get user", err, map[string]interface{}{"username": username})
			return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to get user '%s': %v", username, err)
		}
		if user == nil {
			return contextutils.ErrorWithContextf("user '%s' not found", username)
		}

		if err := userService.UpdatePassword(ctx, user.ID, newPassword); err != nil {
			logger.Error(ctx, "Failed to update password", err, map[string]interface{}{"username": username, "user_id": user.ID})
			return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to update password for user '%s': %v", username, err)
		}

		fmt.Printf("Password successfully reset for user '%s' (ID: %d)\n", username, user.ID)
		logger.Info(ctx, "Password reset successful", map[string]interface{}{"username": username, "user_id": user.ID})

		return nil
	}
}

func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to read password: %v", err)
	}
	return string(passwordBytes), nil
}
