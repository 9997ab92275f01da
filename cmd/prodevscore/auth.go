package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jugalmahida/prodevscore/internal/api"
)

func loginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with the analysis backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newGateway()
			if err != nil {
				return err
			}

			if email, err = prompt("Email", email); err != nil {
				return err
			}
			if password, err = prompt("Password", password); err != nil {
				return err
			}

			user, err := client.Login(cmd.Context(), api.LoginPayload{Email: email, Password: password})
			if err != nil {
				if api.IsUnverified(err) {
					fmt.Println("Account not verified. Check your mail and run: prodevscore verify")
					return nil
				}
				return err
			}

			fmt.Printf("Logged in as %s (%s plan)\n",
				user.PersonalDetails.Email, user.Subscription.CurrentPlan.Tier)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func registerCmd() *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newGateway()
			if err != nil {
				return err
			}

			if name, err = prompt("Full name", name); err != nil {
				return err
			}
			if email, err = prompt("Email", email); err != nil {
				return err
			}
			if password, err = prompt("Password", password); err != nil {
				return err
			}

			msg, err := client.Register(cmd.Context(), api.RegisterPayload{
				FullName: name, Email: email, Password: password,
			})
			if err != nil {
				return err
			}
			if msg == "" {
				msg = "Registered. A verification code was mailed to you."
			}
			fmt.Println(msg)
			fmt.Println("Complete with: prodevscore verify --email", email)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func verifyCmd() *cobra.Command {
	var email, code string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify an account with the mailed code",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newGateway()
			if err != nil {
				return err
			}

			if email, err = prompt("Email", email); err != nil {
				return err
			}
			if code, err = prompt("Verification code", code); err != nil {
				return err
			}
			n, err := strconv.Atoi(code)
			if err != nil {
				return fmt.Errorf("verification code must be numeric")
			}

			if err := client.VerifyCode(cmd.Context(), api.VerifyCodePayload{Email: email, Code: n}); err != nil {
				return err
			}
			fmt.Println("Account verified and logged in")
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&code, "code", "", "mailed verification code")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Invalidate the backend session and drop local credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newGateway()
			if err != nil {
				return err
			}
			if err := client.Logout(cmd.Context()); err != nil && !api.IsUnauthorized(err) {
				return err
			}
			fmt.Println("Logged out")
			return nil
		},
	}
}

func forgetPasswordCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "forget-password",
		Short: "Request a password-reset mail",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newGateway()
			if err != nil {
				return err
			}
			if email, err = prompt("Email", email); err != nil {
				return err
			}
			if err := client.ForgetPassword(cmd.Context(), email); err != nil {
				return err
			}
			fmt.Println("Reset mail sent")
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func resetPasswordCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "reset-password <token>",
		Short: "Set a new password using a mailed reset token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newGateway()
			if err != nil {
				return err
			}
			if password, err = prompt("New password", password); err != nil {
				return err
			}
			if err := client.ResetPassword(cmd.Context(), args[0], password); err != nil {
				return err
			}
			fmt.Println("Password updated")
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "new password")
	return cmd
}
