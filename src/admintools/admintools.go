package admintools

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/arsyadal/fastblog/src/auth"
	"github.com/arsyadal/fastblog/src/blogdata"
	"github.com/arsyadal/fastblog/src/db"
	"github.com/arsyadal/fastblog/src/models"
	"github.com/arsyadal/fastblog/src/website"
	"github.com/spf13/cobra"
)

func init() {
	adminCommand := &cobra.Command{
		Use:   "admin",
		Short: "Miscellaneous admin commands",
	}
	website.WebsiteCommand.AddCommand(adminCommand)

	reconcileCommand := &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute engagement counters from the rows they count",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			conn := db.NewConn()
			defer conn.Close(ctx)

			res, err := blogdata.ReconcileCounters(ctx, conn)
			if err != nil {
				panic(err)
			}
			fmt.Println(describeReconcile(res))
		},
	}
	website.WebsiteCommand.AddCommand(reconcileCommand)

	setPasswordCommand := &cobra.Command{
		Use:   "setpassword [username] [new password]",
		Short: "Replace a user's password",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 2 {
				fmt.Printf("You must provide a username and a password.\n\n")
				cmd.Usage()
				os.Exit(1)
			}

			username := args[0]
			password := args[1]

			ctx := context.Background()
			conn := db.NewConn()
			defer conn.Close(ctx)

			err := auth.SetPassword(ctx, conn, username, password)
			if errors.Is(err, auth.ErrUserDoesNotExist) {
				fmt.Printf("User '%s' not found\n", username)
				os.Exit(1)
			} else if err != nil {
				panic(err)
			}

			fmt.Printf("Successfully updated password for '%s'\n", username)
		},
	}
	adminCommand.AddCommand(setPasswordCommand)

	createUserCommand := &cobra.Command{
		Use:   "createuser [username]",
		Short: "Creates a new user with the password \"password\"",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 1 {
				fmt.Printf("You must provide a username.\n\n")
				cmd.Usage()
				os.Exit(1)
			}

			username := args[0]
			email, _ := cmd.Flags().GetString("email")
			if email == "" {
				email = username + "@example.com"
			}

			ctx := context.Background()
			conn := db.NewConn()
			defer conn.Close(ctx)

			user, err := blogdata.Register(ctx, conn, blogdata.RegisterInput{
				Email:    email,
				Username: username,
				Password: "password",
			})
			if errors.Is(err, blogdata.ErrUserExists) {
				fmt.Printf("%s already exists. Please pick a different username.\n\n", username)
				os.Exit(1)
			} else if blogdata.IsValidationError(err) {
				fmt.Printf("Invalid user: %v\n\n", err)
				os.Exit(1)
			} else if err != nil {
				panic(err)
			}

			fmt.Printf("Created user %s (%s) with password \"password\"\n", user.Username, user.ID)
		},
	}
	createUserCommand.Flags().String("email", "", "Email address (default <username>@example.com)")
	adminCommand.AddCommand(createUserCommand)

	userSetAdminCommand := &cobra.Command{
		Use:   "usersetadmin [username] [true/false]",
		Short: "Toggle the user's admin privileges",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 2 {
				fmt.Printf("You must provide a username and 'true' or 'false'.\n\n")
				cmd.Usage()
				os.Exit(1)
			}

			username := args[0]
			makeAdmin := args[1] == "true"

			ctx := context.Background()
			conn := db.NewConn()
			defer conn.Close(ctx)

			err := blogdata.MarkAdmin(ctx, conn, username, makeAdmin)
			if errors.Is(err, blogdata.ErrNotFound) {
				fmt.Printf("User not found.\n\n")
			} else if err != nil {
				panic(err)
			} else {
				fmt.Printf("Successfully set %s's is_admin to %v\n\n", username, makeAdmin)
			}
		},
	}
	adminCommand.AddCommand(userSetAdminCommand)

	userTypeCommand := &cobra.Command{
		Use:   "usertype [username] [free/member/writer/publication]",
		Short: "Set a user's account type manually",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 2 {
				fmt.Printf("You must provide a username and a type.\n\n")
				cmd.Usage()
				os.Exit(1)
			}

			username := args[0]
			userType := models.UserType(args[1])
			if !userType.Valid() {
				fmt.Printf("'%s' is not a valid user type.\n\n", args[1])
				os.Exit(1)
			}

			ctx := context.Background()
			conn := db.NewConn()
			defer conn.Close(ctx)

			res, err := conn.Exec(ctx,
				`
				UPDATE users
				SET user_type = $1, updated_at = NOW()
				WHERE LOWER(username) = LOWER($2)
				`,
				userType,
				username,
			)
			if err != nil {
				panic(err)
			}
			if res.RowsAffected() == 0 {
				fmt.Printf("User not found.\n\n")
			} else {
				fmt.Printf("%s is now a %s user\n\n", username, userType)
			}
		},
	}
	adminCommand.AddCommand(userTypeCommand)

	verifyUserCommand := &cobra.Command{
		Use:   "verifyuser [username] [true/false]",
		Short: "Set or clear a user's verified badge",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 2 {
				fmt.Printf("You must provide a username and 'true' or 'false'.\n\n")
				cmd.Usage()
				os.Exit(1)
			}

			username := args[0]
			verified := args[1] == "true"

			ctx := context.Background()
			conn := db.NewConn()
			defer conn.Close(ctx)

			res, err := conn.Exec(ctx,
				`UPDATE users SET is_verified = $1, updated_at = NOW() WHERE LOWER(username) = LOWER($2)`,
				verified,
				username,
			)
			if err != nil {
				panic(err)
			}
			if res.RowsAffected() == 0 {
				fmt.Printf("User not found.\n\n")
			} else {
				fmt.Printf("Successfully set %s's is_verified to %v\n\n", username, verified)
			}
		},
	}
	adminCommand.AddCommand(verifyUserCommand)

	addArticleCommands(adminCommand)
}

func describeReconcile(res blogdata.ReconcileResult) string {
	if res.Total() == 0 {
		return "All counters were already correct."
	}
	return fmt.Sprintf(
		"Fixed %d drifted counters (claps: %d, bookmarks: %d, comments: %d, followers: %d, following: %d)",
		res.Total(), res.Claps, res.Bookmarks, res.Comments, res.Followers, res.Following,
	)
}
