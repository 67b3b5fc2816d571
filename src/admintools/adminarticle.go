package admintools

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/arsyadal/fastblog/src/blogdata"
	"github.com/arsyadal/fastblog/src/db"
	"github.com/arsyadal/fastblog/src/models"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func addArticleCommands(adminCommand *cobra.Command) {
	articleCommand := &cobra.Command{
		Use:   "article",
		Short: "Admin commands for managing articles",
	}
	adminCommand.AddCommand(articleCommand)

	addFeatureArticleCommand(articleCommand)
	addArticleStatsCommand(articleCommand)
}

func addFeatureArticleCommand(articleCommand *cobra.Command) {
	featureCommand := &cobra.Command{
		Use:   "feature [slug]",
		Short: "Toggle whether a published article is featured",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 1 {
				fmt.Printf("You must provide an article slug.\n\n")
				cmd.Usage()
				os.Exit(1)
			}

			ctx := context.Background()
			conn := db.NewConn()
			defer conn.Close(ctx)

			article := mustFetchArticle(ctx, conn, args[0])
			featured, err := blogdata.ToggleFeatured(ctx, conn, blogdata.Actor{UserID: article.AuthorID, IsAdmin: true}, article.ID)
			if err != nil {
				panic(err)
			}
			fmt.Printf("'%s' is_featured is now %v\n", article.Title, featured)
		},
	}
	articleCommand.AddCommand(featureCommand)
}

func addArticleStatsCommand(articleCommand *cobra.Command) {
	statsCommand := &cobra.Command{
		Use:   "stats [slug]",
		Short: "Print the engagement numbers for an article",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 1 {
				fmt.Printf("You must provide an article slug.\n\n")
				cmd.Usage()
				os.Exit(1)
			}

			ctx := context.Background()
			conn := db.NewConn()
			defer conn.Close(ctx)

			stats := blogdata.NewArticleStats(mustFetchArticle(ctx, conn, args[0]))
			fmt.Printf("%s\n", stats.Title)
			fmt.Printf("  views:       %d\n", stats.ViewsCount)
			fmt.Printf("  reads:       %d\n", stats.ReadsCount)
			fmt.Printf("  claps:       %d\n", stats.ClapsCount)
			fmt.Printf("  comments:    %d\n", stats.CommentsCount)
			fmt.Printf("  bookmarks:   %d\n", stats.BookmarksCount)
			fmt.Printf("  engagement:  %.2f%%\n", stats.EngagementRate)
		},
	}
	articleCommand.AddCommand(statsCommand)
}

// Admins see every article, so this fetches as the author would.
func mustFetchArticle(ctx context.Context, conn db.ConnOrTx, slug string) *models.Article {
	authorID, err := db.QueryOneScalar[uuid.UUID](ctx, conn,
		`SELECT author_id FROM articles WHERE slug = $1`,
		slug,
	)
	if errors.Is(err, db.NotFound) {
		fmt.Printf("No article with slug '%s'\n", slug)
		os.Exit(1)
	} else if err != nil {
		panic(err)
	}

	article, err := blogdata.FetchArticleBySlug(ctx, conn, &authorID, slug)
	if err != nil {
		panic(err)
	}
	return article
}
