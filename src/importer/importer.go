package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/arsyadal/fastblog/src/blogdata"
	"github.com/arsyadal/fastblog/src/db"
	"github.com/arsyadal/fastblog/src/logging"
	"github.com/arsyadal/fastblog/src/models"
	"github.com/arsyadal/fastblog/src/oops"
	"github.com/arsyadal/fastblog/src/parsing"
	"github.com/arsyadal/fastblog/src/utils"
	"github.com/arsyadal/fastblog/src/website"
	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/mmcdole/gofeed"
	"github.com/spf13/cobra"
)

const (
	fetchTimeout     = 30 * time.Second
	fetchMaxAttempts = 3
	maxTitleLength   = 200
	maxSubtitle      = 300
)

func init() {
	importCommand := &cobra.Command{
		Use:   "importfeed <url>",
		Short: "Import the items of an RSS or Atom feed as articles",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 1 {
				fmt.Printf("You must provide a feed URL.\n\n")
				cmd.Usage()
				os.Exit(1)
			}
			username, _ := cmd.Flags().GetString("author")
			if username == "" {
				fmt.Printf("You must provide an author with --author.\n\n")
				cmd.Usage()
				os.Exit(1)
			}
			publish, _ := cmd.Flags().GetBool("publish")
			limit, _ := cmd.Flags().GetInt("limit")

			ctx := context.Background()
			conn := db.NewConn()
			defer conn.Close(ctx)

			author, err := blogdata.FetchUserByUsername(ctx, conn, username)
			if errors.Is(err, blogdata.ErrNotFound) {
				fmt.Printf("User '%s' not found\n", username)
				os.Exit(1)
			} else if err != nil {
				panic(err)
			}

			feed, err := FetchFeed(ctx, gofeed.NewParser(), args[0])
			if err != nil {
				panic(err)
			}

			res, err := ImportFeed(ctx, conn, author.ID, feed, Options{Publish: publish, Limit: limit})
			if err != nil {
				panic(err)
			}
			fmt.Printf("Imported %d of %d items from '%s' (%d already present, %d unusable)\n",
				res.Imported, res.Seen, feed.Title, res.Duplicates, res.Skipped)
		},
	}
	importCommand.Flags().String("author", "", "Username that will own the imported articles")
	importCommand.Flags().Bool("publish", false, "Publish imported articles instead of leaving them as drafts")
	importCommand.Flags().Int("limit", 0, "Import at most this many items (0 for all)")

	website.WebsiteCommand.AddCommand(importCommand)
}

type Options struct {
	Publish bool
	Limit   int
}

type Result struct {
	Seen       int
	Imported   int
	Duplicates int
	Skipped    int
}

// FetchFeed downloads and parses a feed, retrying transient failures.
func FetchFeed(ctx context.Context, parser *gofeed.Parser, url string) (*gofeed.Feed, error) {
	boff := backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
	}
	for {
		fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
		feed, err := parser.ParseURLWithContext(url, fetchCtx)
		cancel()
		if err == nil {
			return feed, nil
		}

		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 {
			return nil, oops.New(err, "feed %s refused the request", url)
		}
		if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
			return nil, oops.New(err, "%s is not an RSS or Atom feed", url)
		}
		if int(boff.Attempt())+1 >= fetchMaxAttempts {
			return nil, oops.New(err, "failed to fetch feed after %d attempts", fetchMaxAttempts)
		}

		wait := boff.Duration()
		logging.ExtractLogger(ctx).Warn().Err(err).Str("url", url).Dur("retry_in", wait).Msg("feed fetch failed")
		if err := utils.SleepContext(ctx, wait); err != nil {
			return nil, oops.New(err, "gave up fetching feed")
		}
	}
}

/*
ImportFeed creates one article per usable feed item, oldest first so that the
newest item ends up on top of the author's feed. Items whose title the author
has already used are skipped, which makes re-running an import safe.
*/
func ImportFeed(ctx context.Context, conn db.ConnOrTx, authorID uuid.UUID, feed *gofeed.Feed, opts Options) (Result, error) {
	var res Result
	items := append([]*gofeed.Item(nil), feed.Items...)
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}

	for _, item := range items {
		if opts.Limit > 0 && res.Imported >= opts.Limit {
			break
		}
		res.Seen++

		in, ok := ArticleFromItem(item)
		if !ok {
			res.Skipped++
			continue
		}

		exists, err := db.QueryOneScalar[bool](ctx, conn,
			`SELECT EXISTS (SELECT 1 FROM articles WHERE author_id = $1 AND title = $2)`,
			authorID, in.Title,
		)
		if err != nil {
			return res, oops.New(err, "failed to check for existing article")
		}
		if exists {
			res.Duplicates++
			continue
		}

		if opts.Publish {
			in.Status = models.ArticleStatusPublished
		}
		article, err := blogdata.CreateArticle(ctx, conn, authorID, in)
		if blogdata.IsValidationError(err) {
			logging.ExtractLogger(ctx).Warn().Err(err).Str("title", in.Title).Msg("skipping invalid feed item")
			res.Skipped++
			continue
		} else if err != nil {
			return res, err
		}

		logging.ExtractLogger(ctx).Info().Str("slug", article.Slug).Str("status", string(article.Status)).Msg("imported feed item")
		res.Imported++
	}
	return res, nil
}

// ArticleFromItem maps a feed item onto a draft. Items without a title or a
// body are not usable.
func ArticleFromItem(item *gofeed.Item) (blogdata.CreateArticleInput, bool) {
	title := utils.TruncateRunes(strings.TrimSpace(parsing.PlainText(item.Title)), maxTitleLength)
	body := item.Content
	if strings.TrimSpace(body) == "" {
		body = item.Description
	}
	content := htmlToMarkdown(body)
	if title == "" || content == "" {
		return blogdata.CreateArticleInput{}, false
	}

	if item.Link != "" {
		content += "\n\n*Originally published at [" + item.Link + "](" + item.Link + ").*"
	}

	in := blogdata.CreateArticleInput{
		Title:   title,
		Content: content,
		Tags:    itemTags(item.Categories),
	}

	// Only use the description as a subtitle when it isn't the body itself.
	if item.Content != "" && item.Description != "" {
		if sub := parsing.PlainText(item.Description); sub != "" {
			in.Subtitle = utils.P(utils.TruncateRunes(sub, maxSubtitle))
		}
	}

	if img := featuredImage(item, body); img != "" {
		in.FeaturedImageUrl = &img
	}
	return in, true
}

func featuredImage(item *gofeed.Item, body string) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img[src]").First().Attr("src")
	return src
}

// Feed categories become tags: lowercased, deduplicated, capped.
func itemTags(categories []string) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, c := range categories {
		tag := strings.ToLower(strings.TrimSpace(c))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
		if len(tags) == models.MaxArticleTags {
			break
		}
	}
	return tags
}
