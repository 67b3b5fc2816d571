package migration

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/arsyadal/fastblog/src/blogdata"
	"github.com/arsyadal/fastblog/src/config"
	"github.com/arsyadal/fastblog/src/db"
	"github.com/arsyadal/fastblog/src/models"
	"github.com/arsyadal/fastblog/src/utils"
	lorem "github.com/HandmadeNetwork/golorem"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/tracelog"
)

var seedTags = []string{"go", "postgres", "design", "writing", "startups", "productivity", "ai", "travel", "music", "science"}

var seedCategories = []string{"technology", "culture", "business", "life"}

/*
Seeds the database with sample data for local dev. Everything goes through
the same functions the API uses, so counters, slugs, and reading times come
out the way they would in production.

Every user's password is "password". The first user is an admin.
*/
func SampleSeed(numUsers, numArticles int) {
	Migrate(LatestVersion())

	ctx := context.Background()
	conn := db.NewConnWithConfig(config.PostgresConfig{
		LogLevel: tracelog.LogLevelWarn,
	})
	defer conn.Close(ctx)

	fmt.Println("Creating admin user (\"admin\"/\"password\")...")
	admin := seedUser(ctx, conn, "admin", utils.P("Admin"))
	if err := blogdata.MarkAdmin(ctx, conn, admin.Username, true); err != nil {
		panic(err)
	}

	fmt.Printf("Creating %d users (all with password \"password\")...\n", numUsers)
	users := []*models.User{admin}
	for i := 0; i < numUsers; i++ {
		username := fmt.Sprintf("%s_%d", lorem.Word(4, 10), i)
		users = append(users, seedUser(ctx, conn, username, nil))
	}

	fmt.Println("Following people...")
	for _, follower := range users {
		for _, following := range users {
			if follower.ID == following.ID || rand.Intn(3) != 0 {
				continue
			}
			if _, err := blogdata.Follow(ctx, conn, follower.ID, following.ID); err != nil {
				panic(err)
			}
		}
	}

	fmt.Printf("Writing %d articles...\n", numArticles)
	var published []*models.Article
	for i := 0; i < numArticles; i++ {
		author := users[rand.Intn(len(users))]
		article := seedArticle(ctx, conn, author.ID)
		if article.IsPublished() {
			published = append(published, article)
		}
	}

	fmt.Println("Clapping, bookmarking, and commenting...")
	for _, article := range published {
		for _, user := range users {
			if rand.Intn(2) == 0 {
				if _, err := blogdata.ToggleClap(ctx, conn, article.ID, user.ID, 1+rand.Intn(models.MaxClapCount)); err != nil {
					panic(err)
				}
			}
			if rand.Intn(4) == 0 {
				if _, err := blogdata.Bookmark(ctx, conn, article.ID, user.ID); err != nil {
					panic(err)
				}
			}
			if rand.Intn(5) == 0 {
				seedThread(ctx, conn, article, user.ID)
			}
		}

		for i := rand.Intn(200); i > 0; i-- {
			if _, err := blogdata.RecordView(ctx, conn, article.ID); err != nil {
				panic(err)
			}
			if rand.Intn(3) == 0 {
				if _, err := blogdata.RecordRead(ctx, conn, article.ID); err != nil {
					panic(err)
				}
			}
		}
	}

	fmt.Println("Featuring a few articles...")
	for i, article := range published {
		if i%7 != 0 {
			continue
		}
		if _, err := blogdata.ToggleFeatured(ctx, conn, blogdata.Actor{UserID: admin.ID, IsAdmin: true}, article.ID); err != nil {
			panic(err)
		}
	}

	fmt.Println("Done!")
}

func seedUser(ctx context.Context, conn db.ConnOrTx, username string, displayName *string) *models.User {
	if displayName == nil {
		displayName = utils.P(capitalize(lorem.Word(3, 8)) + " " + capitalize(lorem.Word(4, 10)))
	}
	user, err := blogdata.Register(ctx, conn, blogdata.RegisterInput{
		Email:       fmt.Sprintf("%s@example.com", username),
		Username:    username,
		Password:    "password",
		DisplayName: displayName,
	})
	if err != nil {
		panic(err)
	}
	bio := lorem.Sentence(6, 20)
	user, err = blogdata.UpdateProfile(ctx, conn, user.ID, blogdata.ProfileInput{Bio: &bio})
	if err != nil {
		panic(err)
	}
	return user
}

// Roughly two thirds of seeded articles get published. The rest stay drafts.
func seedArticle(ctx context.Context, conn db.ConnOrTx, authorID uuid.UUID) *models.Article {
	var content strings.Builder
	for p := 2 + rand.Intn(12); p > 0; p-- {
		if rand.Intn(4) == 0 {
			fmt.Fprintf(&content, "## %s\n\n", strings.TrimSuffix(lorem.Sentence(2, 6), "."))
		}
		fmt.Fprintf(&content, "%s\n\n", lorem.Paragraph(3, 8))
	}

	var subtitle *string
	if rand.Intn(2) == 0 {
		subtitle = utils.P(lorem.Sentence(5, 12))
	}

	article, err := blogdata.CreateArticle(ctx, conn, authorID, blogdata.CreateArticleInput{
		Title:        strings.TrimSuffix(lorem.Sentence(3, 9), "."),
		Subtitle:     subtitle,
		Content:      content.String(),
		Tags:         pick(seedTags, rand.Intn(4)),
		Categories:   pick(seedCategories, 1+rand.Intn(2)),
		IsMemberOnly: rand.Intn(5) == 0,
	})
	if err != nil {
		panic(err)
	}

	if rand.Intn(3) != 0 {
		article, err = blogdata.PublishArticle(ctx, conn, authorID, article.ID)
		if err != nil {
			panic(err)
		}
	}
	return article
}

// A top-level comment, sometimes with a reply from the article's author.
func seedThread(ctx context.Context, conn db.ConnOrTx, article *models.Article, userID uuid.UUID) {
	comment, err := blogdata.AddComment(ctx, conn, article.ID, userID, blogdata.CommentInput{
		Content: lorem.Sentence(4, 30),
	})
	if err != nil {
		panic(err)
	}
	if rand.Intn(2) == 0 {
		_, err := blogdata.AddComment(ctx, conn, article.ID, article.AuthorID, blogdata.CommentInput{
			ParentID: &comment.Comment.ID,
			Content:  lorem.Sentence(2, 15),
		})
		if err != nil {
			panic(err)
		}
	}
}

func pick(from []string, n int) []string {
	res := make([]string, 0, n)
	for _, i := range rand.Perm(len(from))[:utils.Min(n, len(from))] {
		res = append(res, from[i])
	}
	return res
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
