package website

import (
	"net/http"

	"github.com/arsyadal/fastblog/src/blogdata"
	"github.com/arsyadal/fastblog/src/events"
	"github.com/google/uuid"
)

func Clap(c *RequestContext) ResponseData {
	articleID, ok := c.PathUUID("articleid")
	if !ok {
		return FourOhFour(c)
	}
	var body struct {
		Count *int `json:"count"`
	}
	if res, ok := c.ReadJson(&body); !ok {
		return res
	}
	magnitude := 1
	if body.Count != nil {
		magnitude = *body.Count
	}

	result, err := blogdata.ToggleClap(c, c.Conn, articleID, c.CurrentUser.UserID, magnitude)
	if err != nil {
		return c.DataError(err)
	}

	c.Publish(events.NewArticleEvent(events.ArticleClapped, articleID, c.ViewerID(), map[string]int64{
		"claps_count": result.TotalClaps,
	}))
	return c.JsonResponse(http.StatusOK, map[string]any{
		"total_claps":    result.TotalClaps,
		"personal_count": result.PersonalCount,
		"is_clapped":     result.IsClapped,
	})
}

func Bookmark(c *RequestContext) ResponseData {
	articleID, ok := c.PathUUID("articleid")
	if !ok {
		return FourOhFour(c)
	}
	result, err := blogdata.Bookmark(c, c.Conn, articleID, c.CurrentUser.UserID)
	if err != nil {
		return c.DataError(err)
	}

	if !result.AlreadyBookmarked {
		c.Publish(events.NewArticleEvent(events.ArticleBookmarked, articleID, c.ViewerID(), map[string]int64{
			"bookmarks_count": int64(result.BookmarksCount),
		}))
	}
	return c.JsonResponse(http.StatusOK, map[string]any{
		"is_bookmarked":      true,
		"already_bookmarked": result.AlreadyBookmarked,
		"bookmarks_count":    result.BookmarksCount,
	})
}

func Unbookmark(c *RequestContext) ResponseData {
	articleID, ok := c.PathUUID("articleid")
	if !ok {
		return FourOhFour(c)
	}
	result, err := blogdata.Unbookmark(c, c.Conn, articleID, c.CurrentUser.UserID)
	if err != nil {
		return c.DataError(err)
	}

	if result.Removed {
		c.Publish(events.NewArticleEvent(events.ArticleBookmarked, articleID, c.ViewerID(), map[string]int64{
			"bookmarks_count": int64(result.BookmarksCount),
		}))
	}
	return c.JsonResponse(http.StatusOK, map[string]any{
		"is_bookmarked":   false,
		"removed":         result.Removed,
		"bookmarks_count": result.BookmarksCount,
	})
}

func ListComments(c *RequestContext) ResponseData {
	articleID, ok := c.PathUUID("articleid")
	if !ok {
		return FourOhFour(c)
	}
	comments, err := blogdata.FetchComments(c, c.Conn, c.ViewerID(), articleID)
	if err != nil {
		return c.DataError(err)
	}

	result := make([]apiComment, 0, len(comments))
	for _, comment := range comments {
		result = append(result, newApiComment(comment))
	}
	return c.JsonResponse(http.StatusOK, map[string]any{"comments": result, "total": len(result)})
}

func AddComment(c *RequestContext) ResponseData {
	articleID, ok := c.PathUUID("articleid")
	if !ok {
		return FourOhFour(c)
	}
	var body struct {
		Content  string     `json:"content"`
		ParentID *uuid.UUID `json:"parent_id"`
	}
	if res, ok := c.ReadJson(&body); !ok {
		return res
	}

	comment, err := blogdata.AddComment(c, c.Conn, articleID, c.CurrentUser.UserID, blogdata.CommentInput{
		ParentID: body.ParentID,
		Content:  body.Content,
	})
	if err != nil {
		return c.DataError(err)
	}

	c.Publish(events.NewArticleEvent(events.ArticleCommented, articleID, c.ViewerID(), nil))
	return c.JsonResponse(http.StatusCreated, newApiComment(comment))
}
