package website

import (
	"net/http"

	"github.com/arsyadal/fastblog/src/blogdata"
	"github.com/arsyadal/fastblog/src/utils"
)

const (
	defaultTagResults = 20
	maxTagResults     = 50
)

func GlobalSearch(c *RequestContext) ResponseData {
	q := c.Req.URL.Query().Get("q")
	result, err := blogdata.GlobalSearch(c, c.Conn, q)
	if err != nil {
		return c.DataError(err)
	}

	articles := make([]apiArticleHit, 0, len(result.Articles))
	for _, hit := range result.Articles {
		articles = append(articles, newApiArticleHit(hit))
	}
	users := make([]apiUserHit, 0, len(result.Users))
	for _, hit := range result.Users {
		users = append(users, newApiUserHit(hit))
	}

	return c.JsonResponse(http.StatusOK, map[string]any{
		"query":          q,
		"articles":       articles,
		"total_articles": result.TotalArticles,
		"users":          users,
		"total_users":    result.TotalUsers,
		"tags":           newApiTags(result.Tags),
	})
}

func SearchArticles(c *RequestContext) ResponseData {
	query := c.Req.URL.Query()
	paged, err := blogdata.SearchArticles(c, c.Conn, query.Get("q"), blogdata.ParseSearchSort(query.Get("sort")), getPage(c))
	if err != nil {
		return c.DataError(err)
	}
	return c.JsonResponse(http.StatusOK, newPagedJson(paged, newApiArticleHit))
}

func SearchUsers(c *RequestContext) ResponseData {
	query := c.Req.URL.Query()
	paged, err := blogdata.SearchUsers(c, c.Conn, query.Get("q"), blogdata.ParseSearchSort(query.Get("sort")), getPage(c))
	if err != nil {
		return c.DataError(err)
	}
	return c.JsonResponse(http.StatusOK, newPagedJson(paged, newApiUserHit))
}

func SearchTags(c *RequestContext) ResponseData {
	limit := utils.Clamp(1, c.QueryInt("limit", defaultTagResults), maxTagResults)
	tags, err := blogdata.SearchTags(c, c.Conn, c.Req.URL.Query().Get("q"), limit)
	if err != nil {
		return c.DataError(err)
	}
	return c.JsonResponse(http.StatusOK, map[string]any{"tags": newApiTags(tags)})
}

func SearchSuggestions(c *RequestContext) ResponseData {
	suggestions, err := blogdata.Suggestions(c, c.Conn, c.Req.URL.Query().Get("q"))
	if err != nil {
		return c.DataError(err)
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	return c.JsonResponse(http.StatusOK, map[string]any{"suggestions": suggestions})
}
