package website

import (
	"html/template"
	"net/http"

	"github.com/Masterminds/sprig"
	"github.com/arsyadal/fastblog/src/blogdata"
	"github.com/arsyadal/fastblog/src/config"
	"github.com/arsyadal/fastblog/src/models"
	"github.com/arsyadal/fastblog/src/utils"
)

// Crawlers read the OpenGraph tags; people get bounced to the frontend.
var shareTemplate = template.Must(template.New("share").Funcs(sprig.FuncMap()).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8">
	<title>{{ .Title }}</title>
	<meta name="description" content="{{ .Description }}">
	<meta property="og:type" content="article">
	<meta property="og:site_name" content="fastblog">
	<meta property="og:title" content="{{ .Title }}">
	<meta property="og:description" content="{{ .Description }}">
	<meta property="og:url" content="{{ .Url }}">
	{{- with .Image }}
	<meta property="og:image" content="{{ . }}">
	{{- end }}
	{{- if .PublishedAt }}
	<meta property="article:published_time" content="{{ dateInZone "2006-01-02T15:04:05Z07:00" .PublishedAt "UTC" }}">
	{{- end }}
	<meta property="article:author" content="{{ .Author }}">
	{{- range .Tags }}
	<meta property="article:tag" content="{{ . | lower }}">
	{{- end }}
	<meta name="twitter:card" content="{{ if .Image }}summary_large_image{{ else }}summary{{ end }}">
	<meta name="twitter:title" content="{{ .Title | trunc 70 }}">
	<meta name="twitter:description" content="{{ .Description }}">
	<meta http-equiv="refresh" content="0; url={{ .Url }}">
	<link rel="canonical" href="{{ .Url }}">
</head>
<body>
	<p>Redirecting to <a href="{{ .Url }}">{{ .Title }}</a>.</p>
</body>
</html>
`))

type shareData struct {
	Title       string
	Description string
	Url         string
	Image       string
	Author      string
	Tags        []string
	PublishedAt any
}

func newShareData(article *models.Article, author *models.User, frontendUrl string) shareData {
	view := blogdata.NewArticleView(article, nil, nil, frontendUrl)
	data := shareData{
		Title:       view.ShareTitle,
		Description: view.ShareDescription,
		Url:         view.ShareUrl,
		Image:       utils.DerefOr(article.FeaturedImageUrl, ""),
		Author:      author.BestName(),
		Tags:        view.Tags,
	}
	if article.PublishedAt != nil {
		data.PublishedAt = *article.PublishedAt
	}
	return data
}

func ShareArticle(c *RequestContext) ResponseData {
	// Only published articles get share pages, whoever is asking.
	article, err := blogdata.FetchArticleBySlug(c, c.Conn, nil, c.PathParams["slug"])
	if err != nil {
		return c.DataError(err)
	}
	author, err := blogdata.FetchUser(c, c.Conn, article.AuthorID)
	if err != nil {
		return c.DataError(err)
	}

	b := c.Perf.StartBlock("TEMPLATE", "Share page")
	defer b.End()

	var res ResponseData
	res.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := shareTemplate.Execute(&res, newShareData(article, author, config.Config.FrontendUrl)); err != nil {
		return c.ErrorResponse(http.StatusInternalServerError, err)
	}
	return res
}
