package website

import (
	"errors"
	"io"
	"net/http"

	"github.com/arsyadal/fastblog/src/assets"
	"github.com/arsyadal/fastblog/src/blogdata"
	"github.com/arsyadal/fastblog/src/config"
)

// Multipart overhead on top of the file itself.
const multipartSlack = 64 * 1024

func readUploadedFile(c *RequestContext, kind assets.Kind) (assets.UploadInput, error) {
	maxSize := config.Config.Uploads.MaxFileSize
	c.Req.Body = http.MaxBytesReader(c.Res, c.Req.Body, maxSize+multipartSlack)
	if err := c.Req.ParseMultipartForm(maxSize + multipartSlack); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return assets.UploadInput{}, &assets.InvalidUploadError{Reason: "file is too large"}
		}
		return assets.UploadInput{}, &assets.InvalidUploadError{Reason: "expected a multipart form with a file field"}
	}

	file, header, err := c.Req.FormFile("file")
	if err != nil {
		return assets.UploadInput{}, &assets.InvalidUploadError{Reason: "no file was uploaded"}
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return assets.UploadInput{}, &assets.InvalidUploadError{Reason: "failed to read the uploaded file"}
	}

	return assets.UploadInput{
		Kind:     kind,
		Filename: header.Filename,
		Content:  content,
	}, nil
}

// Best-effort removal of a file nobody points at anymore.
func deleteOldUpload(c *RequestContext, url string) {
	if url == "" {
		return
	}
	if err := assets.Delete(c, url); err != nil {
		c.Logger.Warn().Err(err).Str("url", url).Msg("failed to delete old upload")
	}
}

func UploadAvatar(c *RequestContext) ResponseData {
	in, err := readUploadedFile(c, assets.KindAvatar)
	if err != nil {
		return c.DataError(err)
	}
	upload, err := assets.Create(c, in)
	if err != nil {
		return c.DataError(err)
	}

	previous, err := blogdata.SetAvatarUrl(c, c.Conn, c.CurrentUser.UserID, &upload.Url)
	if err != nil {
		deleteOldUpload(c, upload.Url)
		return c.DataError(err)
	}
	deleteOldUpload(c, previous)

	return c.JsonResponse(http.StatusOK, map[string]any{
		"avatar_url": upload.Url,
		"width":      upload.Width,
		"height":     upload.Height,
	})
}

func DeleteAvatar(c *RequestContext) ResponseData {
	previous, err := blogdata.SetAvatarUrl(c, c.Conn, c.CurrentUser.UserID, nil)
	if err != nil {
		return c.DataError(err)
	}
	deleteOldUpload(c, previous)

	return c.JsonResponse(http.StatusOK, map[string]any{"avatar_url": nil})
}

func UploadImage(c *RequestContext) ResponseData {
	in, err := readUploadedFile(c, assets.KindImage)
	if err != nil {
		return c.DataError(err)
	}
	upload, err := assets.Create(c, in)
	if err != nil {
		return c.DataError(err)
	}

	return c.JsonResponse(http.StatusCreated, map[string]any{
		"url":          upload.Url,
		"content_type": upload.ContentType,
		"width":        upload.Width,
		"height":       upload.Height,
	})
}
