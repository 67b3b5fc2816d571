package devs3

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/arsyadal/fastblog/src/logging"
	"github.com/arsyadal/fastblog/src/website"
	"github.com/spf13/cobra"
)

func init() {
	s3Command := &cobra.Command{
		Use:   "devs3 [storage folder]",
		Short: "Run a local s3 server that stores uploads in the filesystem",
		Long:  "Point S3_ENDPOINT at this server to use uploads in local development. Only path-style PUT, GET, HEAD and DELETE of single objects are supported.",
		Run: func(cmd *cobra.Command, args []string) {
			targetFolder := "./tmp/s3"
			if len(args) > 0 {
				targetFolder = args[0]
			}
			addr, _ := cmd.Flags().GetString("addr")

			err := os.MkdirAll(targetFolder, fs.ModePerm)
			if err != nil {
				panic(err)
			}

			logging.Info().Str("addr", addr).Str("folder", targetFolder).Msg("serving local s3")
			err = http.ListenAndServe(addr, NewHandler(targetFolder))
			logging.Fatal().Err(err).Msg("local s3 server stopped")
		},
	}
	s3Command.Flags().String("addr", ":9090", "Address to listen on")

	website.WebsiteCommand.AddCommand(s3Command)
}

// NewHandler serves objects out of folder, one subdirectory per bucket.
// Slashes in keys are flattened so every object is a single file.
func NewHandler(folder string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bucket, key := bucketKey(r.URL.Path)
		logging.Debug().Str("method", r.Method).Str("bucket", bucket).Str("key", key).Msg("s3 request")

		if bucket == "" || strings.Contains(bucket, "..") || strings.Contains(key, "..") {
			http.Error(w, "bad bucket or key", http.StatusBadRequest)
			return
		}
		bucketDir := filepath.Join(folder, bucket)
		objectPath := filepath.Join(bucketDir, key)

		switch r.Method {
		case http.MethodPut:
			err := os.MkdirAll(bucketDir, fs.ModePerm)
			if err != nil {
				writeError(w, err)
				return
			}
			w.Header().Set("Location", "/"+bucket)
			if key == "" {
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if err := os.WriteFile(objectPath, body, 0644); err != nil {
				writeError(w, err)
				return
			}
		case http.MethodGet, http.MethodHead:
			if key == "" {
				http.Error(w, "listing is not supported", http.StatusNotImplemented)
				return
			}
			http.ServeFile(w, r, objectPath)
		case http.MethodDelete:
			err := os.Remove(objectPath)
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				writeError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "unsupported method", http.StatusMethodNotAllowed)
		}
	})
}

func writeError(w http.ResponseWriter, err error) {
	logging.Error().Err(err).Msg("local s3 failed")
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func bucketKey(path string) (string, string) {
	path = strings.TrimPrefix(path, "/")
	slashIdx := strings.IndexByte(path, '/')
	if slashIdx == -1 {
		return path, ""
	}
	return path[:slashIdx], strings.ReplaceAll(path[slashIdx+1:], "/", "~")
}
