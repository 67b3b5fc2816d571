package admintools

import (
	"testing"

	"github.com/arsyadal/fastblog/src/blogdata"
	"github.com/stretchr/testify/assert"
)

func TestDescribeReconcile(t *testing.T) {
	assert.Equal(t, "All counters were already correct.", describeReconcile(blogdata.ReconcileResult{}))
	assert.Equal(t,
		"Fixed 4 drifted counters (claps: 1, bookmarks: 0, comments: 2, followers: 1, following: 0)",
		describeReconcile(blogdata.ReconcileResult{Claps: 1, Comments: 2, Followers: 1}),
	)
}
