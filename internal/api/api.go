// Package api holds the wire types shared by the server and the client.
package api

import (
	"strconv"
	"strings"

	"github.com/chrisdamba/menumanager/internal/tree"
)

const (
	PathGetData    = "/api/get_data"
	PathSearch     = "/api/get_data/search"
	PathUpdateData = "/api/update_data"
	PathAddData    = "/api/add_data"
	PathDeleteData = "/api/delete_data"
	PathLocate     = "/api/locate"
	PathHealth     = "/healthz"
	PathMetrics    = "/metrics"
)

// MutationRequest is the body of update, add and delete requests.
type MutationRequest struct {
	Path    tree.Path `json:"path"`
	NewData any       `json:"newData,omitempty"`
}

// ErrorResponse is the body of a failure when structured errors are enabled.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type LocateResponse struct {
	ID   string    `json:"id"`
	Path tree.Path `json:"path"`
}

// FormatETag renders a revision as a strong entity tag.
func FormatETag(revision int64) string {
	return strconv.Quote(strconv.FormatInt(revision, 10))
}

// ParseETag reads a revision from an ETag or If-Match value.
func ParseETag(v string) (int64, bool) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "W/")
	v = strings.Trim(v, `"`)
	rev, err := strconv.ParseInt(v, 10, 64)
	if err != nil || rev < 0 {
		return 0, false
	}
	return rev, true
}
