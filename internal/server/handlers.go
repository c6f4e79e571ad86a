package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/chrisdamba/menumanager/internal/api"
	"github.com/chrisdamba/menumanager/internal/tree"
	"github.com/gin-gonic/gin"
)

const noResults = "No results found"

var errBadRequest = errors.New("malformed request")

// verbs maps an operation to the word used in plain-text failures.
var verbs = map[tree.Op]string{
	tree.OpUpdate: "updating",
	tree.OpAdd:    "adding",
	tree.OpDelete: "deleting",
}

func (s *Server) getData(c *gin.Context) {
	snap, err := s.svc.Fetch(c.Request.Context())
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, "Error fetching data: "+err.Error(), err)
		return
	}
	c.Header("ETag", api.FormatETag(snap.Revision))
	c.JSON(http.StatusOK, snap.Document)
}

func (s *Server) searchData(c *gin.Context) {
	var q tree.SearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.writeError(c, http.StatusBadRequest, "Invalid search parameters", fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	snap, err := s.svc.Fetch(c.Request.Context())
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, "Error fetching data: "+err.Error(), err)
		return
	}

	results, err := tree.Search(snap.Document, q)
	switch {
	case errors.Is(err, tree.ErrNoResults):
		c.String(http.StatusNotFound, noResults)
	case errors.Is(err, tree.ErrInvalidQuery):
		c.String(http.StatusBadRequest, err.Error())
	case err != nil:
		s.writeError(c, http.StatusInternalServerError, "Error searching data: "+err.Error(), err)
	default:
		c.JSON(http.StatusOK, results)
	}
}

func (s *Server) locateItem(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		s.writeError(c, http.StatusBadRequest, "Invalid locate parameters", fmt.Errorf("%w: id is required", errBadRequest))
		return
	}
	snap, err := s.svc.Fetch(c.Request.Context())
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, "Error fetching data: "+err.Error(), err)
		return
	}
	path, ok := tree.LocateItem(snap.Document, id)
	if !ok {
		s.writeError(c, http.StatusNotFound, noResults, fmt.Errorf("%w: no item with id %q", tree.ErrPathNotFound, id))
		return
	}
	c.Header("ETag", api.FormatETag(snap.Revision))
	c.JSON(http.StatusOK, api.LocateResponse{ID: id, Path: path})
}

func (s *Server) mutation(op tree.Op, success string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req api.MutationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.writeError(c, http.StatusBadRequest, fmt.Sprintf("Invalid %s parameters", op), fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}

		m := tree.Mutation{Op: op, Path: req.Path}
		if ifMatch := c.GetHeader("If-Match"); ifMatch != "" && ifMatch != "*" {
			rev, ok := api.ParseETag(ifMatch)
			if !ok {
				s.writeError(c, http.StatusBadRequest, fmt.Sprintf("Invalid %s parameters", op), fmt.Errorf("%w: If-Match %q", errBadRequest, ifMatch))
				return
			}
			m.CheckRevision, m.ExpectedRevision = true, rev
		}
		if op != tree.OpDelete {
			m.Value = req.NewData
		}

		res, err := s.svc.Apply(c.Request.Context(), m)
		if err != nil {
			s.writeError(c, http.StatusBadRequest, fmt.Sprintf("Error %s data: %v", verbs[op], err), err)
			return
		}
		c.Header("ETag", api.FormatETag(res.Revision))
		c.String(http.StatusOK, success)
	}
}

// writeError answers with the plain-text message and status by default.
// With structured errors enabled the status follows the failure kind and the
// body is an api.ErrorResponse.
func (s *Server) writeError(c *gin.Context, status int, message string, err error) {
	if !s.cfg.StructuredErrors {
		c.String(status, message)
		return
	}
	kind := tree.Kind(err)
	name := tree.KindName(kind)
	if errors.Is(err, errBadRequest) {
		name = "BadRequest"
	}
	c.JSON(statusFor(kind, status), api.ErrorResponse{Error: err.Error(), Kind: name})
}

func statusFor(kind error, fallback int) int {
	switch kind {
	case tree.ErrPathNotFound:
		return http.StatusNotFound
	case tree.ErrInvalidTarget:
		return http.StatusUnprocessableEntity
	case tree.ErrValidationFailed:
		return http.StatusBadRequest
	case tree.ErrRevisionConflict:
		return http.StatusConflict
	case tree.ErrPersistenceFailed:
		return http.StatusServiceUnavailable
	}
	return fallback
}
