package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"protocoldesk/pkg/domain"
)

type namedEntry struct {
	Name string `json:"name"`
}

func (s *Server) listReference(kind domain.RefKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		names, err := s.svc.ListReference(c.Request.Context(), kind)
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]namedEntry, len(names))
		for i, name := range names {
			out[i] = namedEntry{Name: name}
		}
		c.JSON(http.StatusOK, out)
	}
}

func (s *Server) addReference(kind domain.RefKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req namedEntry
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "body", "invalid payload: "+err.Error())
			return
		}
		if err := s.svc.AddReference(c.Request.Context(), kind, req.Name); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, namedEntry{Name: req.Name})
	}
}

func (s *Server) deleteReference(kind domain.RefKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.svc.DeleteReference(c.Request.Context(), kind, c.Param("name")); err != nil {
			writeError(c, err)
			return
		}
		message := "Region deleted"
		if kind == domain.RefExecutors {
			message = "Executor deleted"
		}
		c.JSON(http.StatusOK, gin.H{"message": message})
	}
}
