package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"protocoldesk/pkg/domain"
)

type exportRequest struct {
	ProtocolID  int64  `json:"protocol_id"`
	RequestedBy string `json:"requested_by"`
}

func (s *Server) enqueueExport(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "invalid export request payload")
		return
	}
	if req.ProtocolID <= 0 {
		badRequest(c, "protocol_id", "required")
		return
	}
	job, err := s.exports.Enqueue(c.Request.Context(), req.ProtocolID, req.RequestedBy)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"export": job})
}

func (s *Server) getExport(c *gin.Context) {
	job, ok := s.exports.Get(c.Param("id"))
	if !ok {
		writeError(c, &domain.NotFoundError{Entity: domain.EntityExport, ID: c.Param("id")})
		return
	}
	c.JSON(http.StatusOK, gin.H{"export": job})
}

func (s *Server) downloadExport(c *gin.Context) {
	job, rc, err := s.exports.Open(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	defer func() { _ = rc.Close() }()
	c.DataFromReader(http.StatusOK, job.Artifact.SizeBytes, job.Artifact.ContentType, rc, map[string]string{
		"Content-Disposition": attachment(job.Artifact.FileName),
	})
}
