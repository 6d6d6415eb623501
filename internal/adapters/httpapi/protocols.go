package httpapi

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"protocoldesk/internal/export"
	"protocoldesk/pkg/domain"
)

func (s *Server) listProtocols(c *gin.Context) {
	list, err := s.svc.ListProtocols(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) getProtocol(c *gin.Context) {
	id, ok := protocolID(c)
	if !ok {
		return
	}
	p, err := s.svc.GetProtocol(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) createProtocol(c *gin.Context) {
	var p domain.Protocol
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, "body", "invalid protocol payload: "+err.Error())
		return
	}
	created, err := s.svc.CreateProtocol(c.Request.Context(), p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) updateProtocol(c *gin.Context) {
	id, ok := protocolID(c)
	if !ok {
		return
	}
	var p domain.Protocol
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, "body", "invalid protocol payload: "+err.Error())
		return
	}
	p.ID = id
	updated, err := s.svc.UpdateProtocol(c.Request.Context(), p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteProtocol(c *gin.Context) {
	id, ok := protocolID(c)
	if !ok {
		return
	}
	if err := s.svc.DeleteProtocol(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Protocol deleted"})
}

func (s *Server) exportProtocol(c *gin.Context) {
	id, ok := protocolID(c)
	if !ok {
		return
	}
	p, err := s.svc.GetProtocol(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	payload, err := export.Workbook(p)
	if err != nil {
		writeError(c, domain.WrapPersistence("render workbook", err))
		return
	}
	c.Header("Content-Disposition", attachment(export.FileName(p.Number)))
	c.Data(http.StatusOK, export.ContentType, payload)
}

// attachment encodes a possibly non-ASCII file name per RFC 2231.
func attachment(name string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}
