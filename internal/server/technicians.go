package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	techniciandomain "github.com/smallbiznis/techwallet/internal/technician/domain"
)

type upsertTechnicianRequest struct {
	DisplayName      string           `json:"display_name"`
	TechnicianType   string           `json:"technician_type"`
	CustomRate       *decimal.Decimal `json:"custom_rate"`
	UseCustomRate    bool             `json:"use_custom_rate"`
	EmploymentStatus string           `json:"employment_status"`
}

func (s *Server) UpsertTechnician(c *gin.Context) {
	id, err := technicianIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req upsertTechnicianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	profile, err := s.technicianSvc.UpsertProfile(c.Request.Context(), techniciandomain.UpsertRequest{
		ID:               id,
		DisplayName:      strings.TrimSpace(req.DisplayName),
		Type:             strings.TrimSpace(req.TechnicianType),
		CustomRate:       req.CustomRate,
		UseCustomRate:    req.UseCustomRate,
		EmploymentStatus: strings.TrimSpace(req.EmploymentStatus),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": profile})
}

func (s *Server) GetTechnician(c *gin.Context) {
	id, err := technicianIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	profile, err := s.technicianSvc.GetProfile(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": profile})
}
