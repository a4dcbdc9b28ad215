package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const defaultRateHistoryLimit = 50

type setRateDefaultsRequest struct {
	ContractorRate *decimal.Decimal `json:"contractor_rate"`
	EmployeeRate   *decimal.Decimal `json:"employee_rate"`
}

func (s *Server) GetRateDefaults(c *gin.Context) {
	snapshot, err := s.rateDefaultsSvc.Current(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": snapshot})
}

// SetRateDefaults publishes a new defaults version. Existing earning records
// keep the rate they were accrued with.
func (s *Server) SetRateDefaults(c *gin.Context) {
	var req setRateDefaultsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.ContractorRate == nil {
		AbortWithError(c, newValidationError("contractor_rate", "required", "contractor_rate is required"))
		return
	}
	if req.EmployeeRate == nil {
		AbortWithError(c, newValidationError("employee_rate", "required", "employee_rate is required"))
		return
	}

	snapshot, err := s.rateDefaultsSvc.SetRateDefaults(c.Request.Context(), *req.ContractorRate, *req.EmployeeRate, actorIDFromRequest(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": snapshot})
}

func (s *Server) ListRateDefaultsHistory(c *gin.Context) {
	limit, err := parseOptionalInt(c.Query("limit"), defaultRateHistoryLimit)
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	history, err := s.rateDefaultsSvc.History(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": history})
}
