package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	earningdomain "github.com/smallbiznis/techwallet/internal/earning/domain"
)

type balanceResponse struct {
	TechnicianID      string `json:"technician_id"`
	Balance           int64  `json:"balance"`
	Currency          string `json:"currency"`
	EarnedUnpaidTotal int64  `json:"earned_unpaid_total"`
}

func (s *Server) GetBalance(c *gin.Context) {
	id, err := technicianIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	wallet, err := s.walletSvc.GetWallet(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	unpaid, err := s.earningSvc.EarnedUnpaidTotal(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": balanceResponse{
		TechnicianID:      id.String(),
		Balance:           wallet.Balance,
		Currency:          wallet.Currency,
		EarnedUnpaidTotal: unpaid,
	}})
}

func (s *Server) ListTransactions(c *gin.Context) {
	id, err := technicianIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	txns, err := s.walletSvc.ListTransactions(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": txns})
}

func (s *Server) ListEarnings(c *gin.Context) {
	id, err := technicianIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status, err := earningdomain.ParseStatusFilter(c.Query("status"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	records, err := s.earningSvc.ListEarnings(c.Request.Context(), id, status)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": records})
}

func (s *Server) GetEarning(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	record, err := s.earningSvc.GetEarning(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}
