package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type reconcileResponse struct {
	TechnicianID         string `json:"technician_id"`
	ExpectedBalance      int64  `json:"expected_balance"`
	ActualBalance        int64  `json:"actual_balance"`
	EarnedUnpaidTotal    int64  `json:"earned_unpaid_total"`
	Divergence           int64  `json:"divergence"`
	InSync               bool   `json:"in_sync"`
	EarnedExceedsBalance bool   `json:"earned_exceeds_balance"`
	CheckedAt            string `json:"checked_at"`
}

// Reconcile reports the wallet's drift from its ledger history. A divergent
// wallet is reported, never repaired.
func (s *Server) Reconcile(c *gin.Context) {
	id, err := technicianIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	report, err := s.reconciliationSvc.Reconcile(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": reconcileResponse{
		TechnicianID:         report.TechnicianID.String(),
		ExpectedBalance:      report.ExpectedBalance,
		ActualBalance:        report.ActualBalance,
		EarnedUnpaidTotal:    report.EarnedUnpaidTotal,
		Divergence:           report.Divergence,
		InSync:               report.Err() == nil,
		EarnedExceedsBalance: report.EarnedExceedsBalance(),
		CheckedAt:            report.CheckedAt.UTC().Format(time.RFC3339),
	}})
}

func (s *Server) RunReconciliationSweep(c *gin.Context) {
	batchSize, err := parseOptionalInt(c.Query("batch_size"), 0)
	if err != nil {
		AbortWithError(c, newValidationError("batch_size", "invalid_batch_size", "invalid batch_size"))
		return
	}

	result, err := s.reconciliationSvc.Sweep(c.Request.Context(), batchSize)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
