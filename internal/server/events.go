package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	earningdomain "github.com/smallbiznis/techwallet/internal/earning/domain"
)

type paymentVerifiedRequest struct {
	JobID        string `json:"job_id"`
	TechnicianID string `json:"technician_id"`
	PaymentID    string `json:"payment_id"`
	Amount       int64  `json:"amount"`
}

// PaymentVerified accepts the platform's payment-verified event. Redelivery
// of the same job answers 200 with the original record.
func (s *Server) PaymentVerified(c *gin.Context) {
	var req paymentVerifiedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	jobID, err := parseSnowflakeID(req.JobID)
	if err != nil {
		AbortWithError(c, earningdomain.ErrInvalidJobID)
		return
	}
	technicianID, err := technicianIDParam(req.TechnicianID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	paymentID, err := parseSnowflakeID(req.PaymentID)
	if err != nil {
		AbortWithError(c, earningdomain.ErrInvalidPaymentID)
		return
	}

	result, err := s.earningSvc.OnPaymentVerified(c.Request.Context(), earningdomain.PaymentVerified{
		JobID:        jobID,
		TechnicianID: technicianID,
		PaymentID:    paymentID,
		Amount:       req.Amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"data": result.Record, "duplicate": result.Duplicate})
}
