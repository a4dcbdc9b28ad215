package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	payoutdomain "github.com/smallbiznis/techwallet/internal/payout/domain"
)

type requestPayoutRequest struct {
	Amount        int64  `json:"amount"`
	Reason        string `json:"reason"`
	PaymentMethod string `json:"payment_method"`
}

type decidePayoutRequest struct {
	ApproverID string `json:"approver_id"`
	Reason     string `json:"reason"`
}

func (s *Server) RequestPayout(c *gin.Context) {
	technicianID, err := technicianIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req requestPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	payout, err := s.payoutSvc.RequestPayout(c.Request.Context(), payoutdomain.CreateRequest{
		TechnicianID:  technicianID,
		Amount:        req.Amount,
		Reason:        strings.TrimSpace(req.Reason),
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": payout})
}

func (s *Server) ListPayouts(c *gin.Context) {
	technicianID, err := technicianIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status, err := payoutdomain.ParseStatusFilter(c.Query("status"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payouts, err := s.payoutSvc.ListPayoutRequests(c.Request.Context(), technicianID, status)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payouts})
}

func (s *Server) GetPayout(c *gin.Context) {
	id, err := payoutIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payout, err := s.payoutSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payout})
}

// ApprovePayout answers 200 for both outcomes of an approval: PAID, or
// REJECTED when the balance no longer covers the amount.
func (s *Server) ApprovePayout(c *gin.Context) {
	id, err := payoutIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	req, ok := bindDecision(c)
	if !ok {
		return
	}

	payout, err := s.payoutSvc.Approve(c.Request.Context(), id, decisionApprover(c, req))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payout})
}

func (s *Server) RejectPayout(c *gin.Context) {
	id, err := payoutIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	req, ok := bindDecision(c)
	if !ok {
		return
	}

	payout, err := s.payoutSvc.Reject(c.Request.Context(), id, decisionApprover(c, req), strings.TrimSpace(req.Reason))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payout})
}

func bindDecision(c *gin.Context) (decidePayoutRequest, bool) {
	var req decidePayoutRequest
	if c.Request.ContentLength == 0 {
		return req, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return req, false
	}
	return req, true
}

func decisionApprover(c *gin.Context, req decidePayoutRequest) string {
	if approver := strings.TrimSpace(req.ApproverID); approver != "" {
		return approver
	}
	return actorIDFromRequest(c)
}
