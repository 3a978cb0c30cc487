package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/truthgraph/veracity/internal/model"
)

// Score fields use pointers so a legitimate zero survives the required check.

type createClaimRequest struct {
	Text          string   `json:"text" binding:"required"`
	Level         string   `json:"level" binding:"omitempty,oneof=standard verified"`
	EvidenceScore *float64 `json:"evidence_score" binding:"required,min=0,max=1"`
	CreatedBy     string   `json:"created_by" binding:"required"`
}

func (s *Server) createClaim(c *gin.Context) {
	var req createClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claim, err := s.engine.AddClaim(req.Text, model.ClaimLevel(req.Level), *req.EvidenceScore, req.CreatedBy)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, claim)
}

func (s *Server) getClaim(c *gin.Context) {
	claim, err := s.engine.Claim(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, claim)
}

func (s *Server) getHistory(c *gin.Context) {
	entries, err := s.engine.History(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"claim_id": c.Param("id"), "entries": entries})
}

type setEvidenceRequest struct {
	Score  *float64 `json:"score" binding:"required,min=0,max=1"`
	Reason string   `json:"reason"`
}

func (s *Server) setEvidence(c *gin.Context) {
	var req setEvidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	changes, err := s.engine.SetEvidenceScore(c.Request.Context(), c.Param("id"), *req.Score, model.HistoryManualUpdate)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changes})
}

type createEdgeRequest struct {
	SourceID string   `json:"source_id" binding:"required"`
	TargetID string   `json:"target_id" binding:"required"`
	Weight   *float64 `json:"weight" binding:"required,min=0,max=1"`
}

func (s *Server) createEdge(c *gin.Context) {
	var req createEdgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	edge, err := s.engine.AddSupportEdge(c.Request.Context(), req.SourceID, req.TargetID, *req.Weight)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, edge)
}

type createChallengeRequest struct {
	TargetID   string `json:"target_id" binding:"required"`
	TargetKind string `json:"target_kind" binding:"omitempty,oneof=claim edge"`
	Type       string `json:"type" binding:"required,challengetype"`
	Evidence   string `json:"evidence"`
	Reasoning  string `json:"reasoning"`
	CreatorID  string `json:"creator_id" binding:"required"`
}

func (s *Server) createChallenge(c *gin.Context) {
	var req createChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kind := model.TargetKind(req.TargetKind)
	if kind == "" {
		kind = model.TargetClaim
	}
	ch, err := s.engine.CreateChallenge(req.TargetID, kind, model.ChallengeType(req.Type), req.Evidence, req.Reasoning, req.CreatorID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ch)
}

func (s *Server) getChallenge(c *gin.Context) {
	ch, err := s.engine.Challenge(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

type castVoteRequest struct {
	VoterID   string `json:"voter_id" binding:"required"`
	Vote      string `json:"vote" binding:"required,votetype"`
	Reasoning string `json:"reasoning"`
}

func (s *Server) castVote(c *gin.Context) {
	var req castVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !s.limiter.Allow(req.VoterID) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "vote rate limit exceeded"})
		return
	}
	res, err := s.engine.CastVote(c.Request.Context(), c.Param("id"), req.VoterID, model.VoteType(req.Vote), req.Reasoning)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type resolveRequest struct {
	Outcome     string   `json:"outcome" binding:"required,outcome"`
	Rationale   string   `json:"rationale" binding:"required"`
	Confidence  *float64 `json:"confidence" binding:"required,min=0,max=1"`
	EvaluatorID string   `json:"evaluator_id" binding:"required"`
}

func (s *Server) resolveChallenge(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ch, err := s.engine.ResolveChallenge(c.Request.Context(), c.Param("id"),
		model.ResolutionOutcome(req.Outcome), req.Rationale, *req.Confidence, req.EvaluatorID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

type withdrawRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (s *Server) withdrawChallenge(c *gin.Context) {
	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ch, err := s.engine.WithdrawChallenge(c.Request.Context(), c.Param("id"), req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

func (s *Server) autoResolve(c *gin.Context) {
	ch, err := s.engine.AutoResolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}
