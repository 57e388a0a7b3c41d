// Package scoringapi serves single-utterance scoring over HTTP: a full
// scorecard, a distance-only score and a two-model comparison.
package scoringapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"speech-data-explorer/backend/internal/coreengine/comparison"
	"speech-data-explorer/backend/internal/coreengine/scorer"
	"speech-data-explorer/backend/internal/coreengine/tokenizer"
	"speech-data-explorer/backend/internal/metrics"
	"speech-data-explorer/backend/internal/textnorm"
)

// ScoreRequest scores one hypothesis.
type ScoreRequest struct {
	Reference     string  `json:"reference"`
	Hypothesis    *string `json:"hypothesis"`
	Normalization string  `json:"normalization"`
}

// DistanceRequest asks for the edit distance at one granularity.
type DistanceRequest struct {
	Reference     string  `json:"reference"`
	Hypothesis    *string `json:"hypothesis"`
	Granularity   string  `json:"granularity"`
	Normalization string  `json:"normalization"`
}

// CompareRequest scores two hypotheses against one reference.
type CompareRequest struct {
	Key           string  `json:"key"`
	Reference     string  `json:"reference"`
	HypothesisA   *string `json:"hypothesis_a"`
	HypothesisB   *string `json:"hypothesis_b"`
	Normalization string  `json:"normalization"`
}

// Options configures the handlers.
type Options struct {
	CharGranularity      tokenizer.Granularity
	DefaultNormalization string
	Aligner              scorer.AlignFunc
	Logger               *zap.Logger
}

// Handlers serves the scoring routes.
type Handlers struct {
	scorer        *scorer.Scorer
	coordinator   *comparison.Coordinator
	normalization string
	logger        *zap.Logger
}

// NewHandlers builds the handlers.
func NewHandlers(opts Options) *Handlers {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	normalization := opts.DefaultNormalization
	if normalization == "" {
		normalization = textnorm.None
	}
	s := scorer.New(scorer.WithAligner(opts.Aligner), scorer.WithCharGranularity(opts.CharGranularity))
	return &Handlers{
		scorer:        s,
		coordinator:   comparison.New(s),
		normalization: normalization,
		logger:        logger,
	}
}

// RegisterRoutes mounts the scoring routes on rg.
func (h *Handlers) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/score", h.ScoreHandler)
	rg.POST("/distance", h.DistanceHandler)
	rg.POST("/compare", h.CompareHandler)
	rg.GET("/normalizations", h.NormalizationsHandler)
}

func (h *Handlers) normalizer(c *gin.Context, name string) (textnorm.Func, bool) {
	if name == "" {
		name = h.normalization
	}
	fn, err := textnorm.Lookup(name)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return fn, true
}

func missing(c *gin.Context, field string) {
	metrics.InputErrors.WithLabelValues("api").Inc()
	c.JSON(http.StatusUnprocessableEntity, gin.H{"error": field + " is required", "field": field})
}

// ScoreHandler returns the Scorecard of one utterance.
func (h *Handlers) ScoreHandler(c *gin.Context) {
	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	if req.Hypothesis == nil {
		missing(c, "hypothesis")
		return
	}
	normalize, ok := h.normalizer(c, req.Normalization)
	if !ok {
		return
	}

	card := h.scorer.Score(normalize(req.Reference), normalize(*req.Hypothesis))
	metrics.UtterancesScored.WithLabelValues("api").Inc()
	if card.Word.ErrorRate.IsUndefined() {
		metrics.UndefinedRates.Inc()
	}
	c.JSON(http.StatusOK, card)
}

// DistanceHandler returns the edit distance without an alignment.
func (h *Handlers) DistanceHandler(c *gin.Context) {
	var req DistanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	if req.Hypothesis == nil {
		missing(c, "hypothesis")
		return
	}
	g, err := tokenizer.ParseGranularity(req.Granularity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	normalize, ok := h.normalizer(c, req.Normalization)
	if !ok {
		return
	}

	result := h.scorer.Distance(normalize(req.Reference), normalize(*req.Hypothesis), g)
	metrics.UtterancesScored.WithLabelValues("api").Inc()
	c.JSON(http.StatusOK, result)
}

// CompareHandler returns the comparison record of two hypotheses.
func (h *Handlers) CompareHandler(c *gin.Context) {
	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	switch {
	case req.HypothesisA == nil:
		missing(c, "hypothesis_a")
		return
	case req.HypothesisB == nil:
		missing(c, "hypothesis_b")
		return
	}
	normalize, ok := h.normalizer(c, req.Normalization)
	if !ok {
		return
	}

	record := h.coordinator.Compare(req.Key, normalize(req.Reference), normalize(*req.HypothesisA), normalize(*req.HypothesisB))
	metrics.UtterancesScored.WithLabelValues("api").Add(2)
	h.logger.Debug("utterance compared", zap.String("key", req.Key), zap.String("classification", string(record.Classification)))
	c.JSON(http.StatusOK, record)
}

// NormalizationsHandler lists the normalization policies.
func (h *Handlers) NormalizationsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"policies": textnorm.Names(), "default": h.normalization})
}
