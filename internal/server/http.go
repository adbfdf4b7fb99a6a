package server

import (
	"net/http"
	"strconv"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sxyafiq/seqgen"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

type httpServer struct {
	server *Server
	router *gin.Engine
	srv    *http.Server
}

func newHTTPServer(server *Server) *httpServer {
	s := &httpServer{
		server: server,
	}

	router := gin.New()
	router.Use(requestID())
	router.Use(ginzap.Ginzap(server.logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(server.logger, true))

	s.RegisterAPIV1Restful(router)
	router.GET("metrics", s.Metrics)
	router.GET("healthz", s.Health)
	s.router = router

	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *httpServer) RegisterAPIV1Restful(router *gin.Engine) {
	v1 := router.Group("v1")
	v1.GET("ids", s.MintIDsV1)
	v1.GET("ids/:id", s.DecodeIDV1)
	v1.GET("node", s.NodeV1)
}

// requestID propagates or assigns an X-Request-ID.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// MintIDsV1 mints ?count IDs (default 1) in ?format (decimal, base62,
// base58 or hex).
func (s *httpServer) MintIDsV1(c *gin.Context) {
	maxBatch := s.server.getCfg().MaxBatch

	count, err := strconv.Atoi(c.DefaultQuery("count", "1"))
	if err != nil || count < 1 || count > maxBatch {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "count must be an integer between 1 and " + strconv.Itoa(maxBatch),
		})
		return
	}

	format, ok := formatters[c.DefaultQuery("format", "decimal")]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "format must be one of decimal, base62, base58, hex",
		})
		return
	}

	ids, err := s.server.gen.NextBatch(c.Request.Context(), count)
	if err != nil {
		s.mintFailed(c, err)
		return
	}

	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = format(id)
	}
	c.JSON(http.StatusOK, gin.H{
		"ids": out,
	})
}

var formatters = map[string]func(seqgen.ID) string{
	"decimal": seqgen.ID.String,
	"base62":  seqgen.ID.Base62,
	"base58":  seqgen.ID.Base58,
	"hex":     seqgen.ID.Hex,
}

func (s *httpServer) mintFailed(c *gin.Context, err error) {
	body := gin.H{
		"error": err.Error(),
	}
	if regErr, ok := seqgen.AsClockRegression(err); ok {
		body["driftMs"] = regErr.Drift
	}
	s.server.logger.Warn("mint failed",
		zap.String("requestID", c.GetString("requestID")),
		zap.Error(err))

	status := http.StatusServiceUnavailable
	if errors.Is(err, seqgen.ErrContextCanceled) {
		// client went away
		status = 499
	}
	c.JSON(status, body)
}

// DecodeIDV1 splits an ID into its fields. ?encoding names the input form
// (decimal, base62, base58, hex, base2); without it decimal, base62 and hex
// are detected, so base58 IDs need ?encoding=base58.
func (s *httpServer) DecodeIDV1(c *gin.Context) {
	id, err := seqgen.ParseAs(c.Param("id"), c.Query("encoding"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        id,
		"timestamp": id.Timestamp(),
		"time":      id.Time().UTC().Format(time.RFC3339Nano),
		"nodeID":    id.NodeID(),
		"sequence":  id.Sequence(),
		"base62":    id.Base62(),
		"hex":       id.Hex(),
	})
}

// NodeV1 reports the node identity and layout capacity.
func (s *httpServer) NodeV1(c *gin.Context) {
	identity := s.server.gen.Identity()
	capacity := seqgen.DefaultLayout.Capacity()

	body := gin.H{
		"nodeID": identity.NodeID,
		"origin": identity.Origin,
		"hint":   identity.Hint,
		"uptime": time.Since(s.server.startTime).Round(time.Second).String(),
		"layout": gin.H{
			"timestampBits":     seqgen.DefaultLayout.TimestampBits,
			"nodeIDBits":        seqgen.DefaultLayout.NodeIDBits,
			"sequenceBits":      seqgen.DefaultLayout.SequenceBits,
			"epoch":             seqgen.DefaultLayout.Epoch,
			"idsPerMillisecond": capacity.IDsPerMillisecond,
			"signedOverflow":    capacity.SignedOverflow.Format(time.RFC3339),
			"end":               capacity.End.Format(time.RFC3339),
		},
	}
	if identity.Err != nil {
		body["hintError"] = identity.Err.Error()
	}
	c.JSON(http.StatusOK, body)
}

// Health fails once clock regressions reach the configured threshold.
func (s *httpServer) Health(c *gin.Context) {
	m := s.server.gen.Metrics()
	threshold := s.server.getCfg().UnhealthyClockRegressions

	if threshold > 0 && m.ClockRegressions >= threshold {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":           "unhealthy",
			"clockRegressions": m.ClockRegressions,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"generated": m.Generated,
	})
}
