// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/gin-gonic/gin"

	"github.com/BoostyLabs/anchor/bitcoin/anchor"
	"github.com/BoostyLabs/anchor/bitcoin/anchor/resolver"
)

// registerRoutes sets up all API routes on the gin router.
func (s *Server) registerRoutes() {
	v1 := s.router.Group("/v1")
	v1.GET("/health", s.handleHealth)
	v1.GET("/anchors/:prefix/:vout", s.handleResolve)
	v1.GET("/threads/:txid/:vout", s.handleThread)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleResolve(c *gin.Context) {
	prefix, err := anchor.ParsePrefix(c.Param("prefix"))
	if err != nil {
		badRequest(c, err)
		return
	}

	vout, err := strconv.ParseUint(c.Param("vout"), 10, 8)
	if err != nil {
		badRequest(c, err)
		return
	}

	res, err := s.resolver.ResolveAnchor(c.Request.Context(), prefix, byte(vout))
	if err != nil {
		s.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, resolver.Summarize(res))
}

func (s *Server) handleThread(c *gin.Context) {
	txid, err := chainhash.NewHashFromStr(c.Param("txid"))
	if err != nil || len(c.Param("txid")) != 2*chainhash.HashSize {
		badRequest(c, anchor.ErrInvalidTxID)
		return
	}

	vout, err := strconv.ParseUint(c.Param("vout"), 10, 32)
	if err != nil {
		badRequest(c, err)
		return
	}

	var budget resolver.Budget
	if budget.MaxDepth, err = queryInt(c, "max_depth"); err != nil {
		badRequest(c, err)
		return
	}
	if budget.MaxNodes, err = queryInt(c, "max_nodes"); err != nil {
		badRequest(c, err)
		return
	}

	// requests never exceed the configured budget.
	budget = budget.Clamp(s.resolver.DefaultBudget())

	thread, err := s.resolver.BuildThread(c.Request.Context(), *txid, uint32(vout), budget)
	switch {
	case errors.Is(err, resolver.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case err != nil:
		s.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, newThreadResponse(thread))
}

// queryInt returns non-negative integer query parameter, 0 if it is absent.
func queryInt(c *gin.Context, name string) (int, error) {
	value, ok := c.GetQuery(name)
	if !ok || value == "" {
		return 0, nil
	}

	n, err := strconv.ParseUint(value, 10, 31)
	if err != nil {
		return 0, errors.New(name + " must be a non-negative integer")
	}

	return int(n), nil
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.logger.Error("api request failed", "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
