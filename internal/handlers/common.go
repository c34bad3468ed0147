// Package handlers holds the gin handlers for every API area.
package handlers

import (
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/auth"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// principal returns the authenticated caller or writes 401
func principal(c *gin.Context) (auth.Principal, bool) {
	p, ok := auth.PrincipalFrom(c)
	if !ok {
		apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
		return auth.Principal{}, false
	}
	return p, true
}

// viewer returns the optional caller of a public endpoint
func viewer(c *gin.Context) *auth.Principal {
	if p, ok := auth.PrincipalFrom(c); ok {
		return &p
	}
	return nil
}

// bind decodes a JSON body, answering 400 on malformed input
func bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		apperror.Respond(c, apperror.Validation("Invalid request body"))
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

func queryFloat(c *gin.Context, key string) *float64 {
	v, err := strconv.ParseFloat(c.Query(key), 64)
	if err != nil {
		return nil
	}
	return &v
}

func queryBool(c *gin.Context, key string) bool {
	b, _ := strconv.ParseBool(c.Query(key))
	return b
}

func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, v := range c.QueryArray(key) {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
