package handlers

import (
	"net/http/httptest"
	"testing"

	"divan_bot/internal/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestGetUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		value  any
		set    bool
		want   int64
		wantOK bool
	}{
		{"int64", int64(42), true, 42, true},
		{"float64 claim", float64(7), true, 7, true},
		{"wrong type", "42", true, 0, false},
		{"missing", nil, false, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			if tt.set {
				c.Set(middleware.UserIDKey, tt.value)
			}
			got, ok := getUserID(c)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
