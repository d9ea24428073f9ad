package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/OsbanCerejo/inventoz-sub000/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type enqueueBody struct {
	SKU      string `json:"sku" binding:"required,sku,max=50"`
	Quantity *int64 `json:"quantity" binding:"required,min=0"`
}

func validationRouter() *gin.Engine {
	SetupValidator()
	router := gin.New()
	router.Use(RequestID())
	router.POST("/test", func(c *gin.Context) {
		var req enqueueBody
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewSuccessResponse(req))
	})
	return router
}

func postJSON(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

func TestHandleValidationError(t *testing.T) {
	router := validationRouter()

	t.Run("field errors use json names", func(t *testing.T) {
		w := postJSON(router, `{"sku": "ABC 1", "quantity": -2}`)
		require.Equal(t, http.StatusBadRequest, w.Code)

		errInfo := decodeError(t, w)
		assert.Equal(t, dto.ErrCodeValidation, errInfo.Code)
		assert.NotEmpty(t, errInfo.RequestID)

		fields := map[string]string{}
		for _, d := range errInfo.Details {
			fields[d.Field] = d.Message
		}
		assert.Equal(t, "Must be a non-empty SKU without whitespace", fields["sku"])
		assert.Equal(t, "Must be at least 0", fields["quantity"])
	})

	t.Run("missing fields", func(t *testing.T) {
		w := postJSON(router, `{}`)
		require.Equal(t, http.StatusBadRequest, w.Code)

		errInfo := decodeError(t, w)
		require.Len(t, errInfo.Details, 2)
		assert.Equal(t, "This field is required", errInfo.Details[0].Message)
	})

	t.Run("malformed json", func(t *testing.T) {
		w := postJSON(router, `{"sku":`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, decodeError(t, w).Code)
	})

	t.Run("valid body", func(t *testing.T) {
		w := postJSON(router, `{"sku": "ABC-1", "quantity": 0}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
