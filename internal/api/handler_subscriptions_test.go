package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSubscriptionRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)
	s := newTestStore(t)
	handler := NewHandler(s, nil, nil, &webpush.Options{VAPIDPublicKey: "test-public-key"})

	r := gin.New()
	r.GET("/subscriptions", handler.GetSubscription)
	r.PUT("/subscriptions", handler.PutSubscription)
	r.DELETE("/subscriptions", handler.DeleteSubscription)
	r.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	return r
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSubscriptionLifecycle(t *testing.T) {
	router := setupSubscriptionRouter(t)

	endpoint := "https://push.example.com/sub/abc%2F123"

	// Create a subscription to two sites.
	w := doJSON(router, http.MethodPut, "/subscriptions", map[string]any{
		"endpoint":         endpoint,
		"p256dh":           "key-material",
		"auth":             "auth-secret",
		"subscribed_sites": []string{"mrc1", "eco2"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// The endpoint query parameter must not be URL decoded before lookup.
	w = doJSON(router, http.MethodGet, "/subscriptions?endpoint="+endpoint, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		SubscribedSites []string `json:"subscribed_sites"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.ElementsMatch(t, []string{"mrc1", "eco2"}, resp.SubscribedSites)

	// Replace the site list.
	w = doJSON(router, http.MethodPut, "/subscriptions", map[string]any{
		"endpoint":         endpoint,
		"p256dh":           "key-material",
		"auth":             "auth-secret",
		"subscribed_sites": []string{"aro1"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodGet, "/subscriptions?endpoint="+endpoint, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"aro1"}, resp.SubscribedSites)

	// Delete it.
	w = doJSON(router, http.MethodDelete, "/subscriptions", map[string]any{"endpoint": endpoint})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(router, http.MethodGet, "/subscriptions?endpoint="+endpoint, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPutSubscription_MissingFields(t *testing.T) {
	router := setupSubscriptionRouter(t)

	w := doJSON(router, http.MethodPut, "/subscriptions", map[string]any{
		"endpoint": "https://push.example.com/sub/abc",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSubscription_RequiresEndpoint(t *testing.T) {
	router := setupSubscriptionRouter(t)

	w := doJSON(router, http.MethodGet, "/subscriptions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	router := setupSubscriptionRouter(t)

	w := doJSON(router, http.MethodGet, "/vapid_public_key", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"test-public-key"}`, w.Body.String())
}

func TestRawQueryParam(t *testing.T) {
	encoded := url.QueryEscape("https://push.example.com/sub/a/b")
	raw, ok := rawQueryParam("endpoint="+encoded+"&other=1", "endpoint")
	require.True(t, ok)
	// The value comes back still encoded.
	assert.Equal(t, encoded, raw)

	_, ok = rawQueryParam("other=1", "endpoint")
	assert.False(t, ok)
}
