package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// storedResponse is a cached copy of a previously served GET response.
type storedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

// teeWriter duplicates everything written to the response into a buffer so
// the finished response can be stored.
type teeWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w teeWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w teeWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Cache serves repeated GET requests from an in-memory cache keyed by the
// request URI. Schedule previews hit the upstream site proxies, so a short
// cache window keeps bursty clients from fanning out to them.
func Cache(store *cache.Cache, duration time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.RequestURI
		if hit, found := store.Get(key); found {
			stored := hit.(storedResponse)
			c.Writer.WriteHeader(stored.status)
			for k, v := range stored.headers {
				c.Writer.Header()[k] = v
			}
			c.Writer.Write(stored.body)
			c.Abort()
			return
		}

		tee := &teeWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = tee

		c.Next()

		// Only successful responses are worth replaying.
		if tee.Status() >= 200 && tee.Status() < 300 {
			store.Set(key, storedResponse{
				status:  tee.Status(),
				headers: tee.Header().Clone(),
				body:    tee.body.Bytes(),
			}, duration)
		}
	}
}
