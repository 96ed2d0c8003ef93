package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// CacheHeader marks responses replayed from memory.
const CacheHeader = "X-Cache"

// page is a stored GET response.
type page struct {
	status int
	header http.Header
	body   []byte
}

func (p page) replay(c *gin.Context) {
	h := c.Writer.Header()
	for name, values := range p.header {
		h[name] = values
	}
	h.Set(CacheHeader, "HIT")
	c.Writer.WriteHeader(p.status)
	_, _ = c.Writer.Write(p.body)
}

// recorder keeps a copy of everything the handler writes.
type recorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (r *recorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *recorder) WriteString(s string) (int, error) {
	r.body.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}

func success(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

// Cache answers GET requests from pages for ttl, keyed by the request URI.
// A 2xx response to any other method flushes pages. Writers outside the
// router, such as background jobs, must call pages.Flush themselves.
func Cache(pages *cache.Cache, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			if success(c.Writer.Status()) {
				pages.Flush()
			}
			return
		}

		key := c.Request.RequestURI
		if v, found := pages.Get(key); found {
			v.(page).replay(c)
			c.Abort()
			return
		}

		rec := &recorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		if status := rec.Status(); success(status) {
			pages.Set(key, page{
				status: status,
				header: rec.Header().Clone(),
				body:   bytes.Clone(rec.body.Bytes()),
			}, ttl)
		}
	}
}
