package restapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	log "log/slog"

	"github.com/gin-gonic/gin"

	"github.com/sharedcode/dsync"
	"github.com/sharedcode/dsync/semaphore"
)

// DefaultMaxWait bounds how long an acquire request may block.
const DefaultMaxWait = 30 * time.Second

// PermitsResponse is the body returned by permit operations.
type PermitsResponse struct {
	Name      string `json:"name"`
	Permits   int64  `json:"permits"`
	Acquired  bool   `json:"acquired,omitempty"`
	Available int64  `json:"available,omitempty"`
	// Waiters counts requests of this server blocked on the semaphore.
	Waiters int `json:"waiters,omitempty"`
}

// ExpiryResponse is the body returned by expiry operations.
type ExpiryResponse struct {
	Name string `json:"name"`
	// Applied reports whether the store changed the key's expiry.
	Applied bool `json:"applied"`
	// TTLMilliseconds is -1 without expiry and -2 when the semaphore does not exist.
	TTLMilliseconds int64 `json:"ttl_ms"`
}

// Semaphores serves the semaphore REST methods of one client.
type Semaphores struct {
	client *semaphore.Client
	// MaxWait caps blocking acquires, including requests asking for a longer timeout.
	MaxWait time.Duration
}

// NewSemaphores returns handlers on client.
func NewSemaphores(client *semaphore.Client) *Semaphores {
	return &Semaphores{
		client:  client,
		MaxWait: DefaultMaxWait,
	}
}

// RegisterMethods adds the semaphore routes to r.
func (h *Semaphores) RegisterMethods(r *Registry) error {
	for _, m := range []RestMethod{
		{GET_ONE, "/semaphores/:name", h.GetPermits},
		{POST, "/semaphores/:name/acquire", h.Acquire},
		{POST, "/semaphores/:name/tryacquire", h.TryAcquire},
		{POST, "/semaphores/:name/release", h.Release},
		{PUT, "/semaphores/:name/expire", h.Expire},
		{DELETE, "/semaphores/:name/expire", h.ClearExpire},
		{GET, "/semaphores/:name/ttl", h.RemainTimeToLive},
	} {
		if err := r.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// GetPermits godoc
// @Summary GetPermits returns the number of available permits of a semaphore.
// @Schemes
// @Description GetPermits responds with a snapshot of the semaphore counter as JSON.
// @Tags Semaphores
// @Produce json
// @Param			name	path		string		true	"Name of the semaphore"    minlength(1)
// @Failure 503 {object} map[string]any
// @Success 200 {object} PermitsResponse
// @Router /semaphores/{name} [get]
// @Security Bearer
func (h *Semaphores) GetPermits(c *gin.Context) {
	name := c.Param("name")
	n, err := h.client.NewSemaphore(name).AvailablePermits(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, PermitsResponse{Name: name, Available: n, Waiters: h.client.Waiters(name)})
}

// Acquire godoc
// @Summary Acquire takes permits, waiting for them to be released.
// @Schemes
// @Description Acquire blocks until the permits are taken or the timeout elapses. A timeout responds 409.
// @Tags Semaphores
// @Produce json
// @Param			name	path		string		true	"Name of the semaphore"    minlength(1)
// @Param			permits	query		int		false	"Number of permits, defaults to 1"
// @Param			timeout	query		string		false	"Go duration to wait at most, defaults to the server max wait"
// @Failure 400 {object} map[string]any
// @Failure 409 {object} PermitsResponse
// @Failure 503 {object} map[string]any
// @Success 200 {object} PermitsResponse
// @Router /semaphores/{name}/acquire [post]
// @Security Bearer
func (h *Semaphores) Acquire(c *gin.Context) {
	name := c.Param("name")
	permits, ok := permitsParam(c)
	if !ok {
		return
	}
	timeout := h.MaxWait
	if t := c.Query("timeout"); t != "" {
		d, err := time.ParseDuration(t)
		if err != nil || d < 0 {
			c.IndentedJSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("invalid timeout %q", t)})
			return
		}
		timeout = min(d, h.MaxWait)
	}

	acquired, err := h.client.NewSemaphore(name).TryAcquireTimeout(c.Request.Context(), permits, timeout)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if !acquired {
		status = http.StatusConflict
	}
	c.IndentedJSON(status, PermitsResponse{Name: name, Permits: permits, Acquired: acquired})
}

// TryAcquire godoc
// @Summary TryAcquire takes permits only when they are available right away.
// @Schemes
// @Description TryAcquire never waits. Unavailable permits respond 409.
// @Tags Semaphores
// @Produce json
// @Param			name	path		string		true	"Name of the semaphore"    minlength(1)
// @Param			permits	query		int		false	"Number of permits, defaults to 1"
// @Failure 400 {object} map[string]any
// @Failure 409 {object} PermitsResponse
// @Failure 503 {object} map[string]any
// @Success 200 {object} PermitsResponse
// @Router /semaphores/{name}/tryacquire [post]
// @Security Bearer
func (h *Semaphores) TryAcquire(c *gin.Context) {
	name := c.Param("name")
	permits, ok := permitsParam(c)
	if !ok {
		return
	}
	acquired, err := h.client.NewSemaphore(name).TryAcquire(c, permits)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if !acquired {
		status = http.StatusConflict
	}
	c.IndentedJSON(status, PermitsResponse{Name: name, Permits: permits, Acquired: acquired})
}

// Release godoc
// @Summary Release returns permits to a semaphore.
// @Schemes
// @Description Release increments the counter and wakes waiters. Holding the permits is not checked.
// @Tags Semaphores
// @Produce json
// @Param			name	path		string		true	"Name of the semaphore"    minlength(1)
// @Param			permits	query		int		false	"Number of permits, defaults to 1"
// @Failure 400 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Success 200 {object} PermitsResponse
// @Router /semaphores/{name}/release [post]
// @Security Bearer
func (h *Semaphores) Release(c *gin.Context) {
	name := c.Param("name")
	permits, ok := permitsParam(c)
	if !ok {
		return
	}
	// Don't lose a release because the caller went away mid request.
	ctx := context.WithoutCancel(c.Request.Context())
	if err := h.client.NewSemaphore(name).Release(ctx, permits); err != nil {
		respondError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, PermitsResponse{Name: name, Permits: permits})
}

// Expire godoc
// @Summary Expire sets a time to live on a semaphore.
// @Schemes
// @Tags Semaphores
// @Produce json
// @Param			name	path		string		true	"Name of the semaphore"    minlength(1)
// @Param			ttl	query		string		true	"Go duration, e.g. 1m"
// @Failure 400 {object} map[string]any
// @Failure 501 {object} map[string]any
// @Success 200 {object} ExpiryResponse
// @Router /semaphores/{name}/expire [put]
// @Security Bearer
func (h *Semaphores) Expire(c *gin.Context) {
	name := c.Param("name")
	ttl, err := time.ParseDuration(c.Query("ttl"))
	if err != nil || ttl <= 0 {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("invalid ttl %q", c.Query("ttl"))})
		return
	}
	applied, err := h.client.NewSemaphore(name).Expire(c, ttl)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := ExpiryResponse{Name: name, Applied: applied, TTLMilliseconds: ttl.Milliseconds()}
	if !applied {
		// Nothing to expire, the semaphore does not exist.
		resp.TTLMilliseconds = -2
	}
	c.IndentedJSON(http.StatusOK, resp)
}

// ClearExpire godoc
// @Summary ClearExpire removes the time to live of a semaphore.
// @Schemes
// @Tags Semaphores
// @Produce json
// @Param			name	path		string		true	"Name of the semaphore"    minlength(1)
// @Failure 501 {object} map[string]any
// @Success 200 {object} ExpiryResponse
// @Router /semaphores/{name}/expire [delete]
// @Security Bearer
func (h *Semaphores) ClearExpire(c *gin.Context) {
	name := c.Param("name")
	applied, err := h.client.NewSemaphore(name).ClearExpire(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, ExpiryResponse{Name: name, Applied: applied, TTLMilliseconds: -1})
}

// RemainTimeToLive godoc
// @Summary RemainTimeToLive returns the time to live of a semaphore.
// @Schemes
// @Tags Semaphores
// @Produce json
// @Param			name	path		string		true	"Name of the semaphore"    minlength(1)
// @Failure 501 {object} map[string]any
// @Success 200 {object} ExpiryResponse
// @Router /semaphores/{name}/ttl [get]
// @Security Bearer
func (h *Semaphores) RemainTimeToLive(c *gin.Context) {
	name := c.Param("name")
	ttl, err := h.client.NewSemaphore(name).RemainTimeToLive(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, ExpiryResponse{Name: name, TTLMilliseconds: ttl.Milliseconds()})
}

func permitsParam(c *gin.Context) (int64, bool) {
	p := c.DefaultQuery("permits", "1")
	n, err := strconv.ParseInt(p, 10, 64)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("invalid permits %q", p)})
		return 0, false
	}
	return n, true
}

func statusOf(err error) int {
	switch dsync.CodeOf(err) {
	case dsync.InvalidPermits:
		return http.StatusBadRequest
	case dsync.Unsupported:
		return http.StatusNotImplemented
	case dsync.Cancelled:
		return http.StatusRequestTimeout
	}
	return http.StatusServiceUnavailable
}

func respondError(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error("semaphore request failed", "path", c.FullPath(), "name", c.Param("name"), "error", err)
	}
	c.IndentedJSON(status, gin.H{"message": err.Error(), "code": dsync.CodeOf(err).String()})
}
