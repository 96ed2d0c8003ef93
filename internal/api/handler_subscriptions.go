package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"foyer-backend/internal/model"
)

type putSubscriptionRequest struct {
	Endpoint        string  `json:"endpoint" binding:"required"`
	P256DH          string  `json:"p256dh" binding:"required"`
	Auth            string  `json:"auth" binding:"required"`
	SubscribedBlocs []int64 `json:"subscribed_blocs"`
}

// PutSubscription handles the creation or replacement of a subscription.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	subscription := model.PushSubscription{
		Endpoint: req.Endpoint,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
	}
	if err := h.store.SaveSubscription(c.Request.Context(), &subscription, req.SubscribedBlocs); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription handles the deletion of a subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	if err := h.store.DeleteSubscription(c.Request.Context(), req.Endpoint); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// rawQueryParam returns the undecoded value of key. Push endpoints are
// compared exactly as the browser reported them.
func rawQueryParam(rawQuery, key string) (string, bool) {
	for _, kv := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:], true
		}
	}
	return "", false
}

// GetSubscription handles the retrieval of a subscription.
func (h *Handler) GetSubscription(c *gin.Context) {
	raw, ok := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if !ok || raw == "" {
		badRequest(c, "endpoint is required")
		return
	}

	subscription, err := h.store.GetSubscription(c.Request.Context(), raw)
	if err != nil {
		h.fail(c, err)
		return
	}

	blocIDs := make([]int64, len(subscription.Blocs))
	for i, bloc := range subscription.Blocs {
		blocIDs[i] = bloc.ID
	}

	c.JSON(http.StatusOK, gin.H{"subscribed_blocs": blocIDs})
}

// GetVAPIDPublicKey returns the key browsers need to subscribe. It answers
// 503 when release notifications are disabled.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if h.webpush == nil || h.webpush.VAPIDPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vapid keys are not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"public_key": h.webpush.VAPIDPublicKey})
}
