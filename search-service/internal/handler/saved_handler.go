package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-live/pkg/log"
	"github.com/weiawesome/wes-io-live/pkg/middleware"
	"github.com/weiawesome/wes-io-live/pkg/response"
	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
	"github.com/weiawesome/wes-io-live/search-service/internal/query"
)

// ListSaved handles GET /api/v1/search/saved.
func (h *Handler) ListSaved(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	params := c.Request.URL.Query()
	limit, offset, err := query.ParsePage(params, domain.DefaultSavedPageSize, domain.MaxSavedPageSize)
	if err != nil {
		writeError(c, err)
		return
	}

	q := domain.SavedSearchQuery{OwnerID: middleware.GetUserID(c), Limit: limit, Offset: offset}
	if raw := strings.TrimSpace(params.Get("active")); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			verr := &domain.ValidationError{}
			verr.Add("active", "must be a boolean")
			writeError(c, verr)
			return
		}
		q.Active = &active
	}

	page, err := h.savedService.List(ctx, q)
	if err != nil {
		l.Error().Err(err).Msg("list saved searches failed")
		writeError(c, err)
		return
	}

	response.Success(c, page)
}

// CreateSaved handles POST /api/v1/search/saved.
func (h *Handler) CreateSaved(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.CreateSavedSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid saved search request")
		bindError(c, err)
		return
	}

	saved, err := h.savedService.Create(ctx, middleware.GetUserID(c), req)
	if err != nil {
		l.Warn().Err(err).Msg("create saved search failed")
		writeError(c, err)
		return
	}

	response.Created(c, saved)
}

// UpdateSaved handles PUT /api/v1/search/saved.
func (h *Handler) UpdateSaved(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.UpdateSavedSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid saved search update")
		bindError(c, err)
		return
	}

	saved, err := h.savedService.Update(ctx, middleware.GetUserID(c), req)
	if err != nil {
		l.Warn().Err(err).Str(log.FieldSavedSearchID, req.ID).Msg("update saved search failed")
		writeError(c, err)
		return
	}

	response.Success(c, saved)
}

// DeleteSaved handles DELETE /api/v1/search/saved?id=...
func (h *Handler) DeleteSaved(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		verr := &domain.ValidationError{}
		verr.Add("id", "is required")
		writeError(c, verr)
		return
	}

	if err := h.savedService.Delete(ctx, middleware.GetUserID(c), id); err != nil {
		l.Warn().Err(err).Str(log.FieldSavedSearchID, id).Msg("delete saved search failed")
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{"id": id})
}

// UseSaved handles POST /api/v1/search/saved/:id/use.
func (h *Handler) UseSaved(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	id := c.Param("id")
	saved, err := h.savedService.Use(ctx, middleware.GetUserID(c), id)
	if err != nil {
		l.Warn().Err(err).Str(log.FieldSavedSearchID, id).Msg("use saved search failed")
		writeError(c, err)
		return
	}

	response.Success(c, saved)
}
