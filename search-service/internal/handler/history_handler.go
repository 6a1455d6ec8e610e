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

// ListHistory handles GET /api/v1/search/history.
func (h *Handler) ListHistory(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	ownerID := middleware.GetUserID(c)
	params := c.Request.URL.Query()

	limit, offset, err := query.ParsePage(params, domain.DefaultHistoryLimit, domain.MaxHistoryLimit)
	if err != nil {
		writeError(c, err)
		return
	}

	q := domain.HistoryQuery{OwnerID: ownerID, Limit: limit, Offset: offset}
	if raw := strings.TrimSpace(params.Get(query.ParamType)); raw != "" {
		scope, err := domain.ParseScope(raw)
		if err != nil {
			verr := &domain.ValidationError{}
			verr.Add(query.ParamType, err.Error())
			writeError(c, verr)
			return
		}
		q.Scope = &scope
	}

	page, err := h.historyService.List(ctx, q)
	if err != nil {
		l.Error().Err(err).Msg("list history failed")
		writeError(c, err)
		return
	}

	response.Success(c, page)
}

// UpdateHistory handles PUT /api/v1/search/history.
func (h *Handler) UpdateHistory(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.UpdateHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid history update request")
		bindError(c, err)
		return
	}

	entry, err := h.historyService.Update(ctx, middleware.GetUserID(c), req)
	if err != nil {
		l.Warn().Err(err).Str(log.FieldHistoryID, req.ID).Msg("update history failed")
		writeError(c, err)
		return
	}

	response.Success(c, entry)
}

// DeleteHistory handles DELETE /api/v1/search/history?id=... or ?all=true.
func (h *Handler) DeleteHistory(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	ownerID := middleware.GetUserID(c)

	all := false
	if raw := c.Query("all"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			verr := &domain.ValidationError{}
			verr.Add("all", "must be a boolean")
			writeError(c, verr)
			return
		}
		all = b
	}

	if all {
		n, err := h.historyService.DeleteAll(ctx, ownerID)
		if err != nil {
			l.Error().Err(err).Msg("clear history failed")
			writeError(c, err)
			return
		}
		response.Success(c, domain.DeleteHistoryResult{DeletedCount: n})
		return
	}

	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		verr := &domain.ValidationError{}
		verr.Add("id", "is required unless all=true")
		writeError(c, verr)
		return
	}

	if err := h.historyService.Delete(ctx, ownerID, id); err != nil {
		l.Warn().Err(err).Str(log.FieldHistoryID, id).Msg("delete history failed")
		writeError(c, err)
		return
	}

	response.Success(c, domain.DeleteHistoryResult{DeletedCount: 1})
}
