package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/weiawesome/wes-io-live/pkg/log"
	"github.com/weiawesome/wes-io-live/pkg/middleware"
	"github.com/weiawesome/wes-io-live/pkg/response"
	"github.com/weiawesome/wes-io-live/search-service/internal/domain"
	"github.com/weiawesome/wes-io-live/search-service/internal/query"
	"github.com/weiawesome/wes-io-live/search-service/internal/service"
)

// CodeAggregateProvider is returned when a search provider fails.
const CodeAggregateProvider = "AGGREGATE_PROVIDER_ERROR"

// Handler handles HTTP requests for search service.
type Handler struct {
	searchService  service.SearchService
	historyService service.HistoryService
	savedService   service.SavedSearchService
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates a new HTTP handler.
func NewHandler(
	searchService service.SearchService,
	historyService service.HistoryService,
	savedService service.SavedSearchService,
	authMiddleware *middleware.AuthMiddleware,
) *Handler {
	return &Handler{
		searchService:  searchService,
		historyService: historyService,
		savedService:   savedService,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes. Every route requires authentication.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.HandleMethodNotAllowed = true
	r.NoMethod(response.MethodNotAllowed)

	api := r.Group("/api/v1", h.authMiddleware.RequireAuth())
	{
		api.GET("/search", h.Search)

		history := api.Group("/search/history")
		{
			history.GET("", h.ListHistory)
			history.PUT("", h.UpdateHistory)
			history.DELETE("", h.DeleteHistory)
		}

		saved := api.Group("/search/saved")
		{
			saved.GET("", h.ListSaved)
			saved.POST("", h.CreateSaved)
			saved.PUT("", h.UpdateSaved)
			saved.DELETE("", h.DeleteSaved)
			saved.POST("/:id/use", h.UseSaved)
		}
	}
}

// Search handles GET /api/v1/search.
func (h *Handler) Search(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	actor, ok := middleware.GetActor(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	req, err := query.Normalize(c.Request.URL.Query(), actor.ID)
	if err != nil {
		l.Warn().Err(err).Msg("invalid search request")
		writeError(c, err)
		return
	}

	result, err := h.searchService.Search(ctx, req)
	if err != nil {
		l.Error().Err(err).
			Str(log.FieldQuery, req.Query).
			Str(log.FieldScope, string(req.Scope)).
			Msg("search failed")
		writeError(c, err)
		return
	}

	response.Success(c, result)
}

// writeError maps service errors to the response envelope.
func writeError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	var aggErr *domain.AggregateProviderError

	switch {
	case errors.As(err, &verr):
		response.ValidationFailed(c, "invalid request", toFieldErrors(verr.Fields))
	case errors.Is(err, domain.ErrUnauthenticated):
		response.Unauthorized(c, "unauthorized")
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(c, "not found")
	case errors.Is(err, domain.ErrConflict):
		response.Conflict(c, "a saved search with this name already exists")
	case errors.Is(err, domain.ErrQuotaExceeded):
		response.QuotaExceeded(c, "saved search limit reached")
	case errors.As(err, &aggErr):
		response.Error(c, http.StatusInternalServerError, CodeAggregateProvider, "search failed")
	default:
		response.InternalError(c, "internal error")
	}
}

// bindError converts a body binding failure into a validation response.
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		response.BadRequest(c, "invalid request body")
		return
	}

	fields := make([]response.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg := "is invalid"
		if fe.Tag() == "required" {
			msg = "is required"
		}
		fields = append(fields, response.FieldError{Field: strings.ToLower(fe.Field()), Message: msg})
	}
	response.ValidationFailed(c, "invalid request", fields)
}

func toFieldErrors(in []domain.FieldError) []response.FieldError {
	out := make([]response.FieldError, len(in))
	for i, f := range in {
		out[i] = response.FieldError{Field: f.Field, Message: f.Message}
	}
	return out
}
