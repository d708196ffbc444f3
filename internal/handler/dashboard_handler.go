package handler

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/joshsmith8642/cinematch/internal/models"
	"github.com/joshsmith8642/cinematch/internal/service"
)

// DashboardHandler handles HTTP requests for the dashboard.
type DashboardHandler struct {
	svc *service.Dashboard
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(svc *service.Dashboard) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Health returns service health status.
func (h *DashboardHandler) Health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "cinematch",
	})
}

// Genres returns the genre taxonomy for a media kind.
// GET /api/v1/genres?kind=movie|tv
func (h *DashboardHandler) Genres(c fiber.Ctx) error {
	kind, err := models.ParseMediaKind(c.Query("kind", "movie"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid media kind"})
	}

	tax, err := h.svc.Taxonomy(c.Context(), kind)
	if err != nil {
		slog.Error("failed to fetch taxonomy", "kind", kind, "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: "failed to fetch genres"})
	}

	return c.JSON(fiber.Map{
		"kind":   kind,
		"genres": tax.Genres,
	})
}

// Search searches movies and TV by title.
// GET /api/v1/search?query=...
func (h *DashboardHandler) Search(c fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "query is required"})
	}

	titles, err := h.svc.Search(c.Context(), query)
	if err != nil {
		slog.Error("search failed", "query", query, "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: "search failed"})
	}

	return c.JSON(fiber.Map{"results": titles})
}

// Discover returns ranked genre rows for a user.
// GET /api/v1/users/:name/discover?kind=movie&providers=8|337&rows=5
func (h *DashboardHandler) Discover(c fiber.Ctx) error {
	user := c.Params("name")
	kind, err := models.ParseMediaKind(c.Query("kind", "movie"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid media kind"})
	}

	providerIDs, err := parseProviders(c.Query("providers"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid providers filter"})
	}
	rows := fiber.Query(c, "rows", 0)

	resp, err := h.svc.Discover(c.Context(), user, kind, providerIDs, rows)
	if err != nil {
		slog.Error("failed to build discover view", "user", user, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to build recommendations"})
	}

	return c.JSON(resp)
}

// LoadMore fetches the next deduplicated page for one genre row.
// POST /api/v1/users/:name/discover/more
func (h *DashboardHandler) LoadMore(c fiber.Ctx) error {
	user := c.Params("name")

	var req models.LoadMoreRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	resp, err := h.svc.LoadMore(c.Context(), user, req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidKind) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		}
		slog.Error("load more failed", "user", user, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to load more"})
	}

	return c.JSON(resp)
}

// Log records ratings for a title.
// POST /api/v1/users/:name/log
func (h *DashboardHandler) Log(c fiber.Ctx) error {
	var req models.LogRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	// One submit may carry one rating per household profile.
	if len(req.Ratings) == 0 {
		user := c.Params("name")
		rating := fiber.Query(c, "rating", 0)
		if user == "" || rating == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "ratings are required"})
		}
		req.Ratings = map[string]int{user: rating}
	}

	if err := h.svc.Log(c.Context(), req); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidKind), errors.Is(err, service.ErrInvalidRating):
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		}
		// A lost rating is data loss; fail loudly, never silently.
		slog.Error("failed to log activity", "title_id", req.TitleID, "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: "failed to save rating, please retry"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "logged"})
}

// Hide marks a title as never-show-again for a user.
// POST /api/v1/users/:name/hide
func (h *DashboardHandler) Hide(c fiber.Ctx) error {
	user := c.Params("name")

	var req models.HideRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	if err := h.svc.Hide(c.Context(), user, req); err != nil {
		if errors.Is(err, service.ErrInvalidKind) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		}
		slog.Error("failed to hide title", "user", user, "title_id", req.TitleID, "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: "failed to hide title, please retry"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "hidden"})
}

// History returns a user's activity log.
// GET /api/v1/users/:name/history?kind=
func (h *DashboardHandler) History(c fiber.Ctx) error {
	user := c.Params("name")
	kind := optionalKind(c.Query("kind"))

	records, err := h.svc.History(c.Context(), user, kind)
	if err != nil {
		slog.Error("failed to read history", "user", user, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to read history"})
	}

	return c.JSON(fiber.Map{
		"user":    user,
		"records": records,
	})
}

// Stats returns summary statistics over a user's history.
// GET /api/v1/users/:name/stats?kind=
func (h *DashboardHandler) Stats(c fiber.Ctx) error {
	user := c.Params("name")
	kind := optionalKind(c.Query("kind"))

	summary, err := h.svc.Stats(c.Context(), user, kind)
	if err != nil {
		slog.Error("failed to compute stats", "user", user, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to compute stats"})
	}

	return c.JSON(summary)
}

// Providers returns streaming availability for a title.
// GET /api/v1/titles/:id/providers?kind=
func (h *DashboardHandler) Providers(c fiber.Ctx) error {
	titleID, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid title ID"})
	}
	kind, err := models.ParseMediaKind(c.Query("kind", "movie"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid media kind"})
	}

	wp, err := h.svc.Providers(c.Context(), titleID, kind)
	if err != nil {
		slog.Error("failed to fetch providers", "title_id", titleID, "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: "failed to fetch providers"})
	}

	return c.JSON(wp)
}

// CreateProfile registers a household member.
// POST /api/v1/users
func (h *DashboardHandler) CreateProfile(c fiber.Ctx) error {
	var req models.CreateProfileRequest
	if err := c.Bind().JSON(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	profile, err := h.svc.CreateProfile(c.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProfileRequired):
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		case errors.Is(err, service.ErrProfileExists):
			return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Error: err.Error()})
		}
		slog.Error("failed to create profile", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to create profile"})
	}

	return c.Status(fiber.StatusCreated).JSON(profile)
}

// Profiles lists household members.
// GET /api/v1/users
func (h *DashboardHandler) Profiles(c fiber.Ctx) error {
	profiles, err := h.svc.Profiles(c.Context())
	if err != nil {
		slog.Error("failed to list profiles", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list profiles"})
	}

	return c.JSON(fiber.Map{"profiles": profiles})
}

// FlushCache clears the Redis cache.
// POST /api/v1/admin/cache/flush
func (h *DashboardHandler) FlushCache(c fiber.Ctx) error {
	h.svc.FlushCache(c.Context())
	return c.JSON(fiber.Map{"message": "cache flushed"})
}

// parseProviders decodes the pipe-joined provider filter ("8|337").
func parseProviders(raw string) ([]int, error) {
	if raw == "" {
		return nil, nil
	}
	var ids []int
	for _, part := range strings.Split(raw, "|") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// optionalKind parses a kind filter, returning the zero value (no filter)
// for an empty or unknown kind.
func optionalKind(raw string) models.MediaKind {
	if raw == "" {
		return ""
	}
	kind, err := models.ParseMediaKind(raw)
	if err != nil {
		return ""
	}
	return kind
}
