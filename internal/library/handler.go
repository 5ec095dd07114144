package library

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"watchlog/internal/auth"
	"watchlog/internal/catalog"
	"watchlog/internal/logging"
	"watchlog/internal/record"
	"watchlog/internal/sample"
	"watchlog/internal/stats"
	"watchlog/internal/sync"
	"watchlog/internal/validation"
	"watchlog/internal/views"
	"watchlog/pkg/models"
)

const maxTopK = 50

type Handler struct {
	Repo    *Repo
	Catalog *catalog.Repo
	Hub     *sync.Hub
	Views   *views.Registry
}

func NewHandler(repo *Repo, cat *catalog.Repo, hub *sync.Hub) *Handler {
	return &Handler{Repo: repo, Catalog: cat, Hub: hub, Views: views.NewRegistry()}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/titles", h.list)
	rg.POST("/titles", h.create)
	rg.PATCH("/titles/:id", h.patch)
	rg.DELETE("/titles/:id", h.remove)

	rg.GET("/periods", h.periods)
	rg.GET("/series", h.series)
	rg.GET("/series/suggestions", h.suggestions)
	rg.GET("/stats", h.stats)
}

type createReq struct {
	ID           int64              `json:"id" validate:"gte=0"`
	Season       string             `json:"season" validate:"max=64"`
	Title        string             `json:"title" validate:"required,max=300"`
	Img          *string            `json:"img" validate:"omitempty,max=2048"`
	Rating       *int               `json:"rating" validate:"omitempty,min=0,max=5"`
	Watched      bool               `json:"watched"`
	RewatchCount *int               `json:"rewatch_count" validate:"omitempty,min=0"`
	Tags         []string           `json:"tags" validate:"max=64,dive,max=100"`
	Songs        *models.ThemeSongs `json:"songs"`
	Quotes       []models.Quote     `json:"quotes" validate:"max=200"`
	SeriesName   *string            `json:"series_name" validate:"omitempty,max=300"`
	Studios      []string           `json:"studios" validate:"max=32,dive,max=100"`
}

func (r createReq) row(owner string) models.TitleRow {
	return models.TitleRow{
		ID:           r.ID,
		UserID:       owner,
		Season:       strings.TrimSpace(r.Season),
		Title:        strings.TrimSpace(r.Title),
		Img:          r.Img,
		Rating:       r.Rating,
		Watched:      r.Watched,
		RewatchCount: r.RewatchCount,
		Tags:         r.Tags,
		Songs:        r.Songs,
		Quotes:       r.Quotes,
		SeriesName:   r.SeriesName,
		Studios:      r.Studios,
	}
}

func (h *Handler) broadcast(ev sync.TitleEvent) {
	if h.Hub == nil {
		return
	}
	ev.At = time.Now().UTC()
	go h.Hub.BroadcastJSON(ev)
}

func (h *Handler) list(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	rows, err := h.Repo.SelectAll(c.Request.Context(), claims.UserID)
	if err != nil {
		logging.Ctx(c.Request.Context()).Error().Err(err).Str("owner", claims.UserID).Msg("select titles")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) create(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := validation.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ID == 0 {
		req.ID = time.Now().UnixMilli()
	}
	if sample.IsReserved(req.ID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is in the reserved sample range"})
		return
	}

	// Run the payload through the mapper so stored rows carry its defaults.
	in := req.row(claims.UserID)
	row := record.ToRow(record.ToEntity(in), in.Season, claims.UserID)

	ctx := c.Request.Context()
	if err := h.Repo.Insert(ctx, row); err != nil {
		var fe *FieldError
		switch {
		case errors.Is(err, ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "id already exists"})
		case errors.As(err, &fe):
			c.JSON(http.StatusBadRequest, gin.H{"error": fe.Error()})
		default:
			logging.Ctx(ctx).Error().Err(err).Str("owner", claims.UserID).Msg("insert title")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		}
		return
	}

	saved, err := h.Repo.Get(ctx, row.ID, claims.UserID)
	if err != nil || saved == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch saved failed"})
		return
	}

	h.broadcast(sync.TitleEvent{
		Type:    sync.EventTitleCreate,
		UserID:  claims.UserID,
		TitleID: saved.ID,
		Season:  saved.Season,
	})
	c.JSON(http.StatusCreated, saved)
}

func (h *Handler) patch(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	ctx := c.Request.Context()
	if err := h.Repo.Update(ctx, id, claims.UserID, fields); err != nil {
		var fe *FieldError
		switch {
		case errors.Is(err, ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.As(err, &fe):
			c.JSON(http.StatusBadRequest, gin.H{"error": fe.Error()})
		default:
			logging.Ctx(ctx).Error().Err(err).Int64("title_id", id).Msg("update title")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		}
		return
	}

	saved, err := h.Repo.Get(ctx, id, claims.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch saved failed"})
		return
	}
	if saved == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if len(fields) > 0 {
		h.broadcast(sync.TitleEvent{
			Type:    sync.EventTitleUpdate,
			UserID:  claims.UserID,
			TitleID: id,
			Season:  saved.Season,
			Fields:  fields,
		})
	}
	c.JSON(http.StatusOK, saved)
}

func (h *Handler) remove(c *gin.Context) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	deleted, err := h.Repo.Delete(c.Request.Context(), id, claims.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	h.broadcast(sync.TitleEvent{
		Type:    sync.EventTitleDelete,
		UserID:  claims.UserID,
		TitleID: id,
	})
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// loadPeriods reads the caller's rows bucketed in display order.
func (h *Handler) loadPeriods(c *gin.Context) (string, []models.Period, bool) {
	claims := auth.MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", nil, false
	}
	rows, err := h.Repo.SelectAll(c.Request.Context(), claims.UserID)
	if err != nil {
		logging.Ctx(c.Request.Context()).Error().Err(err).Str("owner", claims.UserID).Msg("select titles")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return "", nil, false
	}
	periods := sync.BucketRows(rows)
	if periods == nil {
		// nothing to memoize for an empty log
		h.Views.Forget(claims.UserID)
		periods = []models.Period{}
	}
	return claims.UserID, periods, true
}

func (h *Handler) periods(c *gin.Context) {
	_, periods, ok := h.loadPeriods(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, periods)
}

func (h *Handler) series(c *gin.Context) {
	owner, periods, ok := h.loadPeriods(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.Views.For(owner).Series(periods))
}

func (h *Handler) stats(c *gin.Context) {
	owner, periods, ok := h.loadPeriods(c)
	if !ok {
		return
	}
	k := parseInt(c.Query("top"), stats.DefaultTopK)
	if k <= 0 {
		k = stats.DefaultTopK
	}
	k = min(k, maxTopK)
	c.JSON(http.StatusOK, h.Views.For(owner).Summary(periods, k))
}

func (h *Handler) suggestions(c *gin.Context) {
	key := strings.TrimSpace(c.Query("key"))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key required"})
		return
	}
	_, periods, ok := h.loadPeriods(c)
	if !ok {
		return
	}
	if h.Catalog == nil {
		c.JSON(http.StatusOK, []models.CatalogEntry{})
		return
	}

	titles := models.Flatten(periods)
	registered := make([]string, 0, len(titles))
	for _, t := range titles {
		registered = append(registered, t.Name)
	}

	out, err := catalog.Suggest(c.Request.Context(), h.Catalog, key, registered)
	if err != nil {
		logging.Ctx(c.Request.Context()).Warn().Err(err).Str("key", key).Msg("catalog suggest")
		c.JSON(http.StatusOK, []models.CatalogEntry{})
		return
	}
	c.JSON(http.StatusOK, out)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func parseInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
