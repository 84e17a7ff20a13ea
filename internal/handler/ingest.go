package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sportsync/internal/client/breaker"
	"sportsync/internal/gateway"
	"sportsync/internal/ingest"
	"sportsync/internal/models"
	"sportsync/internal/ratelimit"
	"sportsync/internal/repository"
)

// ProviderStatus is one provider's slice of the status endpoint: budget
// snapshot plus breaker state.
type ProviderStatus struct {
	Budget  ratelimit.UsageStats `json:"budget"`
	Breaker string               `json:"breaker"`
}

type IngestHandler struct {
	Orchestrator *ingest.Orchestrator
	Repo         repository.CatalogRepository
	Governors    map[string]*ratelimit.Governor
	Breakers     map[string]func() breaker.State
	Hub          *gateway.Hub
	Logger       *zap.Logger
}

func (h *IngestHandler) Register(r *gin.Engine) {
	group := r.Group("/api/ingest")
	group.POST("/sync", h.sync)
	group.POST("/sync-live", h.syncLive)
	group.POST("/sync-odds", h.syncOdds)
	group.GET("/status", h.status)
	group.GET("/events", h.listEvents)
	group.GET("/events/:source/:external_id", h.getEvent)
	group.GET("/event-log", h.listEventLog)
}

func (h *IngestHandler) sync(c *gin.Context) {
	if h.Orchestrator == nil {
		Error(c, http.StatusInternalServerError, "orchestrator unavailable", nil)
		return
	}
	summary, err := h.Orchestrator.RunCycle(c.Request.Context())
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("manual sync failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, summary, nil)
}

func (h *IngestHandler) syncLive(c *gin.Context) {
	if h.Orchestrator == nil {
		Error(c, http.StatusInternalServerError, "orchestrator unavailable", nil)
		return
	}
	summary, err := h.Orchestrator.SyncLive(c.Request.Context())
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("manual live sync failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, summary, nil)
}

func (h *IngestHandler) syncOdds(c *gin.Context) {
	if h.Orchestrator == nil {
		Error(c, http.StatusInternalServerError, "orchestrator unavailable", nil)
		return
	}
	summary, err := h.Orchestrator.SyncOdds(c.Request.Context())
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("manual odds sync failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, summary, nil)
}

func (h *IngestHandler) status(c *gin.Context) {
	providers := make(map[string]ProviderStatus, len(h.Governors))
	for name, governor := range h.Governors {
		status := ProviderStatus{Budget: governor.Stats()}
		if stateFn, ok := h.Breakers[name]; ok {
			status.Breaker = stateFn().String()
		}
		providers[name] = status
	}

	body := gin.H{"providers": providers}
	if h.Repo != nil {
		states, err := h.Repo.ListSyncStates(c.Request.Context())
		if err != nil {
			if h.Logger != nil {
				h.Logger.Warn("list sync states failed", zap.Error(err))
			}
		} else {
			body["sync_state"] = states
		}
	}
	if h.Hub != nil {
		body["gateway"] = gin.H{
			"connections": h.Hub.ClientCount(),
			"rooms":       h.Hub.RoomCount(),
		}
	}
	Ok(c, body, nil)
}

func (h *IngestHandler) listEvents(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repository unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListEventsParams{
		Sport:    sportQueryPtr(c, "sport"),
		Status:   statusQueryPtr(c, "status"),
		Source:   strQueryPtr(c, "source"),
		Season:   strQueryPtr(c, "season"),
		DateFrom: timeQueryPtr(c, "date_from"),
		DateTo:   timeQueryPtr(c, "date_to"),
		OrderBy: parseOrder(c.Query("order_by"), map[string]string{
			"start_time":   "start_time",
			"last_seen_at": "last_seen_at",
			"status":       "status",
		}),
		Asc:    boolQueryDefault(c, "ascending", false),
		Limit:  limit,
		Offset: offset,
	}

	items, err := h.Repo.ListEvents(c.Request.Context(), params)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("list events failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountEvents(c.Request.Context(), params)
	if err != nil {
		total = int64(len(items))
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *IngestHandler) getEvent(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repository unavailable", nil)
		return
	}
	key := repository.Identity{
		Source:     strings.TrimSpace(c.Param("source")),
		ExternalID: strings.TrimSpace(c.Param("external_id")),
	}
	event, err := h.Repo.GetEventByIdentity(c.Request.Context(), key)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("get event failed",
				zap.String("source", key.Source),
				zap.String("external_id", key.ExternalID),
				zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if event == nil {
		Error(c, http.StatusNotFound, "event not found", nil)
		return
	}
	Ok(c, event, nil)
}

func (h *IngestHandler) listEventLog(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repository unavailable", nil)
		return
	}
	items, err := h.Repo.ListEventLog(c.Request.Context(), repository.EventLogParams{
		AggregateType: strQueryPtr(c, "aggregate_type"),
		AggregateID:   strQueryPtr(c, "aggregate_id"),
		EventType:     strQueryPtr(c, "event_type"),
		Since:         timeQueryPtr(c, "since"),
		Until:         timeQueryPtr(c, "until"),
		AfterSeq:      uintQueryPtr(c, "after_seq"),
		Limit:         intQuery(c, "limit", 200),
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("list event log failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

func intQuery(c *gin.Context, key string, def int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return value
}

func uintQueryPtr(c *gin.Context, key string) *uint64 {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &value
}

func boolQueryDefault(c *gin.Context, key string, def bool) bool {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return value
}

func strQueryPtr(c *gin.Context, key string) *string {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil
	}
	return &raw
}

func sportQueryPtr(c *gin.Context, key string) *models.Sport {
	raw := strings.TrimSpace(strings.ToLower(c.Query(key)))
	if raw == "" {
		return nil
	}
	sport := models.Sport(raw)
	return &sport
}

func statusQueryPtr(c *gin.Context, key string) *models.EventStatus {
	raw := strings.TrimSpace(strings.ToUpper(c.Query(key)))
	if raw == "" {
		return nil
	}
	status := models.EventStatus(raw)
	return &status
}

func timeQueryPtr(c *gin.Context, key string) *time.Time {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t
	}
	return nil
}

func parseOrder(value string, allowed map[string]string) string {
	if column, ok := allowed[strings.TrimSpace(value)]; ok {
		return column
	}
	return ""
}
