package http

import (
	"errors"
	"net/http"
	"time"

	"hostpulse/internal/adapters/http/response"
	"hostpulse/internal/adapters/http/validator"
	"hostpulse/internal/domain"
	"hostpulse/internal/logger"

	"github.com/jellydator/ttlcache/v3"
)

const (
	defaultRecent = 60
	statsCacheKey = "stats"
)

type rangeRequest struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
	Limit *int       `json:"limit" validate:"omitempty,gte=1"`
}

type recentRequest struct {
	N int `json:"n" validate:"gte=1,lte=100000"`
}

type pruneRequest struct {
	Before *time.Time `json:"before" validate:"required_without=All,excluded_with=All"`
	All    bool       `json:"all"`
}

type MetricsHandler struct {
	svc       domain.MetricsService
	res       response.ResponseWriter
	validator validator.Validator
	log       logger.Logger

	// stats is nil when caching is disabled.
	stats *ttlcache.Cache[string, domain.StoreStats]
}

func NewMetricsHandler(svc domain.MetricsService, res response.ResponseWriter, v validator.Validator, statsTTL time.Duration, log logger.Logger) *MetricsHandler {
	h := &MetricsHandler{
		svc:       svc,
		res:       res,
		validator: v,
		log:       log,
	}

	if statsTTL > 0 {
		h.stats = ttlcache.New(
			ttlcache.WithTTL[string, domain.StoreStats](statsTTL),
			ttlcache.WithDisableTouchOnHit[string, domain.StoreStats](),
		)
	}

	return h
}

func (h *MetricsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Latest()
	if err != nil {
		h.writeError(w, err, "failed to get latest metrics")
		return
	}

	h.res.Write(w, http.StatusOK, &response.Response{
		Message: "OK",
		Data:    snap,
	})
}

func (h *MetricsHandler) History(w http.ResponseWriter, r *http.Request) {
	history := h.svc.History()

	h.res.Write(w, http.StatusOK, &response.Response{
		Message: "OK",
		Data:    history,
		Meta:    map[string]int{"count": len(history)},
	})
}

func (h *MetricsHandler) Index(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	errs := map[string]string{}

	var req rangeRequest
	var err error

	if req.Start, err = GetTime(q, "start"); err != nil {
		errs["start"] = err.Error()
	}
	if req.End, err = GetTime(q, "end"); err != nil {
		errs["end"] = err.Error()
	}
	if req.Limit, err = GetOptionalInt(q, "limit"); err != nil {
		errs["limit"] = err.Error()
	}

	if !h.valid(w, &req, errs) {
		return
	}

	opts := domain.QueryOptions{Start: req.Start, End: req.End}
	if req.Limit != nil {
		opts.Limit = *req.Limit
	}

	snaps, err := h.svc.Query(r.Context(), opts)
	if err != nil {
		h.writeError(w, err, "failed to query metrics")
		return
	}

	h.writeList(w, snaps)
}

func (h *MetricsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	errs := map[string]string{}

	var req recentRequest
	var err error

	if req.N, err = GetInt(r.URL.Query(), "n", defaultRecent); err != nil {
		errs["n"] = err.Error()
	}

	if !h.valid(w, &req, errs) {
		return
	}

	snaps, err := h.svc.Recent(r.Context(), req.N)
	if err != nil {
		h.writeError(w, err, "failed to get recent metrics")
		return
	}

	h.writeList(w, snaps)
}

func (h *MetricsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.stats != nil {
		if item := h.stats.Get(statsCacheKey); item != nil {
			h.res.Write(w, http.StatusOK, &response.Response{Message: "OK", Data: item.Value()})
			return
		}
	}

	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		h.writeError(w, err, "failed to get storage stats")
		return
	}

	if h.stats != nil {
		h.stats.Set(statsCacheKey, stats, ttlcache.DefaultTTL)
	}

	h.res.Write(w, http.StatusOK, &response.Response{
		Message: "OK",
		Data:    stats,
	})
}

// InvalidateStats drops the cached /metrics/stats response.
func (h *MetricsHandler) InvalidateStats() {
	if h.stats != nil {
		h.stats.DeleteAll()
	}
}

func (h *MetricsHandler) Prune(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	errs := map[string]string{}

	req := pruneRequest{All: GetBool(q, "all")}
	var err error

	if req.Before, err = GetTime(q, "before"); err != nil {
		errs["before"] = err.Error()
	}

	if !h.valid(w, &req, errs) {
		return
	}

	var deleted int64
	if req.All {
		deleted, err = h.svc.PruneAll(r.Context())
	} else {
		deleted, err = h.svc.Prune(r.Context(), *req.Before)
	}
	if err != nil {
		h.writeError(w, err, "failed to delete metrics")
		return
	}

	h.InvalidateStats()

	h.res.Write(w, http.StatusOK, &response.Response{
		Message: "Metrics deleted",
		Data:    map[string]int64{"deleted": deleted},
	})
}

// valid merges parse errors with struct validation and writes a 422 when
// anything failed. Parse errors win for fields that failed both.
func (h *MetricsHandler) valid(w http.ResponseWriter, req any, parseErrs map[string]string) bool {
	errs := h.validator.Validate(req)
	for field, msg := range parseErrs {
		errs[field] = msg
	}

	if len(errs) == 0 {
		return true
	}

	h.res.WriteValidationError(w, errs)
	return false
}

func (h *MetricsHandler) writeList(w http.ResponseWriter, snaps []domain.Snapshot) {
	if snaps == nil {
		snaps = []domain.Snapshot{}
	}

	h.res.Write(w, http.StatusOK, &response.Response{
		Message: "OK",
		Data:    snaps,
		Meta:    map[string]int{"count": len(snaps)},
	})
}

func (h *MetricsHandler) writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrSnapshotNotFound):
		h.res.WriteError(w, http.StatusNotFound, "no metrics collected yet")
	case errors.Is(err, domain.ErrStorageDisabled):
		h.res.WriteError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.log.Error("http: "+fallback, "error", err)
		h.res.WriteError(w, http.StatusInternalServerError, fallback)
	}
}
