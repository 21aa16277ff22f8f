package controllers

import (
	"errors"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cast"

	"stride/internal/models"
	"stride/internal/providers"
	"stride/internal/sampler"
	"stride/internal/services"
	"stride/internal/storage"
	"stride/internal/tracking"
)

const (
	maxRequestBodySize = 1 << 20 // 1 MB
	defaultRecentLimit = 20
	maxRecentLimit     = 500
)

// RunFeed is the location feed, restarted with every run.
type RunFeed interface {
	Reset()
}

type ApiController struct {
	logger  providers.Logger
	service services.RunServiceInterface
	push    *sampler.PushSampler
	feed    RunFeed
	cache   providers.CacheProviderInterface
}

func NewApiController(logger providers.Logger, service services.RunServiceInterface, push *sampler.PushSampler, feed RunFeed, cache providers.CacheProviderInterface) *ApiController {
	return &ApiController{
		logger:  logger,
		service: service,
		push:    push,
		feed:    feed,
		cache:   cache,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	gson, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}

func (ac *ApiController) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNoActiveRun),
		errors.Is(err, services.ErrRunInProgress),
		errors.Is(err, services.ErrDuplicateSession),
		errors.Is(err, sampler.ErrNotListening):
		status = http.StatusConflict
	case errors.Is(err, services.ErrInvalidSession):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, tracking.ErrInvalidSample),
		errors.Is(err, tracking.ErrTimeRegressed),
		errors.Is(err, tracking.ErrPaused):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		ac.logger.Errorf(providers.GetLogTypeByRequestType(r.Method), "%s %s: %s", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (ac *ApiController) serveFromCacheOrCompute(w http.ResponseWriter, cacheKey string, compute func() (any, error)) {
	if data, ok := ac.cache.Get(cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	result, err := compute()
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ac.cache.Set(cacheKey, gson)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func (ac *ApiController) Begin(w http.ResponseWriter, r *http.Request) {
	session, err := ac.service.Begin()
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	ac.feed.Reset()
	writeJSON(w, http.StatusCreated, session)
}

type sampleResponse struct {
	Recorded bool `json:"recorded"`
}

// Sample accepts one location reading from a device. A failed fix is
// acknowledged without being recorded; a sample the run rejects is an error.
func (ac *ApiController) Sample(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var reading sampler.Reading
	if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	err := ac.push.Push(reading)
	if err != nil && !errors.Is(err, sampler.ErrNoFix) {
		ac.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, sampleResponse{Recorded: err == nil})
}

func (ac *ApiController) Pause(w http.ResponseWriter, r *http.Request) {
	session, err := ac.service.Pause()
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (ac *ApiController) Resume(w http.ResponseWriter, r *http.Request) {
	session, err := ac.service.Resume()
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (ac *ApiController) End(w http.ResponseWriter, r *http.Request) {
	result, err := ac.service.End()
	if err != nil && !errors.Is(err, services.ErrDuplicateSession) {
		ac.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (ac *ApiController) Current(w http.ResponseWriter, r *http.Request) {
	session, ok := ac.service.Current()
	if !ok {
		ac.writeError(w, r, services.ErrNoActiveRun)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// Import records a session tracked elsewhere.
func (ac *ApiController) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var session models.Session
	if err := json.NewDecoder(r.Body).Decode(&session); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	result, err := ac.service.Save(r.Context(), session)
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (ac *ApiController) Recent(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := cast.ToIntE(raw)
		if err != nil || n < 0 {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		limit = min(n, maxRecentLimit)
	}
	ac.serveFromCacheOrCompute(w, "runs:"+cast.ToString(limit), func() (any, error) {
		return ac.service.Recent(limit), nil
	})
}

func sessionID(r *http.Request) (int64, bool) {
	id, err := cast.ToInt64E(r.URL.Query().Get("id"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (ac *ApiController) GetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(r)
	if !ok {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	session, err := ac.service.Get(r.Context(), id)
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (ac *ApiController) DeleteRun(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(r)
	if !ok {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if err := ac.service.Delete(r.Context(), id); err != nil {
		ac.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statsResponse struct {
	Source string `json:"source"`
	models.Totals
	Pace float64 `json:"pace"`
}

func (ac *ApiController) Stats(w http.ResponseWriter, r *http.Request) {
	source := strings.ToLower(r.URL.Query().Get("source"))
	if source == "" {
		source = "memory"
	}
	if source != "memory" && source != "store" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ac.serveFromCacheOrCompute(w, "stats:"+source, func() (any, error) {
		totals := ac.service.Totals()
		if source == "store" {
			var err error
			if totals, err = ac.service.StoreTotals(r.Context()); err != nil {
				ac.logger.Errorf(providers.TypeGet, "Store totals: %s", err)
				return nil, err
			}
		}
		return statsResponse{
			Source: source,
			Totals: totals,
			Pace:   models.PaceMinutesPerKm(totals.Distance, totals.Duration),
		}, nil
	})
}

func (ac *ApiController) Achievements(w http.ResponseWriter, r *http.Request) {
	filter := strings.ToLower(r.URL.Query().Get("filter"))
	var compute func() (any, error)
	switch filter {
	case "":
		compute = func() (any, error) { return ac.service.Achievements(), nil }
	case "unlocked":
		compute = func() (any, error) { return ac.service.Unlocked(), nil }
	case "locked":
		compute = func() (any, error) { return ac.service.Locked(), nil }
	default:
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ac.serveFromCacheOrCompute(w, "achievements:"+filter, compute)
}

func (ac *ApiController) ResetAchievements(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ac.service.ResetAchievements())
}

type dedupeResponse struct {
	Removed int `json:"removed"`
}

func (ac *ApiController) RemoveDuplicates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dedupeResponse{Removed: ac.service.RemoveDuplicates()})
}
