package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"jichitai/automation"
	"jichitai/config"
	"jichitai/datamanager"
	"jichitai/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jichitai_http_requests_total",
		Help: "HTTP API へのリクエスト数",
	}, []string{"route", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jichitai_http_request_duration_seconds",
		Help:    "HTTP API の処理時間",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	sourceReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jichitai_source_reloads_total",
		Help: "出典の再読み込み回数",
	}, []string{"result"})
)

// sourceStore は現在の Manager を保持し、出典の取得後に差し替えます。
type sourceStore struct {
	mu      sync.RWMutex
	manager *datamanager.Manager
	logger  *zap.Logger
}

func newSourceStore(m *datamanager.Manager, logger *zap.Logger) *sourceStore {
	return &sourceStore{manager: m, logger: logger}
}

// with は読み取りロックを保持したまま fn を呼びます。
func (s *sourceStore) with(fn func(m *datamanager.Manager)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.manager)
}

// reload は現在の設定で出典を開き直し、古い Manager を閉じます。
func (s *sourceStore) reload() error {
	m, err := datamanager.New(config.GetConfig(), s.logger)
	if err != nil {
		sourceReloads.WithLabelValues("error").Inc()
		return err
	}
	s.mu.Lock()
	old := s.manager
	s.manager = m
	s.mu.Unlock()
	sourceReloads.WithLabelValues("ok").Inc()
	s.logger.Info("sources reloaded", zap.Any("available", m.Available()))
	if old != nil {
		return old.Close()
	}
	return nil
}

func (s *sourceStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manager == nil {
		return nil
	}
	return s.manager.Close()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument はリクエスト数と処理時間を記録します。
func instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		httpRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func SetupRoutes(mux *http.ServeMux, store *sourceStore, downloader automation.Downloader, logger *zap.Logger) {
	handle := func(route string, h http.HandlerFunc) {
		mux.HandleFunc(route, instrument(route, h))
	}

	handle("/api/basic_info", lookupHandler(store, logger, "Municipality not found",
		func(m *datamanager.Manager, q model.Lookup, _ *http.Request) (any, error) {
			res, err := m.GetBasicInfo(q)
			return nilable(res, err)
		}))

	handle("/api/code", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		fuzzy := true
		if v := q.Get("fuzzy"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				writeJSONError(w, "fuzzy には true / false を指定してください。", http.StatusBadRequest)
				return
			}
			fuzzy = b
		}
		store.with(func(m *datamanager.Manager) {
			res, err := m.ResolveName(q.Get("name"), q.Get("prefecture"), fuzzy)
			if err != nil {
				writeQueryError(w, logger, err)
				return
			}
			writeJSON(w, res)
		})
	})

	handle("/api/search", func(w http.ResponseWriter, r *http.Request) {
		criteria, err := parseSearchQuery(r)
		if err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		store.with(func(m *datamanager.Manager) {
			res, err := m.Search(criteria)
			if err != nil {
				writeQueryError(w, logger, err)
				return
			}
			writeJSON(w, res)
		})
	})

	handle("/api/mynumber", lookupHandler(store, logger, "My Number Card data not found",
		func(m *datamanager.Manager, q model.Lookup, _ *http.Request) (any, error) {
			res, err := m.GetMyNumberRate(q)
			return nilable(res, err)
		}))

	handle("/api/dx", lookupHandler(store, logger, "DX data not found",
		func(m *datamanager.Manager, q model.Lookup, r *http.Request) (any, error) {
			res, err := m.GetDXData(q, listParam(r, "category"))
			return nilable(res, err)
		}))

	handle("/api/age_groups", lookupHandler(store, logger, "Age group population data not found",
		func(m *datamanager.Manager, q model.Lookup, _ *http.Request) (any, error) {
			res, err := m.GetAgeGroupPopulation(q)
			return nilable(res, err)
		}))

	handle("/api/export/csv", func(w http.ResponseWriter, r *http.Request) {
		store.with(func(m *datamanager.Manager) {
			rows, err := m.ExportRows()
			if err != nil {
				writeQueryError(w, logger, err)
				return
			}
			w.Header().Set("Content-Type", "text/csv; charset=utf-8")
			w.Header().Set("Content-Disposition", `attachment; filename="municipalities.csv"`)
			if err := datamanager.WriteCSV(w, rows); err != nil {
				logger.Error("csv export failed", zap.Error(err))
			}
		})
	})

	handle("/api/config", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			GetConfigHandler()(w, r)
		case http.MethodPost:
			SaveConfigHandler(logger)(w, r)
		default:
			writeJSONError(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		}
	})

	handle("/api/sources/fetch", automation.FetchSourcesHandler(downloader, logger, store.reload))

	mux.Handle("/metrics", promhttp.Handler())
}

type lookupFunc func(m *datamanager.Manager, q model.Lookup, r *http.Request) (any, error)

// lookupHandler は code / name / prefecture で団体を引く API の共通処理です。
// 該当なしは 404 で NotFound を返します。
func lookupHandler(store *sourceStore, logger *zap.Logger, notFound string, fn lookupFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		q := model.Lookup{Code: query.Get("code"), Name: query.Get("name"), Prefecture: query.Get("prefecture")}
		store.with(func(m *datamanager.Manager) {
			res, err := fn(m, q, r)
			if err != nil {
				writeQueryError(w, logger, err)
				return
			}
			if res == nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(model.NewNotFound(notFound, q))
				return
			}
			writeJSON(w, res)
		})
	}
}

// nilable は型付きの nil ポインタを any の nil に揃えます。
func nilable[T any](v *T, err error) (any, error) {
	if err != nil || v == nil {
		return nil, err
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeQueryError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, datamanager.ErrInvalidArgument):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, datamanager.ErrSourceUnavailable):
		writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		logger.Error("query failed", zap.Error(err))
		writeJSONError(w, "データの読み込みに失敗しました: "+err.Error(), http.StatusInternalServerError)
	}
}

// listParam は ?key=a&key=b と ?key=a,b の両方を受け付けます。
func listParam(r *http.Request, key string) []string {
	var out []string
	for _, v := range r.URL.Query()[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseSearchQuery(r *http.Request) (model.SearchCriteria, error) {
	q := r.URL.Query()
	c := model.SearchCriteria{
		Prefectures:   listParam(r, "prefecture"),
		JichitaiTypes: listParam(r, "type"),
		SortBy:        q.Get("sort_by"),
		SortOrder:     q.Get("sort_order"),
	}
	for _, p := range []struct {
		key string
		dst **int64
	}{{"population_min", &c.PopulationMin}, {"population_max", &c.PopulationMax}} {
		v := q.Get(p.key)
		if v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c, errors.New(p.key + " は整数で指定してください。")
		}
		*p.dst = &n
	}
	if v := q.Get("financial_capability_min"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return c, errors.New("financial_capability_min は数値で指定してください。")
		}
		c.FinancialCapabilityMin = &f
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c, errors.New("limit は0以上の整数で指定してください。")
		}
		c.Limit = n
	}
	return c, nil
}
