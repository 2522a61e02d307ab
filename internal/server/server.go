package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/John-Robertt/linkpreview/internal/preview"
	"github.com/John-Robertt/linkpreview/internal/provider"
	"github.com/John-Robertt/linkpreview/internal/provider/hax"
)

const (
	defaultInstance = "default"
	// maxInstances 限制预览实例（Tracker）数量，防止任意 instance 参数撑爆内存。
	maxInstances = 1024
)

// Server 暴露两类接口：
// - /api/preview：按 instance 维护 FetchState 的预览查询
// - hax.MetadataPath：与远端 metadata 服务同构的本地接口（直接抓页面）
type Server struct {
	fetcher preview.Resolver
	page    provider.Provider
	timeout time.Duration
	log     zerolog.Logger

	mu       sync.Mutex
	trackers map[string]*preview.Tracker

	group singleflight.Group
}

// New 构造 Server。page 为 nil 时不注册本地 metadata 接口。
func New(fetcher preview.Resolver, page provider.Provider, timeout time.Duration, log zerolog.Logger) *Server {
	return &Server{
		fetcher:  fetcher,
		page:     page,
		timeout:  timeout,
		log:      log,
		trackers: make(map[string]*preview.Tracker),
	}
}

// Handler 返回完整路由。
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestLogger)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/preview", s.handlePreview).Methods(http.MethodGet)
	if s.page != nil {
		r.HandleFunc(hax.MetadataPath, s.handleMetadata).Methods(http.MethodGet)
	}
	return r
}

// Run 监听 addr 直到 ctx 取消，然后优雅关闭。
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.timeout + 15*time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("Starting preview server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := strings.TrimSpace(q.Get("url"))
	instance := strings.TrimSpace(q.Get("instance"))
	if instance == "" {
		instance = defaultInstance
	}

	tr, ok := s.tracker(instance)
	if !ok {
		writeError(w, http.StatusTooManyRequests, "too many preview instances")
		return
	}

	// 客户端断开不应取消共享中的抓取：只保留 ctx 里的值（logger）。
	ctx := context.WithoutCancel(r.Context())
	v, _, _ := s.group.Do(instance+"\x00"+target, func() (any, error) {
		snap, _ := tr.Load(ctx, target)
		return snap, nil
	})
	writeJSON(w, http.StatusOK, v.(preview.Snapshot))
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimSpace(r.URL.Query().Get("q"))
	if target == "" {
		writeError(w, http.StatusBadRequest, "missing q")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	log := zerolog.Ctx(ctx)
	body, err := s.page.Fetch(ctx, target)
	if err != nil {
		log.Warn().Err(err).Str("target", target).Msg("Failed to fetch page for metadata")
		writeError(w, http.StatusBadGateway, "fetch failed")
		return
	}
	m, err := s.page.Parse(target, body)
	if err != nil {
		log.Warn().Err(err).Str("target", target).Msg("Failed to parse page metadata")
		writeError(w, http.StatusBadGateway, "parse failed")
		return
	}
	writeJSON(w, http.StatusOK, hax.Envelope{Data: m})
}

func (s *Server) tracker(instance string) (*preview.Tracker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tr, ok := s.trackers[instance]; ok {
		return tr, true
	}
	if len(s.trackers) >= maxInstances {
		return nil, false
	}
	tr := preview.NewTracker(s.fetcher, s.timeout, nil)
	s.trackers[instance] = tr
	return tr, true
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		reqID := xid.New().String()
		log := s.log.With().Str("req_id", reqID).Logger()
		w.Header().Set("X-Request-Id", reqID)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(log.WithContext(r.Context())))

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("elapsed", time.Since(started)).
			Msg("Handled request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
