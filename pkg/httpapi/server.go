package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jdziat/simple-message-scheduler/pkg/core"
	"github.com/jdziat/simple-message-scheduler/pkg/service"
	"github.com/jdziat/simple-message-scheduler/pkg/transport/bridge"
)

// TimeLayout is the accepted scheduled_time format.
const TimeLayout = "2006-01-02 15:04"

// Scheduler is the part of service.Service the API needs.
type Scheduler interface {
	ScheduleText(ctx context.Context, req service.TextRequest) (*core.Job, error)
	ScheduleVideo(ctx context.Context, req service.VideoRequest) (*core.Job, error)
	ScheduleEmail(ctx context.Context, req service.EmailRequest) (*core.Job, error)
	Cancel(ctx context.Context, id uint64) (bool, error)
	Get(ctx context.Context, id uint64) (*core.Job, error)
	ListPending(ctx context.Context) ([]*core.Job, error)
	Stats(ctx context.Context) (*service.Stats, error)
	Armed() int
}

// BridgeStatus reports whether the chat bridge is ready.
type BridgeStatus interface {
	Status(ctx context.Context) (*bridge.Status, error)
}

// Server holds the routes and their dependencies.
type Server struct {
	sched    Scheduler
	bridge   BridgeStatus
	location *time.Location
	logger   *slog.Logger
	engine   *gin.Engine
}

// Option configures a Server.
type Option interface {
	applyServer(*Server)
}

type serverOptionFunc func(*Server)

func (f serverOptionFunc) applyServer(s *Server) { f(s) }

// WithLogger sets the logger used for access and error logs.
func WithLogger(l *slog.Logger) Option {
	return serverOptionFunc(func(s *Server) {
		if l != nil {
			s.logger = l
		}
	})
}

// WithLocation sets the timezone scheduled_time values are read in.
func WithLocation(loc *time.Location) Option {
	return serverOptionFunc(func(s *Server) {
		if loc != nil {
			s.location = loc
		}
	})
}

// WithBridgeStatus includes the bridge readiness in /health.
func WithBridgeStatus(b BridgeStatus) Option {
	return serverOptionFunc(func(s *Server) {
		s.bridge = b
	})
}

// New builds the router.
func New(sched Scheduler, opts ...Option) *Server {
	s := &Server{
		sched:    sched,
		location: time.Local,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt.applyServer(s)
	}

	r := gin.New()
	r.Use(recovery(s.logger), requestID(), accessLog(s.logger), cors())

	r.GET("/health", s.health)
	r.POST("/schedule/message", s.scheduleText)
	r.POST("/schedule/video", s.scheduleVideo)
	r.POST("/schedule/email", s.scheduleEmail)
	r.GET("/schedules", s.listSchedules)
	r.GET("/schedules/:id", s.getSchedule)
	r.DELETE("/schedules/:id", s.cancelSchedule)
	r.GET("/stats", s.stats)

	s.engine = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}
