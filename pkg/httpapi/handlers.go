package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jdziat/simple-message-scheduler/pkg/core"
	"github.com/jdziat/simple-message-scheduler/pkg/security"
	"github.com/jdziat/simple-message-scheduler/pkg/service"
)

type textRequest struct {
	Recipient     string `json:"recipient"`
	Content       string `json:"content"`
	ScheduledTime string `json:"scheduled_time"`
}

type videoRequest struct {
	Recipient     string `json:"recipient"`
	MediaURL      string `json:"media_url"`
	Caption       string `json:"caption"`
	ScheduledTime string `json:"scheduled_time"`
}

type emailRequest struct {
	Recipient     string   `json:"recipient"`
	Subject       string   `json:"subject"`
	Content       string   `json:"content"`
	Attachments   []string `json:"attachments"`
	ScheduledTime string   `json:"scheduled_time"`
}

type jobView struct {
	ID            uint64     `json:"id"`
	Type          core.Kind  `json:"type"`
	Recipient     string     `json:"recipient"`
	Content       string     `json:"content"`
	Subject       string     `json:"subject,omitempty"`
	MediaURL      *string    `json:"media_url"`
	Caption       *string    `json:"caption"`
	Attachments   []string   `json:"attachments,omitempty"`
	ScheduledTime time.Time  `json:"scheduled_time"`
	Status        string     `json:"status"`
	LastError     string     `json:"last_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func (s *Server) view(job *core.Job, truncate bool) jobView {
	content := job.Content
	if truncate {
		content = security.TruncateForDisplay(content)
	}
	v := jobView{
		ID:            job.ID,
		Type:          job.Kind,
		Recipient:     job.Recipient,
		Content:       content,
		Subject:       job.Subject,
		MediaURL:      job.MediaURL,
		Caption:       job.Caption,
		Attachments:   job.Attachments,
		ScheduledTime: job.ScheduledTime.In(s.location),
		Status:        string(job.Status),
		LastError:     job.LastError,
		CreatedAt:     job.CreatedAt.In(s.location),
	}
	if job.CompletedAt != nil {
		t := job.CompletedAt.In(s.location)
		v.CompletedAt = &t
	}
	return v
}

func (s *Server) health(c *gin.Context) {
	resp := gin.H{
		"status":  "ok",
		"message": "Message scheduler API is running",
		"armed":   s.sched.Armed(),
	}
	if s.bridge != nil {
		st, err := s.bridge.Status(c.Request.Context())
		resp["bridge_ready"] = err == nil && st.Ready
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) parseTime(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, &core.ValidationError{Field: "scheduled_time", Reason: "is required"}
	}
	t, err := time.ParseInLocation(TimeLayout, strings.TrimSpace(raw), s.location)
	if err != nil {
		return time.Time{}, &core.ValidationError{Field: "scheduled_time", Reason: "invalid format, use YYYY-MM-DD HH:MM"}
	}
	return t, nil
}

func (s *Server) scheduleText(c *gin.Context) {
	var req textRequest
	if !bind(c, &req) {
		return
	}
	at, err := s.parseTime(req.ScheduledTime)
	if err != nil {
		s.writeError(c, err)
		return
	}
	job, err := s.sched.ScheduleText(c.Request.Context(), service.TextRequest{
		Recipient:     req.Recipient,
		Content:       req.Content,
		ScheduledTime: at,
	})
	s.writeCreated(c, job, err, "Message scheduled")
}

func (s *Server) scheduleVideo(c *gin.Context) {
	var req videoRequest
	if !bind(c, &req) {
		return
	}
	at, err := s.parseTime(req.ScheduledTime)
	if err != nil {
		s.writeError(c, err)
		return
	}
	job, err := s.sched.ScheduleVideo(c.Request.Context(), service.VideoRequest{
		Recipient:     req.Recipient,
		MediaURL:      req.MediaURL,
		Caption:       req.Caption,
		ScheduledTime: at,
	})
	s.writeCreated(c, job, err, "Video scheduled")
}

func (s *Server) scheduleEmail(c *gin.Context) {
	var req emailRequest
	if !bind(c, &req) {
		return
	}
	at, err := s.parseTime(req.ScheduledTime)
	if err != nil {
		s.writeError(c, err)
		return
	}
	job, err := s.sched.ScheduleEmail(c.Request.Context(), service.EmailRequest{
		Recipient:     req.Recipient,
		Subject:       req.Subject,
		Body:          req.Content,
		Attachments:   req.Attachments,
		ScheduledTime: at,
	})
	s.writeCreated(c, job, err, "Email scheduled")
}

func (s *Server) writeCreated(c *gin.Context, job *core.Job, err error, msg string) {
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        msg,
		"id":             job.ID,
		"scheduled_time": job.ScheduledTime.In(s.location).Format(time.RFC3339),
	})
}

func (s *Server) listSchedules(c *gin.Context) {
	jobList, err := s.sched.ListPending(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	views := make([]jobView, 0, len(jobList))
	for _, job := range jobList {
		views = append(views, s.view(job, true))
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"schedules": views,
		"total":     len(views),
	})
}

func (s *Server) getSchedule(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	job, err := s.sched.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "schedule": s.view(job, false)})
}

func (s *Server) cancelSchedule(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	cancelled, err := s.sched.Cancel(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !cancelled {
		s.writeError(c, core.ErrNotPending)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Schedule cancelled"})
}

func (s *Server) stats(c *gin.Context) {
	st, err := s.sched.Stats(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	counts := make(map[string]int64, len(st.Counts))
	for status, n := range st.Counts {
		counts[string(status)] = n
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "counts": counts, "armed": st.Armed})
}

func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

func parseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// writeError maps domain errors to status codes. Unexpected errors are
// logged and reported without detail.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed", "path", c.FullPath(), "request_id", c.GetString("request_id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
