// Package httpapi exposes the scheduler over JSON HTTP using gin.
//
// Routes:
//
//	GET    /health
//	POST   /schedule/message
//	POST   /schedule/video
//	POST   /schedule/email
//	GET    /schedules
//	GET    /schedules/:id
//	DELETE /schedules/:id
//	GET    /stats
//
// scheduled_time is accepted as "YYYY-MM-DD HH:MM" in the server's timezone
// and returned as RFC 3339.
package httpapi
