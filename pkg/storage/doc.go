// Package storage persists scheduled jobs with GORM.
//
// GormStorage implements core.Storage on sqlite (the default, a single
// connection) or postgres. Status changes are conditional updates on the
// current status, so concurrent writers cannot both move a job out of pending.
package storage
