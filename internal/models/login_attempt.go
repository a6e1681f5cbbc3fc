package models

import "time"

// LoginAttempt represents a single login attempt in the append-only attempt log
type LoginAttempt struct {
	ID          int64     `json:"id" db:"id"`
	Username    string    `json:"username" db:"username"`
	IPAddress   string    `json:"ip_address" db:"ip_address"`
	UserAgent   string    `json:"user_agent" db:"user_agent"`
	AttemptTime time.Time `json:"attempt_time" db:"attempt_time"`
	Success     bool      `json:"success" db:"success"`
}
