// Package model defines domain entities for the application.
package model

import "time"

// AttendanceRecord is a single clock-in/out event stored on the device.
// Only RecordTime is interpreted by the gateway; everything else is passed through.
type AttendanceRecord struct {
	UserSN       int       `json:"userSn"`       // Device-internal record owner index
	DeviceUserID string    `json:"deviceUserId"` // Enrolment number shown on the terminal
	RecordTime   time.Time `json:"recordTime"`   // Punch time in the device time zone
	IP           string    `json:"ip"`           // Address of the terminal that produced the record
}

// UserRecord is an enrolled user as stored on the device.
// The device keeps no department or organisation data, so none is exposed.
type UserRecord struct {
	UID      int    `json:"uid"`
	Role     int    `json:"role"`
	Password string `json:"password"`
	Name     string `json:"name"`
	CardNo   int    `json:"cardno"`
	UserID   string `json:"userId"`
}
