// Package service provides business logic for the application.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/clockbridge/clockbridge/internal/device"
	"github.com/clockbridge/clockbridge/internal/metrics"
	"github.com/clockbridge/clockbridge/internal/model"
)

// MissingDatesMessage is returned when either end of a date range is absent.
const MissingDatesMessage = "start and end dates required, format YYYY-MM-DD"

// AttendanceService answers attendance and roster queries against one device.
type AttendanceService struct {
	gateway  *device.Gateway
	location *time.Location
	metrics  metrics.Recorder
}

// NewAttendanceService creates a new AttendanceService.
// Date ranges are interpreted in loc, which must match the device clock.
func NewAttendanceService(gateway *device.Gateway, loc *time.Location, recorder metrics.Recorder) *AttendanceService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &AttendanceService{
		gateway:  gateway,
		location: loc,
		metrics:  recorder,
	}
}

// ListAttendance returns every attendance log stored on the device.
func (s *AttendanceService) ListAttendance(ctx context.Context) ([]model.AttendanceRecord, error) {
	records, err := device.Fetch(ctx, s.gateway, model.OperationAttendance, fetchAttendances)
	if err != nil {
		return nil, err
	}
	s.metrics.AddRecordsServed(len(records))
	return records, nil
}

// AttendanceBetween returns the logs recorded between two calendar days, inclusive.
//
// Both dates are validated before the device is contacted; a bad or missing date
// yields *model.ValidationError and no session is opened.
func (s *AttendanceService) AttendanceBetween(ctx context.Context, start, end string) ([]model.AttendanceRecord, error) {
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)

	if start == "" || end == "" {
		field := "start"
		if start != "" {
			field = "end"
		}
		return nil, &model.ValidationError{Field: field, Message: MissingDatesMessage}
	}

	dateRange, err := model.ParseDateRange(start, end, s.location)
	if err != nil {
		return nil, err
	}

	records, err := device.Fetch(ctx, s.gateway, model.OperationAttendance, fetchAttendances)
	if err != nil {
		return nil, err
	}

	filtered := dateRange.FilterAttendance(records)
	s.metrics.AddRecordsServed(len(filtered))
	return filtered, nil
}

// ListUsers returns the user roster stored on the device.
func (s *AttendanceService) ListUsers(ctx context.Context) ([]model.UserRecord, error) {
	users, err := device.Fetch(ctx, s.gateway, model.OperationUsers, fetchUsers)
	if err != nil {
		return nil, err
	}
	s.metrics.AddRecordsServed(len(users))
	return users, nil
}

func fetchAttendances(ctx context.Context, s device.Session) ([]model.AttendanceRecord, error) {
	return s.Attendances(ctx)
}

func fetchUsers(ctx context.Context, s device.Session) ([]model.UserRecord, error) {
	return s.Users(ctx)
}
