package zk

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/clockbridge/clockbridge/internal/model"
)

// Byte offsets inside a 40-byte attendance entry.
const (
	attUserIDOffset = 2
	attUserIDSize   = 9
	attTimeOffset   = 27
)

// Byte offsets inside a 72-byte user entry.
const (
	userPasswordOffset = 3
	userPasswordSize   = 8
	userNameOffset     = 11
	userNameSize       = 24
	userCardOffset     = 35
	userIDOffset       = 48
	userIDSize         = 24
)

// DecodeAttendances splits a buffered attendance read into records.
// The first four bytes of data carry the total size and are skipped.
func DecodeAttendances(data []byte, ip string, loc *time.Location) []model.AttendanceRecord {
	body := stripSizePrefix(data)
	records := make([]model.AttendanceRecord, 0, len(body)/AttendanceRecordSize)

	for len(body) >= AttendanceRecordSize {
		entry := body[:AttendanceRecordSize]
		records = append(records, model.AttendanceRecord{
			UserSN:       int(binary.LittleEndian.Uint16(entry[0:])),
			DeviceUserID: cString(entry[attUserIDOffset : attUserIDOffset+attUserIDSize]),
			RecordTime:   DecodeTime(binary.LittleEndian.Uint32(entry[attTimeOffset:]), loc),
			IP:           ip,
		})
		body = body[AttendanceRecordSize:]
	}

	return records
}

// DecodeUsers splits a buffered user read into records.
func DecodeUsers(data []byte) []model.UserRecord {
	body := stripSizePrefix(data)
	users := make([]model.UserRecord, 0, len(body)/UserRecordSize)

	for len(body) >= UserRecordSize {
		entry := body[:UserRecordSize]
		users = append(users, model.UserRecord{
			UID:      int(binary.LittleEndian.Uint16(entry[0:])),
			Role:     int(entry[2]),
			Password: cString(entry[userPasswordOffset : userPasswordOffset+userPasswordSize]),
			Name:     cString(entry[userNameOffset : userNameOffset+userNameSize]),
			CardNo:   int(binary.LittleEndian.Uint32(entry[userCardOffset:])),
			UserID:   cString(entry[userIDOffset : userIDOffset+userIDSize]),
		})
		body = body[UserRecordSize:]
	}

	return users
}

// EncodeAttendance produces the 40-byte wire form of rec.
func EncodeAttendance(rec model.AttendanceRecord) []byte {
	entry := make([]byte, AttendanceRecordSize)
	binary.LittleEndian.PutUint16(entry[0:], uint16(rec.UserSN))
	copy(entry[attUserIDOffset:attUserIDOffset+attUserIDSize], rec.DeviceUserID)
	binary.LittleEndian.PutUint32(entry[attTimeOffset:], EncodeTime(rec.RecordTime))
	return entry
}

// EncodeUser produces the 72-byte wire form of u.
func EncodeUser(u model.UserRecord) []byte {
	entry := make([]byte, UserRecordSize)
	binary.LittleEndian.PutUint16(entry[0:], uint16(u.UID))
	entry[2] = byte(u.Role)
	copy(entry[userPasswordOffset:userPasswordOffset+userPasswordSize], u.Password)
	copy(entry[userNameOffset:userNameOffset+userNameSize], u.Name)
	binary.LittleEndian.PutUint32(entry[userCardOffset:], uint32(u.CardNo))
	copy(entry[userIDOffset:userIDOffset+userIDSize], u.UserID)
	return entry
}

// WithSizePrefix prepends the 4-byte total size used by buffered reads.
func WithSizePrefix(body []byte) []byte {
	out := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(out, uint32(len(body)))
	copy(out[4:], body)
	return out
}

func stripSizePrefix(data []byte) []byte {
	if len(data) < 4 {
		return nil
	}
	return data[4:]
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
