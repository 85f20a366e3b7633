package protocol

import (
	"fmt"
	"strings"
	"time"
)

// BuildCommandID derives the protocol-unique command id. The token must be
// unique per command so result reports can be matched back.
func BuildCommandID(cmdType, token string) string {
	return fmt.Sprintf("%s-%s", cmdType, token)
}

// CreateUserCommand builds the literal text provisioning a user on the device.
func CreateUserCommand(commandID, pin, name string) string {
	return fmt.Sprintf("C:%s:DATA USER PIN=%s\tName=%s\n", commandID, pin, name)
}

// QueryUserCommand builds the literal text querying a user on the device.
func QueryUserCommand(commandID, pin string) string {
	return fmt.Sprintf("C:%s:DATA QUERY USERINFO PIN=%s\n", commandID, pin)
}

// DeleteUserCommand builds the literal text removing a user from the device.
func DeleteUserCommand(commandID, pin string) string {
	return fmt.Sprintf("C:%s:DATA DELETE USERINFO PIN=%s\n", commandID, pin)
}

// SyncTimeCommand builds the literal text setting the device clock.
func SyncTimeCommand(now time.Time) string {
	return fmt.Sprintf("SET OPTIONS DateTime=%s", now.Format("2006-01-02 15:04:05"))
}

// EncodeHandshake renders the fixed option block a device expects after a
// successful handshake. Joined with \r\n, no trailing newline.
func EncodeHandshake(sn string, offsetMinutes int, now time.Time) string {
	lines := []string{
		fmt.Sprintf("GET OPTION FROM: %s", sn),
		"Stamp=9999",
		fmt.Sprintf("OpStamp=%d", now.Unix()),
		"ErrorDelay=60",
		"Delay=30",
		"ResLogDay=18250",
		"ResLogDelCount=10000",
		"ResLogCount=50000",
		"TransTimes=00:00;14:05",
		"TransInterval=1",
		"TransFlag=1111000000",
		fmt.Sprintf("TimeZone=%d", offsetMinutes),
		"Realtime=1",
		"Encrypt=0",
	}
	return strings.Join(lines, "\r\n")
}

// TimezoneToMinutes converts an IANA timezone name to its current UTC offset
// in minutes (Asia/Kolkata -> 330, America/New_York -> -300 outside DST).
// An invalid name degrades to 0, never an error: devices need an answer.
func TimezoneToMinutes(timezone string, now time.Time) int {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return 0
	}
	_, offsetSeconds := now.In(loc).Zone()
	return offsetSeconds / 60
}
