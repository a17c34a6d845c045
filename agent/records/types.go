package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/construction-support-assistant/agent/contract"
)

var ErrInvalidStaffID = errors.New("staff id is invalid")

// legacyTimestampLayout is the zone-less ISO form found in older inbox files; fractional seconds are optional.
const legacyTimestampLayout = "2006-01-02T15:04:05"

type Machine struct {
	MachineID string   `json:"machineId"`
	Model     string   `json:"model"`
	Serial    string   `json:"serial"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Company is one entry of customer_machine_list.json.
type Company struct {
	CompanyID         string    `json:"companyId"`
	CompanyName       string    `json:"companyName,omitempty"`
	Address           string    `json:"address,omitempty"`
	DealerCode        string    `json:"dealerCode,omitempty"`
	DealerName        string    `json:"dealerName,omitempty"`
	ContactPersonID   string    `json:"contactPersonId,omitempty"`
	ContactPersonName string    `json:"contactPersonName,omitempty"`
	Machines          []Machine `json:"machines"`
}

type User struct {
	UserID      string `json:"userId"`
	UserName    string `json:"userName"`
	CompanyID   string `json:"companyId,omitempty"`
	CompanyName string `json:"companyName,omitempty"`
}

type InboxMessage struct {
	Timestamp        time.Time `json:"timestamp"`
	Title            string    `json:"title"`
	MessageContent   string    `json:"messageContent"`
	CustomerID       string    `json:"customerId"`
	CustomerName     string    `json:"customerName"`
	CustomerUserID   string    `json:"customerUserId"`
	CustomerUserName string    `json:"customerUserName"`
	FromUserID       string    `json:"fromUserId"`
}

// UnmarshalJSON accepts RFC 3339 timestamps and zone-less ISO timestamps, which are read as UTC.
func (m *InboxMessage) UnmarshalJSON(data []byte) error {
	type plain InboxMessage
	aux := struct {
		*plain
		Timestamp *string `json:"timestamp"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	m.Timestamp = time.Time{}
	if aux.Timestamp == nil || strings.TrimSpace(*aux.Timestamp) == "" {
		return nil
	}
	ts, err := parseTimestamp(strings.TrimSpace(*aux.Timestamp))
	if err != nil {
		return err
	}
	m.Timestamp = ts
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.ParseInLocation(legacyTimestampLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse inbox timestamp %q: %w", s, err)
	}
	return ts, nil
}

// Roster is the read-only customer/machine/user directory.
type Roster interface {
	Companies(ctx context.Context) ([]Company, error)
	Users(ctx context.Context) ([]User, error)
}

// Inbox is the per-staff append-only message collection.
type Inbox interface {
	Append(ctx context.Context, staffID string, msg InboxMessage) (InboxMessage, error)
	List(ctx context.Context, staffID string) ([]InboxMessage, error)
}

// FindUser scans the roster users for userID.
func FindUser(ctx context.Context, roster Roster, userID string) (User, error) {
	users, err := roster.Users(ctx)
	if err != nil {
		return User{}, err
	}
	for _, u := range users {
		if u.UserID == userID {
			return u, nil
		}
	}
	return User{}, fmt.Errorf("%w: %s", contractx.ErrUserNotFound, userID)
}

// nextTimestamp never goes backwards relative to the last stored record.
func nextTimestamp(now time.Time, last time.Time) time.Time {
	now = now.UTC()
	if !last.IsZero() && now.Before(last) {
		return last.UTC()
	}
	return now
}
