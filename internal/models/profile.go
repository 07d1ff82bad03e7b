package models

import "time"

type Rank string

const (
	RankRookie Rank = "rookie"
	RankPro    Rank = "pro"
	RankExpert Rank = "expert"
	RankMaster Rank = "master"
)

// Standing is the reward state shared by citizens and volunteers. It is only mutated
// through the ledger package so points, exp, level and rank always move together.
type Standing struct {
	Points      int  `json:"points" db:"points"`
	TotalPoints int  `json:"total_points" db:"total_points"`
	Exp         int  `json:"exp" db:"exp"`
	Level       int  `json:"level" db:"level"`
	Rank        Rank `json:"rank" db:"rank"`
}

// NewStanding is the standing of a freshly registered profile.
func NewStanding() Standing {
	return Standing{Level: 1, Rank: RankRookie}
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Citizen struct {
	ID             string  `json:"id" db:"id"`
	Username       string  `json:"username" db:"username"`
	Email          string  `json:"email" db:"email"`
	Address        string  `json:"address" db:"address"`
	Streak         int     `json:"streak" db:"streak"`
	LastReportDate *string `json:"last_report_date,omitempty" db:"last_report_date"` // YYYY-MM-DD
	Standing
	CreatedAt int64 `json:"created_at" db:"created_at"`
	UpdatedAt int64 `json:"updated_at" db:"updated_at"`
}

// RecordReport updates the daily reporting streak for a report submitted on day.
func (c *Citizen) RecordReport(day time.Time) {
	today := day.Format(DateLayout)
	switch {
	case c.LastReportDate == nil:
		c.Streak = 1
	case *c.LastReportDate == today:
		// same day, streak unchanged
	case *c.LastReportDate == day.AddDate(0, 0, -1).Format(DateLayout):
		c.Streak++
	default:
		c.Streak = 1
	}
	c.LastReportDate = &today
}

type VolunteerStatus string

const (
	VolunteerAvailable   VolunteerStatus = "available"
	VolunteerAssigned    VolunteerStatus = "assigned"
	VolunteerWorking     VolunteerStatus = "working"
	VolunteerUnavailable VolunteerStatus = "unavailable"
)

// DateLayout is the calendar-day format used for quota resets and streaks.
const DateLayout = "2006-01-02"

type Volunteer struct {
	ID           string          `json:"id" db:"id"`
	AgencyID     string          `json:"agency_id" db:"agency_id"`
	Username     string          `json:"username" db:"username"`
	Email        string          `json:"email" db:"email"`
	Status       VolunteerStatus `json:"status" db:"status"`
	PickupsToday int             `json:"pickups_today" db:"pickups_today"`
	LastReset    string          `json:"last_reset" db:"last_reset"` // YYYY-MM-DD
	Latitude     *float64        `json:"latitude" db:"latitude"`
	Longitude    *float64        `json:"longitude" db:"longitude"`
	Address      string          `json:"address" db:"address"`
	Standing
	CreatedAt int64 `json:"created_at" db:"created_at"`
	UpdatedAt int64 `json:"updated_at" db:"updated_at"`
}

// Workload counts a volunteer's unfinished work.
type Workload struct {
	AcceptedTasks int `db:"accepted_tasks"`
	AssignedTasks int `db:"assigned_tasks"` // assigned, not yet accepted
	OpenOrders    int `db:"open_orders"`
}

// Status is the volunteer status implied by the open work: working while an accepted
// task is open, assigned while only offers or resale orders are open, else available.
func (w Workload) Status() VolunteerStatus {
	switch {
	case w.AcceptedTasks > 0:
		return VolunteerWorking
	case w.AssignedTasks > 0 || w.OpenOrders > 0:
		return VolunteerAssigned
	default:
		return VolunteerAvailable
	}
}

// Location returns the last reported position, or nil when the volunteer never
// shared one.
func (v *Volunteer) Location() *Coordinates {
	if v.Latitude == nil || v.Longitude == nil {
		return nil
	}
	return &Coordinates{Lat: *v.Latitude, Lng: *v.Longitude}
}

// ResetQuotaIfStale zeroes the daily pickup counter when it was last reset on an
// earlier day. It reports whether anything changed.
func (v *Volunteer) ResetQuotaIfStale(now time.Time) bool {
	today := now.Format(DateLayout)
	if v.LastReset == today {
		return false
	}
	v.PickupsToday = 0
	v.LastReset = today
	return true
}

// VolunteerLocationUpdate is the body of POST /api/volunteer/location.
type VolunteerLocationUpdate struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Address   string   `json:"address,omitempty"`
}
