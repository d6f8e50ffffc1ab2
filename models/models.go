package models

import (
	"time"
)

// Complaint statuses. A complaint starts open, moves to assigned when an
// admin routes it to a department, and ends resolved.
const (
	StatusOpen     = "open"
	StatusAssigned = "assigned"
	StatusResolved = "resolved"
)

// User roles, fixed at registration.
const (
	RoleCitizen = "citizen"
	RoleAdmin   = "admin"
)

// Location is a GPS point captured at submission time.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Complaint is a citizen-submitted civic issue report.
type Complaint struct {
	ID                 string    `json:"id" db:"id"`
	Title              string    `json:"title" db:"title"`
	Description        string    `json:"description" db:"description"`
	Category           string    `json:"category" db:"category"`
	AssignedDepartment string    `json:"assigned_department,omitempty" db:"assigned_department"`
	Status             string    `json:"status" db:"status"`
	Location           Location  `json:"location"`
	Address            string    `json:"address" db:"address"`
	City               string    `json:"city" db:"city"`
	Image              string    `json:"image,omitempty" db:"image"`
	Votes              int       `json:"votes" db:"votes"`
	Escalated          bool      `json:"escalated" db:"escalated"`
	EscalatedAt        time.Time `json:"escalated_at,omitempty" db:"escalated_at"`
	UserID             string    `json:"user_id" db:"user_id"`
	UserName           string    `json:"user_name" db:"user_name"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// User is a registered citizen or administrator.
type User struct {
	ID                 string    `json:"id" db:"id"`
	Name               string    `json:"name" db:"name"`
	Role               string    `json:"role" db:"role"`
	RewardPoints       int       `json:"reward_points" db:"reward_points"`
	ComplaintsResolved int       `json:"complaints_resolved" db:"complaints_resolved"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// CreateComplaintRequest is the payload for submitting a new complaint.
type CreateComplaintRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description" binding:"required"`
	Category    string   `json:"category"`
	Location    Location `json:"location"`
	Address     string   `json:"address"`
	City        string   `json:"city"`
	Image       string   `json:"image"`
}

// ComplaintFilter narrows ListComplaints results.
type ComplaintFilter struct {
	Status      string
	Category    string
	Search      string
	SortByVotes bool
	Limit       int
}

// UpdateStatusRequest is the admin payload for a status change.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// AssignDepartmentRequest is the admin payload for routing a complaint.
type AssignDepartmentRequest struct {
	Department string `json:"department" binding:"required"`
}

// RegisterRequest creates a new user account.
type RegisterRequest struct {
	Name string `json:"name" binding:"required"`
	Role string `json:"role"`
}

// LoginRequest exchanges a user id for a signed token.
type LoginRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// UserStats summarizes a reporter's activity for their dashboard.
type UserStats struct {
	UserID              string `json:"user_id"`
	RewardPoints        int    `json:"reward_points"`
	ComplaintsSubmitted int    `json:"complaints_submitted"`
	ComplaintsResolved  int    `json:"complaints_resolved"`
}

// ViewPort is a lat/lon bounding box for map queries.
type ViewPort struct {
	LatMin float64 `form:"latmin"`
	LonMin float64 `form:"lonmin"`
	LatMax float64 `form:"latmax"`
	LonMax float64 `form:"lonmax"`
}

// MapPin is one marker (or aggregated cluster) on the admin map.
type MapPin struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Count       int64   `json:"count"`
	ComplaintID string  `json:"complaint_id,omitempty"` // empty if Count > 1
	Status      string  `json:"status,omitempty"`       // empty if Count > 1
}

// ComplaintEvent is broadcast over the websocket feed when a complaint is
// created, escalated or resolved.
type ComplaintEvent struct {
	Type      string     `json:"type"` // "created", "escalated", "resolved"
	Complaint *Complaint `json:"complaint"`
	Timestamp time.Time  `json:"timestamp"`
}
