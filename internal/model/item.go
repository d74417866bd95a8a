package model

import "time"

// Item is a distributed inventory unit: a quantity of one catalog entry
// assigned to a department and held by an accountable employee.
type Item struct {
	ID               int64     `json:"id"`
	PropertyNo       string    `json:"property_no,omitempty"`
	SerialNo         string    `json:"serial_no,omitempty"`
	ICSNo            string    `json:"ics_no,omitempty"`
	ClassNo          string    `json:"class_no,omitempty"`
	Description      string    `json:"description"`
	Quantity         int       `json:"quantity"`
	AccountableEmpID int64     `json:"accountable_emp_id"`
	DepartmentID     int64     `json:"department_id"`
	ImageMime        string    `json:"image_mime,omitempty"`
	Deleted          bool      `json:"deleted"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
