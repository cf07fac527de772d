package domain

import "time"

type ToolStatus string

const (
	ToolActive     ToolStatus = "active"
	ToolDueSoon    ToolStatus = "due_soon"
	ToolOverdue    ToolStatus = "overdue"
	ToolOutOfCal   ToolStatus = "out_of_cal"
	ToolBackup     ToolStatus = "backup"
	ToolNotInUse   ToolStatus = "not_in_use"
	ToolRepurposed ToolStatus = "repurposed"
	ToolRetired    ToolStatus = "retired"
)

// DefaultDueSoonDays is the look-ahead window for the due_soon status.
const DefaultDueSoonDays = 30

func ParseToolStatus(raw string) (ToolStatus, bool) {
	switch s := ToolStatus(raw); s {
	case ToolActive, ToolDueSoon, ToolOverdue, ToolOutOfCal, ToolBackup, ToolNotInUse, ToolRepurposed, ToolRetired:
		return s, true
	}
	return "", false
}

// BacklistStatus reports whether a status belongs on the backup list.
func BacklistStatus(s ToolStatus) bool {
	switch s {
	case ToolBackup, ToolNotInUse, ToolRepurposed, ToolRetired:
		return true
	}
	return false
}

type Tool struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Description         string     `json:"description,omitempty"`
	ToolType            string     `json:"tool_type,omitempty"`
	Manufacturer        string     `json:"manufacturer,omitempty"`
	ModelNumber         string     `json:"model_number,omitempty"`
	SerialNumber        string     `json:"serial_number"`
	LogNumber           string     `json:"log_number"`
	ToolIDNumber        string     `json:"tool_id_number,omitempty"`
	StickerID           string     `json:"sticker_id,omitempty"`
	Location            string     `json:"location,omitempty"`
	Owner               string     `json:"owner,omitempty"`
	Router              string     `json:"router,omitempty"`
	Schedule            Schedule   `json:"schedule"`
	CustomIntervalDays  int        `json:"custom_interval_days,omitempty"`
	Status              ToolStatus `json:"status"`
	OnBackupList        bool       `json:"on_backup_list"`
	LastCalibrationDate *time.Time `json:"last_calibration_date,omitempty"`
	NextCalibrationDate *time.Time `json:"next_calibration_date,omitempty"`
	ServiceInDate       *time.Time `json:"service_in_date,omitempty"`
	ServiceOutDate      *time.Time `json:"service_out_date,omitempty"`
	Comments            string     `json:"comments,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// RecalculateNextDate derives the next calibration date from the last date and schedule.
func (t *Tool) RecalculateNextDate() {
	if t.LastCalibrationDate == nil {
		t.NextCalibrationDate = nil
		return
	}
	next := NextCalibrationDate(*t.LastCalibrationDate, t.Schedule, t.CustomIntervalDays)
	t.NextCalibrationDate = &next
}

// DateDrivenStatus is the status implied by the next calibration date alone.
func DateDrivenStatus(next time.Time, today time.Time, dueSoonDays int) ToolStatus {
	next, today = DateOf(next), DateOf(today)
	if next.Before(today) {
		return ToolOverdue
	}
	if !next.After(today.AddDate(0, 0, dueSoonDays)) {
		return ToolDueSoon
	}
	return ToolActive
}

// RefreshStatus recomputes the date-driven status. Tools on the backup list,
// tools in a parked status and tools without a next date keep their status.
func (t *Tool) RefreshStatus(today time.Time, dueSoonDays int) bool {
	if t.OnBackupList || BacklistStatus(t.Status) || t.NextCalibrationDate == nil {
		return false
	}
	status := DateDrivenStatus(*t.NextCalibrationDate, today, dueSoonDays)
	if status == t.Status {
		return false
	}
	t.Status = status
	return true
}

// DaysUntilDue is negative for overdue tools.
func (t *Tool) DaysUntilDue(today time.Time) (int, bool) {
	if t.NextCalibrationDate == nil {
		return 0, false
	}
	return int(DateOf(*t.NextCalibrationDate).Sub(DateOf(today)).Hours() / 24), true
}

// ToolUpdate is a proposed set of field changes. Nil fields are left untouched.
type ToolUpdate struct {
	Name                *string     `json:"name,omitempty"`
	Description         *string     `json:"description,omitempty"`
	ToolType            *string     `json:"tool_type,omitempty"`
	Manufacturer        *string     `json:"manufacturer,omitempty"`
	ModelNumber         *string     `json:"model_number,omitempty"`
	SerialNumber        *string     `json:"serial_number,omitempty"`
	ToolIDNumber        *string     `json:"tool_id_number,omitempty"`
	StickerID           *string     `json:"sticker_id,omitempty"`
	Location            *string     `json:"location,omitempty"`
	Owner               *string     `json:"owner,omitempty"`
	Schedule            *Schedule   `json:"schedule,omitempty"`
	CustomIntervalDays  *int        `json:"custom_interval_days,omitempty"`
	Status              *ToolStatus `json:"status,omitempty"`
	OnBackupList        *bool       `json:"on_backup_list,omitempty"`
	LastCalibrationDate *time.Time  `json:"last_calibration_date,omitempty"`
	NextCalibrationDate *time.Time  `json:"next_calibration_date,omitempty"`
	Comments            *string     `json:"comments,omitempty"`
}

func (u ToolUpdate) IsEmpty() bool {
	return u == ToolUpdate{}
}

// Apply copies the set fields onto t.
func (u ToolUpdate) Apply(t *Tool) {
	setString(&t.Name, u.Name)
	setString(&t.Description, u.Description)
	setString(&t.ToolType, u.ToolType)
	setString(&t.Manufacturer, u.Manufacturer)
	setString(&t.ModelNumber, u.ModelNumber)
	setString(&t.SerialNumber, u.SerialNumber)
	setString(&t.ToolIDNumber, u.ToolIDNumber)
	setString(&t.StickerID, u.StickerID)
	setString(&t.Location, u.Location)
	setString(&t.Owner, u.Owner)
	setString(&t.Comments, u.Comments)
	if u.Schedule != nil {
		t.Schedule = *u.Schedule
	}
	if u.CustomIntervalDays != nil {
		t.CustomIntervalDays = *u.CustomIntervalDays
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.OnBackupList != nil {
		t.OnBackupList = *u.OnBackupList
	}
	if u.LastCalibrationDate != nil {
		d := DateOf(*u.LastCalibrationDate)
		t.LastCalibrationDate = &d
	}
	if u.NextCalibrationDate != nil {
		d := DateOf(*u.NextCalibrationDate)
		t.NextCalibrationDate = &d
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// IdentifierField names a tool column that identifiers are matched against.
type IdentifierField string

const (
	FieldToolIDNumber IdentifierField = "tool_id_number"
	FieldStickerID    IdentifierField = "sticker_id"
	FieldLogNumber    IdentifierField = "log_number"
	FieldSerialNumber IdentifierField = "serial_number"
	FieldModelNumber  IdentifierField = "model_number"
	FieldName         IdentifierField = "name"
)

// Value returns the tool's value for the field.
func (f IdentifierField) Value(t *Tool) string {
	switch f {
	case FieldToolIDNumber:
		return t.ToolIDNumber
	case FieldStickerID:
		return t.StickerID
	case FieldLogNumber:
		return t.LogNumber
	case FieldSerialNumber:
		return t.SerialNumber
	case FieldModelNumber:
		return t.ModelNumber
	case FieldName:
		return t.Name
	}
	return ""
}

type MatchMode int

const (
	// MatchEqual is strict equality.
	MatchEqual MatchMode = iota
	// MatchEqualFold is case-insensitive equality.
	MatchEqualFold
	// MatchContainsFold is case-insensitive substring containment.
	MatchContainsFold
)

type ToolFilter struct {
	Statuses      []ToolStatus
	ExcludeBackup bool
	Limit         int
}
