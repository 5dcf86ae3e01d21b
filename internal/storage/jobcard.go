package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusComplete   = "C"
	StatusIncomplete = "IC"
)

const (
	SourceTechnician = "TECHNICIAN"
	SourceSupervisor = "SUPERVISOR"
)

const (
	EfficiencyTimeBased     = "TIME_BASED"
	EfficiencyQuantityBased = "QUANTITY_BASED"
	EfficiencyTaskBased     = "TASK_BASED"
)

// JobCard is one reported unit of work by an employee for a date/shift/work
// order/activity. ActivityCodeID is nil only for AWC entries, where the operator
// logged free text instead of a registered code.
type JobCard struct {
	ID               int64           `json:"id"`
	EmployeeID       int64           `json:"employee_id"`
	SupervisorID     *int64          `json:"supervisor_id,omitempty"`
	MachineID        int64           `json:"machine_id"`
	WorkOrderID      int64           `json:"work_order_id"`
	ActivityCodeID   *int64          `json:"activity_code_id,omitempty"`
	ActivityDesc     string          `json:"activity_desc"`
	Qty              decimal.Decimal `json:"qty"`
	ActualHours      decimal.Decimal `json:"actual_hours"`
	Status           string          `json:"status"`
	EntryDate        time.Time       `json:"entry_date"`
	Shift            int             `json:"shift"`
	Source           string          `json:"source"`
	EfficiencyModule string          `json:"efficiency_module"`
	HasFlags         bool            `json:"has_flags"`
}

// JobCardFilter narrows ListJobCards. WorkOrderID and EntryDate are always set;
// the pointer fields are optional extra constraints.
type JobCardFilter struct {
	WorkOrderID    int64
	EntryDate      time.Time
	EmployeeID     *int64
	ActivityCodeID *int64
	MachineID      *int64
}
