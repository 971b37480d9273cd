package monitoring

import (
	"time"

	"github.com/goccy/go-json"
)

// PlanNode describes one executed step of a query plan.
type PlanNode struct {
	Type        string        `json:"type"`
	Description string        `json:"description"`
	RowsIn      int64         `json:"rows_in"`
	RowsOut     int64         `json:"rows_out"`
	Duration    time.Duration `json:"duration"`
}

// QueryPlan is the execution profile of one materialization.
type QueryPlan struct {
	Operations []PlanNode    `json:"operations"`
	TotalRows  int64         `json:"total_rows"`
	Duration   time.Duration `json:"duration"`
}

// PlanBuilder accumulates plan nodes while a query executes.
type PlanBuilder struct {
	operations []PlanNode
	start      time.Time
}

// NewPlanBuilder creates a new plan builder.
func NewPlanBuilder() *PlanBuilder {
	return &PlanBuilder{
		operations: make([]PlanNode, 0),
		start:      time.Now(),
	}
}

// AddOperation appends an executed step.
func (pb *PlanBuilder) AddOperation(opType, description string, rowsIn, rowsOut int64, d time.Duration) *PlanBuilder {
	pb.operations = append(pb.operations, PlanNode{
		Type:        opType,
		Description: description,
		RowsIn:      rowsIn,
		RowsOut:     rowsOut,
		Duration:    d,
	})
	return pb
}

// Build constructs and returns the final query plan.
func (pb *PlanBuilder) Build(totalRows int64) QueryPlan {
	return QueryPlan{
		Operations: pb.operations,
		TotalRows:  totalRows,
		Duration:   time.Since(pb.start),
	}
}

// ToJSON converts the query plan to JSON format.
func (qp *QueryPlan) ToJSON() ([]byte, error) {
	return json.MarshalIndent(qp, "", "  ")
}

// String returns a string representation of the query plan.
func (qp *QueryPlan) String() string {
	data, err := qp.ToJSON()
	if err != nil {
		return "QueryPlan{error: " + err.Error() + "}"
	}
	return string(data)
}

// RecordPlan stores qp as the most recent execution profile.
func (mc *MetricsCollector) RecordPlan(qp QueryPlan) {
	if !mc.IsEnabled() {
		return
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.lastPlan = &qp
}

// LastPlan returns the most recently recorded plan.
func (mc *MetricsCollector) LastPlan() (QueryPlan, bool) {
	if mc == nil {
		return QueryPlan{}, false
	}
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	if mc.lastPlan == nil {
		return QueryPlan{}, false
	}
	return *mc.lastPlan, true
}
