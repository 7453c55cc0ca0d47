package mq

import "time"

// Routing keys published on the events exchange.
const (
	RoutingAdminSignedUp = "admin.signed_up"
	RoutingUserCreated   = "user.created"
	RoutingTaskCreated   = "task.created"
	RoutingTaskCompleted = "task.completed"
)

// Aggregate types recorded with every outbox row.
const (
	AggregateAdmin = "admin"
	AggregateUser  = "user"
	AggregateTask  = "task"
)

type AdminSignedUpPayload struct {
	AdminID string `json:"admin_id"`
	Email   string `json:"email"`
	TraceID string `json:"trace_id,omitempty"`
}

type UserCreatedPayload struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	TraceID   string    `json:"trace_id,omitempty"`
}

type TaskCreatedPayload struct {
	TaskID   string `json:"task_id"`
	UserID   string `json:"user_id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
	DueDate  string `json:"due_date,omitempty"`
	TraceID  string `json:"trace_id,omitempty"`
}

type TaskCompletedPayload struct {
	TaskID      string    `json:"task_id"`
	CompletedAt time.Time `json:"completed_at"`
	TraceID     string    `json:"trace_id,omitempty"`
}
