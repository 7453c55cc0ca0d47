package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskdesk/internal/service/task"
	"taskdesk/pkg/logger"
)

// ContextAdminID is the gin context key holding the authenticated admin id.
const ContextAdminID = "admin_id"

type TaskHandler struct {
	tasks  *task.Service
	logger *zap.Logger
}

func NewTaskHandler(tasks *task.Service, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

type addTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
}

// AddTask POST /api/task/add-task/:id
func (h *TaskHandler) AddTask(c *gin.Context) {
	userID := c.Param("id")
	var req addTaskRequest
	if !bindJSON(c, &req) {
		return
	}
	log := logger.WithTrace(c.Request.Context(), h.logger)
	log.Info("AddTask request received",
		zap.String("user_id", userID),
		zap.String("client_ip", c.ClientIP()),
	)

	t, err := h.tasks.Create(c.Request.Context(), userID, task.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Priority:    req.Priority,
		Status:      req.Status,
	})
	if err != nil {
		var verr *task.ValidationError
		switch {
		case errors.As(err, &verr):
			log.Warn("AddTask: validation failed", zap.String("reason", verr.Message))
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message})
		case errors.Is(err, task.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		default:
			log.Error("AddTask: failed to create task", zap.String("user_id", userID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create task"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Task created successfully",
		"task":    t,
	})
}

// GetTasks GET /api/task/get-tasks/:id
func (h *TaskHandler) GetTasks(c *gin.Context) {
	userID := c.Param("id")

	tasks, err := h.tasks.ListForUser(c.Request.Context(), userID)
	if err != nil {
		logger.WithTrace(c.Request.Context(), h.logger).Error("GetTasks: failed to fetch tasks",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tasks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
	})
}

// UpdateStatus PATCH /api/task/update-status/:taskId
// The body is ignored; the task always ends up Completed.
func (h *TaskHandler) UpdateStatus(c *gin.Context) {
	taskID := c.Param("taskId")
	log := logger.WithTrace(c.Request.Context(), h.logger)

	if err := h.tasks.Complete(c.Request.Context(), taskID); err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
			return
		}
		log.Error("UpdateStatus: failed to complete task", zap.String("task_id", taskID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update task"})
		return
	}

	log.Info("UpdateStatus: task completed", zap.String("task_id", taskID))
	c.JSON(http.StatusOK, gin.H{"message": "Done and Dusted!"})
}
