package gorm

import (
	"errors"

	"github.com/taskdeck/taskdeck/tasksvc"
	stdgorm "gorm.io/gorm"
)

type taskRepository struct {
	db *stdgorm.DB
}

func NewTaskRepository(db *stdgorm.DB) tasksvc.TaskRepository {
	return &taskRepository{db}
}

func (t *taskRepository) Create(task tasksvc.Task) (tasksvc.Task, error) {
	if task.Status == "" {
		task.Status = tasksvc.StatusActive
	}
	result := t.db.Create(&task)

	return task, result.Error
}

func (t *taskRepository) FindAll(userID uint64, f tasksvc.TaskFilter) ([]tasksvc.Task, error) {
	tasks := []tasksvc.Task{}

	q := t.db.Where("user_id = ?", userID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}

	result := q.Order("created_at DESC, id DESC").Find(&tasks)

	return tasks, result.Error
}

func (t *taskRepository) Find(taskID uint64) (tasksvc.Task, error) {
	var task tasksvc.Task
	result := t.db.First(&task, taskID)

	if errors.Is(result.Error, stdgorm.ErrRecordNotFound) {
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}

	return task, result.Error
}

func (t *taskRepository) Update(task tasksvc.Task) (tasksvc.Task, error) {
	// Column map rather than struct update so zero values (an empty
	// description, status flipped back to active) are persisted.
	result := t.db.Model(&task).Updates(
		map[string]interface{}{
			"title":       task.Title,
			"description": task.Description,
			"status":      task.Status,
			"priority":    task.Priority,
		})
	if result.Error != nil {
		return tasksvc.Task{}, result.Error
	}

	return t.Find(task.ID)
}

func (t *taskRepository) Delete(taskID uint64) error {
	result := t.db.Delete(&tasksvc.Task{}, taskID)

	return result.Error
}
