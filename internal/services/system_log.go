package services

import (
	"encoding/json"
	"time"

	"github.com/huangang/ticketflow/backend/internal/models"
	"gorm.io/gorm"
)

var globalDB *gorm.DB

// InitSystemLogger wires the DB used by the package-level Log helpers.
func InitSystemLogger(db *gorm.DB) {
	globalDB = db
}

func LogInfo(module, action, message string, extra interface{}) {
	writeLog("info", module, action, message, extra)
}

func LogWarning(module, action, message string, extra interface{}) {
	writeLog("warning", module, action, message, extra)
}

func LogError(module, action, message string, extra interface{}) {
	writeLog("error", module, action, message, extra)
}

func writeLog(level, module, action, message string, extra interface{}) {
	if globalDB == nil {
		return
	}

	var extraStr string
	if extra != nil {
		if b, err := json.Marshal(extra); err == nil {
			extraStr = string(b)
		}
	}

	entry := &models.SystemLog{
		Level:     level,
		Module:    module,
		Action:    action,
		Message:   message,
		Extra:     extraStr,
		CreatedAt: time.Now(),
	}
	globalDB.Create(entry)
}

type SystemLogService struct {
	db *gorm.DB
}

func NewSystemLogService(db *gorm.DB) *SystemLogService {
	return &SystemLogService{db: db}
}

type SystemLogListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Level    string `form:"level"`
	Module   string `form:"module"`
}

type SystemLogListResponse struct {
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Items    []models.SystemLog `json:"items"`
}

func (s *SystemLogService) List(req *SystemLogListRequest) (*SystemLogListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	var logs []models.SystemLog
	var total int64

	query := s.db.Model(&models.SystemLog{})
	if req.Level != "" {
		query = query.Where("level = ?", req.Level)
	}
	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}

	query.Count(&total)

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC").Find(&logs).Error; err != nil {
		return nil, err
	}

	return &SystemLogListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    logs,
	}, nil
}
