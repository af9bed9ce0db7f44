package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ai-training/internal/common"
	"github.com/suPer8Hu/ai-training/internal/training"
	"gorm.io/gorm"
)

type submitModuleReq struct {
	Model        training.ModelVariant `json:"model" binding:"required"`
	Steps        *int                  `json:"steps" binding:"required"`
	LearningRate float64               `json:"learning_rate"`
	Name         string                `json:"name"`
	Description  string                `json:"description"`
}

func (h *Handler) SubmitModule(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req submitModuleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	m, err := h.Training.Submit(c.Request.Context(), uid, training.SubmitRequest{
		Model:        req.Model,
		Steps:        *req.Steps,
		LearningRate: req.LearningRate,
		Name:         req.Name,
		Description:  req.Description,
	})
	if err != nil {
		switch {
		case errors.Is(err, training.ErrInvalidRequest):
			common.Fail(c, http.StatusBadRequest, 10002, err.Error())
		case errors.Is(err, training.ErrDuplicateSubmission):
			common.Fail(c, http.StatusConflict, 40901, "a module is already queued or training for this user")
		default:
			log.Printf("[SubmitModule] submit failed uid=%d err=%v", uid, err)
			common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		}
		return
	}

	common.OK(c, gin.H{"module": m})
}

func (h *Handler) GetModule(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	m, err := h.Training.Get(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "module not found")
			return
		}
		log.Printf("[GetModule] get failed uid=%d id=%s err=%v", uid, c.Param("id"), err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	common.OK(c, gin.H{"module": m})
}

// GetModuleStatus answers from the redis cache only for terminal statuses,
// which never change again. Anything else is read from the database, since a
// failed cache write can leave an older status behind.
func (h *Handler) GetModuleStatus(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	id := c.Param("id")

	if h.Status != nil {
		cached, err := h.Status.GetStatus(c.Request.Context(), id)
		if err == nil && cached.UserID == uid && cached.Status.Terminal() {
			common.OK(c, gin.H{"id": id, "status": cached.Status, "last_updated_at": cached.At})
			return
		}
	}

	m, err := h.Training.Get(c.Request.Context(), uid, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "module not found")
			return
		}
		log.Printf("[GetModuleStatus] get failed uid=%d id=%s err=%v", uid, id, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	common.OK(c, gin.H{"id": m.ID, "status": m.Status, "last_updated_at": m.LastUpdatedAt})
}

func (h *Handler) ListModules(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	beforeID := c.Query("before_id")

	modules, err := h.Training.List(c.Request.Context(), uid, limit, beforeID)
	if err != nil {
		log.Printf("[ListModules] list failed uid=%d err=%v", uid, err)
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list modules")
		return
	}

	var nextBeforeID string
	if len(modules) > 0 {
		nextBeforeID = modules[len(modules)-1].ID
	}

	common.OK(c, gin.H{
		"modules":        modules,
		"next_before_id": nextBeforeID,
		"outstanding":    h.Training.Outstanding(uid),
	})
}
