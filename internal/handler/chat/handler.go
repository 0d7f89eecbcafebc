package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/moodchat/internal/handler/feed"
	"github.com/zhouzirui/moodchat/internal/model/chat"
	chatService "github.com/zhouzirui/moodchat/internal/service/chat"
	"github.com/zhouzirui/moodchat/pkg/utils"
)

// 这些文案是前端依赖的响应内容，不要随意修改。
const (
	msgMessageRequired = "Message is required"
	msgNoConversation  = "No conversation data provided"
	msgSaved           = "Conversation saved to database successfully!"
	msgPopulated       = "Initial data populated successfully"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
	logger  *zap.Logger
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{chatSvc: chatSvc, logger: logger}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/send", h.handleSend)
	r.Get("/current-emotion", h.handleCurrentEmotion)
	r.Post("/analyze-conversation", h.handleAnalyze)
	r.Post("/save", h.handleSave)
	r.Get("/saved-conversations", h.handleSavedConversations)
	r.Post("/populate-initial-data", h.handlePopulate)
}

type sendRequest struct {
	Message string `json:"message"`
	Prompt  string `json:"prompt"`
}

type sendResponse struct {
	Reply     string  `json:"reply"`
	Emotion   string  `json:"emotion"`
	Intensity float64 `json:"intensity"`
}

// handleSend 生成角色回复
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	var payload sendRequest
	if err := utils.DecodeJSON(r, &payload); err != nil && !errors.Is(err, utils.ErrEmptyBody) {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := h.chatSvc.Send(r.Context(), payload.Message, payload.Prompt)
	if err != nil {
		if errors.Is(err, chatService.ErrMessageRequired) {
			utils.RespondError(w, http.StatusBadRequest, msgMessageRequired)
			return
		}
		h.logger.Error("[chat] send failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, sendResponse{
		Reply:     reply.Text,
		Emotion:   reply.Emotion,
		Intensity: reply.Intensity,
	})
}

// handleCurrentEmotion 返回最近一次情绪
func (h *Handler) handleCurrentEmotion(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, feed.MessageFrom(h.chatSvc.CurrentEmotion(r.Context())))
}

type conversationRequest struct {
	Conversation []chat.Message `json:"conversation"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	QualityScore *float64       `json:"quality_score"`
}

// handleAnalyze 为待保存的对话生成标题、描述与质量分
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var payload conversationRequest
	if err := utils.DecodeJSON(r, &payload); err != nil && !errors.Is(err, utils.ErrEmptyBody) {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	analysis, err := h.chatSvc.Analyze(payload.Conversation)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, msgNoConversation)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"analysis": analysis,
	})
}

// handleSave 保存对话
func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var payload conversationRequest
	if err := utils.DecodeJSON(r, &payload); err != nil && !errors.Is(err, utils.ErrEmptyBody) {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := h.chatSvc.Save(r.Context(), chatService.SaveInput{
		Messages:     payload.Conversation,
		Title:        payload.Title,
		Description:  payload.Description,
		QualityScore: payload.QualityScore,
	})
	if err != nil {
		if errors.Is(err, chatService.ErrNoConversation) {
			utils.RespondError(w, http.StatusBadRequest, msgNoConversation)
			return
		}
		h.logger.Error("[chat] save failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"conversation_id": saved.ID,
		"message":         msgSaved,
	})
}

// handleSavedConversations 列出已保存的对话，不含消息正文
func (h *Handler) handleSavedConversations(w http.ResponseWriter, r *http.Request) {
	list, err := h.chatSvc.Conversations(r.Context())
	if err != nil {
		h.logger.Error("[chat] list failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	for i := range list {
		list[i].Messages = nil
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"conversations": list,
	})
}

// handlePopulate 写入角色的初始记忆
func (h *Handler) handlePopulate(w http.ResponseWriter, r *http.Request) {
	if _, err := h.chatSvc.PopulateInitialData(r.Context()); err != nil {
		h.logger.Error("[chat] populate failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": msgPopulated,
	})
}
