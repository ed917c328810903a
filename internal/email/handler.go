package email

import (
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/httpjson"
)

// Handler is a stand-in mail relay: it validates and logs messages instead
// of delivering them.
type Handler struct {
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

type sendResponse struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := httpjson.Decode(r, &msg); err != nil {
		httpjson.FromError(w, r, h.logger, err)
		return
	}

	attachmentBytes := 0
	if msg.Attachment != "" {
		data, err := base64.StdEncoding.DecodeString(msg.Attachment)
		if err != nil {
			httpjson.Error(w, h.logger, http.StatusBadRequest, "attachment must be base64")
			return
		}
		attachmentBytes = len(data)
	}

	h.logger.InfoContext(r.Context(), "email sent",
		"to", msg.To,
		"subject", msg.Subject,
		"attachment", msg.AttachmentName,
		"attachment_bytes", attachmentBytes,
	)

	httpjson.Write(w, h.logger, http.StatusOK, sendResponse{OK: true, Status: "sent"})
}
