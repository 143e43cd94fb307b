package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

// Feishu posts text messages to group chats through the Lark/Feishu open API
type Feishu struct {
	client  *lark.Client
	chatIDs []string
	logger  *zap.Logger
}

// NewFeishu creates a Feishu destination for the given app credentials and chats
func NewFeishu(appID, appSecret string, chatIDs []string, logger *zap.Logger, opts ...lark.ClientOptionFunc) (*Feishu, error) {
	if appID == "" || appSecret == "" {
		return nil, fmt.Errorf("FEISHU_APP_ID and FEISHU_APP_SECRET must both be set")
	}
	if len(chatIDs) == 0 {
		return nil, fmt.Errorf("FEISHU_CHAT_IDS is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Feishu{
		client:  lark.NewClient(appID, appSecret, opts...),
		chatIDs: append([]string(nil), chatIDs...),
		logger:  logger.Named("feishu"),
	}, nil
}

// textContent builds the JSON content body of a text message
func textContent(text string) (string, error) {
	b, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("marshal content: %w", err)
	}
	return string(b), nil
}

// Send posts text to every chat
func (f *Feishu) Send(ctx context.Context, text string) error {
	content, err := textContent(text)
	if err != nil {
		return err
	}

	var errs []error
	for _, chatID := range f.chatIDs {
		req := larkim.NewCreateMessageReqBuilder().
			ReceiveIdType(larkim.ReceiveIdTypeChatId).
			Body(larkim.NewCreateMessageReqBodyBuilder().
				ReceiveId(chatID).
				MsgType(larkim.MsgTypeText).
				Content(content).
				Build()).
			Build()

		resp, err := f.client.Im.Message.Create(ctx, req)
		if err != nil {
			errs = append(errs, fmt.Errorf("chat %s: %w", chatID, err))
			continue
		}
		if !resp.Success() {
			errs = append(errs, fmt.Errorf("chat %s: api error %d: %s", chatID, resp.Code, resp.Msg))
			continue
		}
		f.logger.Debug("Message sent", zap.String("chat", chatID))
	}
	return errors.Join(errs...)
}
