package webhook

import (
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// loadingSeconds must be a multiple of 5 between 5 and 60.
const loadingSeconds = 60

// Messenger sends replies back to LINE.
type Messenger interface {
	Reply(replyToken, text string) error
	ShowLoading(chatID string) error
}

// LineMessenger is the Messaging API implementation of Messenger.
type LineMessenger struct {
	client *messaging_api.MessagingApiAPI
}

// NewLineMessenger creates a Messaging API client for the channel token.
func NewLineMessenger(channelToken string) (*LineMessenger, error) {
	client, err := messaging_api.NewMessagingApiAPI(channelToken)
	if err != nil {
		return nil, fmt.Errorf("create messaging API client: %w", err)
	}
	return &LineMessenger{client: client}, nil
}

// Reply sends text as a single text message.
func (m *LineMessenger) Reply(replyToken, text string) error {
	_, err := m.client.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages: []messaging_api.MessageInterface{
			&messaging_api.TextMessage{Text: text},
		},
	})
	if err != nil {
		return fmt.Errorf("reply message: %w", err)
	}
	return nil
}

// ShowLoading starts the loading animation in a one-on-one chat.
func (m *LineMessenger) ShowLoading(chatID string) error {
	_, err := m.client.ShowLoadingAnimation(&messaging_api.ShowLoadingAnimationRequest{
		ChatId:         chatID,
		LoadingSeconds: loadingSeconds,
	})
	if err != nil {
		return fmt.Errorf("show loading animation: %w", err)
	}
	return nil
}
