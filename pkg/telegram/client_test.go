package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAPI(t *testing.T, handler func(method string, body map[string]any) string) *Client {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.Contains(t, r.URL.Path, "/botsecret/")
		method := r.URL.Path[len("/botsecret/"):]

		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		body := map[string]any{}
		if len(data) > 0 {
			require.NoError(t, json.Unmarshal(data, &body))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(handler(method, body)))
	}))
	t.Cleanup(ts.Close)

	return NewClient(ClientConfig{APIURL: ts.URL + "/", Token: "secret", PollTimeout: time.Second, Timeout: time.Second})
}

func TestClient_GetUpdates(t *testing.T) {
	c := fakeAPI(t, func(method string, body map[string]any) string {
		assert.Equal(t, "getUpdates", method)
		assert.InDelta(t, 1, body["timeout"], 0)
		assert.InDelta(t, 10, body["offset"], 0)
		return `{"ok":true,"result":[
			{"update_id":10,"message":{"message_id":1,"text":"/start","from":{"id":5,"username":"anon"},"chat":{"id":77,"type":"private"}}},
			{"update_id":11,"callback_query":{"id":"q1","from":{"id":5},"data":"7+1","message":{"message_id":2,"chat":{"id":77}}}}
		]}`
	})

	updates, err := c.GetUpdates(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, updates, 2)

	assert.Equal(t, int64(10), updates[0].UpdateID)
	require.NotNil(t, updates[0].Message)
	assert.Equal(t, "/start", updates[0].Message.Text)
	assert.Equal(t, int64(77), updates[0].Message.Chat.ID)
	assert.Equal(t, "anon", updates[0].Message.From.Username)

	require.NotNil(t, updates[1].CallbackQuery)
	assert.Equal(t, "7+1", updates[1].CallbackQuery.Data)
	assert.Equal(t, int64(2), updates[1].CallbackQuery.Message.MessageID)
}

func TestClient_SendMessage(t *testing.T) {
	c := fakeAPI(t, func(method string, body map[string]any) string {
		assert.Equal(t, "sendMessage", method)
		assert.InDelta(t, 77, body["chat_id"], 0)
		assert.Equal(t, "hello", body["text"])
		assert.Equal(t, "HTML", body["parse_mode"])
		assert.Equal(t, true, body["disable_web_page_preview"])

		markup, ok := body["reply_markup"].(map[string]any)
		require.True(t, ok)
		rows := markup["inline_keyboard"].([]any)
		require.Len(t, rows, 1)
		btn := rows[0].([]any)[0].(map[string]any)
		assert.Equal(t, "👍", btn["text"])
		assert.Equal(t, "7+1", btn["callback_data"])

		return `{"ok":true,"result":{"message_id":99,"chat":{"id":77},"text":"hello"}}`
	})

	msg, err := c.SendMessage(context.Background(), OutgoingMessage{
		ChatID:                77,
		Text:                  "hello",
		ParseMode:             ParseModeHTML,
		DisableWebPagePreview: true,
		ReplyMarkup: &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{
			{{Text: "👍", CallbackData: "7+1"}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(99), msg.MessageID)
}

func TestClient_SendMessageNoMarkup(t *testing.T) {
	c := fakeAPI(t, func(_ string, body map[string]any) string {
		_, ok := body["reply_markup"]
		assert.False(t, ok)
		return `{"ok":true,"result":{"message_id":1,"chat":{"id":1}}}`
	})
	_, err := c.SendMessage(context.Background(), OutgoingMessage{ChatID: 1, Text: "plain"})
	require.NoError(t, err)
}

func TestClient_AnswerAndEdit(t *testing.T) {
	var calls []string
	c := fakeAPI(t, func(method string, body map[string]any) string {
		calls = append(calls, method)
		switch method {
		case "answerCallbackQuery":
			assert.Equal(t, "q1", body["callback_query_id"])
			assert.Equal(t, "+1", body["text"])
		case "editMessageReplyMarkup":
			assert.InDelta(t, 77, body["chat_id"], 0)
			assert.InDelta(t, 2, body["message_id"], 0)
			assert.NotNil(t, body["reply_markup"])
		}
		return `{"ok":true,"result":true}`
	})

	require.NoError(t, c.AnswerCallbackQuery(context.Background(), "q1", "+1"))
	require.NoError(t, c.EditMessageReplyMarkup(context.Background(), 77, 2,
		&InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{{{Text: "+1", CallbackData: "7+0"}}}}))
	assert.Equal(t, []string{"answerCallbackQuery", "editMessageReplyMarkup"}, calls)
}

func TestClient_APIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: message is not modified"}`))
	}))
	defer ts.Close()

	c := NewClient(ClientConfig{APIURL: ts.URL, Token: "secret"})
	err := c.AnswerCallbackQuery(context.Background(), "q", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message is not modified")
	assert.Contains(t, err.Error(), "status 400")
}

func TestClient_BadResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer ts.Close()

	c := NewClient(ClientConfig{APIURL: ts.URL, Token: "secret"})
	_, err := c.GetUpdates(context.Background(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_ContextCancel(t *testing.T) {
	done := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-done:
		}
	}))
	defer ts.Close()
	defer close(done)

	c := NewClient(ClientConfig{APIURL: ts.URL, Token: "secret", PollTimeout: 10 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.GetUpdates(ctx, 0)
	require.Error(t, err)
}
