package chatclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"storychat/internal/chat"
	"storychat/internal/conversations"
)

func TestAPIClientChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req chatRequest
		require.NoError(t, sonic.Unmarshal(body, &req))
		require.Equal(t, []chat.Turn{{Role: "user", Content: "hi"}}, req.Messages)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"reply":"hello","suggestions":["a","b","c"],"usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3},"timing":{"llmDuration":5,"suggDuration":6,"totalDuration":11}}`)
	}))
	defer srv.Close()

	client := NewAPIClient(discardLogger(), srv.URL+"/", nil)
	res, err := client.Chat(WithToken(context.Background(), "tok"), []chat.Turn{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	require.Equal(t, "hello", res.Reply)
	require.Equal(t, []string{"a", "b", "c"}, res.Suggestions)
	require.Equal(t, 3, res.Usage.TotalTokens)
	require.Equal(t, int64(11), res.Timing.TotalDuration)
}

func TestAPIClientErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"Missing text"}`)
	}))
	defer srv.Close()

	client := NewAPIClient(discardLogger(), srv.URL, nil)
	_, err := client.Speech(context.Background(), " ", "English")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.Equal(t, "Missing text", apiErr.Message)
}

func TestAPIClientSpeechReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tts", r.URL.Path)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3data"))
	}))
	defer srv.Close()

	client := NewAPIClient(discardLogger(), srv.URL, nil)
	audio, err := client.Speech(context.Background(), "Hello", "English")
	require.NoError(t, err)
	require.Equal(t, []byte("ID3data"), audio)
}

func TestAPIClientTopicRoutes(t *testing.T) {
	topicID, messageID := uuid.New(), uuid.New()
	var seen []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/topics":
			_, _ = io.WriteString(w, `[{"id":"`+topicID.String()+`","name":"Space"}]`)
		case r.Method == http.MethodPost && r.URL.Path == "/topics/"+topicID.String()+"/messages":
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"id":"`+messageID.String()+`","topic_id":"`+topicID.String()+`","role":"user","content":"hi"}`)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	client := NewAPIClient(discardLogger(), srv.URL, nil)
	ctx := context.Background()

	topics, err := client.ListTopics(ctx)
	require.NoError(t, err)
	require.Equal(t, []conversations.Topic{{ID: topicID, Name: "Space"}}, topics)

	msg, err := client.InsertMessage(ctx, topicID, conversations.RoleUser, "hi")
	require.NoError(t, err)
	require.Equal(t, messageID, msg.ID)
	require.Equal(t, conversations.RoleUser, msg.Role)

	require.NoError(t, client.RenameTopic(ctx, topicID, "Planets"))
	require.NoError(t, client.DeleteMessage(ctx, topicID, messageID))
	require.NoError(t, client.DeleteTopic(ctx, topicID))

	require.Equal(t, []string{
		"GET /topics",
		"POST /topics/" + topicID.String() + "/messages",
		"PATCH /topics/" + topicID.String(),
		"DELETE /topics/" + topicID.String() + "/messages/" + messageID.String(),
		"DELETE /topics/" + topicID.String(),
	}, seen)
}
