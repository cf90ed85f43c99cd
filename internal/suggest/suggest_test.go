package suggest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "three questions",
			input: "a||b||c",
			want:  []string{"a", "b", "c"},
		},
		{
			name:  "no delimiter",
			input: "onlyone",
			want:  []string{"onlyone"},
		},
		{
			name:  "empty input",
			input: "",
			want:  []string{""},
		},
		{
			name:  "starter questions",
			input: StarterQuestions,
			want: []string{
				"What's your favorite movie?",
				"Do you have any pets?",
				"What's your dream job?",
			},
		},
		{
			name:  "no trimming",
			input: "a || b",
			want:  []string{"a ", " b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Parse(tt.input))
		})
	}
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 1)

		json.NewEncoder(w).Encode(chatResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{
				{Message: chatMessage{Role: "assistant", Content: "q1||q2||q3"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "test-model", time.Second)

	completion, err := c.Generate(context.Background(), DefaultPrompt)
	require.NoError(t, err)
	require.Equal(t, []string{"q1", "q2", "q3"}, Parse(completion))
}

func TestGenerate_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "test-model", time.Second)

	_, err := c.Generate(context.Background(), DefaultPrompt)
	require.Error(t, err)
}

func TestGenerate_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "test-model", time.Second)

	_, err := c.Generate(context.Background(), DefaultPrompt)
	require.Error(t, err)
}
