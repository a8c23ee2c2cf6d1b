package gemini

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
)

func TestParseResponse(t *testing.T) {
	testCases := []struct {
		name string
		resp *genai.GenerateContentResponse
		want string
	}{
		{
			name: "empty",
			resp: &genai.GenerateContentResponse{},
			want: "",
		},
		{
			name: "multi text parts",
			resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{
					{Content: &genai.Content{Parts: []genai.Part{genai.Text("[{\"token\":"), genai.Text("\"EXT\"}]")}}},
				},
			},
			want: "[{\"token\":\n\"EXT\"}]",
		},
		{
			name: "non text part",
			resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{
					{Content: &genai.Content{Parts: []genai.Part{genai.Text("[]"), genai.Blob{MIMEType: "image/png"}}}},
				},
			},
			want: "",
		},
		{
			name: "nil content",
			resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{}},
			},
			want: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parseResponse(tc.resp))
		})
	}
}
