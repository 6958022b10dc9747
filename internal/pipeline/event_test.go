package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaulBabatuyi/ilinkon-realtime/internal/chatv1"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/data"
	"github.com/PaulBabatuyi/ilinkon-realtime/internal/errs"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name    string
		req     *chatv1.ChatStreamRequest
		want    Payload
		wantErr bool
	}{
		{
			name: "text defaults when type is missing",
			req:  &chatv1.ChatStreamRequest{ThreadID: 1, Text: " hi "},
			want: Text{Body: "hi"},
		},
		{
			name: "image with caption",
			req:  &chatv1.ChatStreamRequest{ThreadID: 1, MessageType: data.TypeImage, Image: "https://cdn/a.png", Text: "look"},
			want: Image{URL: "https://cdn/a.png", Caption: "look"},
		},
		{
			name: "audio",
			req:  &chatv1.ChatStreamRequest{ThreadID: 1, MessageType: data.TypeAudio, Audio: "https://cdn/a.m4a"},
			want: Audio{URL: "https://cdn/a.m4a"},
		},
		{
			name: "file with name",
			req:  &chatv1.ChatStreamRequest{ThreadID: 1, MessageType: data.TypeFile, File: "https://cdn/f", FileName: "f.pdf"},
			want: File{URL: "https://cdn/f", Name: "f.pdf"},
		},
		{name: "missing thread", req: &chatv1.ChatStreamRequest{Text: "hi"}, wantErr: true},
		{name: "blank text", req: &chatv1.ChatStreamRequest{ThreadID: 1, Text: "   "}, wantErr: true},
		{name: "image without url", req: &chatv1.ChatStreamRequest{ThreadID: 1, MessageType: data.TypeImage, Text: "x"}, wantErr: true},
		{name: "unknown type", req: &chatv1.ChatStreamRequest{ThreadID: 1, MessageType: "video", Text: "x"}, wantErr: true},
		{name: "nil", req: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent(tt.req)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errs.Is(err, errs.KindValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.req.ThreadID, ev.ThreadID)
			assert.Equal(t, tt.want, ev.Payload)
		})
	}
}

func TestParseEvent_KeepsClientRefOnError(t *testing.T) {
	ev, err := ParseEvent(&chatv1.ChatStreamRequest{ClientRef: "c-1"})
	require.Error(t, err)
	assert.Equal(t, "c-1", ev.ClientRef)
}
