package web

import (
	"encoding/json"
	"testing"

	"github.com/sibylchat/sibyl/internal/agent"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		want    WSMessage
		wantErr bool
	}{
		{
			name:  "valid message with data",
			input: []byte(`{"type":"send_message","data":{"message":"hello","request_id":"r1"}}`),
			want: WSMessage{
				Type: "send_message",
				Data: json.RawMessage(`{"message":"hello","request_id":"r1"}`),
			},
		},
		{
			name:  "valid message without data",
			input: []byte(`{"type":"clear_history"}`),
			want:  WSMessage{Type: "clear_history"},
		},
		{
			name:    "invalid json",
			input:   []byte(`{invalid`),
			wantErr: true,
		},
		{
			name:    "empty input",
			input:   []byte(``),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMessage(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseMessage() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr {
				if got.Type != tt.want.Type {
					t.Errorf("ParseMessage() Type = %v, want %v", got.Type, tt.want.Type)
				}
				if tt.want.Data != nil && string(got.Data) != string(tt.want.Data) {
					t.Errorf("ParseMessage() Data = %v, want %v", string(got.Data), string(tt.want.Data))
				}
			}
		})
	}
}

func TestFinalResponseData_FlattensResult(t *testing.T) {
	data := FinalResponseData{
		Result: agent.Result{
			Response:   "answer",
			Confidence: 85,
			Method:     "Casual Chat",
		},
		ResponseHTML: "<p>answer</p>",
		RequestID:    "r1",
	}

	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	// The pipeline result fields sit at the top level, not nested.
	if decoded["response"] != "answer" {
		t.Errorf("response = %v, want %q", decoded["response"], "answer")
	}
	if decoded["response_html"] != "<p>answer</p>" {
		t.Errorf("response_html = %v, want %q", decoded["response_html"], "<p>answer</p>")
	}
	if decoded["request_id"] != "r1" {
		t.Errorf("request_id = %v, want %q", decoded["request_id"], "r1")
	}
	if decoded["confidence"] != float64(85) {
		t.Errorf("confidence = %v, want 85", decoded["confidence"])
	}
}
