package mcpserver

import (
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func TestJSONResult_EncodesValue(t *testing.T) {
	result, err := jsonResult(map[string]string{"job_id": "abc"})
	if err != nil {
		t.Fatalf("jsonResult error: %v", err)
	}
	if result.IsError {
		t.Fatal("expected IsError=false")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected mcp.TextContent, got %T", result.Content[0])
	}
	if !strings.Contains(text.Text, "abc") {
		t.Fatalf("expected encoded job id in output, got %q", text.Text)
	}
}

func TestErrorResult_SetsIsError(t *testing.T) {
	result := errorResult(errors.New("boom"))
	if !result.IsError {
		t.Fatal("expected IsError=true")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected mcp.TextContent, got %T", result.Content[0])
	}
	if text.Text != "boom" {
		t.Fatalf("expected %q, got %q", "boom", text.Text)
	}
}
