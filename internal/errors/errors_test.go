package errors

import (
	"fmt"
	"testing"
)

func TestQSError_Error(t *testing.T) {
	err := &QSError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "session not found",
	}

	expected := "NOT_FOUND: session not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("text is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "text is required" {
		t.Errorf("Message = %q, want %q", err.Message, "text is required")
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("01HX")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["id"] != "01HX" {
		t.Errorf("Details[id] = %v, want %q", err.Details["id"], "01HX")
	}
}

func TestRemoteCategories(t *testing.T) {
	tests := []struct {
		name   string
		err    *QSError
		code   ErrorCode
		status int
	}{
		{"credential", NewInvalidCredential("API key not valid"), ErrInvalidCredential, 401},
		{"quota", NewQuotaExceeded("quota exceeded"), ErrQuotaExceeded, 429},
		{"overloaded", NewOverloaded("the model is overloaded"), ErrOverloaded, 503},
		{"remote", NewRemote(400, "bad request"), ErrRemote, 502},
		{"transport", NewTransport(fmt.Errorf("dial tcp: refused")), ErrTransport, 504},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Status != tt.status {
				t.Errorf("Status = %d, want %d", tt.err.Status, tt.status)
			}
		})
	}
}

func TestNewRemote_KeepsRemoteStatus(t *testing.T) {
	err := NewRemote(400, "bad request")
	if err.Details["remote_status"] != 400 {
		t.Errorf("Details[remote_status] = %v, want 400", err.Details["remote_status"])
	}
}

func TestNewTransport_NilError(t *testing.T) {
	err := NewTransport(nil)
	if err.Message != "network error" {
		t.Errorf("Message = %q, want %q", err.Message, "network error")
	}
}

func TestNewStorageCorrupt(t *testing.T) {
	err := NewStorageCorrupt("chatHistory", fmt.Errorf("unexpected end of JSON input"))

	if err.Code != ErrStorageCorrupt {
		t.Errorf("Code = %q, want %q", err.Code, ErrStorageCorrupt)
	}
	if err.Details["key"] != "chatHistory" {
		t.Errorf("Details[key] = %v, want %q", err.Details["key"], "chatHistory")
	}
}

func TestNewClipboardUnsupported(t *testing.T) {
	err := NewClipboardUnsupported()
	if err.Code != ErrClipboardUnsupported {
		t.Errorf("Code = %q, want %q", err.Code, ErrClipboardUnsupported)
	}
	if err.Status != 501 {
		t.Errorf("Status = %d, want 501", err.Status)
	}
}

func TestNewInternal(t *testing.T) {
	t.Run("with error", func(t *testing.T) {
		err := NewInternal(fmt.Errorf("database connection failed"))

		if err.Code != ErrInternal {
			t.Errorf("Code = %q, want %q", err.Code, ErrInternal)
		}
		if err.Status != 500 {
			t.Errorf("Status = %d, want 500", err.Status)
		}
		// Message should be generic (not leak internal details)
		if err.Message != "an internal error occurred" {
			t.Errorf("Message = %q, want %q", err.Message, "an internal error occurred")
		}
		if err.Details["internal_error"] != "database connection failed" {
			t.Errorf("Details[internal_error] = %q, want %q", err.Details["internal_error"], "database connection failed")
		}
	})

	t.Run("with nil", func(t *testing.T) {
		err := NewInternal(nil)
		if err.Details == nil {
			t.Error("Details should not be nil")
		}
	})
}

func TestIs(t *testing.T) {
	t.Run("matching code", func(t *testing.T) {
		if !Is(NewNotFound("x"), ErrNotFound) {
			t.Error("Is() = false, want true")
		}
	})

	t.Run("non-matching code", func(t *testing.T) {
		if Is(NewNotFound("x"), ErrOverloaded) {
			t.Error("Is() = true, want false")
		}
	})

	t.Run("non-QSError", func(t *testing.T) {
		if Is(fmt.Errorf("plain error"), ErrNotFound) {
			t.Error("Is() = true, want false for non-QSError")
		}
	})

	t.Run("wrapped QSError", func(t *testing.T) {
		wrapped := fmt.Errorf("attempt 2: %w", NewOverloaded("busy"))
		if !Is(wrapped, ErrOverloaded) {
			t.Error("Is() = false, want true for wrapped QSError")
		}
		qErr, ok := As(wrapped)
		if !ok || qErr.Message != "busy" {
			t.Errorf("As() = %v, %v; want busy, true", qErr, ok)
		}
	})
}
