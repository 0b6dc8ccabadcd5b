package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestCategoryString(t *testing.T) {
	tests := []struct {
		category Category
		expected string
	}{
		{CategoryTransient, "transient"},
		{CategoryPermanent, "permanent"},
		{CategoryCompromised, "compromised"},
		{CategoryMalformed, "malformed"},
		{Category(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.category.String(); got != tt.expected {
				t.Errorf("Category(%d).String() = %s, want %s", tt.category, got, tt.expected)
			}
		})
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Category
	}{
		{"nil error", nil, CategoryPermanent},
		{"dial error", &DialError{Handle: "request", Err: errors.New("refused")}, CategoryTransient},
		{"tamper error", &TamperError{Err: errors.New("auth")}, CategoryCompromised},
		{"decode error", &DecodeError{Err: errors.New("bad json")}, CategoryMalformed},
		{"transport timeout", &TransportError{Op: "recv", Timeout: true}, CategoryTransient},
		{"transport closed", &TransportError{Op: "recv", Err: errors.New("closed")}, CategoryPermanent},
		{"categorized error", &CategorizedError{Category: CategoryTransient}, CategoryTransient},
		{"wrapped tamper", fmt.Errorf("decode: %w", &TamperError{}), CategoryCompromised},
		{"unknown error", errors.New("unknown"), CategoryPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Categorize(tt.err); got != tt.expected {
				t.Errorf("Categorize() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestHelperFunctions(t *testing.T) {
	if !IsRetryable(&DialError{}) {
		t.Error("DialError should be retryable")
	}
	if IsRetryable(&TamperError{}) {
		t.Error("TamperError should not be retryable")
	}
	if !IsCompromised(&TamperError{}) {
		t.Error("TamperError should be compromised")
	}
	if !IsMalformed(&DecodeError{}) {
		t.Error("DecodeError should be malformed")
	}
}

func TestCategorizedError(t *testing.T) {
	underlying := errors.New("connection refused")
	err := Transient(underlying, "dial request handle")
	err.Retries = 2

	msg := err.Error()
	if !strings.Contains(msg, "dial request handle") || !strings.Contains(msg, "transient") {
		t.Errorf("unexpected message: %s", msg)
	}
	if !errors.Is(err, underlying) {
		t.Error("CategorizedError should unwrap to underlying error")
	}
	if Permanent(underlying, "").Category != CategoryPermanent {
		t.Error("Permanent() should set CategoryPermanent")
	}
}

func TestConnectErrorMessage(t *testing.T) {
	err := &ConnectError{
		Addr:         "tcp://localhost:57239",
		FirstHandle:  "subscribe",
		SecondHandle: "request",
		FirstErr:     "connection refused",
		SecondErr:    "connection reset",
	}

	msg := err.Error()
	if !strings.Contains(msg, "subscribe: connection refused") {
		t.Errorf("missing first handle error: %s", msg)
	}
	if !strings.Contains(msg, "request: connection reset") {
		t.Errorf("missing second handle error: %s", msg)
	}
}

func TestHandlerErrorMessage(t *testing.T) {
	panicked := &HandlerError{Event: "greet", Panic: "boom"}
	if !strings.Contains(panicked.Error(), "panicked: boom") {
		t.Errorf("unexpected message: %s", panicked.Error())
	}

	underlying := errors.New("db down")
	failed := &HandlerError{Event: "greet", Err: underlying}
	if !errors.Is(failed, underlying) {
		t.Error("HandlerError should unwrap to underlying error")
	}
}

func TestWithRetry(t *testing.T) {
	t.Run("success on first try", func(t *testing.T) {
		calls := 0
		cfg := NewRetryConfig(WithMaxAttempts(3))
		result := WithRetry(cfg, func() (string, error) {
			calls++
			return "success", nil
		})

		if result.Err != nil {
			t.Errorf("Unexpected error: %v", result.Err)
		}
		if result.Value != "success" {
			t.Errorf("Value = %q, want %q", result.Value, "success")
		}
		if result.Attempts != 1 || calls != 1 {
			t.Errorf("Attempts = %d, calls = %d, want 1", result.Attempts, calls)
		}
	})

	t.Run("success on retry", func(t *testing.T) {
		calls := 0
		cfg := NewRetryConfig(
			WithMaxAttempts(3),
			WithInitialBackoff(1*time.Millisecond),
		)
		result := WithRetry(cfg, func() (string, error) {
			calls++
			if calls < 2 {
				return "", &DialError{Err: errors.New("refused")}
			}
			return "success", nil
		})

		if result.Err != nil {
			t.Errorf("Unexpected error: %v", result.Err)
		}
		if result.Attempts != 2 {
			t.Errorf("Attempts = %d, want 2", result.Attempts)
		}
	})

	t.Run("max attempts exceeded keeps last error", func(t *testing.T) {
		calls := 0
		cfg := FixedDelay(3, time.Millisecond)
		result := WithRetry(cfg, func() (string, error) {
			calls++
			return "", &DialError{Err: fmt.Errorf("refused #%d", calls)}
		})

		if result.Err == nil {
			t.Fatal("Expected error after max attempts")
		}
		if result.Attempts != 3 || calls != 3 {
			t.Errorf("Attempts = %d, calls = %d, want 3", result.Attempts, calls)
		}
		if result.LastErr == nil || !strings.Contains(result.LastErr.Error(), "refused #3") {
			t.Errorf("LastErr = %v, want the third attempt's error", result.LastErr)
		}
	})

	t.Run("non-retryable error stops immediately", func(t *testing.T) {
		calls := 0
		cfg := NewRetryConfig(WithMaxAttempts(3))
		result := WithRetry(cfg, func() (string, error) {
			calls++
			return "", errors.New("invalid address")
		})

		if result.Err == nil {
			t.Error("Expected error")
		}
		if calls != 1 {
			t.Errorf("Calls = %d, want 1 (should not retry permanent error)", calls)
		}
	})

	t.Run("on retry hook sees every retried attempt", func(t *testing.T) {
		var seen []int
		cfg := FixedDelay(4, time.Millisecond)
		cfg.OnRetry = func(attempt int, _ error, delay time.Duration) {
			seen = append(seen, attempt)
			if delay != time.Millisecond {
				t.Errorf("delay = %v, want fixed 1ms", delay)
			}
		}
		WithRetry(cfg, func() (int, error) {
			return 0, &DialError{Err: errors.New("refused")}
		})

		if len(seen) != 3 {
			t.Errorf("OnRetry called %d times, want 3", len(seen))
		}
	})
}

func TestWithRetryContext(t *testing.T) {
	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		cfg := NewRetryConfig(WithMaxAttempts(3))
		result := WithRetryContext(ctx, cfg, func(_ context.Context) (string, error) {
			return "never reached", nil
		})

		if result.Err == nil {
			t.Error("Expected error from cancelled context")
		}
		if result.Attempts != 0 {
			t.Errorf("Attempts = %d, want 0", result.Attempts)
		}
	})

	t.Run("cancellation during backoff", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0

		cfg := FixedDelay(5, 100*time.Millisecond)

		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		result := WithRetryContext(ctx, cfg, func(_ context.Context) (string, error) {
			calls++
			return "", &DialError{Err: errors.New("refused")}
		})

		if result.Err == nil {
			t.Error("Expected error from cancelled context")
		}
		if calls > 2 {
			t.Errorf("Calls = %d, expected <= 2 (should cancel during backoff)", calls)
		}
		if result.LastErr == nil {
			t.Error("LastErr should keep the dial error seen before cancellation")
		}
	})
}
