package tts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teslashibe/go-wayfinder/pkg/tts"
)

func TestMockProvider(t *testing.T) {
	mock := tts.NewMock()
	ctx := context.Background()

	t.Run("Synthesize returns audio", func(t *testing.T) {
		result, err := mock.Synthesize(ctx, "Hello world")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Audio) == 0 {
			t.Error("expected audio data")
		}
		if result.CharCount != 11 {
			t.Errorf("expected 11 chars, got %d", result.CharCount)
		}
		if result.SampleRate != 24000 {
			t.Errorf("expected 24000 sample rate, got %d", result.SampleRate)
		}
		if result.Duration != 220*time.Millisecond {
			t.Errorf("expected 220ms, got %v", result.Duration)
		}
	})

	t.Run("Calls are tracked", func(t *testing.T) {
		_ = mock.Health(ctx)
		if len(mock.Calls()) != 2 {
			t.Errorf("expected 2 calls, got %d", len(mock.Calls()))
		}
		if got := mock.Texts(); len(got) != 1 || got[0] != "Hello world" {
			t.Errorf("unexpected texts %v", got)
		}
	})

	t.Run("Reset clears calls", func(t *testing.T) {
		mock.Reset()
		if len(mock.Calls()) != 0 {
			t.Error("expected calls to be cleared")
		}
	})

	t.Run("Cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := mock.Synthesize(cctx, "late"); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestMockWithError(t *testing.T) {
	testErr := errors.New("test error")
	mock := tts.WithError(testErr)
	ctx := context.Background()

	if _, err := mock.Synthesize(ctx, "Hello"); !errors.Is(err, testErr) {
		t.Errorf("expected test error, got %v", err)
	}
	if err := mock.Health(ctx); !errors.Is(err, testErr) {
		t.Errorf("expected test error, got %v", err)
	}
}

func TestFunctionalOptions(t *testing.T) {
	cfg := tts.DefaultConfig()
	cfg.Apply(
		tts.WithAPIKey("key"),
		tts.WithVoice("onyx"),
		tts.WithModel(tts.ModelTTS1HD),
		tts.WithRate(180),
		tts.WithBinary("/usr/bin/espeak-ng"),
		tts.WithTimeout(time.Second),
		tts.WithRetry(5, time.Millisecond),
	)

	if cfg.APIKey != "key" || cfg.Voice != "onyx" || cfg.Model != tts.ModelTTS1HD {
		t.Errorf("unexpected identity settings: %+v", cfg)
	}
	if cfg.Rate != 180 || cfg.Binary != "/usr/bin/espeak-ng" {
		t.Errorf("unexpected engine settings: %+v", cfg)
	}
	if cfg.Timeout != time.Second || cfg.MaxRetries != 5 || cfg.RetryDelay != time.Millisecond {
		t.Errorf("unexpected retry settings: %+v", cfg)
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := tts.DefaultConfig()
	if err := cfg.Validate(); !errors.Is(err, tts.ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
	if cfg.Rate != tts.DefaultRate {
		t.Errorf("expected default rate %d, got %d", tts.DefaultRate, cfg.Rate)
	}
}

func TestAPIError(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503} {
		if !(&tts.APIError{StatusCode: code}).IsRetryable() {
			t.Errorf("expected %d to be retryable", code)
		}
	}
	for _, code := range []int{400, 401, 404} {
		if (&tts.APIError{StatusCode: code}).IsRetryable() {
			t.Errorf("expected %d not to be retryable", code)
		}
	}
	if !(&tts.APIError{StatusCode: 401}).IsUnauthorized() {
		t.Error("expected IsUnauthorized true")
	}

	err := &tts.APIError{StatusCode: 400, Message: "bad request", Code: "invalid_input", Provider: "openai"}
	if msg := err.Error(); msg != "tts [openai]: API error 400 (invalid_input): bad request" {
		t.Errorf("unexpected error message: %s", msg)
	}
}

func TestProviderError(t *testing.T) {
	inner := errors.New("connection failed")
	err := tts.WrapError("openai", inner)

	if err.Error() != "tts [openai]: connection failed" {
		t.Errorf("unexpected error message: %s", err.Error())
	}
	var pe *tts.ProviderError
	if !errors.As(err, &pe) || pe.Provider != "openai" {
		t.Errorf("expected ProviderError for openai, got %v", err)
	}
	if !errors.Is(err, inner) {
		t.Error("expected inner error to unwrap")
	}
	if tts.WrapError("openai", nil) != nil {
		t.Error("WrapError(nil) should be nil")
	}
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	t.Run("NewChain requires providers", func(t *testing.T) {
		if _, err := tts.NewChain(); !errors.Is(err, tts.ErrProviderUnavailable) {
			t.Errorf("expected ErrProviderUnavailable, got %v", err)
		}
	})

	t.Run("First provider succeeds", func(t *testing.T) {
		mock1, mock2 := tts.NewMock(), tts.NewMock()
		chain, _ := tts.NewChain(mock1, mock2)

		if _, err := chain.Synthesize(ctx, "Hello"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if mock1.CallCount("Synthesize") != 1 || mock2.CallCount("Synthesize") != 0 {
			t.Error("expected only the first provider to be called")
		}
	})

	t.Run("Fallback moves failed provider back", func(t *testing.T) {
		fail := tts.WithError(errors.New("offline"))
		local := tts.NewMock()
		chain, _ := tts.NewChain(fail, local)

		if _, err := chain.Synthesize(ctx, "one"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := chain.Synthesize(ctx, "two"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if fail.CallCount("Synthesize") != 1 {
			t.Errorf("failed provider called %d times, want 1", fail.CallCount("Synthesize"))
		}
		if got := chain.Providers()[0]; got != tts.Provider(local) {
			t.Error("expected working provider first")
		}
	})

	t.Run("All providers fail", func(t *testing.T) {
		err1, err2 := errors.New("fail 1"), errors.New("fail 2")
		chain, _ := tts.NewChain(tts.WithError(err1), tts.WithError(err2))

		_, err := chain.Synthesize(ctx, "Hello")
		var ce *tts.ChainError
		if !errors.As(err, &ce) || len(ce.Errors) != 2 {
			t.Fatalf("expected ChainError with 2 errors, got %v", err)
		}
		if !errors.Is(err, err1) || !errors.Is(err, err2) {
			t.Error("expected both provider errors to unwrap")
		}
	})

	t.Run("Health needs one healthy provider", func(t *testing.T) {
		chain, _ := tts.NewChain(tts.WithError(errors.New("down")), tts.NewMock())
		if err := chain.Health(ctx); err != nil {
			t.Errorf("unexpected error: %v", err)
		}

		chain, _ = tts.NewChain(tts.WithError(errors.New("down")))
		if err := chain.Health(ctx); err == nil {
			t.Error("expected error when all unhealthy")
		}
	})
}
