package perception

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"forge/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func counting(calls *int32, fn func(n int32) (string, error)) Generator {
	return GeneratorFunc(func(ctx context.Context, req Request) (string, error) {
		n := atomic.AddInt32(calls, 1)
		return fn(n)
	})
}

func TestWithRetry_RecoversFromTransientFailure(t *testing.T) {
	var calls int32
	g := Chain(counting(&calls, func(n int32) (string, error) {
		if n < 3 {
			return "", errors.New("503")
		}
		return "ok", nil
	}), WithRetry(3, time.Millisecond))

	out, err := g.Generate(context.Background(), Request{Skill: "validate"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(3), calls)
}

func TestWithRetry_StopsOnPermanentAndUnavailable(t *testing.T) {
	for _, failure := range []error{Permanent(errors.New("400")), Unavailable("no key")} {
		var calls int32
		g := Chain(counting(&calls, func(int32) (string, error) { return "", failure }), WithRetry(5, time.Millisecond))

		_, err := g.Generate(context.Background(), Request{})
		assert.Error(t, err)
		assert.Equal(t, int32(1), calls)
	}
}

func TestWithRetry_ReturnsLastError(t *testing.T) {
	var calls int32
	g := Chain(counting(&calls, func(int32) (string, error) { return "", errors.New("flaky") }), WithRetry(2, time.Millisecond))

	_, err := g.Generate(context.Background(), Request{})
	assert.EqualError(t, err, "flaky")
	assert.Equal(t, int32(2), calls)
}

func TestWithTimeout(t *testing.T) {
	slow := GeneratorFunc(func(ctx context.Context, req Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	g := Chain(slow, WithTimeout(5*time.Millisecond))

	_, err := g.Generate(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.False(t, errors.Is(err, ErrGeneratorUnavailable))
}

func TestWithCache(t *testing.T) {
	var calls int32
	g := Chain(counting(&calls, func(n int32) (string, error) { return "reply", nil }), WithCache(4))

	for i := 0; i < 3; i++ {
		out, err := g.Generate(context.Background(), Request{Skill: "optimize", Prompt: "same"})
		require.NoError(t, err)
		assert.Equal(t, "reply", out)
	}
	_, _ = g.Generate(context.Background(), Request{Skill: "optimize", Prompt: "different"})
	assert.Equal(t, int32(2), calls)
}

func TestScriptedGenerator(t *testing.T) {
	g := NewScriptedGenerator(Script{Replies: map[string][]string{
		"generate_initial": {"first", "second"},
		"default":          {"fallback"},
	}})
	ctx := context.Background()

	for _, want := range []string{"first", "second", "second"} {
		out, err := g.Generate(ctx, Request{Skill: "generate_initial"})
		require.NoError(t, err)
		assert.Equal(t, want, out)
	}
	out, err := g.Generate(ctx, Request{Skill: "optimize"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", out)
	assert.Len(t, g.Requests(), 4)

	empty := NewScriptedGenerator(Script{})
	_, err = empty.Generate(ctx, Request{Skill: "validate"})
	assert.ErrorIs(t, err, ErrGeneratorUnavailable)
}

func TestNewFromConfig_Scripted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte("replies:\n  default:\n    - \"// === FILE: App.tsx ===\\nexport {}\"\n"), 0644))

	cfg := config.DefaultConfig()
	cfg.LLM.Provider = config.ProviderScripted
	cfg.LLM.Script = path

	g, err := NewFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "scripted", g.Name())

	out, err := g.Generate(context.Background(), Request{Skill: "generate_initial", Prompt: "p"})
	require.NoError(t, err)
	assert.Contains(t, out, "FILE: App.tsx")
}

func TestNewFromConfig_GeminiWithoutKey(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.APIKey = ""
	_, err := NewFromConfig(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrGeneratorUnavailable)
}
