package perception

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"forge/internal/logging"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Middleware decorates a Generator.
type Middleware func(Generator) Generator

// Chain wraps g so that the first middleware is outermost.
func Chain(g Generator, mws ...Middleware) Generator {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			g = mws[i](g)
		}
	}
	return g
}

type wrapped struct {
	next Generator
	gen  func(ctx context.Context, req Request) (string, error)
}

func (w *wrapped) Name() string { return w.next.Name() }
func (w *wrapped) Generate(ctx context.Context, req Request) (string, error) {
	return w.gen(ctx, req)
}

// WithTimeout bounds every call. A timeout surfaces as an ordinary error, so
// the calling skill fails without ending the session.
func WithTimeout(d time.Duration) Middleware {
	return func(next Generator) Generator {
		if d <= 0 {
			return next
		}
		return &wrapped{next: next, gen: func(ctx context.Context, req Request) (string, error) {
			cctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			out, err := next.Generate(cctx, req)
			if err != nil && errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return "", fmt.Errorf("generator timed out after %v: %w", d, err)
			}
			return out, err
		}}
	}
}

// WithRetry retries transient failures up to attempts times in total with
// exponential backoff from base. Permanent errors, unavailability and
// cancellation stop immediately.
func WithRetry(attempts int, base time.Duration) Middleware {
	if attempts < 1 {
		attempts = 1
	}
	if base <= 0 {
		base = 300 * time.Millisecond
	}
	return func(next Generator) Generator {
		return &wrapped{next: next, gen: func(ctx context.Context, req Request) (string, error) {
			var last error
			for i := 0; i < attempts; i++ {
				out, err := next.Generate(ctx, req)
				if err == nil {
					return out, nil
				}
				var perm *PermanentError
				if errors.As(err, &perm) || errors.Is(err, ErrGeneratorUnavailable) {
					return "", err
				}
				last = err
				if i == attempts-1 {
					break
				}
				logging.Get(logging.CategoryPerception).Warn("generator attempt %d/%d failed for %s: %v", i+1, attempts, req.Skill, err)
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(base * time.Duration(1<<i)):
				}
			}
			return "", last
		}}
	}
}

// WithCache memoizes replies by request content in an LRU of size entries.
func WithCache(size int) Middleware {
	return func(next Generator) Generator {
		if size <= 0 {
			return next
		}
		cache, err := lru.New[string, string](size)
		if err != nil {
			logging.Get(logging.CategoryPerception).Warn("generator cache disabled: %v", err)
			return next
		}
		return &wrapped{next: next, gen: func(ctx context.Context, req Request) (string, error) {
			key := cacheKey(req)
			if out, ok := cache.Get(key); ok {
				logging.Get(logging.CategoryPerception).Debug("generator cache hit for %s", req.Skill)
				return out, nil
			}
			out, err := next.Generate(ctx, req)
			if err != nil {
				return "", err
			}
			cache.Add(key, out)
			return out, nil
		}}
	}
}

// WithLogging records call duration and outcome.
func WithLogging() Middleware {
	return func(next Generator) Generator {
		return &wrapped{next: next, gen: func(ctx context.Context, req Request) (string, error) {
			timer := logging.StartTimer(logging.CategoryPerception, fmt.Sprintf("%s/%s", next.Name(), req.Skill))
			out, err := next.Generate(ctx, req)
			timer.StopWithThreshold(30 * time.Second)
			if err != nil {
				logging.Get(logging.CategoryPerception).Warn("%s failed for %s: %v", next.Name(), req.Skill, err)
			}
			return out, err
		}}
	}
}

func cacheKey(req Request) string {
	h := sha256.New()
	h.Write([]byte(req.Skill))
	h.Write([]byte{0})
	h.Write([]byte(req.System))
	h.Write([]byte{0})
	h.Write([]byte(req.Prompt))
	return hex.EncodeToString(h.Sum(nil))
}
