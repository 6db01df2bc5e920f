package captcha

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goIdentity/internal"
)

// ErrUnavailable is returned when the challenge store cannot be reached.
var ErrUnavailable = errors.New("captcha store unavailable")

const keyPrefix = "captcha:"

// Config controls challenge generation.
type Config struct {
	Length     int
	TTL        time.Duration
	Width      int
	Height     int
	NoiseLines int
}

// Challenge is what a client needs to answer a captcha. Image is SVG markup.
type Challenge struct {
	ID    string
	Image string
}

// Gate stores and verifies challenges in Redis.
type Gate struct {
	redis  redis.UniversalClient
	config Config
}

// NewGate creates a [Gate]. Zero config fields fall back to length 5,
// TTL 5m, a 150x50 image and 4 noise lines.
func NewGate(rdb redis.UniversalClient, cfg Config) *Gate {
	if cfg.Length <= 0 {
		cfg.Length = 5
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.Width <= 0 {
		cfg.Width = 150
	}
	if cfg.Height <= 0 {
		cfg.Height = 50
	}
	if cfg.NoiseLines < 0 {
		cfg.NoiseLines = 0
	} else if cfg.NoiseLines == 0 {
		cfg.NoiseLines = 4
	}
	return &Gate{redis: rdb, config: cfg}
}

func key(id string) string {
	return keyPrefix + id
}

// Issue creates a challenge and stores its lowercase answer.
func (g *Gate) Issue(ctx context.Context) (Challenge, error) {
	text, err := internal.NewCaptchaText(g.config.Length)
	if err != nil {
		return Challenge{}, err
	}

	id := uuid.NewString()
	if err := g.redis.Set(ctx, key(id), strings.ToLower(text), g.config.TTL).Err(); err != nil {
		return Challenge{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return Challenge{
		ID:    id,
		Image: renderSVG(text, g.config.Width, g.config.Height, g.config.NoiseLines),
	}, nil
}

// Consume deletes the challenge and reports whether answer matched it,
// ignoring case and surrounding whitespace. Unknown or expired ids report false.
//
//	Performance: 1 Redis GETDEL.
func (g *Gate) Consume(ctx context.Context, id, answer string) (bool, error) {
	if id == "" {
		return false, nil
	}

	stored, err := g.redis.GetDel(ctx, key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	given := strings.ToLower(strings.TrimSpace(answer))
	if given == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(stored)) == 1, nil
}
