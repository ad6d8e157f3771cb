package middleware

import (
	"fmt"
	"net/http"

	"github.com/benvon/health-chat/internal/request"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

// DefaultRate is the default ulule-formatted request rate
const DefaultRate = "5-S"

// RateLimitKey keys authenticated requests by user and anonymous ones by client IP
func RateLimitKey(r *http.Request) string {
	if user := request.UserFromContext(r); user != nil {
		return "user:" + user.ID.String()
	}
	return "ip:" + request.ClientIP(r)
}

// RateLimit returns ulule/limiter middleware. A nil redis client uses an in-process store.
func RateLimit(redisClient *redis.Client, rate string) (func(http.Handler) http.Handler, error) {
	if rate == "" {
		rate = DefaultRate
	}
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", rate, err)
	}

	var store limiter.Store
	if redisClient != nil {
		store, err = redisstore.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "health_chat_ratelimit"})
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limit store: %w", err)
		}
	} else {
		store = memory.NewStore()
	}

	mw := stdlibmw.NewMiddleware(limiter.New(store, parsed), stdlibmw.WithKeyGetter(RateLimitKey))
	return mw.Handler, nil
}
