package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ddramp/exchange/internal/api/problem"
	"github.com/go-chi/httprate"
)

// SubmissionRateLimiter limits offer submissions and reads per client IP.
func SubmissionRateLimiter(rps int) func(http.Handler) http.Handler {
	return httprate.Limit(rps, time.Second,
		httprate.WithLimitHandler(limitExceeded(fmt.Sprintf("Rate limit of %d req/s exceeded for this IP", rps))),
	)
}

// OperatorRateLimiter limits authenticated operators by name, falling back to IP.
func OperatorRateLimiter(rps int) func(http.Handler) http.Handler {
	return httprate.Limit(rps, time.Second,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if operator := OperatorFromContext(r.Context()); operator != "" {
				return "operator:" + operator, nil
			}
			return httprate.KeyByIP(r)
		}),
		httprate.WithLimitHandler(limitExceeded(fmt.Sprintf("Rate limit of %d req/s exceeded for this operator", rps))),
	)
}

func limitExceeded(detail string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		problem.Write(
			w,
			r,
			http.StatusTooManyRequests,
			problem.Type("rate-limit-exceeded"),
			http.StatusText(http.StatusTooManyRequests),
			detail,
		)
	}
}
