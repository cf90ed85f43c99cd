package rateLimit

import (
	"net/http"
	"time"

	httprate "github.com/go-chi/httprate"
)

// Budgets are per client IP. The anonymous submission and suggestion
// endpoints carry no credentials, so the IP budget is the only throttle
// they have.

func Register() func(http.Handler) http.Handler {
	return httprate.LimitByIP(5, time.Hour)
}

func Verify() func(http.Handler) http.Handler {
	return httprate.LimitByIP(10, 10*time.Minute)
}

func ResendCode() func(http.Handler) http.Handler {
	return httprate.LimitByIP(3, time.Hour)
}

func Login() func(http.Handler) http.Handler {
	return httprate.LimitByIP(10, 5*time.Minute)
}

func Refresh() func(http.Handler) http.Handler {
	return httprate.LimitByIP(30, 10*time.Minute)
}

func Logout() func(http.Handler) http.Handler {
	return httprate.LimitByIP(20, 10*time.Minute)
}

func SubmitMessage() func(http.Handler) http.Handler {
	return httprate.LimitByIP(30, 10*time.Minute)
}

func Suggest() func(http.Handler) http.Handler {
	return httprate.LimitByIP(10, 10*time.Minute)
}
