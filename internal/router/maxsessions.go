package router

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
)

// MaxSessionsMessage is written to connections refused at capacity.
const MaxSessionsMessage = "max sessions exceeded\n"

// MaxSessionsMiddleware caps concurrent sessions at limit. A slot is freed
// once, either when the handler returns or when the session context ends.
// Handler panics are logged and swallowed.
func MaxSessionsMiddleware(limit int, logger *log.Logger) wish.Middleware {
	if limit <= 0 {
		limit = 1
	}
	slots := make(chan struct{}, limit)

	return func(next ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			select {
			case slots <- struct{}{}:
			default:
				logger.Warn("session refused", "event", "max_sessions", "remote", remoteIP(s), "limit", limit)
				_, _ = s.Write([]byte(MaxSessionsMessage))
				_ = s.Exit(1)
				return
			}

			var once sync.Once
			release := func() { once.Do(func() { <-slots }) }
			stop := context.AfterFunc(s.Context(), release)
			defer func() {
				stop()
				release()
				if r := recover(); r != nil {
					logger.Error("session handler panicked", "event", "session_panic", "remote", remoteIP(s), "panic", r)
				}
			}()
			next(s)
		}
	}
}
