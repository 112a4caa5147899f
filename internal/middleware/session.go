package middleware

import (
	"net/http"

	"github.com/hitoshi/roombook/internal/session"
)

// VisitorConfig は訪問者Cookieの設定。
type VisitorConfig struct {
	CookieSecure bool
	MaxAge       int // 秒
}

// NewVisitorMiddleware は visitor_id Cookie から訪問者のセッションを取得し、
// リクエストコンテキストに注入するミドルウェアを返す。
// Cookie がないか未知のIDの場合は新しいセッションを作成してCookieを発行する。
func NewVisitorMiddleware(sessions *session.Manager, config VisitorConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(session.CookieName); err == nil {
				id = c.Value
			}

			s, created := sessions.Get(id)
			if created || s.ID != id {
				http.SetCookie(w, &http.Cookie{
					Name:     session.CookieName,
					Value:    s.ID,
					Path:     "/",
					MaxAge:   config.MaxAge,
					HttpOnly: true,
					Secure:   config.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			reportVisitor(r.Context(), s)

			next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), s)))
		})
	}
}
