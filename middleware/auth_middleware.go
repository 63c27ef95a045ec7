package middleware

import (
	"log"
	"net/http"
	"strings"

	"go-rooms/backend/utils"
)

// JWTMiddleware 驗證 JWT Token 並把呼叫者身分放入 context
// 身分驗證是外部協作者的責任，這裡只還原已驗證的 (userId, displayName, role)
func JWTMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				// WebSocket 升級請求沒辦法帶自訂 header，允許 query 參數傳 token
				authHeader = "Bearer " + r.URL.Query().Get("token")
			}

			// Authorization: Bearer <token>
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			identity, err := utils.IdentityFromToken(parts[1], jwtSecret)
			if err != nil {
				log.Printf("Invalid JWT token: %v", err)
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(utils.WithIdentity(r.Context(), identity)))
		})
	}
}
