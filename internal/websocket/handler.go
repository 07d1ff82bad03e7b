package websocket

import (
	"log"
	"net/http"

	"ewaste-backend/internal/middleware"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket upgrades HTTP connection to WebSocket. Browsers cannot set headers
// on the upgrade request, so the token may also come from the query string.
func HandleWebSocket(hub *Hub, verifier middleware.TokenVerifier, sink LocationSink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userClaims, ok := middleware.GetUserFromContext(r)
		if !ok {
			tokenString, found := middleware.TokenFromRequest(r)
			if !found {
				log.Println("❌ No token for WebSocket connection")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			claims, err := verifier.Verify(r.Context(), tokenString)
			if err != nil {
				log.Printf("❌ Invalid WebSocket token: %v", err)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			userClaims = claims
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("❌ WebSocket upgrade failed: %v", err)
			return
		}

		client := NewClient(userClaims.UserID, userClaims.Role, userClaims.AgencyID, conn, hub, sink)
		hub.register <- client

		go client.WritePump()
		go client.ReadPump()

		log.Printf("✅ WebSocket connection established for user: %s (%s)", userClaims.UserID, userClaims.Role)
	}
}
