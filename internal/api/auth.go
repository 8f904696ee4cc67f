package api

import (
	"encoding/json"
	"net/http"

	"github.com/gridwire/meshcore/internal/security"
)

// devUsername/devPassword are the only credentials this build accepts.
// A concrete identity backend is out of scope here — the login endpoint
// exists to exercise the JWT issuance and WebSocket ticket mechanism,
// not to authenticate real operators.
const devUsername = "admin"
const devPassword = "admin"

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// handleLogin issues a bearer token for the fixed dev credentials.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Username != devUsername || req.Password != devPassword {
		writeUnauthorized(w, "invalid credentials")
		return
	}

	token, expiresAt, err := s.tokens.Issue(req.Username, "admin")
	if err != nil {
		s.logger.Error("failed to issue token", "error", err)
		writeInternalError(w, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt.Format("2006-01-02T15:04:05Z07:00")})
}

type wsTicketResponse struct {
	Ticket string `json:"ticket"`
}

// handleIssueWSTicket exchanges the caller's already-validated bearer
// token (authMiddleware ran first) for a single-use WebSocket ticket, so
// the browser never puts the bearer token itself in a URL.
func (s *Server) handleIssueWSTicket(w http.ResponseWriter, r *http.Request) {
	claims, ok := security.ClaimsFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "missing claims")
		return
	}

	ticket, err := s.tickets.Issue(claims.Subject)
	if err != nil {
		s.logger.Error("failed to issue websocket ticket", "error", err)
		writeInternalError(w, "failed to issue ticket")
		return
	}

	writeJSON(w, http.StatusOK, wsTicketResponse{Ticket: ticket})
}
