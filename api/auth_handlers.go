package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AlyBadawy/Securial-sub000/identity"
	"github.com/AlyBadawy/Securial-sub000/session"
)

// Login handles POST /auth/login. Successful credential verification
// creates a session bound to the request fingerprint and returns the
// initial access/refresh token pair.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[LoginRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.EmailAddress == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email_address and password are required")
		return
	}

	user, err := a.verifier.Verify(r.Context(), req.EmailAddress, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			a.audit.logFailure(AuditLoginFailure, r, "invalid credentials")
			writeUnauthorized(w)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to verify credentials")
		return
	}

	refreshToken, err := a.generator.RefreshToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	sess := session.New(user.ID, a.extractClientIP(r), r.UserAgent(), refreshToken, a.cfg.RefreshTokenTTL)
	if err := a.sessions.Create(r.Context(), sess); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to persist session")
		return
	}

	accessToken, err := a.codec.Encode(sess)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue access token")
		return
	}

	a.audit.logEvent(AuditLoginSuccess, r, user.ID, slog.String("session_id", sess.ID))
	writeJSON(w, http.StatusCreated, a.tokenResponse(accessToken, refreshToken))
}

// Refresh handles POST /auth/refresh: single-use refresh-token rotation.
// The conditional store update arbitrates concurrent refreshes; the
// loser, like any replayed old token, gets the generic 401.
func (a *API) Refresh(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[RefreshRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	// Tokens that were never minted here are dropped before the store
	// lookup.
	if !a.generator.VerifyRefreshToken(req.RefreshToken) {
		a.audit.logFailure(AuditTokenRejected, r, "refresh token tag invalid")
		writeUnauthorized(w)
		return
	}

	sess, err := a.sessions.FindByRefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			a.audit.logFailure(AuditRefreshReplay, r, "refresh token not found")
			writeUnauthorized(w)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	newToken, err := a.generator.RefreshToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to rotate session")
		return
	}

	oldToken := sess.RefreshToken
	if err := sess.Refresh(newToken, a.cfg.RefreshTokenTTL); err != nil {
		// Revoked and expired stay distinguishable in the audit log only.
		switch {
		case errors.Is(err, session.ErrTokenRevoked):
			a.audit.logFailure(AuditRefreshReplay, r, "session revoked", slog.String("session_id", sess.ID))
		case errors.Is(err, session.ErrTokenExpired):
			a.audit.logFailure(AuditRefreshReplay, r, "refresh window expired", slog.String("session_id", sess.ID))
		}
		writeUnauthorized(w)
		return
	}

	if err := a.sessions.Rotate(r.Context(), sess, oldToken); err != nil {
		if errors.Is(err, session.ErrConflict) || errors.Is(err, session.ErrNotFound) {
			a.audit.logFailure(AuditRefreshReplay, r, "lost rotation race", slog.String("session_id", sess.ID))
			writeUnauthorized(w)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to rotate session")
		return
	}

	accessToken, err := a.codec.Encode(sess)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue access token")
		return
	}

	a.audit.logEvent(AuditTokenRefreshed, r, sess.UserID, slog.String("session_id", sess.ID))
	writeJSON(w, http.StatusOK, a.tokenResponse(accessToken, newToken))
}

// Logout handles POST/DELETE /auth/logout: revokes the current session.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	sess := CurrentSession(r.Context())
	if err := a.sessions.Revoke(r.Context(), sess.ID); err != nil && !errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "failed to revoke session")
		return
	}
	a.audit.logEvent(AuditLogout, r, sess.UserID, slog.String("session_id", sess.ID))
	writeJSON(w, http.StatusOK, struct{}{})
}

// RevokeAll handles DELETE /auth/revoke: revokes every session belonging
// to the current user, including the one making the call.
func (a *API) RevokeAll(w http.ResponseWriter, r *http.Request) {
	sess := CurrentSession(r.Context())
	if err := a.sessions.RevokeAllForUser(r.Context(), sess.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to revoke sessions")
		return
	}
	a.audit.logEvent(AuditSessionRevoked, r, sess.UserID)
	writeJSON(w, http.StatusOK, struct{}{})
}

// Me handles GET /auth/me.
func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	sess := CurrentSession(r.Context())
	user, err := a.users.FindByID(r.Context(), sess.UserID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			writeUnauthorized(w)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load identity")
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{
		ID:           user.ID,
		EmailAddress: user.EmailAddress,
		Roles:        user.Roles,
		SessionID:    sess.ID,
	})
}

// ListSessions handles GET /auth/sessions: the caller's own sessions.
func (a *API) ListSessions(w http.ResponseWriter, r *http.Request) {
	sess := CurrentSession(r.Context())
	all, err := a.sessions.ListByUser(r.Context(), sess.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	writeJSON(w, http.StatusOK, sessionInfos(all, sess.ID))
}

// AdminListSessions handles GET /admin/sessions/{userID}.
func (a *API) AdminListSessions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	all, err := a.sessions.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	writeJSON(w, http.StatusOK, sessionInfos(all, ""))
}

func (a *API) tokenResponse(accessToken, refreshToken string) TokenResponse {
	return TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(a.cfg.AccessTokenTTL.Seconds()),
	}
}

func sessionInfos(all []*session.Session, currentID string) []SessionInfo {
	infos := make([]SessionInfo, 0, len(all))
	for _, s := range all {
		infos = append(infos, SessionInfo{
			ID:              s.ID,
			IPAddress:       s.IPAddress,
			UserAgent:       s.UserAgent,
			RefreshCount:    s.RefreshCount,
			LastRefreshedAt: s.LastRefreshedAt,
			Revoked:         s.Revoked,
			CreatedAt:       s.CreatedAt,
			Current:         currentID != "" && s.ID == currentID,
		})
	}
	return infos
}
