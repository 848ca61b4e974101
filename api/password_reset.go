package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/AlyBadawy/Securial-sub000/identity"
	"github.com/AlyBadawy/Securial-sub000/internal/util"
	"github.com/AlyBadawy/Securial-sub000/token"
)

const minPasswordLength = 8

// forgotPasswordMessage is returned whether or not the address exists,
// so the endpoint cannot be used to enumerate accounts.
const forgotPasswordMessage = "if the account exists, a reset code has been sent"

// resetCodeState is one outstanding reset challenge. Only a digest of
// the code is kept; the plaintext goes out over the mail boundary and
// is never stored.
type resetCodeState struct {
	userID    string
	codeHash  [sha256.Size]byte
	expiresAt time.Time
}

// resetCodeStore holds outstanding reset codes keyed by normalized
// email address. Issuing a new code replaces any previous one, and a
// successful reset consumes the code.
type resetCodeStore struct {
	mu    sync.Mutex
	codes map[string]resetCodeState
}

func newResetCodeStore() *resetCodeStore {
	return &resetCodeStore{codes: make(map[string]resetCodeState)}
}

func (s *resetCodeStore) issue(email, userID, code string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[email] = resetCodeState{
		userID:    userID,
		codeHash:  sha256.Sum256([]byte(strings.ToUpper(code))),
		expiresAt: time.Now().Add(ttl),
	}
}

// consume validates and burns the code for the address. The digest
// comparison is constant time; expired entries are dropped on contact.
func (s *resetCodeStore) consume(email, code string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.codes[email]
	if !ok {
		return "", false
	}
	if time.Now().After(state.expiresAt) {
		delete(s.codes, email)
		return "", false
	}
	hash := sha256.Sum256([]byte(strings.ToUpper(code)))
	if !hmac.Equal(hash[:], state.codeHash[:]) {
		return "", false
	}
	delete(s.codes, email)
	return state.userID, true
}

// ForgotPassword handles POST /password/forgot. The response is the
// same for known and unknown addresses; only the audit log and the
// mailbox reveal whether a code was actually issued.
func (a *API) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[ForgotPasswordRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.EmailAddress == "" {
		writeError(w, http.StatusBadRequest, "email_address is required")
		return
	}

	email := util.NormalizeIdentifier(req.EmailAddress)
	user, err := a.users.FindByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			writeJSON(w, http.StatusOK, okMessage(forgotPasswordMessage))
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to process request")
		return
	}

	code, err := token.ResetCode()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process request")
		return
	}
	a.resets.issue(email, user.ID, code, a.cfg.ResetCodeTTL)

	if err := a.mail.SendResetCode(user.EmailAddress, code); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to deliver reset code")
		return
	}

	a.audit.logEvent(AuditPasswordResetRequested, r, user.ID)
	writeJSON(w, http.StatusOK, okMessage(forgotPasswordMessage))
}

// ResetPassword handles PUT /password/reset. A valid single-use code
// sets the new password and revokes every session of the account.
func (a *API) ResetPassword(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[ResetPasswordRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.EmailAddress == "" || req.ResetCode == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "email_address, reset_code and new_password are required")
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		writeError(w, http.StatusUnprocessableEntity, "password is too short")
		return
	}

	email := util.NormalizeIdentifier(req.EmailAddress)
	userID, ok := a.resets.consume(email, req.ResetCode)
	if !ok {
		writeUnauthorized(w)
		return
	}

	hash, err := identity.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update password")
		return
	}
	if err := a.users.UpdatePassword(r.Context(), userID, hash); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update password")
		return
	}

	// Existing sessions were minted under the old password.
	if err := a.sessions.RevokeAllForUser(r.Context(), userID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to revoke sessions")
		return
	}

	a.audit.logEvent(AuditPasswordResetCompleted, r, userID)
	writeJSON(w, http.StatusOK, okMessage("password updated"))
}

type messageResponse struct {
	Message string `json:"message"`
}

func okMessage(msg string) messageResponse {
	return messageResponse{Message: msg}
}
