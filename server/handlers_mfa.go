package server

import (
	"net/http"

	"github.com/jrsteele09/go-session-server/auth"
	"github.com/jrsteele09/go-session-server/mfa"
)

type mfaSetupRequest struct {
	Method string `json:"method"`
}

type mfaEnableRequest struct {
	Code string `json:"code"`
}

type passwordConfirmRequest struct {
	Password string `json:"password"`
}

type backupCodesResponse struct {
	BackupCodes []string `json:"backupCodes"`
}

// MFASetupHandler starts enrolment. TOTP returns the secret and provisioning
// URI; SMS and email send a confirmation code.
func (s *Server) MFASetupHandler() http.HandlerFunc {
	return s.withIdentity(func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		var req mfaSetupRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		method := mfa.Method(req.Method)
		if method == mfa.MethodTOTP {
			enrollment, err := s.auth.SetupTOTP(r.Context(), id)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			writeData(w, http.StatusOK, enrollment)
			return
		}
		if err := s.auth.SetupCodeMFA(r.Context(), id, method); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusAccepted, nil)
	})
}

func (s *Server) MFAEnableHandler() http.HandlerFunc {
	return s.withIdentity(func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		var req mfaEnableRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		codes, err := s.auth.EnableMFA(r.Context(), id, req.Code)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, backupCodesResponse{BackupCodes: codes})
	})
}

func (s *Server) MFADisableHandler() http.HandlerFunc {
	return s.withIdentity(func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		var req passwordConfirmRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.auth.DisableMFA(r.Context(), id, req.Password); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, nil)
	})
}

func (s *Server) MFABackupCodesHandler() http.HandlerFunc {
	return s.withIdentity(func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		var req passwordConfirmRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		codes, err := s.auth.RegenerateBackupCodes(r.Context(), id, req.Password)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, backupCodesResponse{BackupCodes: codes})
	})
}
