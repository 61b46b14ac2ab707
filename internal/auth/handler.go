package auth

import "log/slog"

// Handler recomputes the authorization status from the client whenever an
// auth signal arrives or the controller mounts.
type Handler struct {
	client Client
	ids    Identifier
	logger *slog.Logger

	identified string
}

// NewHandler accepts a nil client; it then always reports unauthorized.
func NewHandler(client Client, ids Identifier, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{client: client, ids: ids, logger: logger}
}

// Changed queries the client. A missing client, a failed query or a false
// answer all give StatusUnauthorized and nothing else runs. On
// StatusAuthorized the account is identified once; repeating the call for
// the same account does not identify again.
func (h *Handler) Changed() (Status, string) {
	if h.client == nil {
		return StatusUnauthorized, ""
	}
	ok, err := h.client.IsAuthorized()
	if err != nil {
		h.logger.Warn("auth: authorization query failed", "err", err)
		return StatusUnauthorized, ""
	}
	if !ok {
		h.identified = ""
		return StatusUnauthorized, ""
	}

	account := h.client.Account()
	if h.ids != nil && account != h.identified {
		h.ids.Identify(account)
		h.identified = account
	}
	return StatusAuthorized, account
}

// Signals exposes the client's signal channel, or nil without a client.
func (h *Handler) Signals() <-chan Signal {
	if h.client == nil {
		return nil
	}
	return h.client.Signals()
}
